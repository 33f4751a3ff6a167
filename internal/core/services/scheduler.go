package services

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// historyRetention is how many results are kept per task.
const historyRetention = 100

// Scheduler runs background tasks. Its only task refreshes tokens that are
// about to expire so imports rarely pay for a refresh inline.
type Scheduler struct {
	config domain.SchedulerConfig
	store  driven.SchedulerStore
	tokens driving.TokenService

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	now     func() time.Time
}

// NewScheduler creates a scheduler. store may be nil, in which case task
// state lives only in memory.
func NewScheduler(config domain.SchedulerConfig, store driven.SchedulerStore, tokens driving.TokenService) *Scheduler {
	if config.TickInterval <= 0 {
		config.TickInterval = time.Minute
	}
	return &Scheduler{
		config: config,
		store:  store,
		tokens: tokens,
		now:    time.Now,
	}
}

// Start runs the scheduler loop. It blocks until Stop is called or ctx is done.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running || !s.config.Enabled {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	task, err := s.loadTask(ctx)
	if err != nil {
		logger.Warn("scheduler: loading task state: %v", err)
	}
	s.logLastResult(ctx)

	s.tick(ctx, task)

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.tick(ctx, task)
		}
	}
}

// Stop shuts the scheduler down and waits for a running task to finish.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	return nil
}

// RunNow executes the refresh task once, outside the loop.
func (s *Scheduler) RunNow(ctx context.Context) (*domain.TaskResult, error) {
	task, err := s.loadTask(ctx)
	if err != nil {
		return nil, err
	}
	return s.runTask(ctx, task), nil
}

func (s *Scheduler) logLastResult(ctx context.Context) {
	if s.store == nil {
		return
	}
	last, err := s.store.LastResult(ctx, domain.TaskIDTokenRefresh)
	if err != nil || last == nil {
		return
	}
	if last.Success {
		logger.Debug("scheduler: last refresh %s refreshed %d accounts", last.EndedAt.Format(time.RFC3339), last.AccountsRefreshed)
		return
	}
	logger.Info("scheduler: last refresh %s failed: %s", last.EndedAt.Format(time.RFC3339), last.Error)
}

// loadTask returns the persisted refresh task, creating it if needed.
func (s *Scheduler) loadTask(ctx context.Context) (*domain.ScheduledTask, error) {
	task := &domain.ScheduledTask{
		ID:       domain.TaskIDTokenRefresh,
		Name:     "Token Refresh",
		Interval: s.config.RefreshInterval,
		Enabled:  true,
	}
	if s.store == nil {
		return task, nil
	}

	stored, err := s.store.GetTask(ctx, domain.TaskIDTokenRefresh)
	if err != nil {
		return task, err
	}
	if stored != nil {
		task = stored
		if task.Interval != s.config.RefreshInterval {
			task.Interval = s.config.RefreshInterval
			task.NextRun = s.now().Add(task.Interval)
		}
	}
	return task, s.store.SaveTask(ctx, task)
}

func (s *Scheduler) tick(ctx context.Context, task *domain.ScheduledTask) {
	if !task.Due(s.now()) {
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	s.runTask(ctx, task)
}

// runTask refreshes expiring tokens and records the outcome.
func (s *Scheduler) runTask(ctx context.Context, task *domain.ScheduledTask) *domain.TaskResult {
	result := &domain.TaskResult{TaskID: task.ID, StartedAt: s.now()}

	refreshed, err := s.tokens.RefreshExpiring(ctx)
	result.AccountsRefreshed = refreshed
	result.EndedAt = s.now()
	result.Success = err == nil

	task.LastRun = result.StartedAt
	task.NextRun = result.EndedAt.Add(task.Interval)
	if err != nil {
		result.Error = err.Error()
		task.LastError = err.Error()
		logger.Warn("scheduler: token refresh: %v", err)
	} else {
		task.LastError = ""
		task.LastSuccess = result.EndedAt
		logger.Debug("scheduler: refreshed %d tokens", refreshed)
	}

	if s.store != nil {
		if err := s.store.SaveTask(ctx, task); err != nil {
			logger.Warn("scheduler: saving task %s: %v", task.ID, err)
		}
		if err := s.store.RecordResult(ctx, result); err != nil {
			logger.Warn("scheduler: recording result for %s: %v", task.ID, err)
		}
		if err := s.store.PruneHistory(ctx, historyRetention); err != nil {
			logger.Warn("scheduler: pruning history: %v", err)
		}
	}
	return result
}
