package domain

import "time"

// Task IDs for built-in background tasks.
const (
	TaskIDTokenRefresh = "token-refresh"
)

// ScheduledTask is a recurring background task and its last outcome.
type ScheduledTask struct {
	ID       string
	Name     string
	Interval time.Duration

	LastRun     time.Time
	NextRun     time.Time
	LastSuccess time.Time
	// LastError is empty when the last run succeeded.
	LastError string

	Enabled bool
}

// Due reports whether the task should run at now.
func (t *ScheduledTask) Due(now time.Time) bool {
	return t.Enabled && (t.NextRun.IsZero() || !t.NextRun.After(now))
}

// TaskResult is the outcome of one task execution.
type TaskResult struct {
	TaskID    string
	StartedAt time.Time
	EndedAt   time.Time
	Success   bool
	Error     string
	AccountsRefreshed int
}

// SchedulerConfig holds scheduler configuration.
type SchedulerConfig struct {
	Enabled bool
	// RefreshInterval is how often expiring tokens are refreshed.
	RefreshInterval time.Duration
	// RefreshWindow selects accounts whose tokens expire within this window.
	RefreshWindow time.Duration
	// TickInterval is how often due tasks are checked.
	TickInterval time.Duration
}

// DefaultSchedulerConfig returns sensible defaults for the scheduler.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		Enabled:         true,
		RefreshInterval: 45 * time.Minute,
		RefreshWindow:   15 * time.Minute,
		TickInterval:    time.Minute,
	}
}
