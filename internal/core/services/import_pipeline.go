package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/custodia-labs/sercha-connect/internal/core/domain"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-connect/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-connect/internal/logger"
)

// Ensure ImportPipeline implements the interface.
var _ driving.ImportService = (*ImportPipeline)(nil)

// ImportPipeline runs imports: authorize, then page through the provider's
// listing, fetching, normalising and upserting each item in list order.
//
// Item-level failures are recorded and the run continues. Auth failures
// abort the run at once. Rate-limited and transient calls are retried with
// bounded exponential backoff local to the call.
type ImportPipeline struct {
	tokens    *TokenRefresher
	guard     *ScopeGuard
	registry  driven.ProviderRegistry
	upserter  *Upserter
	publisher driven.EventPublisher
	metrics   driven.Metrics
	settings  domain.ImportSettings

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	active map[string]*domain.ActiveRun
}

// ImportPipelineOption configures an ImportPipeline.
type ImportPipelineOption func(*ImportPipeline)

// WithEventPublisher publishes a notification when each run finishes.
func WithEventPublisher(p driven.EventPublisher) ImportPipelineOption {
	return func(ip *ImportPipeline) { ip.publisher = p }
}

// WithImportMetrics records run and retry metrics.
func WithImportMetrics(m driven.Metrics) ImportPipelineOption {
	return func(ip *ImportPipeline) { ip.metrics = m }
}

// WithSleep replaces the backoff sleep, e.g. to make tests instant.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) ImportPipelineOption {
	return func(ip *ImportPipeline) { ip.sleep = sleep }
}

// WithImportClock overrides the time source used for budgets and reports.
func WithImportClock(now func() time.Time) ImportPipelineOption {
	return func(ip *ImportPipeline) { ip.now = now }
}

// NewImportPipeline creates an ImportPipeline.
func NewImportPipeline(
	tokens *TokenRefresher,
	guard *ScopeGuard,
	registry driven.ProviderRegistry,
	upserter *Upserter,
	settings domain.ImportSettings,
	opts ...ImportPipelineOption,
) *ImportPipeline {
	defaults := domain.DefaultAppSettings().Import
	if settings.MaxAttempts < 1 {
		settings.MaxAttempts = defaults.MaxAttempts
	}
	if settings.BaseBackoff <= 0 {
		settings.BaseBackoff = defaults.BaseBackoff
	}
	if settings.MaxBackoff <= 0 {
		settings.MaxBackoff = defaults.MaxBackoff
	}

	p := &ImportPipeline{
		tokens:   tokens,
		guard:    guard,
		registry: registry,
		upserter: upserter,
		settings: settings,
		now:      time.Now,
		sleep:    sleepContext,
		active:   make(map[string]*domain.ActiveRun),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// runState is the mutable state of one run.
type runState struct {
	req      domain.ImportRequest
	report   *domain.ImportReport
	client   driven.ProviderClient
	account  *domain.ConnectedAccount
	bearer   domain.Bearer
	selector domain.ImportSelector

	maxItems int
	deadline time.Time

	// reactiveRefreshed is set once a token of unknown expiry has been
	// refreshed after an auth failure.
	reactiveRefreshed bool
}

// StartImport runs one import synchronously. A report is always returned.
// Aborted runs also return a *domain.ImportError.
func (p *ImportPipeline) StartImport(ctx context.Context, req domain.ImportRequest) (*domain.ImportReport, error) {
	report := &domain.ImportReport{
		RunID:     uuid.NewString(),
		UserID:    req.UserID,
		Provider:  req.Provider,
		Selector:  req.Selector,
		StartedAt: p.now(),
	}
	st := &runState{req: req, report: report, selector: req.Selector}

	p.track(st)
	defer p.untrack(report.RunID)

	logger.Section(fmt.Sprintf("Import %s %s", req.Provider, req.Selector))
	err := p.run(ctx, st)

	report.FinishedAt = p.now()
	if err != nil {
		var ie *domain.ImportError
		if !errors.As(err, &ie) {
			ie = &domain.ImportError{Reason: domain.AbortProvider, Err: err}
			err = ie
		}
		report.State = domain.RunAborted
		report.AbortReason = ie.Reason
		logger.Warn("import %s aborted: %v", report.RunID, err)
	} else {
		report.State = domain.RunCompleted
		logger.Info("import %s completed: attempted=%d succeeded=%d failed=%d partial=%v",
			report.RunID, report.Attempted, report.Succeeded, report.Failed, report.Partial)
	}

	p.finish(ctx, report)
	return report, err
}

// ActiveRuns returns a snapshot of in-flight runs ordered by start time.
func (p *ImportPipeline) ActiveRuns() []domain.ActiveRun {
	p.mu.Lock()
	defer p.mu.Unlock()
	runs := make([]domain.ActiveRun, 0, len(p.active))
	for _, r := range p.active {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.Before(runs[j].StartedAt) })
	return runs
}

func (p *ImportPipeline) run(ctx context.Context, st *runState) error {
	if err := p.authorize(ctx, st); err != nil {
		return err
	}

	cursor := ""
	for {
		if err := ctx.Err(); err != nil {
			return &domain.ImportError{Reason: domain.AbortCancelled, Err: err}
		}
		if p.budgetExhausted(st) {
			st.report.Partial = true
			return nil
		}

		p.setPhase(st, domain.PhaseListing)
		var page *domain.Page
		err := p.call(ctx, st, func(b domain.Bearer) error {
			var err error
			page, err = st.client.ListPage(ctx, b, st.selector, cursor)
			return err
		})
		if err != nil {
			return p.callAbort(ctx, st, "", err, domain.AbortProvider)
		}
		logger.Debug("listed %d items (cursor=%q next=%q)", len(page.NativeIDs), cursor, page.NextCursor)

		for _, id := range page.NativeIDs {
			if err := ctx.Err(); err != nil {
				return &domain.ImportError{Reason: domain.AbortCancelled, Err: err}
			}
			if p.budgetExhausted(st) {
				st.report.Partial = true
				return nil
			}
			if err := p.importItem(ctx, st, id); err != nil {
				return err
			}
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// authorize validates the request, obtains a valid token and checks scope.
// It makes no content call unless the client must resolve the selector.
func (p *ImportPipeline) authorize(ctx context.Context, st *runState) error {
	p.setPhase(st, domain.PhaseAuthorizing)
	req := st.req

	if err := p.validate(req); err != nil {
		return &domain.ImportError{Reason: domain.AbortInvalidSelector, Err: err}
	}

	client, err := p.registry.Client(req.Provider, req.Selector.Kind)
	if err != nil {
		return &domain.ImportError{Reason: domain.AbortInvalidSelector, Err: err}
	}
	st.client = client

	token, account, err := p.tokens.EnsureValidToken(ctx, req.UserID, req.Provider)
	if err != nil {
		return &domain.ImportError{Reason: authorizeAbortReason(ctx, err), Err: err}
	}
	st.account = account

	if err := p.guard.Require(account, req.Selector.Capability()); err != nil {
		return &domain.ImportError{Reason: domain.AbortInsufficientScope, Err: err}
	}

	st.bearer = domain.Bearer{AccessToken: token, Subject: account.AccountIdentifier}
	st.maxItems = req.Budget.MaxItems
	if st.maxItems <= 0 {
		st.maxItems = p.settings.MaxItems
	}
	timeout := req.Budget.Timeout
	if timeout <= 0 {
		timeout = p.settings.Timeout
	}
	if timeout > 0 {
		st.deadline = st.report.StartedAt.Add(timeout)
	}
	if st.selector.PageSize == 0 {
		st.selector.PageSize = p.settings.PageSize
	}

	if resolver, ok := client.(driven.SelectorResolver); ok {
		err := p.call(ctx, st, func(b domain.Bearer) error {
			resolved, err := resolver.ResolveSelector(ctx, b, st.selector)
			if err == nil {
				st.selector = resolved
			}
			return err
		})
		if err != nil {
			fallback := domain.AbortProvider
			if domain.KindOf(err) == domain.KindNotFound {
				fallback = domain.AbortInvalidSelector
			}
			return p.callAbort(ctx, st, "", err, fallback)
		}
	}
	return nil
}

func (p *ImportPipeline) validate(req domain.ImportRequest) error {
	var errs error
	if req.UserID == "" {
		errs = multierr.Append(errs, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput))
	}
	if !req.Provider.IsValid() {
		errs = multierr.Append(errs, fmt.Errorf("%w: %q", domain.ErrUnsupportedProvider, req.Provider))
	} else if req.Selector.Kind != "" && !req.Provider.Supports(req.Selector.Kind) {
		errs = multierr.Append(errs, fmt.Errorf("%w: %s cannot import %s", domain.ErrUnsupportedProvider, req.Provider, req.Selector.Kind))
	}
	for _, problem := range req.Selector.Problems() {
		errs = multierr.Append(errs, problem)
	}
	return errs
}

// importItem fetches, normalises and upserts one item. It returns an error
// only when the whole run must abort.
func (p *ImportPipeline) importItem(ctx context.Context, st *runState, id string) error {
	report := st.report
	report.Attempted++
	defer p.progress(st)

	p.setPhase(st, domain.PhaseFetching)
	var raw *domain.RawItem
	err := p.call(ctx, st, func(b domain.Bearer) error {
		var err error
		raw, err = st.client.FetchItem(ctx, b, id)
		return err
	})
	if err != nil {
		kind := domain.KindOf(err)
		if kind.IsAuth() || ctx.Err() != nil {
			return p.callAbort(ctx, st, id, err, domain.AbortProvider)
		}
		logger.Warn("fetching %s failed (%s): %v", id, kind, err)
		report.RecordFailure(id, kind, err)
		return nil
	}

	item, err := st.client.Normalise(raw)
	if err != nil {
		logger.Warn("normalising %s failed: %v", id, err)
		report.RecordFailure(id, domain.KindInvalidItem, err)
		return nil
	}
	if h := item.Header(); h.Provider == "" {
		h.Provider = st.client.Provider()
	}

	p.setPhase(st, domain.PhaseUpserting)
	stored, err := p.upserter.Upsert(ctx, st.req.UserID, item)
	if err != nil {
		logger.Warn("storing %s failed: %v", id, err)
		report.RecordFailure(id, domain.KindStorage, err)
		return nil
	}
	report.RecordSuccess(stored)
	return nil
}

// call runs one provider call with local retry. Rate-limited and transient
// failures are retried up to MaxAttempts with exponential backoff that
// honours the provider's retry hint. Backoff never sleeps past the run's
// time budget; once the budget is spent the last error is returned. A token of unknown expiry that the
// provider rejects is refreshed once and the call repeated.
func (p *ImportPipeline) call(ctx context.Context, st *runState, fn func(domain.Bearer) error) error {
	attempt := 1
	for {
		err := fn(st.bearer)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		kind := domain.KindOf(err)
		if kind == domain.KindAuthExpired && p.canRefreshReactively(st) {
			st.reactiveRefreshed = true
			account, rerr := p.tokens.ForceRefresh(ctx, st.req.UserID, st.req.Provider, st.bearer.AccessToken)
			if rerr != nil {
				logger.Warn("reactive refresh for %s failed: %v", st.account.Key(), rerr)
				return err
			}
			st.account = account
			st.bearer.AccessToken = account.AccessToken
			continue
		}

		if !kind.Retryable() || attempt >= p.settings.MaxAttempts {
			return err
		}

		delay := p.backoff(attempt, domain.RetryAfterOf(err))
		if !st.deadline.IsZero() {
			remaining := st.deadline.Sub(p.now())
			if remaining <= 0 {
				return err
			}
			delay = min(delay, remaining)
		}
		logger.Debug("%s error, retrying in %s (attempt %d/%d)", kind, delay, attempt+1, p.settings.MaxAttempts)
		if p.metrics != nil {
			p.metrics.ObserveItemRetry(st.req.Provider, kind)
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return serr
		}
		attempt++
	}
}

// canRefreshReactively reports whether an auth rejection may be answered
// with one refresh instead of an authLost abort. That is only the case for a
// token whose expiry was never reported: it was used on the assumption that
// it might already be expired, so the first rejection is the expected way of
// learning that it is, not evidence that consent was withdrawn. A second
// rejection, or any rejection of a token with a known expiry, aborts.
func (p *ImportPipeline) canRefreshReactively(st *runState) bool {
	return !st.reactiveRefreshed && st.account != nil && st.account.ExpiresAt == nil && st.account.HasRefreshToken()
}

// callAbort turns a failed call into the run's abort error.
func (p *ImportPipeline) callAbort(ctx context.Context, st *runState, itemID string, err error, fallback domain.AbortReason) error {
	if ctx.Err() != nil {
		return &domain.ImportError{Reason: domain.AbortCancelled, ProviderItemID: itemID, Err: ctx.Err()}
	}

	kind := domain.KindOf(err)
	if !kind.IsAuth() {
		return &domain.ImportError{Reason: fallback, ProviderItemID: itemID, Err: err}
	}

	if kind == domain.KindAuthExpired {
		if merr := p.tokens.MarkStale(ctx, st.req.UserID, st.req.Provider, st.bearer.AccessToken); merr != nil {
			logger.Warn("could not mark token stale: %v", merr)
		}
	}
	return &domain.ImportError{
		Reason:         domain.AbortAuthLost,
		ProviderItemID: itemID,
		Err:            fmt.Errorf("%w: %w", domain.ErrAuthLost, err),
	}
}

func (p *ImportPipeline) backoff(attempt int, hint time.Duration) time.Duration {
	d := p.settings.BaseBackoff << (attempt - 1)
	if hint > d {
		d = hint
	}
	if d > p.settings.MaxBackoff {
		d = p.settings.MaxBackoff
	}
	return d
}

func (p *ImportPipeline) budgetExhausted(st *runState) bool {
	if st.maxItems > 0 && st.report.Attempted >= st.maxItems {
		return true
	}
	return !st.deadline.IsZero() && !p.now().Before(st.deadline)
}

func (p *ImportPipeline) finish(ctx context.Context, report *domain.ImportReport) {
	if p.metrics != nil {
		p.metrics.ObserveRun(report)
	}
	if p.publisher != nil {
		if err := p.publisher.ImportFinished(context.WithoutCancel(ctx), report); err != nil {
			logger.Warn("publishing import event: %v", err)
		}
	}
}

// ==================== Active Runs ====================

func (p *ImportPipeline) track(st *runState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.active[st.report.RunID] = &domain.ActiveRun{
		RunID:     st.report.RunID,
		UserID:    st.req.UserID,
		Provider:  st.req.Provider,
		Selector:  st.req.Selector.String(),
		Phase:     domain.PhaseAuthorizing,
		StartedAt: st.report.StartedAt,
	}
}

func (p *ImportPipeline) untrack(runID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.active, runID)
}

func (p *ImportPipeline) setPhase(st *runState, phase domain.Phase) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.active[st.report.RunID]; ok {
		r.Phase = phase
	}
}

func (p *ImportPipeline) progress(st *runState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.active[st.report.RunID]; ok {
		r.Attempted = st.report.Attempted
		r.Succeeded = st.report.Succeeded
		r.Failed = st.report.Failed
	}
}

// authorizeAbortReason maps a token error to the remediation the caller needs.
func authorizeAbortReason(ctx context.Context, err error) domain.AbortReason {
	switch {
	case ctx.Err() != nil:
		return domain.AbortCancelled
	case errors.Is(err, domain.ErrNotConnected):
		return domain.AbortNotConnected
	case errors.Is(err, domain.ErrReauthRequired):
		return domain.AbortNeedsReconsent
	case errors.Is(err, domain.ErrStorage):
		return domain.AbortStorage
	default:
		return domain.AbortProvider
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
