package driving

import "context"

// Scheduler refreshes expiring tokens in the background for the serve command.
type Scheduler interface {
	// Start blocks until Stop is called or ctx is done, returning ctx.Err() in the latter case.
	Start(ctx context.Context) error

	// Stop waits for an in-flight refresh to finish.
	Stop() error
}
