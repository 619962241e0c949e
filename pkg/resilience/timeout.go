package resilience

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/adrian-1-cardona/DocPulse/pkg/errors"
)

// WithTimeout bounds fn to limit. fn receives a context that ends at the
// deadline; if fn has not returned by then WithTimeout gives up on it and
// returns an error matching both apperrors.ErrTimeout and
// context.DeadlineExceeded. Cancellation of ctx itself is passed through
// unchanged. A non-positive limit runs fn directly.
func WithTimeout(ctx context.Context, limit time.Duration, name string, fn func(ctx context.Context) error) error {
	if limit <= 0 {
		return fn(ctx)
	}
	bounded, cancel := context.WithTimeout(ctx, limit)
	defer cancel()

	result := make(chan error, 1)
	go func() { result <- fn(bounded) }()

	select {
	case err := <-result:
		if err != nil && bounded.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return deadlineError(name, limit)
		}
		return err
	case <-bounded.Done():
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		return deadlineError(name, limit)
	}
}

func deadlineError(name string, limit time.Duration) error {
	return fmt.Errorf("%s exceeded %v: %w: %w", name, limit, apperrors.ErrTimeout, context.DeadlineExceeded)
}
