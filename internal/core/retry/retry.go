package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy is a bounded retry policy: at most MaxAttempts attempts with a
// fixed Backoff between them. It is deliberately decoupled from any store
// technology so callers can exercise it against fakes that fail N times.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// Default returns the operational default: 3 attempts, 100ms apart.
// The bound is a cleanup-effort knob, not a consistency guarantee.
func Default() Policy {
	return Policy{MaxAttempts: 3, Backoff: 100 * time.Millisecond}
}

func (p Policy) normalized() Policy {
	n := p
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = 1
	}
	if n.Backoff < 0 {
		n.Backoff = 0
	}
	return n
}

// Do invokes fn until it succeeds, the attempt budget is exhausted, or ctx
// is cancelled. The last error is returned wrapped with the attempt count.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if attempt == p.MaxAttempts {
			break
		}

		select {
		case <-time.After(p.Backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("exhausted %d attempts: %w", p.MaxAttempts, lastErr)
}
