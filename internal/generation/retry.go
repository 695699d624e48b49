package generation

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryPolicy is the caller-owned retry policy for transport failures. The zero value
// disables retries, so every flow step makes at most one remote call.
type RetryPolicy struct {
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// Budget is the worst-case duration of a call under p when every attempt runs for
// attempt. Jitter can stretch a backoff interval to 1.5x MaxInterval.
func (p RetryPolicy) Budget(attempt time.Duration) time.Duration {
	if p.MaxRetries == 0 {
		return attempt
	}
	wait := p.MaxInterval
	if wait <= 0 {
		wait = backoff.DefaultMaxInterval
	}
	n := time.Duration(p.MaxRetries)
	return attempt*(n+1) + n*wait*3/2
}

// WithRetry wraps inv so that transport failures are retried under p. Backend, empty
// and non-generation errors are returned immediately.
func WithRetry(inv Invoker, p RetryPolicy) Invoker {
	if p.MaxRetries == 0 {
		return inv
	}
	return &retryingInvoker{next: inv, policy: p}
}

type retryingInvoker struct {
	next   Invoker
	policy RetryPolicy
}

func (r *retryingInvoker) Invoke(ctx context.Context, req *Request) (*Response, error) {
	eb := backoff.NewExponentialBackOff()
	if r.policy.InitialInterval > 0 {
		eb.InitialInterval = r.policy.InitialInterval
	}
	if r.policy.MaxInterval > 0 {
		eb.MaxInterval = r.policy.MaxInterval
	}
	b := backoff.WithContext(backoff.WithMaxRetries(eb, r.policy.MaxRetries), ctx)

	var resp *Response
	err := backoff.Retry(func() error {
		out, err := r.next.Invoke(ctx, req)
		if err != nil {
			if KindOf(err) == ErrorTransport && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = out
		return nil
	}, b)
	if err != nil {
		return nil, err
	}
	return resp, nil
}
