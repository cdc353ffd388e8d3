package llm

import (
	"context"
	stderrors "errors"
	"math"
	"math/rand"
	"net/http"
	"time"
)

const maxBackoff = time.Minute

// defaultBackoff doubles from two seconds with a little jitter.
func defaultBackoff(attempt int) time.Duration {
	base := 2 * time.Second * time.Duration(math.Pow(2, float64(attempt-1)))
	if base > maxBackoff {
		base = maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(500 * time.Millisecond)))
	return base + jitter
}

func shouldRetry(status int, err error) bool {
	if err != nil {
		return !stderrors.Is(err, context.Canceled) && !stderrors.Is(err, context.DeadlineExceeded)
	}
	return status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
}

// retrier holds the retry policy shared by the http providers.
type retrier struct {
	MaxAttempts int
	Backoff     func(int) time.Duration
	Sleep       func(time.Duration)
}

// do calls fn until it succeeds, the error is not retryable or attempts run out.
// Cancelling ctx ends the backoff early.
func (r retrier) do(ctx context.Context, fn func() ([]byte, int, error)) ([]byte, int, error) {
	attempts := r.MaxAttempts
	if attempts < 1 {
		attempts = DefaultMaxAttempts
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = defaultBackoff
	}
	sleep := r.Sleep
	if sleep == nil {
		sleep = func(d time.Duration) {
			select {
			case <-ctx.Done():
			case <-time.After(d):
			}
		}
	}

	var (
		body   []byte
		status int
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		body, status, err = fn()
		if err == nil && status < 400 {
			return body, status, nil
		}
		if attempt == attempts || !shouldRetry(status, err) || ctx.Err() != nil {
			break
		}
		sleep(backoff(attempt))
		if ctxErr := ctx.Err(); ctxErr != nil {
			return body, status, ctxErr
		}
	}
	return body, status, err
}
