package httpx

import (
	"context"
	"net/http"
	"time"
)

const maxAttempts = 3

// retryableStatus reports responses worth another attempt after a pause.
func retryableStatus(status int) bool {
	return status == http.StatusTooManyRequests || (status >= 500 && status <= 599)
}

// retryDelay doubles from 500ms: 500ms, 1s, 2s.
func retryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	return (500 * time.Millisecond) << attempt
}

func waitFor(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
