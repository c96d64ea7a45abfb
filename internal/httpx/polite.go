package httpx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// PoliteClient sends outbound requests with a per-host rate limit and
// bounded retries on throttling responses. Request bodies are replayed
// through req.GetBody, so callers should build requests with
// http.NewRequestWithContext over an in-memory reader.
type PoliteClient struct {
	client   *http.Client
	ua       string
	limiters map[string]*rate.Limiter
	mu       sync.Mutex
}

func NewPoliteClient(userAgent string, timeout time.Duration) *PoliteClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PoliteClient{
		client:   &http.Client{Timeout: timeout},
		ua:       userAgent,
		limiters: map[string]*rate.Limiter{},
	}
}

func (p *PoliteClient) limiterFor(host string) *rate.Limiter {
	key := strings.ToLower(host)
	p.mu.Lock()
	defer p.mu.Unlock()
	if l, ok := p.limiters[key]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Second), 2) // 1 req/s, burst 2
	p.limiters[key] = l
	return l
}

// Do executes req, retrying transport failures and 429/503 responses up to
// three attempts. The caller owns the returned response body.
func (p *PoliteClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if req.Header.Get("User-Agent") == "" && p.ua != "" {
		req.Header.Set("User-Agent", p.ua)
	}
	limiter := p.limiterFor(req.URL.Hostname())

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := rewindBody(req); err != nil {
				return nil, err
			}
		}
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		resp, err := p.client.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
			lastErr = fmt.Errorf("retryable status %d", resp.StatusCode)
			if attempt == maxAttempts-1 {
				return resp, nil
			}
			resp.Body.Close()
			if err := waitFor(ctx, retryDelay(attempt)); err != nil {
				return nil, err
			}
			continue
		}

		return resp, nil
	}

	if lastErr == nil {
		lastErr = errors.New("polite client: failed without error")
	}
	return nil, lastErr
}

func rewindBody(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody {
		return nil
	}
	if req.GetBody == nil {
		return errors.New("polite client: request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return fmt.Errorf("polite client: rewind body: %w", err)
	}
	req.Body = body
	return nil
}
