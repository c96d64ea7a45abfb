package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/baxromumarov/pagewatch/internal/urlutil"
)

// DefaultMaxBodySize bounds the page body read from the wire.
const DefaultMaxBodySize int64 = 64 << 20

var (
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
	errNoResponse   = errors.New("no response received")
)

// FetchError reports a page that could not be retrieved. Status is zero when
// no HTTP response was received.
type FetchError struct {
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.Status)
	}
	if e.Status == 0 {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s (status %d): %v", e.URL, e.Status, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// CollyFetcher retrieves one page per call. Each attempt runs on a fresh
// collector that honours robots.txt and decodes the body to UTF-8; 429 and
// 5xx responses are retried with a doubling pause.
type CollyFetcher struct {
	userAgent   string
	timeout     time.Duration
	maxBodySize int64
	transport   *bodyLimitTransport
}

func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	if userAgent == "" {
		userAgent = "pagewatch/1.0"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	f := &CollyFetcher{userAgent: userAgent, timeout: timeout}
	return f.WithMaxBodySize(DefaultMaxBodySize)
}

// WithMaxBodySize sets the largest body accepted, in bytes. Larger pages
// fail with ErrBodyTooLarge instead of being cut short. Zero disables the
// limit.
func (f *CollyFetcher) WithMaxBodySize(n int64) *CollyFetcher {
	if n < 0 {
		n = 0
	}
	f.maxBodySize = n
	f.transport = &bodyLimitTransport{base: http.DefaultTransport, max: n}
	return f
}

// FetchText returns the response body decoded to UTF-8 text. Any 2xx status
// is a success.
func (f *CollyFetcher) FetchText(ctx context.Context, rawURL string) (string, error) {
	target, _, err := urlutil.Normalize(rawURL)
	if err != nil {
		return "", &FetchError{URL: rawURL, Err: err}
	}

	var last *FetchError
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			if err := waitFor(ctx, retryDelay(attempt-1)); err != nil {
				return "", &FetchError{URL: target, Status: last.Status, Err: err}
			}
		}
		if err := ctx.Err(); err != nil {
			return "", &FetchError{URL: target, Err: err}
		}

		body, status, err := f.get(ctx, target)
		if err == nil {
			return body, nil
		}
		last = &FetchError{URL: target, Status: status, Err: err}
		if !retryableStatus(status) {
			return "", last
		}
	}
	return "", last
}

func (f *CollyFetcher) get(ctx context.Context, target string) (string, int, error) {
	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.StdlibContext(ctx),
	)
	c.IgnoreRobotsTxt = false
	c.DetectCharset = true
	c.ParseHTTPErrorResponse = true
	c.MaxBodySize = 0
	c.WithTransport(f.transport)
	c.SetRequestTimeout(f.timeout)

	var (
		body    string
		status  int
		respErr error
	)
	c.OnResponse(func(r *colly.Response) {
		status = r.StatusCode
		body = string(r.Body)
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			status = r.StatusCode
		}
		respErr = err
	})

	if err := c.Visit(target); err != nil && respErr == nil {
		respErr = err
	}
	if respErr != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(respErr, ctxErr) {
			respErr = fmt.Errorf("%w: %v", ctxErr, respErr)
		}
		return "", status, respErr
	}
	switch {
	case status == 0:
		return "", 0, errNoResponse
	case status < 200 || status > 299:
		return "", status, fmt.Errorf("unexpected status %d %s", status, http.StatusText(status))
	}
	return body, status, nil
}

// bodyLimitTransport fails the body read once more than max bytes arrive.
type bodyLimitTransport struct {
	base http.RoundTripper
	max  int64
}

func (t *bodyLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil || t.max <= 0 {
		return resp, err
	}
	resp.Body = &limitedBody{ReadCloser: resp.Body, remaining: t.max}
	return resp, nil
}

type limitedBody struct {
	io.ReadCloser
	remaining int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	if int64(len(p)) > b.remaining+1 {
		p = p[:b.remaining+1]
	}
	n, err := b.ReadCloser.Read(p)
	b.remaining -= int64(n)
	if b.remaining < 0 {
		return n, ErrBodyTooLarge
	}
	return n, err
}
