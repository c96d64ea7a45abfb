package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPageServer(t *testing.T, status int, body string, hits *atomic.Int32) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/page", func(w http.ResponseWriter, _ *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchText_ReturnsBody(t *testing.T) {
	srv := newPageServer(t, http.StatusOK, "<html><body><p>hello</p></body></html>", nil)

	f := NewCollyFetcher("pagewatch-test/1.0", 5*time.Second)
	text, err := f.FetchText(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.Equal(t, "<html><body><p>hello</p></body></html>", text)
}

func TestFetchText_AcceptsEvery2xx(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   string
	}{
		{http.StatusNonAuthoritativeInfo, "<p>mirror</p>", "<p>mirror</p>"},
		{http.StatusNoContent, "", ""},
		{http.StatusPartialContent, "<p>part</p>", "<p>part</p>"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newPageServer(t, tt.status, tt.body, nil)

			text, err := NewCollyFetcher("", 5*time.Second).FetchText(context.Background(), srv.URL+"/page")

			require.NoError(t, err)
			assert.Equal(t, tt.want, text)
		})
	}
}

func TestFetchText_LargePageIsNotTruncated(t *testing.T) {
	line := strings.Repeat("x", 1023) + "\n"
	body := strings.Repeat(line, 11<<10) + "<p>tail marker</p>"
	srv := newPageServer(t, http.StatusOK, body, nil)

	text, err := NewCollyFetcher("", 10*time.Second).FetchText(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.Equal(t, len(body), len(text))
	assert.True(t, strings.HasSuffix(text, "<p>tail marker</p>"))
}

func TestFetchText_OversizedPageFails(t *testing.T) {
	var hits atomic.Int32
	srv := newPageServer(t, http.StatusOK, strings.Repeat("a", 4096), &hits)

	f := NewCollyFetcher("", 5*time.Second).WithMaxBodySize(1024)
	text, err := f.FetchText(context.Background(), srv.URL+"/page")

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "want *FetchError, got %T", err)
	assert.True(t, errors.Is(err, ErrBodyTooLarge))
	assert.Empty(t, text)
	assert.Equal(t, int32(1), hits.Load())
}

func TestFetchText_BodyAtLimitSucceeds(t *testing.T) {
	srv := newPageServer(t, http.StatusOK, strings.Repeat("a", 1024), nil)

	text, err := NewCollyFetcher("", 5*time.Second).WithMaxBodySize(1024).FetchText(context.Background(), srv.URL+"/page")

	require.NoError(t, err)
	assert.Len(t, text, 1024)
}

func TestFetchText_NotFoundIsFetchError(t *testing.T) {
	srv := newPageServer(t, http.StatusNotFound, "gone", nil)

	f := NewCollyFetcher("", 5*time.Second)
	_, err := f.FetchText(context.Background(), srv.URL+"/page")

	var fe *FetchError
	require.True(t, errors.As(err, &fe), "want *FetchError, got %T", err)
	assert.Equal(t, http.StatusNotFound, fe.Status)
	assert.Contains(t, fe.Error(), "404")
}

func TestFetchText_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := newPageServer(t, http.StatusInternalServerError, "boom", &hits)

	f := NewCollyFetcher("", 5*time.Second)
	_, err := f.FetchText(context.Background(), srv.URL+"/page")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, http.StatusInternalServerError, fe.Status)
	assert.Equal(t, int32(maxAttempts), hits.Load())
}

func TestFetchText_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	f := NewCollyFetcher("", time.Second)
	_, err := f.FetchText(context.Background(), addr+"/page")

	var fe *FetchError
	require.True(t, errors.As(err, &fe))
	assert.Zero(t, fe.Status)
}

func TestFetchText_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := NewCollyFetcher("", time.Second)
	_, err := f.FetchText(ctx, "http://127.0.0.1:1/page")

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestPoliteClient_ReplaysBodyOnThrottle(t *testing.T) {
	var hits atomic.Int32
	var lastBody atomic.Value
	r := chi.NewRouter()
	r.Post("/hook", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		lastBody.Store(string(b))
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/hook", bytes.NewReader([]byte(`{"content":"x"}`)))
	require.NoError(t, err)

	client := NewPoliteClient("pagewatch-test/1.0", 5*time.Second)
	resp, err := client.Do(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, int32(2), hits.Load())
	assert.Equal(t, `{"content":"x"}`, lastBody.Load())
}

func TestPoliteClient_ReturnsNonRetryableStatus(t *testing.T) {
	var hits atomic.Int32
	r := chi.NewRouter()
	r.Post("/hook", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx := context.Background()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, srv.URL+"/hook", bytes.NewReader([]byte("{}")))
	require.NoError(t, err)

	resp, err := NewPoliteClient("", time.Second).Do(ctx, req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, int32(1), hits.Load())
}

func TestRetryableStatus(t *testing.T) {
	assert.True(t, retryableStatus(http.StatusTooManyRequests))
	assert.True(t, retryableStatus(http.StatusBadGateway))
	assert.False(t, retryableStatus(http.StatusNotFound))
	assert.False(t, retryableStatus(0))
}

func TestRetryDelayDoubles(t *testing.T) {
	assert.Equal(t, 500*time.Millisecond, retryDelay(0))
	assert.Equal(t, time.Second, retryDelay(1))
	assert.Equal(t, 2*time.Second, retryDelay(2))
}
