package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baxromumarov/pagewatch/internal/httpx"
)

type recordedRequest struct {
	ContentType string
	Content     string
}

type webhookRecorder struct {
	mu       sync.Mutex
	requests []recordedRequest
}

func (rec *webhookRecorder) server(t *testing.T, status int) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/hooks/{token}", func(w http.ResponseWriter, req *http.Request) {
		var payload webhookPayload
		if err := json.NewDecoder(req.Body).Decode(&payload); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		rec.mu.Lock()
		rec.requests = append(rec.requests, recordedRequest{
			ContentType: req.Header.Get("Content-Type"),
			Content:     payload.Content,
		})
		rec.mu.Unlock()
		w.WriteHeader(status)
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func testClient() *httpx.PoliteClient {
	return httpx.NewPoliteClient("pagewatch-test/1.0", 2*time.Second)
}

func TestWebhookSink_PostsJSONContent(t *testing.T) {
	rec := &webhookRecorder{}
	srv := rec.server(t, http.StatusNoContent)

	sink := NewWebhookSink(srv.URL+"/hooks/secret", testClient())
	require.NoError(t, sink.Deliver(context.Background(), "- B\n+ X"))

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "application/json", rec.requests[0].ContentType)
	assert.Equal(t, "- B\n+ X", rec.requests[0].Content)
	assert.NotContains(t, sink.Name(), "secret")
}

func TestWebhookSink_NonSuccessIsDeliveryError(t *testing.T) {
	rec := &webhookRecorder{}
	srv := rec.server(t, http.StatusInternalServerError)

	err := NewWebhookSink(srv.URL+"/hooks/x", testClient()).Deliver(context.Background(), "msg")

	var de *DeliveryError
	require.True(t, errors.As(err, &de), "want *DeliveryError, got %T", err)
	assert.Equal(t, http.StatusInternalServerError, de.Status)
}

func TestWebhookSink_UnreachableIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := NewWebhookSink(addr+"/hooks/x", testClient()).Deliver(ctx, "msg")

	var de *DeliveryError
	require.True(t, errors.As(err, &de))
	assert.Zero(t, de.Status)
}

type stubSink struct {
	name string
	err  error
	mu   sync.Mutex
	got  []string
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Deliver(_ context.Context, message string) error {
	s.mu.Lock()
	s.got = append(s.got, message)
	s.mu.Unlock()
	return s.err
}

type panicSink struct{}

func (panicSink) Name() string { return "panics" }

func (panicSink) Deliver(context.Context, string) error { panic("boom") }

func TestNotify_FailureIsolatedPerSink(t *testing.T) {
	failing := &stubSink{name: "first", err: errors.New("down")}
	ok := &stubSink{name: "second"}

	outcomes := New(failing, panicSink{}, ok).Notify(context.Background(), "changed")

	require.Len(t, outcomes, 3)
	assert.Equal(t, "first", outcomes[0].Sink)
	assert.False(t, outcomes[0].OK())
	assert.Equal(t, "panics", outcomes[1].Sink)
	assert.False(t, outcomes[1].OK())
	assert.Equal(t, "second", outcomes[2].Sink)
	assert.True(t, outcomes[2].OK())
	assert.Equal(t, []string{"changed"}, ok.got)
	assert.Equal(t, 2, Failed(outcomes))
}

func TestNotify_NoSinksIsNoop(t *testing.T) {
	assert.Empty(t, New().Notify(context.Background(), "x"))

	var n *Notifier
	assert.Zero(t, n.Len())
	assert.Empty(t, n.Notify(context.Background(), "x"))
}
