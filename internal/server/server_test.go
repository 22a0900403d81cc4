package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/newsletter"
	"Newsletter-Bot/internal/scheduler"
	"Newsletter-Bot/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner satisfies the scheduler's Runner without real work.
type stubRunner struct {
	mu   sync.Mutex
	runs int
}

func (r *stubRunner) Run(ctx context.Context, topic, recipient string) newsletter.Result {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	now := time.Now().UTC()
	return newsletter.Result{
		Topic:      topic,
		Recipient:  recipient,
		StartedAt:  now,
		FinishedAt: now,
		StoryCount: 1,
		EmailSent:  true,
	}
}

func newTestServer(t *testing.T) (*Server, *scheduler.Scheduler) {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.GenerateInterval = time.Hour

	tracker, err := status.NewTracker(t.TempDir())
	require.NoError(t, err)

	sched := scheduler.New(cfg, &stubRunner{}, tracker, nil)
	t.Cleanup(sched.Stop)

	return New(context.Background(), sched, tracker), sched
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatusEndpointShape(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	// Nullable fields must be present (as null), not omitted
	for _, key := range []string{"active", "next_execution_utc", "last_execution_utc", "status_message", "time_until_next_str"} {
		assert.Contains(t, body, key)
	}

	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.Active)
	assert.Nil(t, snap.NextExecutionUTC)
}

func TestStartStopFlow(t *testing.T) {
	srv, _ := newTestServer(t)

	// Start via JSON body
	req := httptest.NewRequest(http.MethodPost, "/api/start",
		strings.NewReader(`{"topic": "robotics", "recipient": "reader@example.com"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.True(t, snap.Active)
	assert.Equal(t, "robotics", snap.Topic)
	assert.NotNil(t, snap.NextExecutionUTC)

	// Stop
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/stop", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.False(t, snap.Active)
	assert.Nil(t, snap.NextExecutionUTC)
}

func TestStartAcceptsFormBody(t *testing.T) {
	srv, _ := newTestServer(t)

	form := url.Values{"topic": {"space"}, "recipient": {"reader@example.com"}}
	req := httptest.NewRequest(http.MethodPost, "/api/start", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var snap status.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "space", snap.Topic)
}

func TestStartRejectsBadInput(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing topic", `{"recipient": "reader@example.com"}`, "topic is required"},
		{"bad recipient", `{"topic": "x", "recipient": "not-an-email"}`, "not a valid email"},
		{"missing recipient", `{"topic": "x"}`, "not a valid email"},
		{"malformed json", `{"topic": `, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/start", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			if tt.want != "" {
				assert.Contains(t, rec.Body.String(), tt.want)
			}
		})
	}
}

func TestIndexEmbedsSeedSnapshot(t *testing.T) {
	srv, sched := newTestServer(t)
	require.NoError(t, sched.Start(context.Background(), "robotics", "reader@example.com"))

	require.Eventually(t, func() bool {
		return sched.Snapshot().NextExecutionUTC != nil
	}, time.Second, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	html := rec.Body.String()
	assert.Contains(t, html, `data-active="true"`)
	assert.Contains(t, html, "data-next-execution=")
	assert.Contains(t, html, "robotics")
	assert.Contains(t, html, `id="countdown"`)
}

func TestIndexNotScheduled(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "not scheduled")
	assert.Contains(t, rec.Body.String(), `data-active="false"`)
}

func TestHistoryEndpoint(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.GenerateInterval = time.Hour

	tracker, err := status.NewTracker(t.TempDir())
	require.NoError(t, err)
	tracker.RecordRun(status.RunRecord{Topic: "past topic", EmailSent: true})

	sched := scheduler.New(cfg, &stubRunner{}, tracker, nil)
	t.Cleanup(sched.Stop)
	srv := New(context.Background(), sched, tracker)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var records []status.RunRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &records))
	require.Len(t, records, 1)
	assert.Equal(t, "past topic", records[0].Topic)
}
