package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/newsletter"
	"Newsletter-Bot/internal/status"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubRunner records pipeline invocations.
type stubRunner struct {
	mu    sync.Mutex
	runs  []string
	err   error
	block time.Duration
}

func (r *stubRunner) Run(ctx context.Context, topic, recipient string) newsletter.Result {
	if r.block > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(r.block):
		}
	}
	r.mu.Lock()
	r.runs = append(r.runs, topic)
	r.mu.Unlock()

	now := time.Now().UTC()
	return newsletter.Result{
		Topic:      topic,
		Recipient:  recipient,
		StartedAt:  now,
		FinishedAt: now,
		StoryCount: 3,
		EmailSent:  r.err == nil,
		Err:        r.err,
	}
}

func (r *stubRunner) runCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.runs)
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.GenerateInterval = time.Hour
	return cfg
}

func newTestTracker(t *testing.T) *status.Tracker {
	t.Helper()
	tracker, err := status.NewTracker(t.TempDir())
	require.NoError(t, err)
	return tracker
}

func TestStartRunsImmediately(t *testing.T) {
	runner := &stubRunner{}
	s := New(testConfig(), runner, newTestTracker(t), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "robotics", "reader@example.com"))

	assert.Eventually(t, func() bool {
		return runner.runCount() == 1
	}, time.Second, 10*time.Millisecond, "first generation fires without waiting for the interval")
}

func TestStartAdvertisesGenerationInFlight(t *testing.T) {
	runner := &stubRunner{block: 200 * time.Millisecond}
	s := New(testConfig(), runner, newTestTracker(t), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "robotics", "reader@example.com"))

	// While the first cycle is still running, status says so instead of
	// showing a bare full-interval countdown.
	snap := s.Snapshot()
	require.NotNil(t, snap.StatusMessage)
	assert.Equal(t, "generating newsletter", *snap.StatusMessage)
	assert.Nil(t, snap.LastExecutionUTC, "nothing has executed yet")
	require.NotNil(t, snap.NextExecutionUTC)

	assert.Eventually(t, func() bool {
		got := s.Snapshot()
		return got.StatusMessage == nil && got.LastExecutionUTC != nil
	}, 2*time.Second, 20*time.Millisecond, "message clears once the run lands")
}

func TestStartValidatesInput(t *testing.T) {
	s := New(testConfig(), &stubRunner{}, nil, nil)
	assert.Error(t, s.Start(context.Background(), "", "reader@example.com"))
	assert.Error(t, s.Start(context.Background(), "topic", ""))
}

func TestSnapshotReflectsSchedule(t *testing.T) {
	runner := &stubRunner{}
	cfg := testConfig()
	s := New(cfg, runner, newTestTracker(t), nil)
	defer s.Stop()

	// Idle scheduler: inactive, nothing scheduled
	snap := s.Snapshot()
	assert.False(t, snap.Active)
	assert.Nil(t, snap.NextExecutionUTC)
	assert.NotEmpty(t, snap.ServerTimeUTC)

	require.NoError(t, s.Start(context.Background(), "robotics", "reader@example.com"))
	require.Eventually(t, func() bool {
		return s.Snapshot().LastExecutionUTC != nil
	}, time.Second, 10*time.Millisecond)

	snap = s.Snapshot()
	assert.True(t, snap.Active)
	assert.Equal(t, "robotics", snap.Topic)
	require.NotNil(t, snap.NextExecutionUTC)
	require.NotNil(t, snap.TimeUntilNextStr)
	require.NotNil(t, snap.LastExecutionUTC)

	// The advertised next execution parses and sits one interval out
	next, err := status.ParseTargetTime(*snap.NextExecutionUTC)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC().Add(cfg.GenerateInterval), next, 5*time.Second)
}

func TestStopClearsSchedule(t *testing.T) {
	runner := &stubRunner{}
	s := New(testConfig(), runner, newTestTracker(t), nil)

	require.NoError(t, s.Start(context.Background(), "robotics", "reader@example.com"))
	require.Eventually(t, func() bool {
		return runner.runCount() == 1
	}, time.Second, 10*time.Millisecond)

	s.Stop()

	snap := s.Snapshot()
	assert.False(t, snap.Active)
	assert.Nil(t, snap.NextExecutionUTC)
	assert.Nil(t, snap.TimeUntilNextStr)

	// Idempotent
	s.Stop()
}

func TestRestartReplacesSchedule(t *testing.T) {
	runner := &stubRunner{}
	s := New(testConfig(), runner, newTestTracker(t), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "first topic", "reader@example.com"))
	require.NoError(t, s.Start(context.Background(), "second topic", "reader@example.com"))

	assert.Eventually(t, func() bool {
		return runner.runCount() >= 2
	}, time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	assert.Equal(t, "second topic", snap.Topic, "the new schedule owns the state")
}

func TestRunFailureSurfacesInSnapshot(t *testing.T) {
	runner := &stubRunner{err: errors.New("no stories found")}
	s := New(testConfig(), runner, newTestTracker(t), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "robotics", "reader@example.com"))
	require.Eventually(t, func() bool {
		return runner.runCount() == 1
	}, time.Second, 10*time.Millisecond)

	snap := s.Snapshot()
	require.NotNil(t, snap.StatusMessage)
	assert.Contains(t, *snap.StatusMessage, "no stories")
	assert.True(t, snap.Active, "a failed run keeps the schedule alive")
}

func TestQuietHoursDeferRun(t *testing.T) {
	cfg := testConfig()
	cfg.Email.QuietHours = &config.QuietHours{
		Enabled: true,
		Start:   "00:00",
		End:     "23:59",
	}
	runner := &stubRunner{}
	s := New(cfg, runner, newTestTracker(t), nil)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background(), "robotics", "reader@example.com"))

	assert.Eventually(t, func() bool {
		snap := s.Snapshot()
		return snap.StatusMessage != nil && *snap.StatusMessage == "deferred: quiet hours"
	}, time.Second, 10*time.Millisecond)

	assert.Zero(t, runner.runCount(), "no delivery during quiet hours")
	snap := s.Snapshot()
	assert.Nil(t, snap.LastExecutionUTC, "a deferred cycle is not an execution")
	assert.NotNil(t, snap.NextExecutionUTC)
}

func TestRunOnce(t *testing.T) {
	runner := &stubRunner{}
	s := New(testConfig(), runner, newTestTracker(t), nil)

	require.NoError(t, s.RunOnce(context.Background(), "robotics", "reader@example.com"))
	assert.Equal(t, 1, runner.runCount())

	snap := s.Snapshot()
	assert.False(t, snap.Active, "RunOnce never touches the schedule")
}
