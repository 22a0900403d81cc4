// Package reconcile keeps a live countdown display consistent with the
// scheduler's authoritative state. It re-renders the remaining time every
// tick and periodically polls the status source; when the polled active
// flag disagrees with local state it requests a full resync exactly once
// and goes passive until restarted.
package reconcile

import (
	"context"
	"sync"
	"time"

	"Newsletter-Bot/internal/status"

	log "github.com/sirupsen/logrus"
)

// Default timings
const (
	DefaultTickInterval = 1 * time.Second
	DefaultPollInterval = 30 * time.Second
	DefaultGraceDelay   = 2 * time.Second
)

// State describes where the reconciler is in its lifecycle.
type State int

const (
	// StateUninitialized means Start has not run yet.
	StateUninitialized State = iota
	// StateNotScheduled means no valid upcoming execution exists.
	StateNotScheduled
	// StateCountdownActive means a countdown toward a target time is running.
	StateCountdownActive
	// StateAwaitingResync means a state mismatch was detected and a resync
	// was requested; the reconciler is passive until restarted.
	StateAwaitingResync
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateNotScheduled:
		return "not_scheduled"
	case StateCountdownActive:
		return "countdown_active"
	case StateAwaitingResync:
		return "awaiting_resync"
	default:
		return "unknown"
	}
}

// NotScheduledText is rendered when no valid execution time exists.
const NotScheduledText = "not scheduled"

// Fields is the render payload handed to the OnRender callback.
type Fields struct {
	State         State
	Active        bool
	Topic         string
	Countdown     string
	Target        time.Time
	LastExecution string
	StatusMessage string
}

// Fetcher supplies authoritative status snapshots.
type Fetcher interface {
	FetchStatus(ctx context.Context) (status.Snapshot, error)
}

// Callbacks receive render updates and resync requests. Both are invoked
// from the reconciler's own goroutine, never concurrently.
type Callbacks struct {
	// OnRender is called with fresh display fields on every state change
	// and countdown tick. May be nil.
	OnRender func(Fields)
	// OnResync is called exactly once per run when local state disagrees
	// with the polled snapshot. May be nil.
	OnResync func(reason string)
}

// Options tune the reconciler's timers. Zero values pick the defaults.
type Options struct {
	TickInterval time.Duration
	PollInterval time.Duration
	GraceDelay   time.Duration
}

// Reconciler drives the countdown display. All mutable state below the
// lifecycle fields is owned by the run goroutine; external access goes
// through Start/Stop only.
type Reconciler struct {
	fetcher   Fetcher
	callbacks Callbacks

	tickInterval time.Duration
	pollInterval time.Duration
	graceDelay   time.Duration
	now          func() time.Time

	// Lifecycle; guarded by mutex so Start/Stop are safe from any goroutine
	mutex  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Run-goroutine state
	state          State
	active         bool
	topic          string
	target         time.Time
	lastExecution  string
	statusMessage  string
	graceScheduled bool
}

// New creates a reconciler for the given status source.
func New(fetcher Fetcher, callbacks Callbacks, opts Options) *Reconciler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = DefaultTickInterval
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.GraceDelay <= 0 {
		opts.GraceDelay = DefaultGraceDelay
	}

	return &Reconciler{
		fetcher:      fetcher,
		callbacks:    callbacks,
		tickInterval: opts.TickInterval,
		pollInterval: opts.PollInterval,
		graceDelay:   opts.GraceDelay,
		now:          time.Now,
		state:        StateUninitialized,
	}
}

// Start initializes from the seed snapshot and begins the tick/poll loop.
// A previous run is torn down first, so restarting never leaks timers or
// produces duplicate renders.
func (r *Reconciler) Start(ctx context.Context, seed status.Snapshot) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.stopLocked()

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.wg.Add(1)
	go r.run(runCtx, seed)
}

// Stop tears down the running loop and its timers. Safe to call when
// nothing is running.
func (r *Reconciler) Stop() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.stopLocked()
}

// stopLocked cancels the current run and waits for it to exit. The caller
// holds the mutex, so a concurrent Start can never race its wg.Add against
// this wg.Wait. The run goroutine never takes the mutex, so waiting here
// cannot deadlock.
func (r *Reconciler) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	r.cancel = nil
	r.wg.Wait()
}

// run owns all countdown state. Every event source is multiplexed here so
// ticks, polls and the grace poll can never interleave.
func (r *Reconciler) run(ctx context.Context, seed status.Snapshot) {
	defer r.wg.Done()

	r.state = StateUninitialized
	r.graceScheduled = false
	r.applySnapshot(seed, true)

	tick := time.NewTicker(r.tickInterval)
	defer tick.Stop()

	poll := time.NewTicker(r.pollInterval)
	defer poll.Stop()

	// The grace timer stays parked until a countdown reaches zero.
	grace := time.NewTimer(r.graceDelay)
	if !grace.Stop() {
		<-grace.C
	}
	defer grace.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
			r.handleTick(grace)
		case <-poll.C:
			r.handlePoll(ctx)
		case <-grace.C:
			log.Debug("Countdown reached zero, polling for fresh schedule")
			r.handlePoll(ctx)
		}
	}
}

// handleTick re-renders the countdown. When the target has passed it
// renders the due-now state and arms a single grace poll so a freshly
// advanced schedule is picked up before the regular poll interval.
func (r *Reconciler) handleTick(grace *time.Timer) {
	if r.state != StateCountdownActive {
		return
	}

	remaining := r.target.Sub(r.now())
	r.render()

	if remaining <= 0 && !r.graceScheduled {
		r.graceScheduled = true
		grace.Reset(r.graceDelay)
	}
}

// handlePoll fetches a fresh snapshot and reconciles against it. Fetch
// failures keep the current countdown running; the next poll retries.
func (r *Reconciler) handlePoll(ctx context.Context) {
	if r.state == StateAwaitingResync {
		return
	}

	snap, err := r.fetcher.FetchStatus(ctx)
	if err != nil {
		log.WithError(err).Warn("Status poll failed, keeping current countdown")
		return
	}

	r.applySnapshot(snap, false)
}

// applySnapshot reconciles local state against an authoritative snapshot.
// On initialization the snapshot is adopted wholesale; afterwards a
// disagreement on the active flag triggers a resync request instead.
func (r *Reconciler) applySnapshot(snap status.Snapshot, initial bool) {
	target, parseErr := snap.NextExecution()

	if !initial && snap.Active != r.active {
		reason := "scheduler became active"
		if !snap.Active {
			reason = "scheduler became inactive"
		}
		log.WithFields(log.Fields{
			"local_active":  r.active,
			"remote_active": snap.Active,
		}).Info("State mismatch detected, requesting resync")

		r.state = StateAwaitingResync
		if r.callbacks.OnResync != nil {
			r.callbacks.OnResync(reason)
		}
		return
	}

	r.active = snap.Active
	r.topic = snap.Topic
	r.lastExecution = ""
	if snap.LastExecutionUTC != nil {
		r.lastExecution = *snap.LastExecutionUTC
	}
	r.statusMessage = ""
	if snap.StatusMessage != nil {
		r.statusMessage = *snap.StatusMessage
	}

	if !snap.Active {
		r.state = StateNotScheduled
		r.target = time.Time{}
		r.render()
		return
	}

	if parseErr != nil {
		// Active but no usable target: show not-scheduled and let the
		// regular poll pick up a corrected timestamp.
		log.WithError(parseErr).Warn("Snapshot has no usable next execution time")
		r.state = StateNotScheduled
		r.target = time.Time{}
		r.render()
		return
	}

	if !target.Equal(r.target) {
		r.graceScheduled = false
	}
	r.target = target
	r.state = StateCountdownActive
	r.render()
}

// render invokes OnRender with the current display fields.
func (r *Reconciler) render() {
	if r.callbacks.OnRender == nil {
		return
	}

	fields := Fields{
		State:         r.state,
		Active:        r.active,
		Topic:         r.topic,
		Target:        r.target,
		LastExecution: r.lastExecution,
		StatusMessage: r.statusMessage,
	}

	switch r.state {
	case StateCountdownActive:
		fields.Countdown = status.FormatRemaining(r.target.Sub(r.now()))
	default:
		fields.Countdown = NotScheduledText
	}

	r.callbacks.OnRender(fields)
}
