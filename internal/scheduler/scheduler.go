// Package scheduler manages the periodic newsletter generation loop.
// One topic/recipient pair runs at a time; starting a new one stops the
// previous loop. The first run executes immediately and subsequent runs
// follow at the configured interval.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"Newsletter-Bot/internal/config"
	"Newsletter-Bot/internal/newsletter"
	"Newsletter-Bot/internal/notify"
	"Newsletter-Bot/internal/status"

	log "github.com/sirupsen/logrus"
)

// generatingMessage is advertised from the moment a cycle is claimed until
// its result lands, so status consumers see "in flight" rather than a stale
// or empty message.
const generatingMessage = "generating newsletter"

// Runner executes a single newsletter generation.
type Runner interface {
	Run(ctx context.Context, topic, recipient string) newsletter.Result
}

// Scheduler owns the generation loop and the authoritative schedule state.
type Scheduler struct {
	config   *config.Config
	pipeline Runner
	tracker  *status.Tracker
	notifier *notify.WebhookSender

	mutex         sync.RWMutex
	active        bool
	topic         string
	recipient     string
	lastExecution time.Time
	nextExecution time.Time
	lastMessage   string

	// Per-run lifecycle; replaced on every Start
	cancelRun context.CancelFunc
	wg        sync.WaitGroup
}

// New creates a scheduler. notifier may be nil when admin notifications
// are disabled.
func New(cfg *config.Config, pipeline Runner, tracker *status.Tracker, notifier *notify.WebhookSender) *Scheduler {
	return &Scheduler{
		config:   cfg,
		pipeline: pipeline,
		tracker:  tracker,
		notifier: notifier,
	}
}

// Start begins periodic generation for the given topic and recipient.
// Any previous loop is stopped first, so at most one loop runs at a time.
func (s *Scheduler) Start(ctx context.Context, topic, recipient string) error {
	if topic == "" {
		return fmt.Errorf("topic must not be empty")
	}
	if recipient == "" {
		return fmt.Errorf("recipient must not be empty")
	}

	// Stop any previous loop before claiming the schedule
	s.Stop()

	runCtx, cancel := context.WithCancel(ctx)

	s.mutex.Lock()
	s.active = true
	s.topic = topic
	s.recipient = recipient
	s.nextExecution = time.Now().UTC().Add(s.config.GenerateInterval)
	s.lastMessage = generatingMessage
	s.cancelRun = cancel
	s.mutex.Unlock()

	log.WithFields(log.Fields{
		"topic":     topic,
		"recipient": recipient,
		"interval":  s.config.GenerateInterval,
	}).Info("Scheduler started")

	s.wg.Add(1)
	go s.runLoop(runCtx, topic, recipient)

	return nil
}

// Stop halts the generation loop. Safe to call when nothing is running.
func (s *Scheduler) Stop() {
	s.mutex.Lock()
	cancel := s.cancelRun
	s.cancelRun = nil
	wasActive := s.active
	s.active = false
	s.nextExecution = time.Time{}
	s.mutex.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()

	if wasActive {
		log.Info("Scheduler stopped")
	}
}

// runLoop executes the first generation immediately, then ticks at the
// configured interval until the run context is cancelled.
func (s *Scheduler) runLoop(ctx context.Context, topic, recipient string) {
	defer s.wg.Done()

	s.executeCycle(ctx, topic, recipient)

	ticker := time.NewTicker(s.config.GenerateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("Generation loop stopping")
			return
		case <-ticker.C:
			s.executeCycle(ctx, topic, recipient)
		}
	}
}

// executeCycle runs one generation and advances the schedule state.
// Delivery is deferred while quiet hours are active.
func (s *Scheduler) executeCycle(ctx context.Context, topic, recipient string) {
	if s.config.Email.QuietHours.ShouldDefer(time.Now().UTC()) {
		log.WithField("topic", topic).Info("Quiet hours active, deferring newsletter run")
		s.deferSchedule(config.QuietHoursDeferral)
		return
	}

	s.markRunning()
	result := s.pipeline.Run(ctx, topic, recipient)

	message := ""
	if result.Err != nil {
		message = result.Err.Error()
	}
	s.advanceSchedule(result.FinishedAt, message)

	s.reportRun(ctx, result)
}

// markRunning flags a generation as in flight.
func (s *Scheduler) markRunning() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.active {
		return
	}
	s.lastMessage = generatingMessage
}

// advanceSchedule records the execution and computes the next one.
func (s *Scheduler) advanceSchedule(executedAt time.Time, message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.active {
		return
	}
	s.lastExecution = executedAt
	s.nextExecution = executedAt.Add(s.config.GenerateInterval)
	s.lastMessage = message
}

// deferSchedule pushes the next execution out without recording a run.
func (s *Scheduler) deferSchedule(message string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.active {
		return
	}
	s.nextExecution = time.Now().UTC().Add(s.config.GenerateInterval)
	s.lastMessage = message
}

// reportRun posts the run outcome to the admin webhook when configured.
func (s *Scheduler) reportRun(ctx context.Context, result newsletter.Result) {
	if s.notifier == nil || !s.config.Notify.Enabled {
		return
	}

	record := status.RunRecord{
		Topic:      result.Topic,
		Recipient:  result.Recipient,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		StoryCount: result.StoryCount,
		EmailSent:  result.EmailSent,
	}
	if result.Err != nil {
		record.Error = result.Err.Error()
	}

	if err := s.notifier.SendRunReport(ctx, record); err != nil {
		log.WithError(err).Warn("Failed to send run report")
	}
}

// RunOnce performs a single generation outside the periodic loop,
// used by the -dry-run flag. It does not touch the schedule state.
func (s *Scheduler) RunOnce(ctx context.Context, topic, recipient string) error {
	result := s.pipeline.Run(ctx, topic, recipient)
	return result.Err
}

// Snapshot returns the current authoritative schedule state.
func (s *Scheduler) Snapshot() status.Snapshot {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	now := time.Now().UTC()
	snap := status.Snapshot{
		Active:        s.active,
		Topic:         s.topic,
		ServerTimeUTC: now.Format(time.RFC3339),
	}

	if !s.lastExecution.IsZero() {
		last := s.lastExecution.Format(time.RFC3339)
		snap.LastExecutionUTC = &last
	}

	if s.lastMessage != "" {
		msg := s.lastMessage
		snap.StatusMessage = &msg
	}

	if s.active && !s.nextExecution.IsZero() {
		next := s.nextExecution.Format(time.RFC3339)
		snap.NextExecutionUTC = &next

		remaining := status.FormatRemaining(s.nextExecution.Sub(now))
		snap.TimeUntilNextStr = &remaining
	}

	return snap
}
