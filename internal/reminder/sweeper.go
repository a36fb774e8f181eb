package reminder

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"wisefido-shift/internal/clock"
	"wisefido-shift/internal/domain"
	"wisefido-shift/internal/events"
	"wisefido-shift/internal/notifier"
	"wisefido-shift/internal/repository"
	"wisefido-shift/internal/status"
)

const (
	DefaultInterval        = 60 * time.Second
	DefaultCooldown        = 30 * time.Minute
	DefaultNotifierTimeout = 10 * time.Second
	DefaultStoreTimeout    = 5 * time.Second
	DefaultMaxRetries      = 3
)

// Options sweep tuning; zero values take the defaults above.
type Options struct {
	Interval        time.Duration
	Cooldown        time.Duration
	NotifierTimeout time.Duration
	StoreTimeout    time.Duration
	MaxRetries      int
	Events          events.Publisher
}

// SweepResult counters of one tick
type SweepResult struct {
	Scanned int `json:"scanned"`
	Overdue int `json:"overdue"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

type outcome int

const (
	outcomeNotDue outcome = iota
	outcomeSent
	outcomeSkipped
	outcomeFailed
)

// Sweeper 提醒扫描器: periodically reminds owners whose open shift ran past
// its required duration.
//
// Per record: overdue check, cooldown gate, contact lookup, re-read, send,
// conditional write of lastReminderSentAt. A failing record never stops the
// sweep. Cancellation is honoured between records only.
type Sweeper struct {
	store    repository.ShiftStore
	contacts repository.ContactDirectory
	notifier notifier.Notifier
	clock    clock.Clock
	logger   *zap.Logger
	opts     Options

	tickMu sync.Mutex // one tick at a time (ticker and cron trigger)

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(
	store repository.ShiftStore,
	contacts repository.ContactDirectory,
	n notifier.Notifier,
	clk clock.Clock,
	logger *zap.Logger,
	opts Options,
) *Sweeper {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.NotifierTimeout <= 0 {
		opts.NotifierTimeout = DefaultNotifierTimeout
	}
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = DefaultStoreTimeout
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.Events == nil {
		opts.Events = events.Nop{}
	}
	return &Sweeper{
		store:    store,
		contacts: contacts,
		notifier: n,
		clock:    clk,
		logger:   logger,
		opts:     opts,
	}
}

// Run sweeps immediately, then every Interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	s.logger.Info("Starting reminder sweeper",
		zap.Duration("interval", s.opts.Interval),
		zap.Duration("cooldown", s.opts.Cooldown),
	)

	s.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reminder sweeper stopped")
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Start runs the sweeper in its own goroutine until Stop or ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func(done chan struct{}) {
		defer close(done)
		_ = s.Run(ctx)
	}(s.done)
}

// Stop cancels a started sweeper and waits for the running record to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Error("Reminder sweep failed", zap.Error(err))
		return
	}
	if res.Overdue > 0 || res.Failed > 0 {
		s.logger.Info("Reminder sweep completed",
			zap.Int("scanned", res.Scanned),
			zap.Int("overdue", res.Overdue),
			zap.Int("sent", res.Sent),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed),
		)
	}
}

// RunOnce performs one sweep. It fails only when open records cannot be
// listed or ctx is cancelled; per-record failures are counted.
func (s *Sweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	var res SweepResult

	listCtx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	open, err := s.store.ListOpenAcrossOwners(listCtx)
	cancel()
	if err != nil {
		return res, err
	}

	for _, rec := range open {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Scanned++

		// the record in flight completes even if ctx is cancelled meanwhile
		switch s.process(context.WithoutCancel(ctx), rec) {
		case outcomeSent:
			res.Overdue++
			res.Sent++
		case outcomeSkipped:
			res.Overdue++
			res.Skipped++
		case outcomeFailed:
			res.Overdue++
			res.Failed++
		}
	}
	return res, nil
}

func (s *Sweeper) process(ctx context.Context, rec *domain.AttendanceRecord) outcome {
	now := s.clock.Now()
	if !status.IsOverdue(rec.PunchInAt, now, rec.IsHalfDay) {
		return outcomeNotDue
	}
	if !s.cooledDown(rec, now) {
		return outcomeSkipped
	}

	log := s.logger.With(zap.String("owner_id", rec.OwnerID), zap.Int64("record_id", rec.ID))

	contact, err := s.lookupContact(ctx, rec.OwnerID)
	if errors.Is(err, repository.ErrNotFound) {
		log.Debug("No contact address, reminder skipped")
		return outcomeSkipped
	}
	if err != nil {
		log.Warn("Contact lookup failed", zap.Error(err))
		return outcomeFailed
	}

	// the owner may have punched out since the listing
	fresh, err := s.findByID(ctx, rec.ID)
	if err != nil {
		log.Warn("Re-read before reminder failed", zap.Error(err))
		return outcomeFailed
	}
	if !fresh.IsOpen() || !s.cooledDown(fresh, now) {
		return outcomeSkipped
	}

	sendCtx, cancel := context.WithTimeout(ctx, s.opts.NotifierTimeout)
	err = s.notifier.Send(sendCtx, notifier.Recipient(s.notifier, *contact), notifier.TemplateShiftReminder, reminderVars(fresh, contact, now))
	cancel()
	if err != nil {
		log.Warn("Reminder delivery failed", zap.Error(err))
		return outcomeFailed
	}

	s.markSent(ctx, fresh, now, log)
	return outcomeSent
}

// markSent records the reminder time; the record is left alone once closed.
func (s *Sweeper) markSent(ctx context.Context, rec *domain.AttendanceRecord, now time.Time, log *zap.Logger) {
	cur := rec
	for attempt := 0; attempt < s.opts.MaxRetries; attempt++ {
		next := cur.Clone()
		sentAt := now
		next.LastReminderSentAt = &sentAt

		err := s.update(ctx, next, cur.Version)
		if err == nil {
			log.Info("Reminder sent", zap.Time("sent_at", now))
			s.publish(ctx, next, log)
			return
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			log.Error("Failed to record reminder time", zap.Error(err))
			return
		}

		cur, err = s.findByID(ctx, rec.ID)
		if err != nil {
			log.Error("Failed to re-read record after conflict", zap.Error(err))
			return
		}
		if !cur.IsOpen() {
			log.Info("Shift closed while reminding, reminder time not recorded")
			return
		}
	}
	log.Warn("Gave up recording reminder time after conflicts")
}

func (s *Sweeper) cooledDown(rec *domain.AttendanceRecord, now time.Time) bool {
	return rec.LastReminderSentAt == nil || now.Sub(*rec.LastReminderSentAt) >= s.opts.Cooldown
}

func (s *Sweeper) publish(ctx context.Context, rec *domain.AttendanceRecord, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	if err := s.opts.Events.Publish(ctx, events.ReminderSent, rec); err != nil {
		log.Warn("Failed to publish reminder event", zap.Error(err))
	}
}

func (s *Sweeper) lookupContact(ctx context.Context, ownerID string) (*domain.Contact, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.contacts.LookupContact(ctx, ownerID)
}

func (s *Sweeper) findByID(ctx context.Context, id int64) (*domain.AttendanceRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.store.FindByID(ctx, id)
}

func (s *Sweeper) update(ctx context.Context, rec *domain.AttendanceRecord, expectedVersion int64) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.StoreTimeout)
	defer cancel()
	return s.store.Update(ctx, rec, expectedVersion)
}

func reminderVars(rec *domain.AttendanceRecord, contact *domain.Contact, now time.Time) map[string]any {
	name := contact.Username
	if name == "" {
		name = rec.OwnerID
	}
	return map[string]any{
		"name":          name,
		"kind":          rec.Kind(),
		"requiredHours": strconv.FormatFloat(status.RequiredDuration(rec.IsHalfDay).Hours(), 'f', -1, 64),
		"elapsed":       status.FormatRemaining(now.Sub(rec.PunchInAt)),
	}
}
