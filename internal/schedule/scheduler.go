package schedule

import (
	"context"
	"log/slog"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/maaaruch/tg-suggest-bot/internal/domain"
)

// Rand is the source of the in-slot offset. *rand.Rand satisfies it.
type Rand interface {
	Int63n(n int64) int64
}

type Timer interface {
	Stop() bool
}

// Clock arms deferred actions. AfterFunc must never call f synchronously.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, f func()) Timer { return time.AfterFunc(d, f) }

// Runner performs the publication once its time has come.
type Runner interface {
	Run(ctx context.Context, submissionID int64) error
}

type Journal interface {
	RecordBooking(pub domain.ScheduledPublication) error
}

type Config struct {
	Logger   *slog.Logger
	Location *time.Location
	Rand     Rand
	Clock    Clock
}

// Scheduler books approved submissions into daily slots and fires their
// publication. Bookings are handed out strictly in order: three per day,
// slot 0 first. A booked publication cannot be cancelled.
type Scheduler struct {
	logger  *slog.Logger
	loc     *time.Location
	clock   Clock
	runner  Runner
	journal Journal

	mu      sync.Mutex
	count   int64
	rnd     Rand
	timers  map[int64]Timer
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a scheduler. journal may be nil.
func New(cfg Config, runner Runner, journal Journal) *Scheduler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}
	rnd := cfg.Rand
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	clock := cfg.Clock
	if clock == nil {
		clock = realClock{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger:  logger.With("component", "scheduler"),
		loc:     loc,
		clock:   clock,
		runner:  runner,
		journal: journal,
		rnd:     rnd,
		timers:  make(map[int64]Timer),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Start binds publications fired from now on to ctx. A stopped scheduler
// arms new bookings again after Start; timers dropped by Stop come back
// only through Resume.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = false
	s.cancel()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.logger.Info("scheduler started", "location", s.loc.String())
}

// Stop halts timers that have not fired yet and waits for running
// publications. Unfired bookings stay in the journal for Resume.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

// Booked returns how many bookings were made so far.
func (s *Scheduler) Booked() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// BookNext assigns the next slot to submissionID, picks a uniformly random
// second inside it and arms the publication.
func (s *Scheduler) BookNext(submissionID int64, now time.Time) domain.ScheduledPublication {
	s.mu.Lock()
	dayOffset, slotIndex := position(s.count)
	s.count++

	start, end := Slots[slotIndex].Bounds(now, dayOffset, s.loc)
	span := int64(end.Sub(start) / time.Second)
	offset := s.rnd.Int63n(span + 1)

	pub := domain.ScheduledPublication{
		SubmissionID: submissionID,
		ScheduledAt:  start.Add(time.Duration(offset) * time.Second),
		DayOffset:    dayOffset,
		SlotIndex:    slotIndex,
	}
	delay := s.armLocked(pub, now)
	s.mu.Unlock()

	bookingsTotal.WithLabelValues(strconv.Itoa(slotIndex)).Inc()
	s.logger.Info("publication booked", "submission", submissionID, "scheduled_at", pub.ScheduledAt, "delay", delay, "slot", slotIndex, "day_offset", dayOffset)

	if s.journal != nil {
		if err := s.journal.RecordBooking(pub); err != nil {
			s.logger.Error("journal booking", "submission", submissionID, "err", err)
		}
	}
	return pub
}

// Resume re-arms bookings restored from the journal. The booking counter is
// moved past every slot they hold from today on, so new bookings never land
// in a slot that is already taken.
func (s *Scheduler) Resume(pubs []domain.ScheduledPublication) {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, pub := range pubs {
		if n := s.heldThrough(pub, now); n > s.count {
			s.count = n
		}
		if _, armed := s.timers[pub.SubmissionID]; armed {
			continue
		}
		delay := s.armLocked(pub, now)
		s.logger.Info("publication resumed", "submission", pub.SubmissionID, "scheduled_at", pub.ScheduledAt, "delay", delay)
	}
}

// heldThrough returns the counter value right after the booking of pub,
// counted from the calendar date of now. Bookings on earlier days give 0.
func (s *Scheduler) heldThrough(pub domain.ScheduledPublication, now time.Time) int64 {
	day := calendarDay(pub.ScheduledAt.In(s.loc)) - calendarDay(now.In(s.loc))
	if day < 0 || pub.SlotIndex < 0 || pub.SlotIndex >= SlotsPerDay {
		return 0
	}
	return day*int64(SlotsPerDay) + int64(pub.SlotIndex) + 1
}

// calendarDay numbers the date of t, ignoring its zone offset and clock.
func calendarDay(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / (24 * 60 * 60)
}

func (s *Scheduler) armLocked(pub domain.ScheduledPublication, now time.Time) time.Duration {
	delay := pub.ScheduledAt.Sub(now)
	if delay < 0 {
		delay = 0
	}
	if s.stopped {
		return delay
	}
	id := pub.SubmissionID
	s.timers[id] = s.clock.AfterFunc(delay, func() { s.fire(id) })
	armedPublications.Set(float64(len(s.timers)))
	return delay
}

func (s *Scheduler) fire(id int64) {
	s.mu.Lock()
	delete(s.timers, id)
	armedPublications.Set(float64(len(s.timers)))
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.wg.Add(1)
	ctx := s.ctx
	s.mu.Unlock()
	defer s.wg.Done()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("publication panicked", "submission", id, "err", r)
		}
	}()

	if err := s.runner.Run(ctx, id); err != nil {
		s.logger.Error("publication failed", "submission", id, "err", err)
	}
}
