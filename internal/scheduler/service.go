// Package scheduler drives the two periodic concerns of the bot: the
// once-per-minute delivery tick and the interval-driven content refresh.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"digestbot/internal/domain"
	"digestbot/pkg/logx"
)

// State is the scheduler lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Registry is the subscriber-registry slice the scheduler consumes. It reads
// subscribers and touches only the delivery marker.
type Registry interface {
	ActiveSubscribersDueAt(ctx context.Context, hhmm string) ([]domain.Subscriber, error)
	WasDelivered(ctx context.Context, id int64, slot domain.Slot) (bool, error)
	MarkDelivered(ctx context.Context, id int64, slot domain.Slot) error
}

// Dispatcher produces and delivers one digest. Implementations must return
// nil only after the delivery handoff succeeded; the scheduler records the
// delivery marker solely on a nil return.
type Dispatcher interface {
	Dispatch(ctx context.Context, sub domain.Subscriber, slot domain.Slot) error
}

// Refresher runs one content-refresh pass and reports newly stored items.
type Refresher interface {
	Refresh(ctx context.Context) (int, error)
}

type Config struct {
	UpdateInterval time.Duration // ingestion cadence; must be > 0
	Workers        int           // per-tick dispatch concurrency
	Location       *time.Location
	RefreshAtStart bool
}

// Service is the explicit scheduler handle; lifecycle moves
// idle -> running -> stopping -> stopped.
type Service struct {
	cfg        Config
	registry   Registry
	dispatcher Dispatcher
	refresher  Refresher
	log        logx.Logger

	mu        sync.Mutex
	state     atomic.Int32
	c         *cron.Cron
	runCtx    context.Context
	runCancel context.CancelFunc
	inflight  sync.WaitGroup

	refreshing atomic.Bool

	// now is swappable for tests.
	now func() time.Time
}

func New(cfg Config, registry Registry, dispatcher Dispatcher, refresher Refresher, log logx.Logger) *Service {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Service{
		cfg:        cfg,
		registry:   registry,
		dispatcher: dispatcher,
		refresher:  refresher,
		log:        log,
		now:        time.Now,
	}
}

func (s *Service) State() State { return State(s.state.Load()) }

// Start schedules the minute delivery tick and the refresh interval.
// It is an error to start a scheduler that is not idle or stopped.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.State() {
	case StateIdle, StateStopped:
	default:
		return fmt.Errorf("scheduler: cannot start from state %s", s.State())
	}
	if s.cfg.UpdateInterval <= 0 {
		return errors.New("scheduler: update interval must be positive")
	}

	s.runCtx, s.runCancel = context.WithCancel(ctx)
	s.c = cron.New(cron.WithLocation(s.cfg.Location))

	if _, err := s.c.AddFunc("* * * * *", func() { s.deliveryTick() }); err != nil {
		return fmt.Errorf("scheduler: add delivery tick: %w", err)
	}
	refreshSpec := fmt.Sprintf("@every %s", s.cfg.UpdateInterval)
	if _, err := s.c.AddFunc(refreshSpec, func() { s.refreshTick() }); err != nil {
		return fmt.Errorf("scheduler: add refresh tick: %w", err)
	}

	s.c.Start()
	s.state.Store(int32(StateRunning))
	s.log.Info("scheduler started",
		logx.Duration("refresh_interval", s.cfg.UpdateInterval),
		logx.Int("workers", s.cfg.Workers),
		logx.String("tz", s.cfg.Location.String()))

	if s.cfg.RefreshAtStart {
		s.inflight.Add(1)
		go func() {
			defer s.inflight.Done()
			s.refreshTick()
		}()
	}
	return nil
}

// Stop halts tick scheduling and waits for in-flight dispatches to finish.
// Dispatches are not cancelled; marking only ever happens after a confirmed
// send, so stopping cannot corrupt delivery markers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.State() != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state.Store(int32(StateStopping))
	c := s.c
	cancel := s.runCancel
	s.c = nil
	s.mu.Unlock()

	s.log.Info("scheduler stop requested")
	if c != nil {
		<-c.Stop().Done()
	}

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		// In-flight work continues in the background; we just stop waiting.
		s.log.Warn("scheduler stop timed out waiting for in-flight dispatches")
	}

	if cancel != nil {
		cancel()
	}
	s.state.Store(int32(StateStopped))
	s.log.Info("scheduler stopped")
	return nil
}

// deliveryTick computes the current slot and dispatches everyone due in it.
func (s *Service) deliveryTick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	slot := domain.SlotAt(s.now().In(s.cfg.Location))
	if err := s.DeliverDue(ctx, slot); err != nil {
		s.log.Error("delivery tick aborted", logx.String("slot", slot.String()), logx.Err(err))
	}
}

// DeliverDue dispatches digests to every active subscriber due at slot whose
// marker for that slot is not yet recorded. Subscribers are processed by a
// bounded worker pool; each subscriber's select-compose-deliver-mark sequence
// stays sequential within one worker. Only registry unavailability aborts the
// whole tick.
func (s *Service) DeliverDue(ctx context.Context, slot domain.Slot) error {
	due, err := s.registry.ActiveSubscribersDueAt(ctx, slot.Time)
	if err != nil {
		return fmt.Errorf("list due subscribers: %w", err)
	}
	if len(due) == 0 {
		return nil
	}
	s.log.Info("delivery tick", logx.String("slot", slot.String()), logx.Int("due", len(due)))

	queue := make(chan domain.Subscriber)
	workers := s.cfg.Workers
	if workers > len(due) {
		workers = len(due)
	}

	var wg sync.WaitGroup
	wg.Add(workers)
	s.inflight.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			defer s.inflight.Done()
			for sub := range queue {
				s.dispatchOne(ctx, sub, slot)
			}
		}()
	}
	for _, sub := range due {
		queue <- sub
	}
	close(queue)
	wg.Wait()
	return nil
}

// dispatchOne runs the full per-subscriber sequence. Failures are isolated:
// the subscriber stays unmarked and becomes eligible again only at the next
// occurrence of their configured time, never within the same tick.
func (s *Service) dispatchOne(ctx context.Context, sub domain.Subscriber, slot domain.Slot) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("panic in dispatch",
				logx.Int64("subscriber", sub.ID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())))
		}
	}()

	delivered, err := s.registry.WasDelivered(ctx, sub.ID, slot)
	if err != nil {
		s.log.Error("delivery marker lookup failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return
	}
	if delivered {
		s.log.Debug("already delivered for slot",
			logx.Int64("subscriber", sub.ID), logx.String("slot", slot.String()))
		return
	}

	if err := s.dispatcher.Dispatch(ctx, sub, slot); err != nil {
		s.log.Error("digest dispatch failed", logx.Int64("subscriber", sub.ID), logx.Err(err))
		return
	}
	if err := s.registry.MarkDelivered(ctx, sub.ID, slot); err != nil {
		// The send went out but the marker did not persist; a retried slot
		// would double-send, which the design accepts only in this case.
		s.log.Error("delivery marker persist failed",
			logx.Int64("subscriber", sub.ID), logx.String("slot", slot.String()), logx.Err(err))
		return
	}
	s.log.Info("digest delivered", logx.Int64("subscriber", sub.ID), logx.String("slot", slot.String()))
}

// refreshTick triggers one ingestion run. Overlapping runs are dropped, not
// queued.
func (s *Service) refreshTick() {
	s.mu.Lock()
	ctx := s.runCtx
	s.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		s.log.Warn("content refresh already running; trigger dropped")
		return
	}
	defer s.refreshing.Store(false)

	start := s.now()
	n, err := s.refresher.Refresh(ctx)
	if err != nil {
		s.log.Error("content refresh failed", logx.Int("stored", n), logx.Err(err))
		return
	}
	s.log.Info("content refresh complete",
		logx.Int("stored", n), logx.Duration("took", s.now().Sub(start)))
}
