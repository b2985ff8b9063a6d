package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/totegamma/sketchroom/internal/domain"
)

// Canvas is the set of periodic jobs a session exposes.
type Canvas interface {
	BroadcastPresence()
	CheckSnapshot(ctx context.Context) (string, bool)
	Prune(ctx context.Context) int
	Reset(ctx context.Context) error
}

// Scheduler drives the periodic work of one canvas: presence fan-out,
// snapshot freshness checks, history pruning and the scheduled reset.
type Scheduler struct {
	canvas Canvas
	config domain.CanvasConfig

	cron    *cron.Cron
	resetID cron.EntryID

	ctx  context.Context
	mu   sync.Mutex
	once sync.Once
}

func NewScheduler(canvas Canvas, config domain.CanvasConfig) (*Scheduler, error) {
	s := &Scheduler{
		canvas: canvas,
		config: config,
		cron:   cron.New(),
		ctx:    context.Background(),
	}

	if config.ResetSchedule != "" {
		id, err := s.cron.AddFunc(config.ResetSchedule, s.reset)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid reset schedule %q", config.ResetSchedule)
		}
		s.resetID = id
	}

	return s, nil
}

// NextReset reports when the scheduled reset fires next. ok is false when
// no schedule is configured.
func (s *Scheduler) NextReset() (time.Time, bool) {
	if s.resetID == 0 {
		return time.Time{}, false
	}
	entry := s.cron.Entry(s.resetID)
	if entry.Schedule == nil {
		return time.Time{}, false
	}
	next := entry.Next
	if next.IsZero() {
		next = entry.Schedule.Next(time.Now())
	}
	return next, true
}

func (s *Scheduler) reset() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()

	err := s.canvas.Reset(ctx)
	if err != nil {
		slog.ErrorContext(
			ctx, "scheduled reset failed",
			slog.String("error", err.Error()),
			slog.String("module", "scheduler"),
		)
	}

	if next, ok := s.NextReset(); ok {
		slog.InfoContext(
			ctx, "next scheduled reset",
			slog.Time("at", next),
			slog.String("module", "scheduler"),
		)
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	s.cron.Start()
	defer s.Stop()

	if next, ok := s.NextReset(); ok {
		slog.InfoContext(
			ctx, "canvas reset scheduled",
			slog.Time("at", next),
			slog.String("module", "scheduler"),
		)
	}

	presence := time.NewTicker(s.config.PresenceInterval)
	defer presence.Stop()
	snapshot := time.NewTicker(s.config.SnapshotCheckInterval)
	defer snapshot.Stop()
	prune := time.NewTicker(s.config.PruneInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-presence.C:
			s.canvas.BroadcastPresence()
		case <-snapshot.C:
			s.canvas.CheckSnapshot(ctx)
		case <-prune.C:
			s.canvas.Prune(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	s.once.Do(func() {
		<-s.cron.Stop().Done()
	})
}
