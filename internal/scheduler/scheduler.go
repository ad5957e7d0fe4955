package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/go-co-op/gocron"
)

// Cycle runs one wake cycle and returns once the device may sleep.
type Cycle func(ctx context.Context) error

// Waker runs a wake cycle every period on a host that cannot power down.
// It also acts as the cycle's Sleeper: hibernating ends the cycle and the
// next one starts on the following tick.
type Waker struct {
	scheduler *gocron.Scheduler
	cycle     Cycle
	every     time.Duration
	timeout   time.Duration
	log       *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	runs   atomic.Int64
}

// New creates a Waker. Each cycle gets its own context bounded by timeout.
func New(every, timeout time.Duration, cycle Cycle, log *slog.Logger) *Waker {
	if log == nil {
		log = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Waker{
		scheduler: gocron.NewScheduler(time.UTC),
		cycle:     cycle,
		every:     every,
		timeout:   timeout,
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start schedules the wake job, runs it once immediately and starts the
// underlying scheduler.
func (w *Waker) Start() error {
	if w.every <= 0 {
		return errors.New("wake period must be positive")
	}
	// A cycle that overruns its period delays the next one instead of
	// overlapping it.
	_, err := w.scheduler.Every(w.every).SingletonMode().Do(w.run)
	if err != nil {
		return err
	}
	w.scheduler.StartAsync()
	return nil
}

// Stop cancels a running cycle and stops the scheduler.
func (w *Waker) Stop() {
	w.cancel()
	w.scheduler.Stop()
}

// Runs is the number of cycles started so far.
func (w *Waker) Runs() int64 { return w.runs.Load() }

// NextWake is when the next cycle is due.
func (w *Waker) NextWake() time.Time {
	_, t := w.scheduler.NextRun()
	return t
}

// Hibernate accepts the cycle's sleep request.
func (w *Waker) Hibernate(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d != w.every {
		w.log.Warn("requested sleep differs from wake period", "requested", d, "period", w.every)
	}
	w.log.Info("hibernating", "until", w.NextWake().Format(time.RFC3339))
	return nil
}

func (w *Waker) run() {
	n := w.runs.Add(1)
	ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
	defer cancel()

	start := time.Now()
	w.log.Info("wake", "cycle", n)
	if err := w.cycle(ctx); err != nil {
		w.log.Error("wake cycle failed", "cycle", n, "elapsed", time.Since(start), "error", err)
		return
	}
	w.log.Info("wake cycle complete", "cycle", n, "elapsed", time.Since(start))
}
