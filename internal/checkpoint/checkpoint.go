// Package checkpoint periodically saves the registry state to its snapshot store.
package checkpoint

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/hospital-directory/internal/redis"
)

// Saver is the part of the registry a Worker needs.
type Saver interface {
	Save(ctx context.Context) error
	HospitalName() string
}

// Pruner is implemented by stores that keep a bounded history.
type Pruner interface {
	Prune(ctx context.Context, keep int) (int64, error)
}

type Worker struct {
	saver    Saver
	locker   redisclient.Locker
	pruner   Pruner
	keep     int
	interval time.Duration
	timeout  time.Duration
	logger   zerolog.Logger
}

type Option func(*Worker)

// WithLocker makes each run hold a shared lock so only one replica writes.
func WithLocker(l redisclient.Locker) Option {
	return func(w *Worker) { w.locker = l }
}

// WithPruner trims stored history to keep entries after every successful save.
func WithPruner(p Pruner, keep int) Option {
	return func(w *Worker) {
		w.pruner = p
		w.keep = keep
	}
}

func WithLogger(logger zerolog.Logger) Option {
	return func(w *Worker) { w.logger = logger }
}

func WithTimeout(d time.Duration) Option {
	return func(w *Worker) { w.timeout = d }
}

func NewWorker(saver Saver, interval time.Duration, opts ...Option) *Worker {
	w := &Worker{
		saver:    saver,
		locker:   redisclient.LocalLocker{},
		interval: interval,
		timeout:  20 * time.Second,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// LockName is the lock held while a checkpoint of hospital is written.
func LockName(hospital string) string {
	return "snapshot:" + hospital
}

// Run saves once at startup and then on every tick until ctx is done. A final
// save is attempted on shutdown.
func (w *Worker) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info().Msg("checkpoints disabled")
		return
	}

	w.RunOnce(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("stopping checkpoint worker")
			w.RunOnce(context.WithoutCancel(ctx))
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single checkpoint. Errors are logged, never returned.
func (w *Worker) RunOnce(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	start := time.Now()
	err := w.locker.WithLock(runCtx, LockName(w.saver.HospitalName()), func(ctx context.Context) error {
		if err := w.saver.Save(ctx); err != nil {
			return err
		}
		if w.pruner != nil && w.keep > 0 {
			n, err := w.pruner.Prune(ctx, w.keep)
			if err != nil {
				w.logger.Warn().Err(err).Msg("prune snapshots")
			} else if n > 0 {
				w.logger.Debug().Int64("pruned", n).Msg("pruned old snapshots")
			}
		}
		return nil
	})
	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		w.logger.Debug().Msg("checkpoint skipped, another replica holds the lock")
	case err != nil:
		w.logger.Error().Err(err).Msg("checkpoint failed")
	default:
		w.logger.Info().Dur("duration", time.Since(start)).Msg("checkpoint saved")
	}
}
