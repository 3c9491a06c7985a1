// internal/app/system/workers/logpruner.go
package workers

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Pruner deletes activity entries older than a cutoff; *logs.Store
// implements it.
type Pruner interface {
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// LogPruner is a background worker that enforces the activity log
// retention period.
type LogPruner struct {
	logs      Pruner
	log       *zap.Logger
	interval  time.Duration
	retention time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewLogPruner creates a pruner that every interval removes entries older
// than retention.
func NewLogPruner(logs Pruner, logger *zap.Logger, interval, retention time.Duration) *LogPruner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPruner{
		logs:      logs,
		log:       logger,
		interval:  interval,
		retention: retention,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start prunes once and then begins the background loop.
func (w *LogPruner) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("log pruner started",
		zap.Duration("interval", w.interval),
		zap.Duration("retention", w.retention))
}

// Stop signals the worker to stop and waits for it to finish. It is safe
// to call more than once.
func (w *LogPruner) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		w.log.Info("log pruner stopped")
	})
}

func (w *LogPruner) run() {
	defer w.wg.Done()

	w.Prune()
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Prune()
		}
	}
}

// Prune runs one pass and returns how many entries it removed.
func (w *LogPruner) Prune() int64 {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := w.now().Add(-w.retention)
	count, err := w.logs.DeleteBefore(ctx, cutoff)
	if err != nil {
		w.log.Error("failed to prune activity log", zap.Error(err))
		return 0
	}
	if count > 0 {
		w.log.Info("pruned activity log",
			zap.Int64("count", count),
			zap.Time("cutoff", cutoff))
	}
	return count
}
