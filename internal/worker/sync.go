package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/anastasiosv/snake-rivals-arena/internal/config"
)

// ScoreSource reads authoritative high scores from the database.
type ScoreSource interface {
	AllHighScores(ctx context.Context) (map[string]int64, error)
}

// RankSink receives the mirrored scores.
type RankSink interface {
	BatchSetScores(ctx context.Context, scores map[string]int64) error
}

// SyncWorker periodically rebuilds the Redis rank mirror from PostgreSQL,
// repairing drift after cache restarts or missed best-effort writes.
type SyncWorker struct {
	source  ScoreSource
	sink    RankSink
	config  *config.SyncConfig
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// NewSyncWorker creates a new sync worker
func NewSyncWorker(
	source ScoreSource,
	sink RankSink,
	cfg *config.SyncConfig,
	logger *slog.Logger,
) *SyncWorker {
	return &SyncWorker{
		source: source,
		sink:   sink,
		config: cfg,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background sync process
func (w *SyncWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	w.logger.Info("sync worker started", "interval", w.config.Interval)

	go w.run(ctx)
	return nil
}

// Stop stops the background sync process
func (w *SyncWorker) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh

	w.mu.Lock()
	w.running = false
	w.mu.Unlock()

	w.logger.Info("sync worker stopped")
	return nil
}

// run is the main worker loop
func (w *SyncWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			if err := w.SyncMirror(ctx); err != nil {
				w.logger.Error("sync cycle failed", "error", err)
			}
		}
	}
}

// SyncMirror copies every user's high score from the database into the
// rank mirror. Used on startup for recovery and on each tick.
func (w *SyncWorker) SyncMirror(ctx context.Context) error {
	startTime := time.Now()

	scores, err := w.source.AllHighScores(ctx)
	if err != nil {
		return err
	}

	if len(scores) == 0 {
		w.logger.Debug("no scores to mirror")
		return nil
	}

	if err := w.sink.BatchSetScores(ctx, scores); err != nil {
		return err
	}

	w.logger.Info("rank mirror synced",
		"users", len(scores),
		"duration", time.Since(startTime),
	)
	return nil
}

// IsRunning returns whether the worker is currently running
func (w *SyncWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
