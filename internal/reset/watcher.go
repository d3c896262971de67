package reset

import (
	"context"
	"time"

	"vawter.tech/stopper"

	"github.com/cme-labs/cme-init/internal/hw"
	"github.com/cme-labs/cme-init/pkg/logger"
)

// Watcher is the dedicated task that blocks on the edge source and drives the
// classifier. It owns no pipeline state: a classified hold goes straight to
// the restarter, and the pipeline learns about it the way everything else
// does, through the markers on the next boot.
type Watcher struct {
	edges      hw.EdgeSource
	classifier *Classifier
	restarter  Restarter
	log        logger.Logger
	cancel     context.CancelFunc
	sctx       *stopper.Context
}

// NewWatcher binds the classifier to its edge source and restarter.
func NewWatcher(edges hw.EdgeSource, classifier *Classifier, restarter Restarter) *Watcher {
	return &Watcher{
		edges:      edges,
		classifier: classifier,
		restarter:  restarter,
		log:        logger.Log.With("component", "reset"),
	}
}

// Start launches the edge-wait loop in its own goroutine.
func (w *Watcher) Start(ctx context.Context) {
	wctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.sctx = stopper.WithContext(wctx)

	w.sctx.Go(func(sctx *stopper.Context) error {
		for !sctx.IsStopping() {
			if err := w.edges.WaitFall(wctx); err != nil {
				if sctx.IsStopping() || wctx.Err() != nil {
					return nil
				}
				w.log.Warn("Edge wait failed", "err", err)
				continue
			}

			intent, ok := w.classifier.Classify()
			if !ok {
				continue // debounce-rejected false trigger
			}
			if err := w.restarter.Restart(wctx, intent); err != nil {
				w.log.Error("Restart request failed", "intent", intent.Kind(), "err", err)
			}
		}
		return nil
	})
}

// Stop ends the loop and waits for it to finish. A hold classification in
// progress is not interrupted; only the release of the button ends it.
func (w *Watcher) Stop() error {
	if w.sctx == nil {
		return nil
	}
	w.sctx.Stop(100 * time.Millisecond)
	w.cancel()
	return w.sctx.Wait()
}
