package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/inshell/hone/internal/autosave"
	"github.com/inshell/hone/internal/document"
	"github.com/inshell/hone/internal/honeservice"
)

// draftBuffer holds the latest unsaved tree per article and drives the
// debounce scheduler. The scheduler's persist callback reads the buffered
// tree and saves it through the service, so a burst of draft PUTs collapses
// into one write.
type draftBuffer struct {
	svc       *honeservice.Service
	scheduler *autosave.Scheduler

	mu      sync.Mutex
	pending map[string]document.Tree
}

// newDraftBuffer creates the buffer and its debounce scheduler. A zero delay
// disables debouncing: drafts persist immediately.
func newDraftBuffer(svc *honeservice.Service, delay time.Duration, logger *slog.Logger) *draftBuffer {
	d := &draftBuffer{svc: svc, pending: map[string]document.Tree{}}
	if delay > 0 {
		d.scheduler = autosave.NewScheduler(delay, d.Persist, logger)
	}
	return d
}

// close flushes pending drafts and stops the scheduler.
func (d *draftBuffer) close() {
	if d.scheduler != nil {
		d.scheduler.Close()
	}
}

// Persist saves the buffered tree for the article, if any. Wired as the
// scheduler's persist callback.
func (d *draftBuffer) Persist(articleID string) {
	d.mu.Lock()
	tree, ok := d.pending[articleID]
	delete(d.pending, articleID)
	d.mu.Unlock()
	if !ok {
		return
	}
	if _, err := d.svc.SaveArticle(context.Background(), articleID, tree); err != nil {
		slog.Error("draft persist failed", slog.String("id", articleID), slog.String("error", err.Error()))
	}
}

func (d *draftBuffer) queue(articleID string, tree document.Tree) {
	d.mu.Lock()
	d.pending[articleID] = tree
	d.mu.Unlock()

	if d.scheduler == nil {
		d.Persist(articleID)
		return
	}
	d.scheduler.Queue(articleID)
}

// flush persists any buffered draft before an operation that reads the
// stored article.
func (d *draftBuffer) flush(articleID string) {
	if d.scheduler == nil {
		return
	}
	d.scheduler.Flush(articleID)
}

// cancel drops any buffered draft; a direct save or delete supersedes it.
func (d *draftBuffer) cancel(articleID string) {
	if d.scheduler == nil {
		return
	}
	d.scheduler.Cancel(articleID)
	d.mu.Lock()
	delete(d.pending, articleID)
	d.mu.Unlock()
}
