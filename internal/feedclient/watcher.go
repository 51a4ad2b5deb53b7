package feedclient

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/developia-II/feedback-board-backend/internal/models"
	"github.com/developia-II/feedback-board-backend/internal/realtime"
	"github.com/developia-II/feedback-board-backend/internal/reconciler"
)

const DefaultPollInterval = 5 * time.Second

// Source is the part of Client the Watcher depends on.
type Source interface {
	ListFeedbacks(ctx context.Context, opts ListOptions) (Page, error)
	Subscribe(ctx context.Context, rooms ...string) (<-chan realtime.Event, error)
}

type WatcherOptions struct {
	// PollInterval of zero uses DefaultPollInterval; a negative value
	// disables polling.
	PollInterval time.Duration
	// Live subscribes to the global room; the reducer drops items outside
	// the view.
	Live     bool
	PageSize int
	// OnChange is called outside the state lock, one call at a time and never
	// with a state older than one already delivered. Intermediate states may be
	// skipped under contention; State is authoritative. OnChange must not call
	// Dispatch.
	OnChange func(reconciler.State)
	Logger   *slog.Logger
}

// Watcher drives a reconciler from page fetches, polling and live pushes.
// All dispatches are serialised; fetches run on their own goroutines.
type Watcher struct {
	src  Source
	opts WatcherOptions
	log  *slog.Logger

	mu    sync.Mutex
	state reconciler.State
	seq   uint64
	ctx   context.Context

	notifyMu sync.Mutex
	notified uint64
}

func NewWatcher(src Source, view reconciler.View, opts WatcherOptions) *Watcher {
	if opts.PollInterval == 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PageSize <= 0 {
		opts.PageSize = models.DefaultLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Watcher{src: src, opts: opts, log: logger, state: reconciler.New(view)}
}

func (w *Watcher) State() reconciler.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Run performs the initial fetch and feeds live and polled items until ctx
// is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	w.mu.Lock()
	w.ctx = ctx
	pending := w.state.Pending
	w.mu.Unlock()
	if pending != nil {
		go w.fetch(ctx, *pending)
	}

	var wg sync.WaitGroup
	if w.opts.Live {
		events, err := w.src.Subscribe(ctx, string(realtime.RoomFeedbacks))
		if err != nil {
			w.log.Warn("live updates unavailable, relying on polling", "error", err)
		} else {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for evt := range events {
					w.Dispatch(reconciler.ItemsArrived{Items: []models.FeedbackItem{evt.Payload}})
				}
			}()
		}
	}

	if w.opts.PollInterval > 0 {
		ticker := time.NewTicker(w.opts.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				wg.Wait()
				return nil
			case <-ticker.C:
				w.poll(ctx)
			}
		}
	}

	<-ctx.Done()
	wg.Wait()
	return nil
}

// Dispatch applies a to the state and starts the fetch it requests, if any.
func (w *Watcher) Dispatch(a reconciler.Action) reconciler.State {
	w.mu.Lock()
	prev := w.state
	next := reconciler.Reduce(prev, a)
	w.state = next
	w.seq++
	seq := w.seq
	ctx := w.ctx
	w.mu.Unlock()

	if ctx != nil && next.Pending != nil && next.Pending != prev.Pending {
		go w.fetch(ctx, *next.Pending)
	}
	w.notify(seq, next)
	return next
}

func (w *Watcher) notify(seq uint64, s reconciler.State) {
	if w.opts.OnChange == nil {
		return
	}
	w.notifyMu.Lock()
	defer w.notifyMu.Unlock()
	if seq <= w.notified {
		return
	}
	w.notified = seq
	w.opts.OnChange(s)
}

func (w *Watcher) fetch(ctx context.Context, req reconciler.Request) {
	page, err := w.src.ListFeedbacks(ctx, w.listOptions(req.View, req.Cursor))
	if err != nil {
		w.Dispatch(reconciler.PageFailed{Request: req, Err: err})
		return
	}
	w.Dispatch(reconciler.PageLoaded{Request: req, Items: page.Items, NextCursor: page.NextCursor})
}

// poll refetches the first page of the current view. The result is tagged
// with that view so it is dropped if the view changes meanwhile. Failures
// never reach LastError.
func (w *Watcher) poll(ctx context.Context) {
	s := w.State()
	origin := reconciler.Request{Generation: s.Generation, View: s.View}
	page, err := w.src.ListFeedbacks(ctx, w.listOptions(s.View, ""))
	if err != nil {
		w.log.Debug("poll failed", "error", err)
		w.Dispatch(reconciler.PollFailed{Err: err})
		return
	}
	w.Dispatch(reconciler.ItemsArrived{Items: page.Items, Origin: &origin})
}

func (w *Watcher) listOptions(v reconciler.View, cursor string) ListOptions {
	return ListOptions{
		EventID: v.EventID,
		Rating:  v.Rating,
		Sort:    v.Sort,
		Limit:   w.opts.PageSize,
		Cursor:  cursor,
	}
}
