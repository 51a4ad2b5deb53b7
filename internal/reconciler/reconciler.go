// Package reconciler is the client-side feed state machine. Reduce is pure:
// the caller performs the fetch described by State.Pending and feeds the
// outcome back as an action.
package reconciler

import (
	"cmp"
	"slices"

	"github.com/developia-II/feedback-board-backend/internal/models"
)

// AtTopThresholdPx is the scroll offset under which the feed counts as being
// at the top; live items are inserted directly only there.
const AtTopThresholdPx = 40

// View is the active filter and sort. A zero Rating or empty EventID means
// the filter is unset.
type View struct {
	EventID string
	Rating  int
	Sort    models.Sort
}

// Matches reports whether item belongs in the view.
func (v View) Matches(item models.FeedbackItem) bool {
	if v.EventID != "" && item.EventID != v.EventID {
		return false
	}
	if v.Rating != 0 && item.Rating != v.Rating {
		return false
	}
	return true
}

// Request describes one page fetch. It is echoed back in PageLoaded and
// PageFailed so responses for an outdated view can be discarded.
type Request struct {
	Generation uint64
	View       View
	Cursor     string
	Initial    bool
}

type State struct {
	View       View
	Generation uint64

	Items   []models.FeedbackItem
	Cursor  string
	HasMore bool
	Queued  []models.FeedbackItem

	IsAtTop   bool
	IsLoading bool
	LastError error

	// Pending is the fetch the driver must perform next, nil when idle.
	Pending *Request
}

// New returns the state of a freshly opened view with its initial fetch
// pending.
func New(view View) State {
	return Reduce(State{}, ViewChanged{View: view})
}

type Action interface{ action() }

type (
	// ViewChanged resets the feed for a new filter or sort.
	ViewChanged struct{ View View }
	// LoadMoreRequested fetches the next page, or retries a failed fetch.
	LoadMoreRequested struct{}
	// ItemsArrived carries live or polled items. Origin, when set, is the
	// view a poll was issued for; the batch is dropped once that view is gone.
	ItemsArrived struct {
		Items  []models.FeedbackItem
		Origin *Request
	}
	QueuedApplied struct{}
	Scrolled      struct{ OffsetPx float64 }
	// PollFailed is accepted so background failures flow through the
	// reducer, but it never changes the state.
	PollFailed struct{ Err error }
)

type PageLoaded struct {
	Request    Request
	Items      []models.FeedbackItem
	NextCursor string
}

type PageFailed struct {
	Request Request
	Err     error
}

func (ViewChanged) action()       {}
func (LoadMoreRequested) action() {}
func (PageLoaded) action()        {}
func (PageFailed) action()        {}
func (ItemsArrived) action()      {}
func (QueuedApplied) action()     {}
func (Scrolled) action()          {}
func (PollFailed) action()        {}

// Reduce applies a to s and returns the new state. s is never mutated.
func Reduce(s State, a Action) State {
	switch a := a.(type) {
	case ViewChanged:
		return viewChanged(s, a.View)
	case LoadMoreRequested:
		return loadMore(s)
	case PageLoaded:
		return pageLoaded(s, a)
	case PageFailed:
		if stale(s, a.Request) {
			return s
		}
		s.IsLoading = false
		s.LastError = a.Err
		s.Pending = nil
		return s
	case ItemsArrived:
		if a.Origin != nil && outdated(s, *a.Origin) {
			return s
		}
		return itemsArrived(s, a.Items)
	case QueuedApplied:
		return applyQueued(s)
	case Scrolled:
		s.IsAtTop = a.OffsetPx < AtTopThresholdPx
		return s
	}
	return s
}

func viewChanged(s State, v View) State {
	if v.Sort == "" {
		v.Sort = models.SortNewest
	}
	gen := s.Generation + 1
	return State{
		View:       v,
		Generation: gen,
		HasMore:    true,
		IsAtTop:    true,
		IsLoading:  true,
		Pending:    &Request{Generation: gen, View: v, Initial: true},
	}
}

func loadMore(s State) State {
	if s.IsLoading || !s.HasMore {
		return s
	}
	s.IsLoading = true
	s.LastError = nil
	s.Pending = &Request{
		Generation: s.Generation,
		View:       s.View,
		Cursor:     s.Cursor,
		Initial:    len(s.Items) == 0 && s.Cursor == "",
	}
	return s
}

func pageLoaded(s State, a PageLoaded) State {
	if stale(s, a.Request) {
		return s
	}

	var base []models.FeedbackItem
	if !a.Request.Initial {
		base = s.Items
	}
	items := slices.Clone(base)
	seen := ids(items)
	for _, it := range a.Items {
		if _, dup := seen[it.ID]; dup {
			continue
		}
		seen[it.ID] = struct{}{}
		items = append(items, it)
	}
	if a.Request.Initial {
		items = keepArrived(items, s.Items, s.View.Sort, a.NextCursor == "")
	}

	s.Items = items
	s.Cursor = a.NextCursor
	s.HasMore = a.NextCursor != ""
	s.IsLoading = false
	s.LastError = nil
	s.Pending = nil
	return s
}

func itemsArrived(s State, arrived []models.FeedbackItem) State {
	items := s.Items
	queued := s.Queued
	for _, it := range arrived {
		if !s.View.Matches(it) || contains(items, it.ID) || contains(queued, it.ID) {
			continue
		}
		if s.IsAtTop {
			items = insert(items, it, s.View.Sort)
		} else {
			queued = insert(queued, it, s.View.Sort)
		}
	}
	s.Items = items
	s.Queued = queued
	return s
}

func applyQueued(s State) State {
	if len(s.Queued) == 0 {
		s.IsAtTop = true
		return s
	}
	items := s.Items
	for _, it := range s.Queued {
		if !contains(items, it.ID) {
			items = insert(items, it, s.View.Sort)
		}
	}
	s.Items = items
	s.Queued = nil
	s.IsAtTop = true
	return s
}

// keepArrived folds items that arrived while the initial fetch was in flight
// into page. An arrival that sorts past the end of an incomplete page is left
// for a later page to deliver.
func keepArrived(page, arrived []models.FeedbackItem, sort models.Sort, complete bool) []models.FeedbackItem {
	compare := comparator(sort)
	for _, it := range arrived {
		if contains(page, it.ID) {
			continue
		}
		if !complete && (len(page) == 0 || compare(it, page[len(page)-1]) < 0) {
			continue
		}
		page = insert(page, it, sort)
	}
	return page
}

// insert returns a copy of items with it placed at its sorted position.
func insert(items []models.FeedbackItem, it models.FeedbackItem, sort models.Sort) []models.FeedbackItem {
	compare := comparator(sort)
	pos := len(items)
	for i, existing := range items {
		if compare(existing, it) < 0 {
			pos = i
			break
		}
	}
	return slices.Insert(slices.Clone(items), pos, it)
}

func comparator(sort models.Sort) func(a, b models.FeedbackItem) int {
	if sort == models.SortHighest {
		return compareHighest
	}
	return compareNewest
}

// compareNewest orders by (created_at, id) ascending; the feed shows the
// reverse.
func compareNewest(a, b models.FeedbackItem) int {
	return cmp.Or(
		cmp.Compare(a.CreatedAt, b.CreatedAt),
		cmp.Compare(a.ID, b.ID),
	)
}

// compareHighest orders by (rating, created_at, id) ascending; the feed shows
// the reverse. created_at strings share one fixed-width layout.
func compareHighest(a, b models.FeedbackItem) int {
	return cmp.Or(
		cmp.Compare(a.Rating, b.Rating),
		cmp.Compare(a.CreatedAt, b.CreatedAt),
		cmp.Compare(a.ID, b.ID),
	)
}

// stale reports whether a fetch outcome no longer belongs to the current view
// or arrives while no fetch is outstanding.
func stale(s State, r Request) bool {
	return !s.IsLoading || outdated(s, r)
}

// outdated reports whether r was issued for a view that has since changed.
func outdated(s State, r Request) bool {
	return r.Generation != s.Generation || r.View != s.View
}

func contains(items []models.FeedbackItem, id string) bool {
	return slices.ContainsFunc(items, func(it models.FeedbackItem) bool { return it.ID == id })
}

func ids(items []models.FeedbackItem) map[string]struct{} {
	out := make(map[string]struct{}, len(items))
	for _, it := range items {
		out[it.ID] = struct{}{}
	}
	return out
}
