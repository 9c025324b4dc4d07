package sequencer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/pkg/models"
)

// ErrInvalidPageSize is returned by SetPageSize for sizes outside
// models.PageSizes.
var ErrInvalidPageSize = errors.New("page size not offered")

// ErrInvalidSort is returned by SetSort for unknown sort keys.
var ErrInvalidSort = errors.New("unknown sort key")

// Page is one fetched page of a list.
type Page[T any] struct {
	Items []T
	Meta  models.ListMeta
}

// FetchFunc loads the page described by q.
type FetchFunc[T any] func(ctx context.Context, q models.ListQueryState) (Page[T], error)

// Counter is incremented for every response dropped as stale.
// prometheus.Counter satisfies it.
type Counter interface {
	Inc()
}

// Notifier reports a failure to the user. It may block until the user
// has acknowledged it.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// Snapshot is the visible state of a ListView.
type Snapshot[T any] struct {
	Query   models.ListQueryState
	Items   []T
	Loading bool
	Err     error
	Token   Token
}

// ListView holds one paginated, searchable, sortable list and applies only
// the newest fetch's result.
type ListView[T any] struct {
	mu      sync.Mutex
	seq     Sequencer
	fetch   FetchFunc[T]
	search  *Debouncer
	logger  *zap.Logger
	stale   Counter
	notes   Notifier
	noun    string
	observe func(Snapshot[T])

	query   models.ListQueryState
	items   []T
	loading bool
	err     error
	closed  bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type viewConfig struct {
	clock    Clock
	delay    time.Duration
	logger   *zap.Logger
	stale    Counter
	notes    Notifier
	noun     string
	observe  any
	pageSize int
}

// ViewOption configures a ListView.
type ViewOption func(*viewConfig)

// WithClock sets the clock driving the search debounce.
func WithClock(clk Clock) ViewOption { return func(c *viewConfig) { c.clock = clk } }

// WithDebounce sets the search quiet period.
func WithDebounce(d time.Duration) ViewOption { return func(c *viewConfig) { c.delay = d } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ViewOption { return func(c *viewConfig) { c.logger = l } }

// WithStaleCounter counts discarded responses.
func WithStaleCounter(s Counter) ViewOption { return func(c *viewConfig) { c.stale = s } }

// WithNotifier reports failed fetches of the latest query to n. noun names
// the list in the message ("books").
func WithNotifier(n Notifier, noun string) ViewOption {
	return func(c *viewConfig) { c.notes, c.noun = n, noun }
}

// WithPageSize sets the initial page size if it is one of models.PageSizes.
func WithPageSize(n int) ViewOption { return func(c *viewConfig) { c.pageSize = n } }

// WithObserver registers fn to receive a snapshot after every applied
// change. fn must accept Snapshot[T] for the view's T; it runs without
// the view lock held.
func WithObserver[T any](fn func(Snapshot[T])) ViewOption {
	return func(c *viewConfig) { c.observe = fn }
}

// NewListView creates a view. Nothing is fetched until the first Reload
// or setter call.
func NewListView[T any](fetch FetchFunc[T], opts ...ViewOption) *ListView[T] {
	cfg := viewConfig{logger: zap.NewNop(), delay: DefaultDebounce, noun: "items"}
	for _, o := range opts {
		o(&cfg)
	}
	ctx, cancel := context.WithCancel(context.Background())
	v := &ListView[T]{
		fetch:  fetch,
		search: NewDebouncer(cfg.delay, cfg.clock),
		logger: cfg.logger,
		stale:  cfg.stale,
		notes:  cfg.notes,
		noun:   cfg.noun,
		query:  models.NewListQueryState(),
		ctx:    ctx,
		cancel: cancel,
	}
	if fn, ok := cfg.observe.(func(Snapshot[T])); ok {
		v.observe = fn
	}
	if models.ValidPageSize(cfg.pageSize) {
		v.query.PageSize = cfg.pageSize
	}
	return v
}

// Reload fetches the current query again.
func (v *ListView[T]) Reload() Token {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.startLocked()
}

// ReloadFirstPage moves to page 1 and fetches.
func (v *ListView[T]) ReloadFirstPage() Token {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.Page = 1
	return v.startLocked()
}

// SetPage moves to page p (clamped to 1) without touching anything else.
func (v *ListView[T]) SetPage(p int) Token {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.Page = max(1, p)
	return v.startLocked()
}

// SetPageSize changes the page size and returns to page 1.
func (v *ListView[T]) SetPageSize(n int) (Token, error) {
	if !models.ValidPageSize(n) {
		return 0, ErrInvalidPageSize
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.PageSize = n
	v.query.Page = 1
	return v.startLocked(), nil
}

// SetSort changes the ordering and returns to page 1.
func (v *ListView[T]) SetSort(k models.SortKey) (Token, error) {
	if !k.Valid() {
		return 0, ErrInvalidSort
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.query.Sort = k
	v.query.Page = 1
	return v.startLocked(), nil
}

// SetSearch records the search text, returns to page 1 and schedules the
// fetch after the quiet period. Each call restarts the period. Any other
// fetch issued meanwhile already carries the new text and cancels the
// scheduled one.
func (v *ListView[T]) SetSearch(s string) {
	v.mu.Lock()
	v.query.Search = s
	v.query.Page = 1
	v.mu.Unlock()

	v.search.Trigger(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		v.startLocked()
	})
}

// NextPage advances one page if the current state says one exists.
func (v *ListView[T]) NextPage() (Token, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.query.HasNext(len(v.items)) {
		return 0, false
	}
	v.query.Page++
	return v.startLocked(), true
}

// PrevPage goes back one page unless already on page 1.
func (v *ListView[T]) PrevPage() (Token, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.query.HasPrev() {
		return 0, false
	}
	v.query.Page--
	return v.startLocked(), true
}

// Snapshot returns a copy of the visible state.
func (v *ListView[T]) Snapshot() Snapshot[T] {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snapshotLocked()
}

// Items returns a copy of the visible items.
func (v *ListView[T]) Items() []T {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]T(nil), v.items...)
}

// Edit replaces the visible items with fn's result without fetching and
// returns the latest token at that moment. fn receives a copy it may
// modify. Mutations use it for optimistic changes.
func (v *ListView[T]) Edit(fn func(items []T) []T) Token {
	v.mu.Lock()
	v.items = fn(append([]T(nil), v.items...))
	tok := v.seq.Latest()
	snap := v.snapshotLocked()
	v.mu.Unlock()
	v.notify(snap)
	return tok
}

// EditIf is Edit guarded by tok: it does nothing and returns false once a
// newer fetch has been issued, so a rollback cannot overwrite its result.
func (v *ListView[T]) EditIf(tok Token, fn func(items []T) []T) bool {
	v.mu.Lock()
	if v.closed || !v.seq.IsLatest(tok) {
		v.mu.Unlock()
		return false
	}
	v.items = fn(append([]T(nil), v.items...))
	snap := v.snapshotLocked()
	v.mu.Unlock()
	v.notify(snap)
	return true
}

// Wait blocks until every fetch issued so far has completed.
func (v *ListView[T]) Wait() {
	v.wg.Wait()
}

// Close stops the search timer and cancels in-flight fetches. Results
// arriving after Close are dropped.
func (v *ListView[T]) Close() {
	v.search.Close()
	v.mu.Lock()
	v.closed = true
	v.mu.Unlock()
	v.cancel()
	v.wg.Wait()
}

func (v *ListView[T]) snapshotLocked() Snapshot[T] {
	return Snapshot[T]{
		Query:   v.query,
		Items:   append([]T(nil), v.items...),
		Loading: v.loading,
		Err:     v.err,
		Token:   v.seq.Latest(),
	}
}

func (v *ListView[T]) startLocked() Token {
	if v.closed {
		return 0
	}
	v.search.Cancel()
	tok := v.seq.Issue()
	v.loading = true
	q := v.query
	v.logger.Debug("fetch issued",
		zap.Uint64("token", uint64(tok)),
		zap.Int("page", q.Page),
		zap.Int("per_page", q.PageSize),
		zap.String("sort", string(q.Sort)),
		zap.String("search", q.Search),
	)
	v.wg.Add(1)
	go func() {
		defer v.wg.Done()
		page, err := v.fetch(v.ctx, q)
		v.apply(tok, page, err)
	}()
	return tok
}

func (v *ListView[T]) apply(tok Token, page Page[T], err error) {
	v.mu.Lock()
	if v.closed || !v.seq.IsLatest(tok) {
		v.mu.Unlock()
		v.logger.Debug("stale response dropped", zap.Uint64("token", uint64(tok)))
		if v.stale != nil {
			v.stale.Inc()
		}
		return
	}
	v.loading = false
	failed := err != nil
	if failed {
		v.items = nil
		v.err = err
		v.logger.Warn("list fetch failed", zap.Uint64("token", uint64(tok)), zap.Error(err))
	} else {
		v.items = page.Items
		v.err = nil
		v.query.Total = page.Meta.Total
		v.query.TotalPages = page.Meta.TotalPages
	}
	snap := v.snapshotLocked()
	v.mu.Unlock()
	v.notify(snap)
	if failed && v.notes != nil {
		v.notes.Notify(v.ctx, fmt.Sprintf("Could not load %s: %v", v.noun, err))
	}
}

func (v *ListView[T]) notify(s Snapshot[T]) {
	if v.observe != nil {
		v.observe(s)
	}
}
