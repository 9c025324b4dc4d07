// Package dashboard wires the list views, mutations and statistics engine
// to the backend client. Each presenter owns its state and sequencer;
// callers render whatever Snapshot or Items returns.
package dashboard

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/mutation"
	"github.com/HerbHall/libradesk/internal/sequencer"
	"github.com/HerbHall/libradesk/internal/telemetry"
)

// ErrSuperseded is returned by a load whose result was dropped because a
// newer load of the same view was issued while it was in flight.
var ErrSuperseded = errors.New("superseded by a newer load")

// Options carries the dependencies shared by every presenter.
type Options struct {
	Logger   *zap.Logger
	Metrics  *telemetry.Metrics
	Notifier mutation.Notifier
	Clock    sequencer.Clock
	Debounce time.Duration
	PageSize int
	Now      func() time.Time
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Metrics == nil {
		o.Metrics = telemetry.New(nil)
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Debounce <= 0 {
		o.Debounce = sequencer.DefaultDebounce
	}
	return o
}

func (o Options) viewOptions(name string) []sequencer.ViewOption {
	opts := []sequencer.ViewOption{
		sequencer.WithLogger(o.Logger),
		sequencer.WithStaleCounter(o.Metrics.Stale(name)),
		sequencer.WithDebounce(o.Debounce),
		sequencer.WithPageSize(o.PageSize),
	}
	if o.Clock != nil {
		opts = append(opts, sequencer.WithClock(o.Clock))
	}
	if o.Notifier != nil {
		opts = append(opts, sequencer.WithNotifier(o.Notifier, name))
	}
	return opts
}

func (o Options) mutationOptions(noun string) []mutation.Option {
	return []mutation.Option{
		mutation.WithLogger(o.Logger),
		mutation.WithNotifier(o.Notifier),
		mutation.WithFailureCounter(o.Metrics.Failures(noun)),
		mutation.WithNoun(noun),
	}
}

// collection is an unpaginated list whose loads are ordered by a
// sequencer. A failed load empties the list.
type collection[T any] struct {
	seq    sequencer.Sequencer
	stale  sequencer.Counter
	logger *zap.Logger

	mu    sync.Mutex
	items []T
	err   error
}

func newCollection[T any](name string, o Options) *collection[T] {
	return &collection[T]{stale: o.Metrics.Stale(name), logger: o.Logger.With(zap.String("view", name))}
}

func (c *collection[T]) load(ctx context.Context, fetch func(context.Context) ([]T, error)) ([]T, error) {
	tok := c.seq.Issue()
	items, err := fetch(ctx)
	if err != nil {
		items = nil
	}
	applied := c.seq.Commit(tok, func() {
		c.mu.Lock()
		c.items, c.err = items, err
		c.mu.Unlock()
	})
	if !applied {
		c.stale.Inc()
		c.logger.Debug("stale response dropped", zap.Uint64("token", uint64(tok)))
		return nil, ErrSuperseded
	}
	if err != nil {
		c.logger.Warn("load failed", zap.Error(err))
	}
	return items, err
}

func (c *collection[T]) snapshot() ([]T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]T(nil), c.items...), c.err
}
