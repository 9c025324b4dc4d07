// Package mutation applies list edits optimistically and rolls them back
// when the backend rejects them.
package mutation

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/HerbHall/libradesk/internal/sequencer"
)

// Notifier reports a failure to the user and returns once the user has
// acknowledged it.
type Notifier interface {
	Notify(ctx context.Context, msg string)
}

// List is the view a Controller edits. *sequencer.ListView satisfies it.
// Edit applies fn to the visible items and returns the latest fetch token;
// EditIf does the same only while tok is still the latest.
type List[T any] interface {
	Edit(fn func(items []T) []T) sequencer.Token
	EditIf(tok sequencer.Token, fn func(items []T) []T) bool
	Reload() sequencer.Token
	ReloadFirstPage() sequencer.Token
}

// RemoteFunc performs the backend half of a mutation.
type RemoteFunc func(ctx context.Context) error

// Controller runs mutations against one list.
type Controller[T any] struct {
	list     List[T]
	id       func(T) int64
	notifier Notifier
	logger   *zap.Logger
	failures sequencer.Counter
	noun     string
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	notifier Notifier
	logger   *zap.Logger
	failures sequencer.Counter
	noun     string
}

// WithNotifier sets where failures are reported.
func WithNotifier(n Notifier) Option { return func(o *options) { o.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithFailureCounter counts failed mutations.
func WithFailureCounter(c sequencer.Counter) Option { return func(o *options) { o.failures = c } }

// WithNoun names the entity in user-facing messages ("book", "coupon").
func WithNoun(noun string) Option { return func(o *options) { o.noun = noun } }

// New creates a Controller. id extracts the identity used to locate items.
func New[T any](list List[T], id func(T) int64, opts ...Option) *Controller[T] {
	o := options{logger: zap.NewNop(), noun: "item"}
	for _, fn := range opts {
		fn(&o)
	}
	return &Controller[T]{
		list:     list,
		id:       id,
		notifier: o.notifier,
		logger:   o.logger,
		failures: o.failures,
		noun:     o.noun,
	}
}

// Remove drops the item with the given id from the list, then calls
// remote. On failure the item goes back at its old index among whatever
// the list holds now; if a fetch was issued meanwhile the list reloads
// instead. Success needs no further work.
func (c *Controller[T]) Remove(ctx context.Context, id int64, remote RemoteFunc) error {
	var removed T
	at := -1
	tok := c.list.Edit(func(items []T) []T {
		for i, it := range items {
			if c.id(it) == id {
				removed, at = it, i
				return append(items[:i], items[i+1:]...)
			}
		}
		return items
	})

	if err := remote(ctx); err != nil {
		if at >= 0 {
			c.rollback(tok, func(items []T) []T { return c.insert(items, at, removed) })
		}
		return c.fail(ctx, "delete", id, err)
	}
	c.logger.Info("removed", zap.String("kind", c.noun), zap.Int64("id", id))
	return nil
}

// Update swaps in the edited item, then calls remote. On failure the
// previous version of that one item is put back, or the list reloads if a
// fetch was issued meanwhile. On success the list reloads from page 1 so
// server-computed fields replace the local guess.
func (c *Controller[T]) Update(ctx context.Context, item T, remote RemoteFunc) error {
	id := c.id(item)
	var prev T
	found := false
	tok := c.list.Edit(func(items []T) []T {
		for i, it := range items {
			if c.id(it) == id {
				prev, found = it, true
				items[i] = item
			}
		}
		return items
	})

	if err := remote(ctx); err != nil {
		if found {
			c.rollback(tok, func(items []T) []T {
				for i, it := range items {
					if c.id(it) == id {
						items[i] = prev
					}
				}
				return items
			})
		}
		return c.fail(ctx, "update", id, err)
	}
	c.logger.Info("updated", zap.String("kind", c.noun), zap.Int64("id", id))
	c.list.ReloadFirstPage()
	return nil
}

// rollback undoes an optimistic edit made at tok. Once a newer fetch has
// been issued the local items belong to it, so the list reloads instead.
func (c *Controller[T]) rollback(tok sequencer.Token, undo func(items []T) []T) {
	if c.list.EditIf(tok, undo) {
		return
	}
	c.logger.Debug("list moved on during mutation, reloading",
		zap.String("kind", c.noun), zap.Uint64("token", uint64(tok)))
	c.list.Reload()
}

// insert puts it back at index at, clamped to the current length, unless
// an item with the same id is already present.
func (c *Controller[T]) insert(items []T, at int, it T) []T {
	id := c.id(it)
	for _, cur := range items {
		if c.id(cur) == id {
			return items
		}
	}
	at = min(at, len(items))
	items = append(items, it)
	copy(items[at+1:], items[at:])
	items[at] = it
	return items
}

// Create calls remote and reloads from page 1 on success. Nothing is shown
// optimistically because the server assigns the id.
func (c *Controller[T]) Create(ctx context.Context, remote RemoteFunc) error {
	if err := remote(ctx); err != nil {
		return c.fail(ctx, "create", 0, err)
	}
	c.logger.Info("created", zap.String("kind", c.noun))
	c.list.ReloadFirstPage()
	return nil
}

func (c *Controller[T]) fail(ctx context.Context, op string, id int64, err error) error {
	c.logger.Error("mutation failed",
		zap.String("op", op),
		zap.String("kind", c.noun),
		zap.Int64("id", id),
		zap.Error(err),
	)
	if c.failures != nil {
		c.failures.Inc()
	}
	if c.notifier != nil {
		c.notifier.Notify(ctx, fmt.Sprintf("Could not %s %s: %v", op, c.noun, err))
	}
	return fmt.Errorf("%s %s: %w", op, c.noun, err)
}
