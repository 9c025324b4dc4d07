package dashboard

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// View is one screen of the dashboard.
type View interface {
	Name() string
	// Open performs the view's initial load.
	Open(ctx context.Context) error
	// Close releases timers and waits for in-flight loads.
	Close()
}

// Registry holds the views in registration order.
type Registry struct {
	mu     sync.RWMutex
	views  map[string]View
	order  []string
	opened map[string]bool
	logger *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		views:  make(map[string]View),
		opened: make(map[string]bool),
		logger: logger,
	}
}

// Register adds a view.
func (r *Registry) Register(v View) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := v.Name()
	if _, exists := r.views[name]; exists {
		return fmt.Errorf("view %q already registered", name)
	}
	r.views[name] = v
	r.order = append(r.order, name)
	r.logger.Debug("view registered", zap.String("name", name))
	return nil
}

// Open opens the named view once; later calls return it without loading.
func (r *Registry) Open(ctx context.Context, name string) (View, error) {
	r.mu.Lock()
	v, ok := r.views[name]
	already := r.opened[name]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown view %q", name)
	}
	if already {
		return v, nil
	}
	r.logger.Debug("opening view", zap.String("name", name))
	if err := v.Open(ctx); err != nil {
		return v, fmt.Errorf("open view %q: %w", name, err)
	}
	r.mu.Lock()
	r.opened[name] = true
	r.mu.Unlock()
	return v, nil
}

// OpenAll opens every view in registration order, stopping at the first
// failure.
func (r *Registry) OpenAll(ctx context.Context) error {
	for _, name := range r.Names() {
		if _, err := r.Open(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// CloseAll closes every view in reverse order.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.order) - 1; i >= 0; i-- {
		name := r.order[i]
		r.logger.Debug("closing view", zap.String("name", name))
		r.views[name].Close()
		delete(r.opened, name)
	}
}

// Get returns a view by name.
func (r *Registry) Get(name string) (View, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.views[name]
	return v, ok
}

// Names returns view names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}
