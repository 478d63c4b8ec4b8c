package di

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/nodalis/framework/apperr"
)

// disposer normalizes Disposable and DisposableWithContext into a single
// callable shape the lifecycleManager and Scope can track uniformly.
type disposer func(ctx context.Context) error

func asDisposer(v any) disposer {
	if d, ok := v.(DisposableWithContext); ok {
		return d.Close
	}
	if d, ok := v.(Disposable); ok {
		return func(context.Context) error { return d.Close() }
	}
	return nil
}

// lifecycleManager tracks every singleton that needs teardown, in
// construction order, so Dispose can run them LIFO.
type lifecycleManager struct {
	mu        sync.Mutex
	disposers []disposer
}

func newLifecycleManager() *lifecycleManager {
	return &lifecycleManager{}
}

func (m *lifecycleManager) track(d disposer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposers = append(m.disposers, d)
}

// InitializeAll eagerly constructs every eligible singleton, then runs
// Initialize(ctx) on each constructed instance that implements
// Initializer, in construction order. Construction resolves dependencies
// before dependents, so initialization order follows dependency order;
// the eager pass means a singleton registered but never resolved before
// startup still gets its callback before the app begins serving.
func (c *Container) InitializeAll(ctx context.Context) error {
	var errs []error

	singletons := make([]ServiceId, 0, len(c.descriptors))
	for id, d := range c.descriptors {
		if d.Lifetime == Singleton && !d.instance {
			singletons = append(singletons, id)
		}
	}
	sort.Slice(singletons, func(i, j int) bool { return idLess(singletons[i], singletons[j]) })
	for _, id := range singletons {
		d := c.descriptors[id]
		if _, err := c.resolve(nil, id, make(map[ServiceId]bool), d.Module); err != nil {
			errs = append(errs, fmt.Errorf("constructing %s: %w", formatServiceId(id), err))
		}
	}

	c.mu.Lock()
	ids := append([]ServiceId{}, c.constructionOrder...)
	c.mu.Unlock()

	for _, id := range ids {
		c.mu.Lock()
		v := c.singletons[id]
		c.mu.Unlock()
		init, ok := v.(Initializer)
		if !ok {
			continue
		}
		if err := init.Initialize(ctx); err != nil {
			errs = append(errs, fmt.Errorf("initializing %s: %w", formatServiceId(id), err))
		}
	}
	if len(errs) > 0 {
		return &apperr.InternalError{Cause: joinErrors(errs)}
	}
	return nil
}

// Dispose releases every tracked singleton resource, LIFO (last constructed,
// first disposed). A disposer that fails does not stop the remaining
// disposers from running; all errors are collected and returned together
// so a shutdown path never leaks the tail of the list silently.
func (c *Container) Dispose(ctx context.Context) error {
	c.lifecycle.mu.Lock()
	disposers := append([]disposer{}, c.lifecycle.disposers...)
	c.lifecycle.mu.Unlock()

	var errs []error
	for i := len(disposers) - 1; i >= 0; i-- {
		if err := disposers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return joinErrors(errs)
}
