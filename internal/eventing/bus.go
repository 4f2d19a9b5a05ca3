// Package eventing fans the survey lifecycle events out to in-process
// listeners. Session mutations publish here; logging and projection
// consumers register per-event callbacks.
package eventing

import (
	"context"
	"sync"

	"pcm-survey/internal/survey/application/events"
)

// Handlers for the three survey events. A handler error does not stop the
// remaining handlers; the first error is reported to the publisher.
type (
	DatasetLoadedHandler func(ctx context.Context, evt events.DatasetLoaded) error
	StateChangedHandler  func(ctx context.Context, evt events.StateChanged) error
	ExportBuiltHandler   func(ctx context.Context, evt events.ExportBuilt) error
)

// Bus is the in-memory survey event bus. The zero value is not usable;
// construct with NewBus.
type Bus struct {
	mu            sync.RWMutex
	datasetLoaded []DatasetLoadedHandler
	stateChanged  []StateChangedHandler
	exportBuilt   []ExportBuiltHandler
}

// NewBus constructs an empty bus.
func NewBus() *Bus {
	return &Bus{}
}

// OnDatasetLoaded registers a handler for upload completions.
func (b *Bus) OnDatasetLoaded(h DatasetLoadedHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.datasetLoaded = append(b.datasetLoaded, h)
	b.mu.Unlock()
}

// OnStateChanged registers a handler for successful mutating commands.
func (b *Bus) OnStateChanged(h StateChangedHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.stateChanged = append(b.stateChanged, h)
	b.mu.Unlock()
}

// OnExportBuilt registers a handler for produced export payloads.
func (b *Bus) OnExportBuilt(h ExportBuiltHandler) {
	if h == nil {
		return
	}
	b.mu.Lock()
	b.exportBuilt = append(b.exportBuilt, h)
	b.mu.Unlock()
}

// PublishDatasetLoaded delivers the event to every registered handler in
// registration order.
func (b *Bus) PublishDatasetLoaded(ctx context.Context, evt events.DatasetLoaded) error {
	b.mu.RLock()
	handlers := append([]DatasetLoadedHandler(nil), b.datasetLoaded...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishStateChanged delivers the event to every registered handler in
// registration order.
func (b *Bus) PublishStateChanged(ctx context.Context, evt events.StateChanged) error {
	b.mu.RLock()
	handlers := append([]StateChangedHandler(nil), b.stateChanged...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// PublishExportBuilt delivers the event to every registered handler in
// registration order.
func (b *Bus) PublishExportBuilt(ctx context.Context, evt events.ExportBuilt) error {
	b.mu.RLock()
	handlers := append([]ExportBuiltHandler(nil), b.exportBuilt...)
	b.mu.RUnlock()

	var firstErr error
	for _, h := range handlers {
		if err := h(ctx, evt); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
