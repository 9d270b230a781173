// Package events fans committed changes out to the broker and drops stale
// catalog cache entries. Nothing here runs inside a database transaction.
package events

import (
	"checkout-service/internal/domain"
	"context"
	"log/slog"
	"sync"
	"time"
)

// Notifier is told about an event after the transaction that produced it has
// committed. It must not block the caller.
type Notifier interface {
	Notify(ctx context.Context, evt domain.Event)
}

type Publisher interface {
	Publish(ctx context.Context, routingKey string, data any) error
}

type CacheInvalidator interface {
	Invalidate(ctx context.Context, ids ...uint64) error
}

type Dispatcher struct {
	publisher Publisher
	cache     CacheInvalidator
	timeout   time.Duration
	wg        sync.WaitGroup
}

// NewDispatcher accepts a nil publisher or cache.
func NewDispatcher(publisher Publisher, cache CacheInvalidator, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{publisher: publisher, cache: cache, timeout: timeout}
}

func (d *Dispatcher) Notify(ctx context.Context, evt domain.Event) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		// detached from the request, which is usually finished by now
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		d.dispatch(ctx, evt)
	}()
}

func (d *Dispatcher) dispatch(ctx context.Context, evt domain.Event) {
	if d.cache != nil && len(evt.ProductIDs) > 0 {
		if err := d.cache.Invalidate(ctx, evt.ProductIDs...); err != nil {
			slog.Warn("product cache invalidation failed", "event", evt.Name, "error", err)
		}
	}
	if d.publisher == nil {
		return
	}
	if err := d.publisher.Publish(ctx, evt.Name, evt); err != nil {
		slog.Error("event publish failed", "event", evt.Name, "event_id", evt.ID, "error", err)
		return
	}
	slog.Debug("event dispatched", "event", evt.Name, "event_id", evt.ID)
}

// Wait blocks until every dispatched event has been handled.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

type Nop struct{}

func (Nop) Notify(context.Context, domain.Event) {}
