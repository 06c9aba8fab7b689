package audit

import (
	"context"
	"sync"
	"time"
)

// Store is the trail's persistence port.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByToken(ctx context.Context, identityToken string) ([]Event, error)
}

// Publisher emits audit events, synchronously by default or through a
// buffered channel when emit latency matters. In async mode a single worker
// drains the buffer; Close drains whatever remains.
type Publisher struct {
	store Store

	inbox chan Event
	wg    sync.WaitGroup
	once  sync.Once
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with the given
// buffer size. Emit never blocks until the buffer fills.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		if size > 0 {
			p.inbox = make(chan Event, size)
		}
	}
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.inbox != nil {
		p.wg.Add(1)
		go p.drain()
	}
	return p
}

// Emit records an event. Sync mode returns the store error; async mode
// enqueues and reports nothing (audit must not fail the business operation).
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if p.inbox == nil {
		return p.store.Append(ctx, event)
	}
	p.inbox <- event
	return nil
}

// History reads back the trail for an identity token, oldest first.
func (p *Publisher) History(ctx context.Context, identityToken string) ([]Event, error) {
	return p.store.ListByToken(ctx, identityToken)
}

// Close stops the async worker after draining pending events. Safe to call
// multiple times and in sync mode.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.inbox != nil {
			close(p.inbox)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) drain() {
	defer p.wg.Done()
	for event := range p.inbox {
		// Context is gone by the time the worker runs; audit writes are
		// best-effort and must not block on caller deadlines.
		_ = p.store.Append(context.Background(), event)
	}
}
