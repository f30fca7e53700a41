package events

import (
	"context"
	"sync"
)

// MemoryPublisher records published events in memory. Used in tests and as a
// default when no broker is configured.
type MemoryPublisher struct {
	mu sync.Mutex

	// PublishFunc allows customizing publish behavior (e.g. injecting failures).
	PublishFunc func(ctx context.Context, event Event) error

	published []Event
}

// NewMemoryPublisher creates an empty in-memory publisher.
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish records the event.
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	if p.PublishFunc != nil {
		if err := p.PublishFunc(ctx, event); err != nil {
			return err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, event)
	return nil
}

// Published returns a copy of all recorded events in publication order.
func (p *MemoryPublisher) Published() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.published))
	copy(out, p.published)
	return out
}

// Names returns the names of all recorded events in publication order.
func (p *MemoryPublisher) Names() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, len(p.published))
	for i, e := range p.published {
		names[i] = e.Name
	}
	return names
}
