package mocks

import (
	"context"
	"sync"
)

// PublisherMock records published events for assertions.
type PublisherMock struct {
	mu     sync.Mutex
	Events []PublishedEvent
	Err    error
}

type PublishedEvent struct {
	RoutingKey string
	Message    any
}

func (p *PublisherMock) PublishJSON(_ context.Context, routingKey string, message any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Err != nil {
		return p.Err
	}
	p.Events = append(p.Events, PublishedEvent{RoutingKey: routingKey, Message: message})
	return nil
}

func (p *PublisherMock) Close() error { return nil }

func (p *PublisherMock) Published() []PublishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PublishedEvent, len(p.Events))
	copy(out, p.Events)
	return out
}
