package notify

import (
	"context"
	"sync"
)

// Notifier is the outbound port for notices. The core never blocks on
// delivery details beyond the publish call itself.
type Notifier interface {
	Publish(ctx context.Context, n Notice) error
}

// MemoryPublisher collects notices in memory so tests can assert emission.
type MemoryPublisher struct {
	mu      sync.Mutex
	notices []Notice
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, n Notice) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notices = append(p.notices, n)
	return nil
}

// Notices returns a copy of everything published so far.
func (p *MemoryPublisher) Notices() []Notice {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notice{}, p.notices...)
}

// ChannelPublisher hands notices to a Worker's inbox, decoupling emitters
// from broker round trips.
type ChannelPublisher struct {
	inbox chan<- Notice
}

func NewChannelPublisher(inbox chan<- Notice) *ChannelPublisher {
	return &ChannelPublisher{inbox: inbox}
}

func (p *ChannelPublisher) Publish(ctx context.Context, n Notice) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.inbox <- n:
		return nil
	}
}
