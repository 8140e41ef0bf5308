package pubsub

import (
	"context"
	"sync"
)

const memoryBuffer = 64

// Memory is an in-process Channel. Broadcast blocks while a subscriber's
// buffer is full, which keeps per-topic ordering without dropping messages.
type Memory struct {
	mu     sync.RWMutex
	topics map[string]map[*memorySub]struct{}
	closed bool
}

func NewMemory() *Memory {
	return &Memory{topics: make(map[string]map[*memorySub]struct{})}
}

var _ Channel = (*Memory)(nil)

func (m *Memory) Broadcast(ctx context.Context, topic string, payload []byte) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}

	for sub := range m.topics[topic] {
		msg := append([]byte(nil), payload...)
		select {
		case sub.out <- msg:
		case <-sub.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Subscribe(_ context.Context, topic string) (Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	sub := &memorySub{
		hub:   m,
		topic: topic,
		out:   make(chan []byte, memoryBuffer),
		done:  make(chan struct{}),
	}
	if m.topics[topic] == nil {
		m.topics[topic] = make(map[*memorySub]struct{})
	}
	m.topics[topic][sub] = struct{}{}
	return sub, nil
}

// Close ends every open subscription.
func (m *Memory) Close() error {
	m.mu.Lock()
	subs := make([]*memorySub, 0)
	for _, set := range m.topics {
		for sub := range set {
			subs = append(subs, sub)
		}
	}
	m.closed = true
	m.mu.Unlock()

	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	return nil
}

func (m *Memory) remove(sub *memorySub) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if set, ok := m.topics[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(m.topics, sub.topic)
		}
	}
	// No Broadcast holds the read lock past this point, so closing is safe.
	close(sub.out)
}

type memorySub struct {
	hub   *Memory
	topic string
	out   chan []byte
	done  chan struct{}
	once  sync.Once
}

func (s *memorySub) Messages() <-chan []byte { return s.out }

func (s *memorySub) Unsubscribe() error {
	s.once.Do(func() {
		close(s.done)
		s.hub.remove(s)
	})
	return nil
}
