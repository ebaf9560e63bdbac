package httpapi

import (
	"context"
	"sync"

	"poemd/internal/session"
	"poemd/pkg/types"
)

// mockService is an in-memory Service. Start emits the events queued in
// script to every subscriber, tagged with the generation id.
type mockService struct {
	mu          sync.Mutex
	status      types.StateResponse
	ready       bool
	response    string
	prefetchErr error
	prefetches  int
	running     bool
	topics      []string
	script      []session.Event
	subs        []chan session.Event
	subscribed  chan struct{}
}

func (m *mockService) Status() types.StateResponse {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

func (m *mockService) Ready() bool { return m.ready }

func (m *mockService) Response() string { return m.response }

func (m *mockService) Prefetch(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prefetches++
	return m.prefetchErr
}

func (m *mockService) Start(ctx context.Context, topic string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topics = append(m.topics, topic)
	if m.running {
		return "", false
	}
	const id = "gen-1"
	for _, e := range m.script {
		e.GenerationID = id
		for _, ch := range m.subs {
			ch <- e
		}
	}
	return id, true
}

func (m *mockService) Subscribe(buf int) (<-chan session.Event, func()) {
	ch := make(chan session.Event, 64)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	sig := m.subscribed
	m.mu.Unlock()
	if sig != nil {
		close(sig)
	}
	return ch, func() {}
}

// emit sends e to all subscribers and closes them when last is set.
func (m *mockService) emit(e session.Event, last bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		ch <- e
		if last {
			close(ch)
		}
	}
	if last {
		m.subs = nil
	}
}
