package display

import (
	"context"
	"sync"
	"time"

	"github.com/kailas-cloud/esre-console/internal/db"
	domdisplay "github.com/kailas-cloud/esre-console/internal/domain/display"
)

type mockSource struct {
	mu    sync.Mutex
	list  []domdisplay.Display
	err   error
	calls int
}

func (m *mockSource) ListDisplays(_ context.Context, _ string) ([]domdisplay.Display, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.list, m.err
}

func (m *mockSource) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// gatedSource blocks its first call until release is closed. Later calls
// return list without blocking.
type gatedSource struct {
	mu      sync.Mutex
	first   []domdisplay.Display
	list    []domdisplay.Display
	calls   int
	ctxErr  error
	started chan struct{}
	release chan struct{}
}

func newGatedSource(first []domdisplay.Display) *gatedSource {
	return &gatedSource{first: first, started: make(chan struct{}), release: make(chan struct{})}
}

func (g *gatedSource) ListDisplays(ctx context.Context, _ string) ([]domdisplay.Display, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()
	if n > 1 {
		g.mu.Lock()
		defer g.mu.Unlock()
		return g.list, nil
	}

	close(g.started)
	<-g.release
	g.mu.Lock()
	g.ctxErr = ctx.Err()
	g.mu.Unlock()
	return g.first, nil
}

func (g *gatedSource) setList(list []domdisplay.Display) {
	g.mu.Lock()
	g.list = list
	g.mu.Unlock()
}

func (g *gatedSource) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func bodyDisplays(body string) []domdisplay.Display {
	return []domdisplay.Display{{IndexPattern: "logs-*", Template: domdisplay.Template{Body: body}}}
}

// mockKVStore implements the consumer interface for tests.
type mockKVStore struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	getErr error
	setErr error
	delErr error
	dels   []string
}

func newMockKVStore() *mockKVStore {
	return &mockKVStore{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *mockKVStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (m *mockKVStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	m.ttls[key] = ttl
	return nil
}

func (m *mockKVStore) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dels = append(m.dels, keys...)
	if m.delErr != nil {
		return m.delErr
	}
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func logsDisplays() []domdisplay.Display {
	return []domdisplay.Display{
		{IndexPattern: "logs-*", Template: domdisplay.Template{Body: "{{ message }}"}, Fields: []string{"message"}},
		{IndexPattern: "logs-app-*", Template: domdisplay.Template{Body: "[{{ level }}] {{ message }}"}},
	}
}
