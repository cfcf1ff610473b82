package display

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/esre-console/internal/domain"
)

func newCounter() *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{Name: "test_display_cache_total"}, []string{"result"})
}

func TestGet_MissThenMemo(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	kv := newMockKVStore()
	counter := newCounter()
	r := New(src, kv, time.Minute, "t:", counter, zap.NewNop())

	set, err := r.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d, ok := set.Lookup("logs-app-1")
	if !ok || d.IndexPattern != "logs-app-*" {
		t.Fatalf("Lookup = %+v, %v", d, ok)
	}
	if _, ok := kv.data["t:displays:p1"]; !ok {
		t.Error("set not written to shared cache")
	}
	if kv.ttls["t:displays:p1"] != time.Minute {
		t.Errorf("ttl = %s", kv.ttls["t:displays:p1"])
	}

	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("second Get: %v", err)
	}
	if src.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", src.callCount())
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("miss")); got != 1 {
		t.Errorf("miss = %v", got)
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("memo")); got != 1 {
		t.Errorf("memo = %v", got)
	}
}

func TestGet_SharedCacheHit(t *testing.T) {
	kv := newMockKVStore()
	counter := newCounter()
	warm := New(&mockSource{list: logsDisplays()}, kv, time.Minute, "t:", nil, zap.NewNop())
	if _, err := warm.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("warm Get: %v", err)
	}

	src := &mockSource{err: errors.New("must not be called")}
	r := New(src, kv, time.Minute, "t:", counter, zap.NewNop())
	set, err := r.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("Len = %d, want 2", set.Len())
	}
	if src.callCount() != 0 {
		t.Errorf("source called %d times on cache hit", src.callCount())
	}
	if got := testutil.ToFloat64(counter.WithLabelValues("hit")); got != 1 {
		t.Errorf("hit = %v", got)
	}
}

func TestGet_CacheErrorFallsThrough(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	kv := newMockKVStore()
	kv.getErr = errors.New("connection refused")
	kv.setErr = errors.New("connection refused")

	core, logs := observer.New(zapcore.WarnLevel)
	r := New(src, kv, time.Minute, "t:", nil, zap.New(core))

	set, err := r.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("Len = %d, want 2", set.Len())
	}
	if logs.FilterMessage("display cache read failed, falling through").Len() != 1 {
		t.Error("expected read warning")
	}
	if logs.FilterMessage("display cache write failed").Len() != 1 {
		t.Error("expected write warning")
	}
}

func TestGet_CorruptedEntry(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	kv := newMockKVStore()
	kv.data["t:displays:p1"] = []byte("{not json")

	r := New(src, kv, time.Minute, "t:", nil, zap.NewNop())
	set, err := r.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if set.Len() != 2 || src.callCount() != 1 {
		t.Errorf("expected reload from source, len=%d calls=%d", set.Len(), src.callCount())
	}
}

func TestGet_NoStore(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	r := New(src, nil, time.Minute, "t:", nil, zap.NewNop())

	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	r.Invalidate(context.Background(), "p1")
	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2", src.callCount())
	}
}

func TestGet_SourceError(t *testing.T) {
	src := &mockSource{err: domain.ErrTransport}
	r := New(src, newMockKVStore(), time.Minute, "t:", nil, zap.NewNop())

	_, err := r.Get(context.Background(), "p1")
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}

	src.mu.Lock()
	src.err, src.list = nil, logsDisplays()
	src.mu.Unlock()
	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("errors must not be memoized: %v", err)
	}
}

func TestGet_MemoExpires(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	r := New(src, nil, time.Minute, "t:", nil, zap.NewNop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }

	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2 after expiry", src.callCount())
	}
}

func TestInvalidate(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	kv := newMockKVStore()
	r := New(src, kv, time.Minute, "t:", nil, zap.NewNop())

	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	r.Invalidate(context.Background(), "p1")

	if len(kv.dels) != 1 || kv.dels[0] != "t:displays:p1" {
		t.Errorf("dels = %v", kv.dels)
	}
	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2 after invalidate", src.callCount())
	}
}

func TestInvalidate_DuringLoadDiscardsResult(t *testing.T) {
	src := newGatedSource(bodyDisplays("OLD"))
	kv := newMockKVStore()
	r := New(src, kv, time.Minute, "t:", nil, zap.NewNop())

	done := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "p1")
		done <- err
	}()

	<-src.started
	src.setList(bodyDisplays("NEW"))
	r.Invalidate(context.Background(), "p1")
	close(src.release)
	if err := <-done; err != nil {
		t.Fatalf("in-flight Get: %v", err)
	}

	if _, ok := kv.data["t:displays:p1"]; ok {
		t.Error("load that raced Invalidate was written to the shared cache")
	}

	set, err := r.Get(context.Background(), "p1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	d, ok := set.Lookup("logs-1")
	if !ok || d.Template.Body != "NEW" {
		t.Errorf("Lookup = %+v, %v; want NEW body", d, ok)
	}
	if src.callCount() != 2 {
		t.Errorf("source calls = %d, want 2", src.callCount())
	}
}

func TestGet_SharedLoadSurvivesCallerCancel(t *testing.T) {
	src := newGatedSource(logsDisplays())
	r := New(src, nil, time.Minute, "t:", nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	first := make(chan error, 1)
	go func() {
		_, err := r.Get(ctx, "p1")
		first <- err
	}()
	<-src.started

	second := make(chan error, 1)
	go func() {
		_, err := r.Get(context.Background(), "p1")
		second <- err
	}()

	cancel()
	if err := <-first; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller: err = %v, want context.Canceled", err)
	}
	close(src.release)
	if err := <-second; err != nil {
		t.Fatalf("waiting caller: %v", err)
	}
	src.mu.Lock()
	defer src.mu.Unlock()
	if src.ctxErr != nil {
		t.Errorf("shared load saw cancelled context: %v", src.ctxErr)
	}
}

func TestGet_ConcurrentCallersShareLoad(t *testing.T) {
	src := &mockSource{list: logsDisplays()}
	r := New(src, nil, time.Minute, "t:", nil, zap.NewNop())

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Get(context.Background(), "p1"); err != nil {
				t.Errorf("Get: %v", err)
			}
		}()
	}
	wg.Wait()

	loads := src.callCount()
	if loads < 1 {
		t.Fatal("source never called")
	}
	if _, err := r.Get(context.Background(), "p1"); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if src.callCount() != loads {
		t.Errorf("memoized Get reloaded: %d -> %d", loads, src.callCount())
	}
}
