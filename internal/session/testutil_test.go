package session

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"poemd/internal/artifacts"
	"poemd/internal/engine"
	"poemd/internal/hub"
	"poemd/pkg/types"
)

// fakeRuntime counts loads and hands out a single fakeHandle.
type fakeRuntime struct {
	handle  *fakeHandle
	loadErr error
	block   chan struct{}
	loads   atomic.Int32
	bundle  artifacts.Bundle
	mu      sync.Mutex
}

func (r *fakeRuntime) Load(ctx context.Context, b artifacts.Bundle) (engine.Handle, error) {
	r.loads.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	r.mu.Lock()
	r.bundle = b
	r.mu.Unlock()
	if r.loadErr != nil {
		return nil, r.loadErr
	}
	return r.handle, nil
}

// fakeHandle emits `piece` until the callback says Stop or `limit` is reached.
type fakeHandle struct {
	params   int64
	tmplErr  error
	genErr   error
	panicMsg string
	piece    string
	limit    int
	// entered is closed when Generate is first called; Generate then waits on gate.
	entered chan struct{}
	gate    chan struct{}

	mu      sync.Mutex
	once    sync.Once
	prompts []string
	last    engine.Params
	emitted int
	closed  bool
}

func (h *fakeHandle) ParameterCount() int64 { return h.params }

func (h *fakeHandle) ApplyChatTemplate(msgs []engine.Message) (string, error) {
	if h.tmplErr != nil {
		return "", h.tmplErr
	}
	return "<|user|>" + engine.PlainText(msgs) + "<|assistant|>", nil
}

func (h *fakeHandle) Generate(ctx context.Context, prompt string, p engine.Params, onToken engine.TokenFunc) (engine.Result, error) {
	h.mu.Lock()
	h.prompts = append(h.prompts, prompt)
	h.last = p
	h.mu.Unlock()
	if h.entered != nil {
		h.once.Do(func() { close(h.entered) })
	}
	if h.gate != nil {
		<-h.gate
	}
	if h.genErr != nil {
		return engine.Result{}, h.genErr
	}
	if h.panicMsg != "" {
		panic(h.panicMsg)
	}
	piece := h.piece
	if piece == "" {
		piece = "a"
	}
	limit := h.limit
	if limit <= 0 {
		limit = 10000
	}
	var sb strings.Builder
	n := 0
	for n < limit {
		sb.WriteString(piece)
		n++
		if onToken(piece) == engine.Stop {
			break
		}
	}
	h.mu.Lock()
	h.emitted = n
	h.mu.Unlock()
	return engine.Result{Text: sb.String(), Tokens: n, Duration: time.Second, TokensPerSecond: float64(n), FinishReason: "length"}, nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
	return nil
}

func (h *fakeHandle) lastPrompt() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.prompts) == 0 {
		return ""
	}
	return h.prompts[len(h.prompts)-1]
}

// fakeFetcher writes `files` into dst, reporting progress per file.
type fakeFetcher struct {
	files map[string]string
	err   error
	calls atomic.Int32
}

func (f *fakeFetcher) Snapshot(ctx context.Context, repo, revision string, patterns []string, dst string, onProgress hub.ProgressFunc) ([]string, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	var out []string
	i := 0
	for name, body := range f.files {
		p := filepath.Join(dst, name)
		if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
			return nil, err
		}
		i++
		onProgress(hub.Progress{File: name, FileIndex: i - 1, FileCount: len(f.files), Fraction: float64(i) / float64(len(f.files))})
		out = append(out, p)
	}
	return out, nil
}

var errNetwork = errors.New("network is unreachable")

func testModel(dir string) types.ModelConfiguration {
	return types.ModelConfiguration{ID: "poet-0.5b", Name: "Poet", LocalDir: dir, HubRepo: "org/poet", Patterns: []string{"*.gguf", "*.json"}}
}

func writeWeights(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "poet-q4_k_m.gguf"), []byte("GGUF"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
}

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// newTestController builds a controller over a temp dir with weights present.
func newTestController(t *testing.T, h *fakeHandle, mutate func(*Config)) (*Controller, *fakeRuntime, *MemoryPublisher) {
	t.Helper()
	dir := t.TempDir()
	writeWeights(t, dir)
	rt := &fakeRuntime{handle: h}
	pub := NewMemoryPublisher()
	cfg := Config{
		Model:     testModel(dir),
		Runtime:   rt,
		Publisher: pub,
		Now:       func() time.Time { return fixedNow },
	}
	if mutate != nil {
		mutate(&cfg)
	}
	c, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, rt, pub
}

// waitDone blocks until a done event arrives on ch.
func waitDone(t *testing.T, ch <-chan Event) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed before done")
			}
			if e.Name == EventDone {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for done event")
		}
	}
}

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

var (
	errBoom       = errors.New("boom")
	errNoTemplate = fmt.Errorf("apply template: %w", engine.ErrNoChatTemplate)
)
