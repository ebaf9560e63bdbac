package session

import (
	"reflect"
	"regexp"
	"strings"
	"testing"
	"time"
)

func outputTokens(t *testing.T, events []Event) (partials []int, final int, finalText string) {
	t.Helper()
	for _, e := range events {
		if e.Name != EventOutput || e.Fields == nil {
			continue
		}
		n, _ := e.Fields["tokens"].(int)
		if f, _ := e.Fields["final"].(bool); f {
			final = n
			finalText = e.State.Output
			continue
		}
		partials = append(partials, n)
	}
	return partials, final, finalText
}

func TestGenerate_DroppedWhileRunningLeavesStateUnchanged(t *testing.T) {
	h := &fakeHandle{entered: make(chan struct{}), gate: make(chan struct{}), limit: 3}
	c, _, pub := newTestController(t, h, nil)
	ch, cancel := c.Subscribe(1024)
	defer cancel()

	id, started := c.Start(testCtx(t), "月")
	if !started || id == "" {
		t.Fatalf("expected first generation to start")
	}
	select {
	case <-h.entered:
	case <-time.After(2 * time.Second):
		t.Fatalf("generation did not reach the runtime")
	}

	before := c.Snapshot()
	if _, ok := c.Generate(testCtx(t), "星"); ok {
		t.Fatalf("second generation must be dropped")
	}
	if _, ok := c.Start(testCtx(t), "星"); ok {
		t.Fatalf("second Start must be dropped")
	}
	after := c.Snapshot()
	if !reflect.DeepEqual(before, after) {
		t.Fatalf("state changed by dropped call:\nbefore=%+v\nafter=%+v", before, after)
	}
	dropped := pub.Named(EventDropped)
	if len(dropped) != 2 || dropped[0].GenerationID != id {
		t.Fatalf("dropped events=%+v", dropped)
	}

	close(h.gate)
	waitDone(t, ch)
	if c.Running() {
		t.Fatalf("running should be false after done")
	}
	if got := len(h.prompts); got != 1 {
		t.Fatalf("runtime generate calls=%d want 1", got)
	}
	if !strings.Contains(h.lastPrompt(), "月") {
		t.Fatalf("prompt=%q", h.lastPrompt())
	}
}

func TestGenerate_StopsAtMaxTokens(t *testing.T) {
	h := &fakeHandle{}
	c, _, _ := newTestController(t, h, nil)

	if _, ok := c.Generate(testCtx(t), "月"); !ok {
		t.Fatalf("expected generation")
	}
	if h.emitted != DefaultMaxTokens {
		t.Fatalf("emitted=%d want %d", h.emitted, DefaultMaxTokens)
	}
	if got := len(c.Response()); got != DefaultMaxTokens {
		t.Fatalf("output length=%d want %d", got, DefaultMaxTokens)
	}
	if h.last.Temperature != 0 || h.last.MaxTokens != DefaultMaxTokens {
		t.Fatalf("params=%+v", h.last)
	}
	if h.last.Seed != int(fixedNow.UnixNano()) {
		t.Fatalf("seed=%d want wall-clock seed", h.last.Seed)
	}
}

func TestGenerate_PublishesAtCadenceWithFinalCorrection(t *testing.T) {
	h := &fakeHandle{}
	c, _, pub := newTestController(t, h, func(cfg *Config) { cfg.MaxTokens = 241 })

	c.Generate(testCtx(t), "月")
	partials, final, finalText := outputTokens(t, pub.Events())
	if len(partials) != 60 {
		t.Fatalf("partial publications=%d want 60", len(partials))
	}
	for i, n := range partials {
		if n != 4*(i+1) {
			t.Fatalf("partial %d at token %d, want %d", i, n, 4*(i+1))
		}
	}
	if final != 241 || len(finalText) != 241 {
		t.Fatalf("final publication tokens=%d len=%d want 241", final, len(finalText))
	}
	if c.Response() != strings.Repeat("a", 241) {
		t.Fatalf("response does not reflect all tokens")
	}
}

func TestGenerate_NoCorrectionWhenAligned(t *testing.T) {
	h := &fakeHandle{}
	c, _, pub := newTestController(t, h, nil)

	c.Generate(testCtx(t), "月")
	partials, final, _ := outputTokens(t, pub.Events())
	if final != 0 {
		t.Fatalf("unexpected final correction at %d", final)
	}
	if partials[len(partials)-1] != DefaultMaxTokens {
		t.Fatalf("last partial=%d want %d", partials[len(partials)-1], DefaultMaxTokens)
	}
}

func TestGenerate_ShortOutputStillPublished(t *testing.T) {
	h := &fakeHandle{limit: 3, piece: "诗"}
	c, _, _ := newTestController(t, h, nil)
	c.Generate(testCtx(t), "月")
	if c.Response() != "诗诗诗" {
		t.Fatalf("output=%q", c.Response())
	}
}

func TestGenerate_TemplateFailureFallsBackToPlainText(t *testing.T) {
	h := &fakeHandle{tmplErr: errNoTemplate, limit: 4}
	c, _, _ := newTestController(t, h, nil)

	c.Generate(testCtx(t), "月亮")
	if got, want := h.lastPrompt(), "请以《月亮》为题，写一首短诗。"; got != want {
		t.Fatalf("prompt=%q want %q", got, want)
	}
	if strings.HasPrefix(c.Response(), "Failed") {
		t.Fatalf("template failure must not fail the generation: %q", c.Response())
	}
}

func TestGenerate_UsesChatTemplateWhenAvailable(t *testing.T) {
	h := &fakeHandle{limit: 4}
	c, _, _ := newTestController(t, h, nil)
	c.Generate(testCtx(t), "月亮")
	if got := h.lastPrompt(); got != "<|user|>请以《月亮》为题，写一首短诗。<|assistant|>" {
		t.Fatalf("prompt=%q", got)
	}
}

func TestGenerate_RuntimeErrorBecomesOutput(t *testing.T) {
	h := &fakeHandle{genErr: errBoom}
	c, _, _ := newTestController(t, h, nil)
	c.Generate(testCtx(t), "月")
	if got := c.Response(); got != "Failed: generate: boom" {
		t.Fatalf("output=%q", got)
	}
	if c.Running() {
		t.Fatalf("running must be reset")
	}
	if c.Snapshot().Throughput != "" {
		t.Fatalf("throughput should not be set on failure")
	}
}

func TestGenerate_RuntimeErrorRecordedUntilNextRun(t *testing.T) {
	h := &fakeHandle{genErr: errBoom, limit: 3}
	c, _, _ := newTestController(t, h, nil)
	c.Generate(testCtx(t), "月")
	st := c.Snapshot()
	if st.Err != "generate: boom" {
		t.Fatalf("err=%q", st.Err)
	}
	if got := st.Response().LastError; got != "generate: boom" {
		t.Fatalf("last_error=%q", got)
	}
	if _, loaded := st.Load.(Loaded); !loaded {
		t.Fatalf("a runtime failure must not unload the model")
	}

	h.genErr = nil
	c.Generate(testCtx(t), "月")
	if st := c.Snapshot(); st.Err != "" || strings.HasPrefix(st.Output, "Failed") {
		t.Fatalf("next generation should clear the error: %+v", st)
	}
}

func TestGenerate_RuntimePanicBecomesOutput(t *testing.T) {
	h := &fakeHandle{panicMsg: "segfault"}
	c, _, _ := newTestController(t, h, nil)
	c.Generate(testCtx(t), "月")
	if got := c.Response(); !strings.HasPrefix(got, "Failed: ") || !strings.Contains(got, "segfault") {
		t.Fatalf("output=%q", got)
	}
	if c.Running() {
		t.Fatalf("running must be reset")
	}
	// the guard is released: a new generation can run
	h.panicMsg = ""
	h.limit = 2
	if _, ok := c.Generate(testCtx(t), "月"); !ok {
		t.Fatalf("expected a new generation to start")
	}
}

func TestGenerate_ClearsPreviousOutput(t *testing.T) {
	h := &fakeHandle{limit: 8, piece: "a"}
	c, _, pub := newTestController(t, h, nil)
	c.Generate(testCtx(t), "月")
	h.piece = "b"
	id, _ := c.Generate(testCtx(t), "月")

	var first *Event
	for _, e := range pub.Events() {
		if e.Name == EventOutput && e.GenerationID == id {
			e := e
			first = &e
			break
		}
	}
	if first == nil || first.State.Output != "" {
		t.Fatalf("expected output cleared at start of second generation, got %+v", first)
	}
	if c.Response() != "bbbbbbbb" {
		t.Fatalf("output=%q", c.Response())
	}
}

func TestGenerate_EndToEndModelPresent(t *testing.T) {
	h := &fakeHandle{params: 470 << 20, piece: "风"}
	c, rt, pub := newTestController(t, h, nil)

	id, ok := c.Generate(testCtx(t), "")
	if !ok {
		t.Fatalf("expected generation")
	}
	st := c.Snapshot()
	if st.Running {
		t.Fatalf("running should be false")
	}
	if st.Output == "" {
		t.Fatalf("output empty")
	}
	if !strings.Contains(st.Status, "Loaded") {
		t.Fatalf("status=%q", st.Status)
	}
	if !regexp.MustCompile(`^ Tokens/second: \d+\.\d{3}$`).MatchString(st.Throughput) {
		t.Fatalf("throughput=%q", st.Throughput)
	}
	if !strings.Contains(h.lastPrompt(), DefaultPrompt) {
		t.Fatalf("blank topic should use default prompt, got %q", h.lastPrompt())
	}
	if st.GenerationID != id || rt.loads.Load() != 1 {
		t.Fatalf("generation id=%q loads=%d", st.GenerationID, rt.loads.Load())
	}
	names := []string{}
	for _, e := range pub.Events() {
		if e.GenerationID == id && (e.Name == EventRunning || e.Name == EventDone) {
			names = append(names, e.Name)
		}
	}
	if strings.Join(names, ",") != "running,running,done" {
		t.Fatalf("lifecycle events=%v", names)
	}
}

func TestGenerate_EndToEndFetchFails(t *testing.T) {
	dir := t.TempDir()
	rt := &fakeRuntime{handle: &fakeHandle{}}
	c, err := New(Config{Model: testModel(dir), Runtime: rt, Fetcher: &fakeFetcher{err: errNetwork}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer c.Close()

	c.Generate(testCtx(t), "高跟鞋")
	st := c.Snapshot()
	if st.Output != "Failed: fetch org/poet: "+errNetwork.Error() {
		t.Fatalf("output=%q", st.Output)
	}
	if st.Running {
		t.Fatalf("running should be false")
	}
	if _, idle := st.Load.(Idle); !idle {
		t.Fatalf("load state should remain Idle, got %v", st.Load)
	}
	if st.Response().Load != "idle" {
		t.Fatalf("response load=%q", st.Response().Load)
	}
}

func TestPrompt(t *testing.T) {
	c, _, _ := newTestController(t, &fakeHandle{}, func(cfg *Config) { cfg.PromptTemplate = "Write about {topic}." })
	if got := c.Prompt("  rain "); got != "Write about rain." {
		t.Fatalf("prompt=%q", got)
	}
	if got := c.Prompt(" "); got != "Write about 高跟鞋." {
		t.Fatalf("prompt=%q", got)
	}
}
