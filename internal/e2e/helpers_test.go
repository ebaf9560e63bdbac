package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"poemd/internal/artifacts"
	"poemd/internal/engine"
	"poemd/internal/httpapi"
	"poemd/internal/hub"
	"poemd/internal/session"
	"poemd/pkg/types"
)

const weightsName = "poet-q4_k_m.gguf"

// poetRuntime loads poetHandles; pieces is the token stream of every generation.
type poetRuntime struct {
	mu     sync.Mutex
	loads  int
	pieces []string
	gate   chan struct{}
}

func (r *poetRuntime) Load(ctx context.Context, b artifacts.Bundle) (engine.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loads++
	return &poetHandle{tmpl: b.TemplateName(), pieces: r.pieces, gate: r.gate}, nil
}

func (r *poetRuntime) loadCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loads
}

type poetHandle struct {
	tmpl   string
	pieces []string
	gate   chan struct{}
}

func (h *poetHandle) ParameterCount() int64 { return 0 }

func (h *poetHandle) ApplyChatTemplate(msgs []engine.Message) (string, error) {
	return engine.ApplyTemplate(h.tmpl, msgs)
}

func (h *poetHandle) Generate(ctx context.Context, prompt string, p engine.Params, onToken engine.TokenFunc) (engine.Result, error) {
	if h.gate != nil {
		<-h.gate
	}
	start := time.Now()
	var sb strings.Builder
	n := 0
	for _, piece := range h.pieces {
		if n >= p.MaxTokens {
			break
		}
		sb.WriteString(piece)
		n++
		if onToken(piece) == engine.Stop {
			break
		}
	}
	d := time.Since(start) + time.Millisecond
	return engine.Result{Text: sb.String(), Tokens: n, Duration: d, TokensPerSecond: engine.Throughput(n, d), FinishReason: "stop"}, nil
}

func (h *poetHandle) Close() error { return nil }

// fakeHub serves one repository in the hub file API layout.
func fakeHub(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/models/org/poet/revision/main", func(w http.ResponseWriter, r *http.Request) {
		type sibling struct {
			RFilename string `json:"rfilename"`
		}
		var out struct {
			Siblings []sibling `json:"siblings"`
		}
		for name := range files {
			out.Siblings = append(out.Siblings, sibling{RFilename: name})
		}
		_ = json.NewEncoder(w).Encode(out)
	})
	mux.HandleFunc("/org/poet/resolve/main/", func(w http.ResponseWriter, r *http.Request) {
		body, ok := files[strings.TrimPrefix(r.URL.Path, "/org/poet/resolve/main/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, body)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func poetModel(dir string) types.ModelConfiguration {
	return types.ModelConfiguration{
		ID:            "poet-0.5b",
		Name:          "Poet",
		LocalDir:      dir,
		HubRepo:       "org/poet",
		Revision:      "main",
		Patterns:      []string{"*q4_k_m.gguf", "config.json"},
		ConfigFile:    "config.json",
		DefaultPrompt: "高跟鞋",
	}
}

func writeModel(t *testing.T, dir string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, weightsName), []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write weights: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"model_type":"qwen2","num_parameters":494032768}`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

// newServer wires a controller with rt and a hub client for hubURL into the HTTP API.
func newServer(t *testing.T, model types.ModelConfiguration, rt engine.Runtime, hubURL string) (*httptest.Server, *session.Controller) {
	t.Helper()
	hc := hub.New(hub.Options{Endpoint: hubURL, ListingTTL: time.Minute})
	t.Cleanup(hc.Close)
	ctl, err := session.New(session.Config{Model: model, Runtime: rt, Fetcher: hc})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	t.Cleanup(func() { _ = ctl.Close() })
	srv := httptest.NewServer(httpapi.NewMux(ctl))
	t.Cleanup(srv.Close)
	return srv, ctl
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func getState(t *testing.T, base string) types.StateResponse {
	t.Helper()
	resp, err := http.Get(base + "/state")
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	defer resp.Body.Close()
	var st types.StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	return st
}

// readStream decodes NDJSON events until EOF.
func readStream(t *testing.T, r io.Reader) []types.EventMessage {
	t.Helper()
	var out []types.EventMessage
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var m types.EventMessage
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("decode line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func names(msgs []types.EventMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Event)
	}
	return out
}
