//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	llama "github.com/go-skynet/go-llama.cpp"

	"poemd/internal/artifacts"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// LlamaOptions configures model construction and prediction.
type LlamaOptions struct {
	ContextSize int
	Threads     int
	GPULayers   int
}

// llamaRuntime holds global config used to initialize a model instance
type llamaRuntime struct {
	opts LlamaOptions
}

func NewLlamaRuntime(opts LlamaOptions) Runtime {
	return &llamaRuntime{opts: opts}
}

// llamaHandle owns the loaded model
type llamaHandle struct {
	mu       sync.Mutex
	model    *llama.LLama
	threads  int
	params   int64
	template string
}

func (r *llamaRuntime) Load(ctx context.Context, b artifacts.Bundle) (Handle, error) {
	if strings.TrimSpace(b.WeightsPath) == "" {
		return nil, errors.New("model path is empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	mo := []llama.ModelOption{
		llama.SetContext(zn(r.opts.ContextSize, 2048)),
	}
	if r.opts.GPULayers > 0 {
		mo = append(mo, llama.SetGPULayers(r.opts.GPULayers))
	}
	m, err := llama.New(b.WeightsPath, mo...)
	if err != nil {
		return nil, err
	}
	return &llamaHandle{
		model:    m,
		threads:  r.opts.Threads,
		params:   b.Config.EstimateParameters(),
		template: b.TemplateName(),
	}, nil
}

func (h *llamaHandle) ParameterCount() int64 { return h.params }

func (h *llamaHandle) ApplyChatTemplate(msgs []Message) (string, error) {
	return ApplyTemplate(h.template, msgs)
}

func (h *llamaHandle) Generate(ctx context.Context, prompt string, p Params, onToken TokenFunc) (Result, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model == nil {
		return Result{}, errors.New("llama model not initialized")
	}

	count := 0
	// Bridge token streaming to onToken and respect cancellation
	h.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		count++
		return onToken(tok) == Continue
	})
	defer h.model.SetTokenCallback(nil)

	start := time.Now()
	text, err := h.model.Predict(prompt, predictOptions(p, h.threads)...)
	dur := time.Since(start)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, err
	}
	finish := "stop"
	if p.MaxTokens > 0 && count >= p.MaxTokens {
		finish = "length"
	}
	return Result{
		Text:            text,
		Tokens:          count,
		Duration:        dur,
		TokensPerSecond: Throughput(count, dur),
		FinishReason:    finish,
	}, nil
}

func (h *llamaHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.model != nil {
		h.model.Free()
		h.model = nil
	}
	return nil
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}

// predictOptions converts our params into go-llama.cpp options. Temperature is
// passed through unchanged so that 0 selects greedy decoding.
func predictOptions(p Params, threads int) []llama.PredictOption {
	po := []llama.PredictOption{
		llama.SetTokens(max(1, p.MaxTokens)),
		llama.SetThreads(max(1, threads)),
		llama.SetTemperature(p.Temperature),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetPenalty(zf(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if p.Seed != 0 {
		po = append(po, llama.SetSeed(p.Seed))
	}
	return po
}
