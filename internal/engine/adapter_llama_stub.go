//go:build !llama

package engine

// This file provides a no-CGO stub for the llama runtime. It is compiled when
// the 'llama' build tag is NOT set, keeping default builds and CI CGO-free.
// The real adapter lives in adapter_llama.go (tagged 'llama').

import (
	"context"

	"poemd/internal/artifacts"
)

var llamaBuilt = false

// LlamaOptions configures model construction and prediction.
type LlamaOptions struct {
	ContextSize int
	Threads     int
	GPULayers   int
}

// llamaRuntime is a stub that satisfies Runtime but refuses to load models
// without the 'llama' build tag.
type llamaRuntime struct {
	opts LlamaOptions
}

func NewLlamaRuntime(opts LlamaOptions) Runtime {
	return &llamaRuntime{opts: opts}
}

func (r *llamaRuntime) Load(ctx context.Context, b artifacts.Bundle) (Handle, error) {
	// Fail fast: llama runtime not available in this build.
	return nil, ErrDependencyUnavailable("llama support not built (missing 'llama' build tag)")
}
