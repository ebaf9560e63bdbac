package engine

import (
	"context"
	"time"

	"poemd/internal/artifacts"
)

// Runtime constructs inference handles from local model artifacts.
// Concrete implementations (e.g., llama.cpp) should satisfy this interface.
type Runtime interface {
	// Load builds an initialized inference context from the bundle.
	Load(ctx context.Context, b artifacts.Bundle) (Handle, error)
}

// Handle is an initialized inference context: weights, tokenizer and runtime
// state. It is shared by the session and the runtime for its lifetime.
type Handle interface {
	// ParameterCount returns the number of model parameters, or 0 when unknown.
	ParameterCount() int64
	// ApplyChatTemplate renders role-tagged messages into a model prompt.
	// It fails with ErrNoChatTemplate when no template is configured.
	ApplyChatTemplate(msgs []Message) (string, error)
	// Generate produces tokens for prompt, invoking onToken synchronously for
	// every token until onToken returns Stop, the MaxTokens bound is reached or
	// the model emits end-of-sequence.
	Generate(ctx context.Context, prompt string, p Params, onToken TokenFunc) (Result, error)
	// Close releases the resources held by the handle.
	Close() error
}

// Role tags a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry of a chat-style conversation.
type Message struct {
	Role    Role
	Content string
}

// Params captures generation parameters passed to the runtime.
type Params struct {
	// Temperature is passed verbatim; 0 selects greedy decoding.
	Temperature   float32
	TopP          float32
	TopK          int
	MaxTokens     int
	Seed          int
	RepeatPenalty float32
}

// Result summarizes a generation after streaming.
type Result struct {
	// Text is the decoded output; it is authoritative over streamed pieces.
	Text            string
	Tokens          int
	Duration        time.Duration
	TokensPerSecond float64
	FinishReason    string
}

// Decision is the per-token answer of a TokenFunc.
type Decision int

const (
	Continue Decision = iota
	Stop
)

func (d Decision) String() string {
	if d == Stop {
		return "stop"
	}
	return "continue"
}

// TokenFunc receives each decoded token piece.
type TokenFunc func(piece string) Decision

// StopPolicy decides from the number of tokens produced so far.
type StopPolicy func(count int) Decision

// MaxTokens stops once count reaches n.
func MaxTokens(n int) StopPolicy {
	return func(count int) Decision {
		if count >= n {
			return Stop
		}
		return Continue
	}
}

// Throughput returns tokens per second, 0 for an empty duration.
func Throughput(tokens int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(tokens) / d.Seconds()
}
