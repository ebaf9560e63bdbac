package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"poemd/internal/artifacts"
	"poemd/internal/engine"
	"poemd/internal/hub"
	"poemd/pkg/types"
)

// Defaults applied when corresponding Config fields are unset.
const (
	DefaultMaxTokens      = 240
	DefaultDisplayEvery   = 4
	DefaultPromptTemplate = "请以《{topic}》为题，写一首短诗。"
	DefaultPrompt         = "高跟鞋"
	topicPlaceholder      = "{topic}"
)

// Fetcher downloads the artifact set of a hub repository into a directory.
// *hub.Client satisfies it.
type Fetcher interface {
	Snapshot(ctx context.Context, repo, revision string, patterns []string, dst string, onProgress hub.ProgressFunc) ([]string, error)
}

// Config encapsulates the tunables of a Controller.
type Config struct {
	Model   types.ModelConfiguration
	Runtime engine.Runtime
	// Fetcher is optional; without it absent artifacts fail the load.
	Fetcher Fetcher
	// MaxTokens bounds one generation (default 240).
	MaxTokens int
	// DisplayEvery is the token cadence of partial output publications (default 4).
	DisplayEvery int
	// Temperature is passed verbatim; the zero value selects greedy sampling.
	Temperature    float32
	PromptTemplate string
	Publisher      EventPublisher
	Logger         zerolog.Logger
	Tracer         trace.Tracer
	// Now and NewID are test hooks.
	Now   func() time.Time
	NewID func() string
}

// Controller owns the load state of one model and the generation lifecycle.
type Controller struct {
	model          types.ModelConfiguration
	store          *artifacts.Store
	runtime        engine.Runtime
	fetcher        Fetcher
	maxTokens      int
	displayEvery   int
	temperature    float32
	promptTemplate string
	pub            EventPublisher
	subs           *broadcaster
	log            zerolog.Logger
	tracer         trace.Tracer
	now            func() time.Time
	newID          func() string

	// loadMu serializes loaders so the construction work runs at most once.
	loadMu  sync.Mutex
	running atomic.Bool

	mu         sync.RWMutex
	load       LoadState
	output     string
	status     string
	throughput string
	params     int64
	genID      string
	err        string
	closed     bool
}

// New constructs a Controller from Config, applying defaults.
func New(cfg Config) (*Controller, error) {
	if cfg.Runtime == nil {
		return nil, fmt.Errorf("session: runtime is required")
	}
	store, err := artifacts.Open(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	c := &Controller{
		model:          cfg.Model,
		store:          store,
		runtime:        cfg.Runtime,
		fetcher:        cfg.Fetcher,
		maxTokens:      cfg.MaxTokens,
		displayEvery:   cfg.DisplayEvery,
		temperature:    cfg.Temperature,
		promptTemplate: cfg.PromptTemplate,
		pub:            cfg.Publisher,
		subs:           newBroadcaster(),
		log:            cfg.Logger.With().Str("component", "session").Str("model", cfg.Model.ID).Logger(),
		tracer:         cfg.Tracer,
		now:            cfg.Now,
		newID:          cfg.NewID,
		load:           Idle{},
	}
	if c.maxTokens <= 0 {
		c.maxTokens = DefaultMaxTokens
	}
	if c.displayEvery <= 0 {
		c.displayEvery = DefaultDisplayEvery
	}
	if strings.TrimSpace(c.promptTemplate) == "" {
		c.promptTemplate = DefaultPromptTemplate
	}
	if c.model.DefaultPrompt == "" {
		c.model.DefaultPrompt = DefaultPrompt
	}
	if c.pub == nil {
		c.pub = noopPublisher{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer("poemd/internal/session")
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.newID == nil {
		c.newID = func() string { return uuid.NewString() }
	}
	return c, nil
}

// Model returns the static model descriptor.
func (c *Controller) Model() types.ModelConfiguration { return c.model }

// Ready reports whether the model is loaded.
func (c *Controller) Ready() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.load.(Loaded)
	return ok
}

// Running reports whether a generation is in flight.
func (c *Controller) Running() bool { return c.running.Load() }

// Response returns the output text only, without the prompt.
func (c *Controller) Response() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.output
}

// Subscribe registers an in-process observer. Events are delivered on a
// channel with buf slots (default 64); a slow observer loses the oldest
// queued events. The returned func unsubscribes and closes the channel.
func (c *Controller) Subscribe(buf int) (<-chan Event, func()) {
	return c.subs.subscribe(buf)
}

// Close releases the inference context and closes all subscriptions.
// A generation in flight is not interrupted.
func (c *Controller) Close() error {
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	ld, ok := c.load.(Loaded)
	c.mu.Unlock()
	c.subs.close()
	if ok && ld.Handle != nil {
		return ld.Handle.Close()
	}
	return nil
}

// publish snapshots the state and hands the event to all observers.
// It must not be called with c.mu held.
func (c *Controller) publish(name, genID string, fields map[string]any) {
	e := Event{Name: name, GenerationID: genID, State: c.Snapshot(), Fields: fields}
	c.pub.Publish(e)
	c.subs.Publish(e)
}
