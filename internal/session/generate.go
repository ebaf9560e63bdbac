package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"poemd/internal/engine"
)

// Prompt substitutes topic into the prompt template. A blank topic selects the
// model's default prompt.
func (c *Controller) Prompt(topic string) string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		topic = c.model.DefaultPrompt
	}
	return strings.ReplaceAll(c.promptTemplate, topicPlaceholder, topic)
}

// Generate runs one generation synchronously and returns its id. When another
// generation is in flight the call is dropped and started is false. Failures
// are reported through the output text, never returned.
func (c *Controller) Generate(ctx context.Context, topic string) (id string, started bool) {
	id, ok := c.begin(topic)
	if !ok {
		return "", false
	}
	c.run(ctx, id, topic)
	return id, true
}

// Start is Generate on a new goroutine. The running guard is taken before
// Start returns, so started reports whether the generation was accepted.
func (c *Controller) Start(ctx context.Context, topic string) (id string, started bool) {
	id, ok := c.begin(topic)
	if !ok {
		return "", false
	}
	go c.run(ctx, id, topic)
	return id, true
}

// begin takes the running guard and clears the output.
func (c *Controller) begin(topic string) (string, bool) {
	if !c.running.CompareAndSwap(false, true) {
		generationsTotal.WithLabelValues("dropped").Inc()
		c.mu.RLock()
		cur := c.genID
		c.mu.RUnlock()
		c.log.Debug().Str("generation_id", cur).Msg("event=generate_dropped reason=running")
		c.publish(EventDropped, cur, map[string]any{"topic": topic})
		return "", false
	}
	id := c.newID()
	c.mu.Lock()
	c.genID = id
	c.err = ""
	c.mu.Unlock()
	c.publish(EventRunning, id, map[string]any{"running": true})
	c.mu.Lock()
	c.output = ""
	c.mu.Unlock()
	c.publish(EventOutput, id, nil)
	return id, true
}

func (c *Controller) run(ctx context.Context, id, topic string) {
	start := c.now()
	ctx, span := c.tracer.Start(ctx, "session.generate", trace.WithAttributes(
		attribute.String("generation.id", id),
		attribute.String("model.id", c.model.ID),
	))
	log := c.log.With().Str("generation_id", id).Logger()
	defer func() {
		c.running.Store(false)
		c.publish(EventRunning, id, map[string]any{"running": false})
		c.publish(EventDone, id, nil)
		span.End()
	}()

	log.Info().Str("topic", topic).Msg("event=generate_start")
	res, err := c.generate(ctx, id, topic, log)
	if err != nil {
		generationsTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		log.Error().Err(err).Msg("event=generate_failed")
		c.mu.Lock()
		c.err = err.Error()
		c.mu.Unlock()
		c.setOutput(id, "Failed: "+err.Error(), nil)
		return
	}

	tps := res.TokensPerSecond
	if tps <= 0 {
		tps = engine.Throughput(res.Tokens, res.Duration)
	}
	c.mu.Lock()
	c.throughput = fmt.Sprintf(" Tokens/second: %.3f", tps)
	c.mu.Unlock()
	c.publish(EventThroughput, id, map[string]any{"tokens": res.Tokens, "tokens_per_second": tps})

	generationsTotal.WithLabelValues("ok").Inc()
	generationDuration.Observe(c.now().Sub(start).Seconds())
	tokensTotal.Add(float64(res.Tokens))
	tokensPerSecond.Set(tps)
	span.SetAttributes(attribute.Int("generation.tokens", res.Tokens), attribute.String("generation.finish_reason", res.FinishReason))
	log.Info().Int("tokens", res.Tokens).Float64("tps", tps).Str("finish", res.FinishReason).Msg("event=generate_done")
}

// generate loads the model if needed and streams the poem into the output.
func (c *Controller) generate(ctx context.Context, id, topic string, log zerolog.Logger) (res engine.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("runtime panic: %v", r)
		}
	}()
	h, err := c.EnsureLoaded(ctx)
	if err != nil {
		return engine.Result{}, err
	}
	msgs := []engine.Message{{Role: engine.RoleUser, Content: c.Prompt(topic)}}
	input, templated := engine.PrepareInput(h, msgs)
	if !templated {
		log.Debug().Msg("event=chat_template_fallback")
	}

	stop := engine.MaxTokens(c.maxTokens)
	var (
		text      strings.Builder
		count     int
		published string
	)
	onToken := func(piece string) engine.Decision {
		text.WriteString(piece)
		count++
		if count%c.displayEvery == 0 {
			published = text.String()
			c.setOutput(id, published, map[string]any{"tokens": count})
		}
		return stop(count)
	}
	params := engine.Params{
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
		Seed:        int(c.now().UnixNano()),
	}
	res, err = h.Generate(ctx, input, params, onToken)
	if err != nil {
		return res, fmt.Errorf("generate: %w", err)
	}
	if res.Text == "" {
		res.Text = text.String()
	}
	if res.Tokens == 0 {
		res.Tokens = count
	}
	if res.Text != published {
		c.setOutput(id, res.Text, map[string]any{"tokens": res.Tokens, "final": true})
	}
	return res, nil
}

func (c *Controller) setOutput(id, text string, fields map[string]any) {
	c.mu.Lock()
	c.output = text
	c.mu.Unlock()
	c.publish(EventOutput, id, fields)
}
