package session

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"poemd/internal/engine"
	"poemd/internal/hub"
)

// EnsureLoaded returns the inference context, constructing it on first use.
// If the weights are absent locally the configured hub repository is
// downloaded first. On failure the controller stays Idle so the next call
// retries from scratch.
func (c *Controller) EnsureLoaded(ctx context.Context) (engine.Handle, error) {
	if h, ok, err := c.loadedHandle(); ok || err != nil {
		return h, err
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if h, ok, err := c.loadedHandle(); ok || err != nil {
		return h, err
	}

	ctx, span := c.tracer.Start(ctx, "session.ensure_loaded")
	defer span.End()
	span.SetAttributes(attribute.String("model.id", c.model.ID))

	start := c.now()
	h, params, err := c.construct(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		loadsTotal.WithLabelValues("error").Inc()
		c.mu.Lock()
		c.err = err.Error()
		c.mu.Unlock()
		c.log.Error().Err(err).Msg("event=load_failed")
		return nil, err
	}
	dur := c.now().Sub(start)
	loadsTotal.WithLabelValues("ok").Inc()
	loadDuration.Observe(dur.Seconds())
	span.SetAttributes(attribute.Int64("model.parameters", params))

	c.mu.Lock()
	c.load = Loaded{Handle: h}
	c.params = params
	c.status = fmt.Sprintf("Loaded %s. Weights: %dM", c.model.ID, params/(1<<20))
	c.err = ""
	c.mu.Unlock()
	c.log.Info().Int64("parameters", params).Dur("dur", dur).Msg("event=loaded")
	c.publish(EventLoaded, "", map[string]any{"parameter_count": params})
	return h, nil
}

// loadedHandle returns the handle when Loaded, or ErrClosed once Close ran.
func (c *Controller) loadedHandle() (engine.Handle, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, false, ErrClosed
	}
	if ld, ok := c.load.(Loaded); ok {
		return ld.Handle, true, nil
	}
	return nil, false, nil
}

// construct fetches the artifacts when absent and builds the handle.
func (c *Controller) construct(ctx context.Context) (engine.Handle, int64, error) {
	if !c.store.Present() {
		if err := c.fetch(ctx); err != nil {
			return nil, 0, err
		}
	}
	b, err := c.store.Bundle()
	if err != nil {
		return nil, 0, fmt.Errorf("artifacts: %w", err)
	}
	h, err := c.runtime.Load(ctx, b)
	if err != nil {
		return nil, 0, fmt.Errorf("load %s: %w", c.model.ID, err)
	}
	params := h.ParameterCount()
	if params <= 0 {
		params = b.Config.EstimateParameters()
	}
	return h, params, nil
}

func (c *Controller) fetch(ctx context.Context) error {
	if c.fetcher == nil || c.model.HubRepo == "" {
		return modelUnavailableError{id: c.model.ID}
	}
	name := c.model.DisplayName()
	c.log.Info().Str("repo", c.model.HubRepo).Str("dir", c.store.Dir()).Msg("event=download_start")
	c.setStatus(fmt.Sprintf("Downloading %s: 0%%", name))
	lastPct := 0
	started := time.Now()
	_, err := c.fetcher.Snapshot(ctx, c.model.HubRepo, c.model.Revision, c.model.Patterns, c.store.Dir(), func(p hub.Progress) {
		c.publish(EventDownloadProgress, "", map[string]any{
			"file":      p.File,
			"completed": p.Completed,
			"total":     p.Total,
			"fraction":  p.Fraction,
		})
		pct := int(p.Fraction * 100)
		if pct > lastPct {
			lastPct = pct
			c.setStatus(fmt.Sprintf("Downloading %s: %d%%", name, pct))
		}
	})
	if err != nil {
		return fmt.Errorf("fetch %s: %w", c.model.HubRepo, err)
	}
	c.log.Info().Dur("dur", time.Since(started)).Msg("event=download_done")
	return nil
}

func (c *Controller) setStatus(s string) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	c.publish(EventStatus, "", nil)
}

// Prefetch loads the model and discards the handle. Shells call it at first
// appearance so the first generation does not wait for a download.
func (c *Controller) Prefetch(ctx context.Context) error {
	_, err := c.EnsureLoaded(ctx)
	return err
}
