package main

import (
	"context"
	"fmt"

	"poemd/internal/config"
	"poemd/internal/engine"
	"poemd/internal/hub"
	"poemd/internal/natspub"
	"poemd/internal/session"
	"poemd/internal/telemetry"
)

// stack is the wired session with the resources it owns.
type stack struct {
	ctl      *session.Controller
	hub      *hub.Client
	nats     *natspub.Publisher
	shutdown telemetry.Shutdown
}

// build wires telemetry, the hub client, the runtime, the optional NATS
// observer and the session controller from the resolved config.
func (a *app) build(ctx context.Context, withNATS bool) (*stack, error) {
	cfg := a.cfg
	_, shutdown, err := telemetry.Setup(ctx, telemetry.Options{
		Exporter: cfg.Telemetry.Exporter,
		Endpoint: cfg.Telemetry.Endpoint,
		Insecure: cfg.Telemetry.Insecure,
		Version:  version,
	}, a.log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	s := &stack{shutdown: shutdown}

	s.hub = hub.New(hub.Options{
		Endpoint:   cfg.Hub.Endpoint,
		Token:      cfg.Hub.Token,
		ListingTTL: cfg.Hub.TTL(),
		Logger:     a.log,
	})

	var pubs session.MultiPublisher
	if withNATS && cfg.NATS.URL != "" {
		s.nats, err = natspub.Connect(a.natsOptions())
		if err != nil {
			s.close(ctx)
			return nil, err
		}
		pubs = append(pubs, s.nats)
	}

	s.ctl, err = session.New(session.Config{
		Model:          cfg.Model,
		Runtime:        a.runtime(cfg.Llama),
		Fetcher:        s.hub,
		MaxTokens:      cfg.Session.MaxTokens,
		DisplayEvery:   cfg.Session.DisplayEvery,
		Temperature:    cfg.Session.Temperature,
		PromptTemplate: cfg.Session.PromptTemplate,
		Publisher:      pubs,
		Logger:         a.log,
	})
	if err != nil {
		s.close(ctx)
		return nil, err
	}
	return s, nil
}

func (a *app) natsOptions() natspub.Options {
	nc := a.cfg.NATS
	return natspub.Options{
		URL:      nc.URL,
		Subject:  nc.Subject,
		Name:     "poemd",
		Username: nc.Username,
		Password: nc.Password,
		Token:    nc.Token,
		Logger:   a.log,
	}
}

func (a *app) runtime(lc config.LlamaConfig) engine.Runtime {
	if a.newRuntime != nil {
		return a.newRuntime(lc)
	}
	return engine.NewLlamaRuntime(engine.LlamaOptions{
		ContextSize: lc.ContextSize,
		Threads:     lc.Threads,
		GPULayers:   lc.GPULayers,
	})
}

func (s *stack) close(ctx context.Context) {
	if s.ctl != nil {
		_ = s.ctl.Close()
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if s.hub != nil {
		s.hub.Close()
	}
	if s.shutdown != nil {
		_ = s.shutdown(ctx)
	}
}
