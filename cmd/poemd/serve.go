package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"poemd/internal/httpapi"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr        string
		corsOrigins string
		prefetch    bool
		natsURL     string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the session over HTTP",
		Example: "  poemd serve --addr :8080 --prefetch=false\n" +
			"  poemd serve --cors-origins http://localhost:5173 --nats-url nats://127.0.0.1:4222",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Addr = addr
			}
			if origins := splitCSV(corsOrigins); len(origins) > 0 {
				a.cfg.HTTP.CORSEnabled = true
				a.cfg.HTTP.CORSOrigins = origins
			}
			if cmd.Flags().Changed("prefetch") {
				a.cfg.HTTP.NoPrefetch = !prefetch
			}
			if natsURL != "" {
				a.cfg.NATS.URL = natsURL
			}
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address, e.g. :8080 (defaults POEMD_ADDR)")
	cmd.Flags().StringVar(&corsOrigins, "cors-origins", "", "Comma separated CORS origins; enables CORS")
	cmd.Flags().BoolVar(&prefetch, "prefetch", true, "Load the model in the background at startup")
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "Publish session events to NATS (defaults POEMD_NATS_URL)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s, err := a.build(ctx, true)
	if err != nil {
		return err
	}
	defer func() {
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.close(cctx)
	}()

	cfg := a.cfg
	httpapi.SetLogger(a.log)
	httpapi.SetBaseContext(ctx)
	httpapi.SetMaxBodyBytes(cfg.HTTP.MaxBodyBytes)
	httpapi.SetEventBuffer(cfg.HTTP.EventBuffer)
	httpapi.SetSwaggerEnabled(!cfg.HTTP.DisableSwagger)
	if cfg.HTTP.RequestLog != "" {
		httpapi.SetDefaultLogLevel(cfg.HTTP.RequestLog)
	}
	httpapi.SetCORSOptions(cfg.HTTP.CORSEnabled, cfg.HTTP.CORSOrigins, cfg.HTTP.CORSMethods, cfg.HTTP.CORSHeaders)

	if s.nats != nil && cfg.NATS.ServeRequests {
		if err := s.nats.ServeRequests(ctx, s.ctl); err != nil {
			return err
		}
	}
	if !cfg.HTTP.NoPrefetch {
		go func() {
			if err := s.ctl.Prefetch(ctx); err != nil && ctx.Err() == nil {
				a.log.Warn().Err(err).Msg("prefetch failed")
			}
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.NewMux(s.ctl),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		a.log.Info().Str("addr", cfg.Addr).Str("model", cfg.Model.ID).Str("dir", s.ctl.Model().LocalDir).Msg("poemd listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	a.log.Info().Msg("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		a.log.Warn().Err(err).Msg("graceful shutdown error")
	}
	return nil
}
