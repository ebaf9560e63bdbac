package main

import (
	"context"
	"errors"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"poemd/internal/shell"
	"poemd/pkg/types"
)

// errGenerationFailed reports a failed generation after its output was shown.
var errGenerationFailed = errors.New("generation failed")

func newGenerateCmd(a *app) *cobra.Command {
	var (
		view         string
		responseOnly bool
	)
	cmd := &cobra.Command{
		Use:   "generate [topic...]",
		Short: "Generate one poem in the terminal",
		Example: "  poemd generate 月亮\n" +
			"  poemd generate --view rendered 秋天的雨\n" +
			"  poemd generate --response-only > poem.txt",
		RunE: func(cmd *cobra.Command, args []string) error {
			if view != types.ViewRaw && view != types.ViewRendered {
				return errors.New("--view must be raw or rendered")
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.generate(ctx, cmd, strings.Join(args, " "), view, responseOnly)
		},
	}
	cmd.Flags().StringVar(&view, "view", types.ViewRaw, "Output view: raw (streamed) or rendered")
	cmd.Flags().BoolVar(&responseOnly, "response-only", false, "Print only the final response text")
	return cmd
}

func (a *app) generate(ctx context.Context, cmd *cobra.Command, topic, view string, responseOnly bool) error {
	s, err := a.build(ctx, false)
	if err != nil {
		return err
	}
	defer s.close(context.Background())

	events, cancel := s.ctl.Subscribe(0)
	defer cancel()
	sh := shell.New(shell.Options{
		Out:          cmd.OutOrStdout(),
		Err:          cmd.ErrOrStderr(),
		View:         view,
		ResponseOnly: responseOnly,
	})
	id, _ := s.ctl.Start(ctx, topic)
	st, err := sh.Run(ctx, events, id)
	if err != nil {
		return err
	}
	if st.Err != "" {
		return errGenerationFailed
	}
	return nil
}

func newFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch",
		Short: "Download the model and load it once",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			s, err := a.build(ctx, false)
			if err != nil {
				return err
			}
			defer s.close(context.Background())

			events, cancel := s.ctl.Subscribe(0)
			defer cancel()
			done := make(chan error, 1)
			go func() { done <- s.ctl.Prefetch(ctx) }()
			return shell.New(shell.Options{Out: cmd.OutOrStdout(), Err: cmd.ErrOrStderr()}).Follow(ctx, events, done)
		},
	}
}
