package main

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"poemd/internal/config"
	"poemd/internal/engine"
)

// app carries the resolved configuration and logger to subcommands.
type app struct {
	configPath string
	cfg        config.Config
	log        zerolog.Logger
	// newRuntime builds the inference runtime; nil selects llama.
	newRuntime func(config.LlamaConfig) engine.Runtime
}

func newRootCmd() *cobra.Command {
	a := &app{}
	var (
		logLevel    string
		logFormat   string
		modelDir    string
		hubEndpoint string
	)
	root := &cobra.Command{
		Use:           "poemd",
		Short:         "Generate short poems with a local language model",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Resolve(a.configPath)
			if err != nil {
				return err
			}
			// Flags override file and environment.
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}
			if logFormat != "" {
				cfg.LogFormat = logFormat
			}
			if modelDir != "" {
				cfg.Model.LocalDir = modelDir
			}
			if hubEndpoint != "" {
				cfg.Hub.Endpoint = hubEndpoint
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			a.cfg = cfg
			a.log = newLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat)
			return nil
		},
	}
	pf := root.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", os.Getenv("POEMD_CONFIG"), "Config file (.yaml, .json or .toml)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug|info|warn|error (defaults POEMD_LOG_LEVEL or info)")
	pf.StringVar(&logFormat, "log-format", "", "Log format: console|json")
	pf.StringVar(&modelDir, "model-dir", "", "Local model directory (defaults POEMD_MODEL_DIR)")
	pf.StringVar(&hubEndpoint, "hub-endpoint", "", "Model hub endpoint (defaults POEMD_HUB_ENDPOINT)")

	root.AddCommand(newServeCmd(a), newGenerateCmd(a), newFetchCmd(a), newVersionCmd())
	return root
}

// newLogger builds the process logger. Unknown levels fall back to info.
func newLogger(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	var out io.Writer = w
	if format != "json" {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(out).Level(lvl).With().Timestamp().Logger()
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Println(versionLine())
		},
	}
}

func versionLine() string {
	rt := "llama: not built"
	if engine.LlamaBuilt() {
		rt = "llama: built"
	}
	return "poemd " + version + " (" + rt + ")"
}
