package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"poemd/pkg/types"
)

// Config holds runtime parameters for the service and the CLI.
// Zero values mean "unspecified" and are replaced by WithDefaults.
type Config struct {
	Addr      string                   `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string                   `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string                   `json:"log_format" yaml:"log_format" toml:"log_format"`
	HTTP      HTTPConfig               `json:"http" yaml:"http" toml:"http"`
	Model     types.ModelConfiguration `json:"model" yaml:"model" toml:"model"`
	Hub       HubConfig                `json:"hub" yaml:"hub" toml:"hub"`
	Session   SessionConfig            `json:"session" yaml:"session" toml:"session"`
	Llama     LlamaConfig              `json:"llama" yaml:"llama" toml:"llama"`
	NATS      NATSConfig               `json:"nats" yaml:"nats" toml:"nats"`
	Telemetry TelemetryConfig          `json:"telemetry" yaml:"telemetry" toml:"telemetry"`
}

// HTTPConfig tunes the HTTP API.
type HTTPConfig struct {
	// Per-request log level: off|error|info|debug.
	RequestLog     string   `json:"request_log" yaml:"request_log" toml:"request_log"`
	MaxBodyBytes   int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	EventBuffer    int      `json:"event_buffer" yaml:"event_buffer" toml:"event_buffer"`
	CORSEnabled    bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins    []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	CORSMethods    []string `json:"cors_methods" yaml:"cors_methods" toml:"cors_methods"`
	CORSHeaders    []string `json:"cors_headers" yaml:"cors_headers" toml:"cors_headers"`
	DisableSwagger bool     `json:"disable_swagger" yaml:"disable_swagger" toml:"disable_swagger"`
	// NoPrefetch skips loading the model in the background at server start.
	NoPrefetch bool `json:"no_prefetch" yaml:"no_prefetch" toml:"no_prefetch"`
}

// HubConfig configures the model hub client.
type HubConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Token    string `json:"token" yaml:"token" toml:"token"`
	// ListingTTL is a Go duration string, e.g. "10m".
	ListingTTL string `json:"listing_ttl" yaml:"listing_ttl" toml:"listing_ttl"`
}

// TTL returns the parsed listing TTL, or zero when unset.
func (h HubConfig) TTL() time.Duration {
	d, _ := time.ParseDuration(h.ListingTTL)
	return d
}

// SessionConfig holds the generation parameters.
type SessionConfig struct {
	MaxTokens      int     `json:"max_tokens" yaml:"max_tokens" toml:"max_tokens"`
	DisplayEvery   int     `json:"display_every" yaml:"display_every" toml:"display_every"`
	Temperature    float32 `json:"temperature" yaml:"temperature" toml:"temperature"`
	PromptTemplate string  `json:"prompt_template" yaml:"prompt_template" toml:"prompt_template"`
}

// LlamaConfig configures the in-process runtime.
type LlamaConfig struct {
	ContextSize int `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers   int `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
}

// NATSConfig enables the NATS event observer when URL is set.
type NATSConfig struct {
	URL     string `json:"url" yaml:"url" toml:"url"`
	Subject string `json:"subject" yaml:"subject" toml:"subject"`
	// ServeRequests answers generate requests on <subject>.generate.
	ServeRequests bool   `json:"serve_requests" yaml:"serve_requests" toml:"serve_requests"`
	Username      string `json:"username" yaml:"username" toml:"username"`
	Password      string `json:"password" yaml:"password" toml:"password"`
	Token         string `json:"token" yaml:"token" toml:"token"`
}

// TelemetryConfig selects the trace exporter: none, stdout or otlp.
type TelemetryConfig struct {
	Exporter string `json:"exporter" yaml:"exporter" toml:"exporter"`
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Insecure bool   `json:"insecure" yaml:"insecure" toml:"insecure"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:      ":8080",
		LogLevel:  "info",
		LogFormat: "console",
		HTTP: HTTPConfig{
			MaxBodyBytes: 1 << 20,
			EventBuffer:  256,
			CORSMethods:  []string{"GET", "POST", "OPTIONS"},
			CORSHeaders:  []string{"Content-Type", "X-Log-Level"},
		},
		Model: types.ModelConfiguration{
			ID:            "qwen2.5-0.5b-instruct",
			Name:          "Qwen2.5 0.5B Instruct",
			LocalDir:      "~/models/llm/qwen2.5-0.5b-instruct",
			HubRepo:       "Qwen/Qwen2.5-0.5B-Instruct-GGUF",
			Revision:      "main",
			Patterns:      []string{"*q4_k_m.gguf"},
			ChatTemplate:  "qwen2",
			DefaultPrompt: "高跟鞋",
		},
		Hub: HubConfig{
			Endpoint:   "https://huggingface.co",
			ListingTTL: "10m",
		},
		Session: SessionConfig{
			MaxTokens:      240,
			DisplayEvery:   4,
			PromptTemplate: "请以《{topic}》为题，写一首短诗。",
		},
		Llama: LlamaConfig{
			ContextSize: 2048,
		},
		NATS:      NATSConfig{Subject: "poemd"},
		Telemetry: TelemetryConfig{Exporter: "none"},
	}
}

// WithDefaults fills unspecified fields from Default. Temperature is kept
// as given since zero is the intended greedy setting.
func (c Config) WithDefaults() Config {
	d := Default()
	str := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	num := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	str(&c.Addr, d.Addr)
	str(&c.LogLevel, d.LogLevel)
	str(&c.LogFormat, d.LogFormat)
	if c.HTTP.MaxBodyBytes <= 0 {
		c.HTTP.MaxBodyBytes = d.HTTP.MaxBodyBytes
	}
	num(&c.HTTP.EventBuffer, d.HTTP.EventBuffer)
	if len(c.HTTP.CORSMethods) == 0 {
		c.HTTP.CORSMethods = d.HTTP.CORSMethods
	}
	if len(c.HTTP.CORSHeaders) == 0 {
		c.HTTP.CORSHeaders = d.HTTP.CORSHeaders
	}

	// A configured model ID replaces the whole default descriptor.
	if strings.TrimSpace(c.Model.ID) == "" {
		c.Model = d.Model
	}
	str(&c.Model.Revision, d.Model.Revision)
	str(&c.Model.DefaultPrompt, d.Model.DefaultPrompt)

	str(&c.Hub.Endpoint, d.Hub.Endpoint)
	str(&c.Hub.ListingTTL, d.Hub.ListingTTL)
	num(&c.Session.MaxTokens, d.Session.MaxTokens)
	num(&c.Session.DisplayEvery, d.Session.DisplayEvery)
	str(&c.Session.PromptTemplate, d.Session.PromptTemplate)
	num(&c.Llama.ContextSize, d.Llama.ContextSize)
	str(&c.NATS.Subject, d.NATS.Subject)
	str(&c.Telemetry.Exporter, d.Telemetry.Exporter)
	return c
}

// ApplyEnv overrides fields from POEMD_* environment variables (and HF_TOKEN).
func (c Config) ApplyEnv() Config {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}
	set(&c.Addr, "POEMD_ADDR")
	set(&c.Model.LocalDir, "POEMD_MODEL_DIR")
	set(&c.Hub.Endpoint, "POEMD_HUB_ENDPOINT")
	set(&c.Hub.Token, "POEMD_HUB_TOKEN", "HF_TOKEN")
	set(&c.LogLevel, "POEMD_LOG_LEVEL")
	set(&c.NATS.URL, "POEMD_NATS_URL")
	set(&c.NATS.Token, "POEMD_NATS_TOKEN")
	return c
}

// Validate reports configuration errors that would only surface at load time.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Model.ID) == "" {
		errs = append(errs, errors.New("model.id is required"))
	}
	if strings.TrimSpace(c.Model.LocalDir) == "" {
		errs = append(errs, errors.New("model.local_dir is required"))
	}
	if c.Session.Temperature < 0 {
		errs = append(errs, fmt.Errorf("session.temperature must be >= 0, got %v", c.Session.Temperature))
	}
	if !strings.Contains(c.Session.PromptTemplate, "{topic}") {
		errs = append(errs, errors.New("session.prompt_template must contain {topic}"))
	}
	if c.Hub.ListingTTL != "" {
		if _, err := time.ParseDuration(c.Hub.ListingTTL); err != nil {
			errs = append(errs, fmt.Errorf("hub.listing_ttl: %w", err))
		}
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be console or json, got %q", c.LogFormat))
	}
	switch c.Telemetry.Exporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("telemetry.exporter must be none, stdout or otlp, got %q", c.Telemetry.Exporter))
	}
	return errors.Join(errs...)
}
