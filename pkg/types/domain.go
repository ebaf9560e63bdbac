package types

// ModelConfiguration is the static descriptor of the model a session serves.
// It is immutable for the lifetime of the process.
type ModelConfiguration struct {
	// Stable identifier for the model.
	// example: qwen2.5-0.5b-instruct
	ID string `json:"id" yaml:"id" toml:"id" example:"qwen2.5-0.5b-instruct"`
	// Human-friendly name used in status text. Defaults to ID.
	// example: Qwen2.5 0.5B Instruct
	Name string `json:"name,omitempty" yaml:"name" toml:"name" example:"Qwen2.5 0.5B Instruct"`
	// Local directory holding the weights and config files.
	// example: ~/models/llm/qwen2.5-0.5b-instruct
	LocalDir string `json:"local_dir" yaml:"local_dir" toml:"local_dir" example:"~/models/llm/qwen2.5-0.5b-instruct"`
	// Remote hub repository the artifacts are fetched from when absent locally.
	// example: Qwen/Qwen2.5-0.5B-Instruct-GGUF
	HubRepo string `json:"hub_repo,omitempty" yaml:"hub_repo" toml:"hub_repo" example:"Qwen/Qwen2.5-0.5B-Instruct-GGUF"`
	// Hub revision (branch, tag or commit).
	// example: main
	Revision string `json:"revision,omitempty" yaml:"revision" toml:"revision" example:"main"`
	// File globs selecting the artifact set on the hub.
	// example: ["*q4_k_m.gguf","*.json"]
	Patterns []string `json:"patterns,omitempty" yaml:"patterns" toml:"patterns"`
	// Explicit weights filename. When empty the first *.gguf in LocalDir is used.
	WeightsFile string `json:"weights_file,omitempty" yaml:"weights_file" toml:"weights_file"`
	// JSON configuration filename inside LocalDir. Empty disables config loading.
	// example: config.json
	ConfigFile string `json:"config_file,omitempty" yaml:"config_file" toml:"config_file" example:"config.json"`
	// Chat template name overriding the architecture found in the config file.
	// example: qwen2
	ChatTemplate string `json:"chat_template,omitempty" yaml:"chat_template" toml:"chat_template" example:"qwen2"`
	// Topic used when a request does not provide one.
	// example: 高跟鞋
	DefaultPrompt string `json:"default_prompt,omitempty" yaml:"default_prompt" toml:"default_prompt" example:"高跟鞋"`
}

// DisplayName returns Name, falling back to ID.
func (m ModelConfiguration) DisplayName() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}
