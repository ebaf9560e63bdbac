package artifacts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// ModelConfig holds the fields of a Hugging Face style config.json that the
// session needs. Unknown fields are ignored.
type ModelConfig struct {
	ModelType         string   `json:"model_type"`
	Architectures     []string `json:"architectures"`
	HiddenSize        int64    `json:"hidden_size"`
	IntermediateSize  int64    `json:"intermediate_size"`
	NumHiddenLayers   int64    `json:"num_hidden_layers"`
	VocabSize         int64    `json:"vocab_size"`
	TieWordEmbeddings bool     `json:"tie_word_embeddings"`
	NumParameters     int64    `json:"num_parameters"`
}

// ReadModelConfig parses the JSON configuration file at path.
func ReadModelConfig(path string) (ModelConfig, error) {
	var cfg ModelConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read model config: %w", err)
	}
	if err := json.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("decode model config %s: %w", path, err)
	}
	return cfg, nil
}

// Architecture returns the lowercased model_type, falling back to the first
// architectures entry with a trailing "ForCausalLM" removed.
func (c ModelConfig) Architecture() string {
	if c.ModelType != "" {
		return strings.ToLower(c.ModelType)
	}
	if len(c.Architectures) > 0 {
		a := strings.TrimSuffix(c.Architectures[0], "ForCausalLM")
		return strings.ToLower(a)
	}
	return ""
}

// EstimateParameters returns num_parameters when present, otherwise a
// decoder-only transformer estimate from the dimensions. Zero when unknown.
func (c ModelConfig) EstimateParameters() int64 {
	if c.NumParameters > 0 {
		return c.NumParameters
	}
	if c.HiddenSize <= 0 || c.NumHiddenLayers <= 0 {
		return 0
	}
	h := c.HiddenSize
	inter := c.IntermediateSize
	if inter <= 0 {
		inter = 4 * h
	}
	// attention (q,k,v,o) + gated MLP (gate, up, down) per layer
	perLayer := 4*h*h + 3*h*inter
	embed := c.VocabSize * h
	if !c.TieWordEmbeddings {
		embed *= 2
	}
	return c.NumHiddenLayers*perLayer + embed
}
