package types

// GenerateRequest is the payload of POST /generate.
type GenerateRequest struct {
	// Poem topic. When empty the model's default prompt is used.
	// example: 高跟鞋
	Topic string `json:"topic" example:"高跟鞋"`
}

// GenerateResponse reports whether a generation was started.
type GenerateResponse struct {
	// False when another generation was already running; the request was dropped.
	// example: true
	Started bool `json:"started" example:"true"`
	// Identifier of the generation that was started.
	// example: 3f1c8a52-0b5e-4e55-9a43-6f0f4b1d2a11
	GenerationID string `json:"generation_id,omitempty" example:"3f1c8a52-0b5e-4e55-9a43-6f0f4b1d2a11"`
}

// StateResponse is returned by GET /state and POST /load.
type StateResponse struct {
	// Model identifier.
	// example: qwen2.5-0.5b-instruct
	ModelID string `json:"model_id" example:"qwen2.5-0.5b-instruct"`
	// Load state: idle or loaded.
	// example: loaded
	Load string `json:"load" example:"loaded"`
	// True while a generation is in flight.
	// example: false
	Running bool `json:"running" example:"false"`
	// Accumulated output of the current or last generation.
	Output string `json:"output"`
	// Human-readable status line.
	// example: Loaded qwen2.5-0.5b-instruct. Weights: 470M
	Status string `json:"status" example:"Loaded qwen2.5-0.5b-instruct. Weights: 470M"`
	// Throughput line of the last generation.
	// example:  Tokens/second: 41.227
	Throughput string `json:"throughput" example:" Tokens/second: 41.227"`
	// Parameter count recorded at load time.
	// example: 494032768
	ParameterCount int64 `json:"parameter_count" example:"494032768"`
	// Identifier of the current or last generation.
	GenerationID string `json:"generation_id,omitempty"`
	// Last load error, if any.
	LastError string `json:"last_error,omitempty"`
}

// EventMessage is one NDJSON line of GET /events and of streamed generations.
type EventMessage struct {
	// Event name (status, download_progress, loaded, output, throughput, running, done, dropped).
	// example: output
	Event string `json:"event" example:"output"`
	// Generation the event belongs to, empty for load events.
	GenerationID string `json:"generation_id,omitempty"`
	// State snapshot after the change.
	State StateResponse `json:"state"`
	// Optional event-specific fields.
	Fields map[string]any `json:"fields,omitempty"`
}

// OutputResponse is returned by GET /output.
type OutputResponse struct {
	// View used to render Text: raw or rendered.
	// example: raw
	View string `json:"view" example:"raw"`
	// Output text.
	Text string `json:"text"`
}

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}
