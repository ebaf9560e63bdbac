package session

import (
	"poemd/internal/engine"
	"poemd/pkg/types"
)

// LoadState is either Idle or Loaded.
type LoadState interface {
	loadState()
	String() string
}

// Idle means no inference context has been constructed yet.
type Idle struct{}

// Loaded holds the initialized inference context.
type Loaded struct {
	Handle engine.Handle
}

func (Idle) loadState()   {}
func (Loaded) loadState() {}

func (Idle) String() string   { return types.LoadIdle }
func (Loaded) String() string { return types.LoadLoaded }

// State is a read-only snapshot of the controller.
type State struct {
	ModelID        string
	Load           LoadState
	Running        bool
	Output         string
	Status         string
	Throughput     string
	ParameterCount int64
	GenerationID   string
	Err            string
}

// IsLoaded reports whether the snapshot was taken after a successful load.
func (s State) IsLoaded() bool {
	_, ok := s.Load.(Loaded)
	return ok
}

// Response converts the snapshot to its API representation.
func (s State) Response() types.StateResponse {
	load := types.LoadIdle
	if s.Load != nil {
		load = s.Load.String()
	}
	return types.StateResponse{
		ModelID:        s.ModelID,
		Load:           load,
		Running:        s.Running,
		Output:         s.Output,
		Status:         s.Status,
		Throughput:     s.Throughput,
		ParameterCount: s.ParameterCount,
		GenerationID:   s.GenerationID,
		LastError:      s.Err,
	}
}
