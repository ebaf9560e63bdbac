package session

import (
	"poemd/pkg/types"
)

// Snapshot returns a read-only view of the controller state.
func (c *Controller) Snapshot() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return State{
		ModelID:        c.model.ID,
		Load:           c.load,
		Running:        c.running.Load(),
		Output:         c.output,
		Status:         c.status,
		Throughput:     c.throughput,
		ParameterCount: c.params,
		GenerationID:   c.genID,
		Err:            c.err,
	}
}

// Status builds the API state response.
func (c *Controller) Status() types.StateResponse {
	return c.Snapshot().Response()
}
