package types

// Load states reported in StateResponse.Load.
const (
	LoadIdle   = "idle"
	LoadLoaded = "loaded"
)

// Output views accepted by GET /output.
const (
	ViewRaw      = "raw"
	ViewRendered = "rendered"
)
