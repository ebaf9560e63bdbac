// Package engine is the boundary to the inference runtime. It defines the
// Runtime/Handle contract the session controller drives, the per-token
// continue/stop protocol, chat templates and the plain-text fallback.
//
// Build tags and runtimes:
//
//   - In-process llama (standard):
//     Uses the go-llama.cpp adapter. Enabled with `-tags=llama`.
//     Files: adapter_llama.go, llama_cgo.go (linker rpath hints).
//     A no-CGO stub exists when the tag is not set: adapter_llama_stub.go.
package engine
