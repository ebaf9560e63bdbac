package httpapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"poemd/internal/session"
)

// writeLine encodes v as one NDJSON line and flushes it.
func writeLine(w http.ResponseWriter, r *http.Request, v any) bool {
	var out io.Writer = w
	if requestLogLevel(r) >= LevelDebug {
		out = io.MultiWriter(w, &lineLogger{rid: middleware.GetReqID(r.Context())})
	}
	if err := json.NewEncoder(out).Encode(v); err != nil {
		return false
	}
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
	return true
}

// streamEvents writes events as NDJSON until last reports true for a written
// event, the subscription closes, the client goes away or the server stops.
func streamEvents(w http.ResponseWriter, r *http.Request, events <-chan session.Event, last func(session.Event) bool) {
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/x-ndjson")
	}
	for {
		select {
		case <-r.Context().Done():
			return
		case <-serverBaseCtx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			if !writeLine(w, r, e.Message()) {
				return
			}
			if last != nil && last(e) {
				return
			}
		}
	}
}
