package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poemd/internal/session"
	"poemd/internal/shell"
	"poemd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
// *session.Controller satisfies it.
type Service interface {
	Status() types.StateResponse
	Ready() bool
	Response() string
	Prefetch(ctx context.Context) error
	Start(ctx context.Context, topic string) (string, bool)
	Subscribe(buf int) (<-chan session.Event, func())
}

type handlers struct {
	svc Service
}

func NewMux(svc Service) http.Handler {
	h := &handlers{svc: svc}
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	// JSON and text responses only; NDJSON streams are not compressed.
	r.Use(middleware.Compress(5, "application/json", "text/plain"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
			MaxAge:         300,
		}))
	}

	r.Get("/state", h.state)
	r.Post("/load", h.load)
	r.Post("/generate", h.generate)
	r.Get("/events", h.events)
	r.Get("/output", h.output)
	r.Get("/response", h.response)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("idle"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	if swaggerEnabled {
		MountSwagger(r)
	}
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zlog.Warn().Err(err).Msg("encode response")
	}
}

// state godoc
// @Summary      Session state
// @Description  Load state, running flag, output, status and throughput text.
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.StateResponse
// @Router       /state [get]
func (h *handlers) state(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// load godoc
// @Summary      Prefetch the model
// @Description  Loads the model, downloading it from the hub when absent. Idempotent.
// @Tags         session
// @Produce      json
// @Success      200  {object}  types.StateResponse
// @Failure      404  {object}  types.ErrorResponse
// @Failure      502  {object}  types.ErrorResponse
// @Failure      503  {object}  types.ErrorResponse
// @Router       /load [post]
func (h *handlers) load(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if err := h.svc.Prefetch(ctx); err != nil {
		if r.Context().Err() != nil {
			return
		}
		status := loadErrorStatus(err)
		if e := reqEvent(r, LevelError); e != nil {
			e.Int("status", status).Dur("dur", time.Since(start)).Err(err).Msg("load failed")
		}
		writeJSONError(w, status, err.Error())
		return
	}
	if e := reqEvent(r, LevelInfo); e != nil {
		e.Dur("dur", time.Since(start)).Msg("load done")
	}
	writeJSON(w, http.StatusOK, h.svc.Status())
}

// generate godoc
// @Summary      Generate a poem
// @Description  Starts a generation for the topic. Returns started=false when one is already running.
// @Description  With stream=1 the session events of the generation are streamed as NDJSON until done.
// @Tags         session
// @Accept       json
// @Produce      json
// @Produce      application/x-ndjson
// @Param        request  body   types.GenerateRequest  false  "Poem topic"
// @Param        stream   query  string                 false  "Stream NDJSON events (1)"
// @Success      202  {object}  types.GenerateResponse
// @Success      200  {object}  types.GenerateResponse
// @Failure      400  {object}  types.ErrorResponse
// @Failure      415  {object}  types.ErrorResponse
// @Router       /generate [post]
func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if r.ContentLength != 0 {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	}

	stream := r.URL.Query().Get("stream") == "1"
	var (
		events <-chan session.Event
		cancel = func() {}
	)
	if stream {
		// subscribe before starting so no event of the generation is missed
		events, cancel = h.svc.Subscribe(eventBuffer)
	}
	defer cancel()

	id, started := h.svc.Start(serverBaseCtx, req.Topic)
	if !started {
		IncrementDropped("running")
		if e := reqEvent(r, LevelInfo); e != nil {
			e.Msg("generate dropped: already running")
		}
		writeJSON(w, http.StatusOK, types.GenerateResponse{Started: false})
		return
	}
	if e := reqEvent(r, LevelInfo); e != nil {
		e.Str("generation_id", id).Str("topic", req.Topic).Bool("stream", stream).Msg("generate started")
	}
	if !stream {
		writeJSON(w, http.StatusAccepted, types.GenerateResponse{Started: true, GenerationID: id})
		return
	}
	w.Header().Set("X-Generation-ID", id)
	streamEvents(w, r, events, func(e session.Event) bool {
		return e.Name == session.EventDone && e.GenerationID == id
	})
}

// events godoc
// @Summary      Event stream
// @Description  NDJSON stream of session events. The first line is a "state" snapshot.
// @Tags         session
// @Produce      application/x-ndjson
// @Success      200  {object}  types.EventMessage
// @Router       /events [get]
func (h *handlers) events(w http.ResponseWriter, r *http.Request) {
	events, cancel := h.svc.Subscribe(eventBuffer)
	defer cancel()
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	writeLine(w, r, types.EventMessage{Event: "state", State: h.svc.Status()})
	streamEvents(w, r, events, nil)
}

// output godoc
// @Summary      Output text
// @Description  Output of the current or last generation, raw or rendered.
// @Tags         session
// @Produce      json
// @Param        view  query  string  false  "raw (default) or rendered"
// @Success      200  {object}  types.OutputResponse
// @Failure      400  {object}  types.ErrorResponse
// @Router       /output [get]
func (h *handlers) output(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = types.ViewRaw
	}
	if view != types.ViewRaw && view != types.ViewRendered {
		writeJSONError(w, http.StatusBadRequest, "view must be raw or rendered")
		return
	}
	text := shell.Render(shell.PlainRenderer(), h.svc.Response(), view)
	writeJSON(w, http.StatusOK, types.OutputResponse{View: view, Text: text})
}

// response godoc
// @Summary      Response text
// @Description  The response text only, without the prompt, for copying.
// @Tags         session
// @Produce      plain
// @Success      200  {string}  string
// @Router       /response [get]
func (h *handlers) response(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, h.svc.Response())
}
