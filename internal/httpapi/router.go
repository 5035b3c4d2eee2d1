package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
	"github.com/rs/zerolog"

	"stillmotion/internal/core/domain"
	"stillmotion/internal/service"
)

// Queue is the part of the processor the API drives.
type Queue interface {
	Enqueue(ctx context.Context, img domain.SourceImage) (domain.Job, error)
	Jobs() []domain.Job
	Remove(id string) error
	Clear() int
	Kick() bool
	Cancel() bool
	Active() bool
	Settings() service.Settings
	ModifySettings(fn func(*service.Settings)) error
}

// Options configures the router.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string

	// MaxUploadBytes bounds a multipart upload. Zero means 64 MiB.
	MaxUploadBytes int64
}

// API holds the handlers.
type API struct {
	queue     Queue
	maxUpload int64
}

// NewRouter builds the HTTP handler.
func NewRouter(queue Queue, opts Options) http.Handler {
	api := &API{queue: queue, maxUpload: opts.MaxUploadBytes}
	if api.maxUpload <= 0 {
		api.maxUpload = 64 << 20
	}

	r := chi.NewRouter()
	r.Use(requestID(opts.Logger), middleware.RealIP, middleware.Recoverer, accessLog)

	r.Get("/v1/healthz", api.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Get("/", api.ListJobs)
		r.Post("/", api.CreateJobs)
		r.Post("/clear", api.ClearJobs)
		r.Delete("/{id}", api.DeleteJob)
		r.Get("/{id}/video", api.JobVideo)
	})

	r.Route("/v1/batch", func(r chi.Router) {
		r.Post("/start", api.StartBatch)
		r.Post("/cancel", api.CancelBatch)
	})

	r.Get("/v1/settings", api.GetSettings)
	r.Put("/v1/settings", api.PutSettings)

	c := cors.New(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	})
	return c.Handler(r)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
