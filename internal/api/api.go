package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"webhook-ingest/internal/config"
	"webhook-ingest/internal/ingest"
	"webhook-ingest/internal/metrics"
	"webhook-ingest/internal/query"
	"webhook-ingest/internal/storage"
)

type API struct {
	Pipeline *ingest.Pipeline
	Query    *query.Engine
	Store    storage.MessageStore
	Cfg      *config.Config
	Logger   zerolog.Logger
}

func NewAPI(pipeline *ingest.Pipeline, engine *query.Engine, store storage.MessageStore, cfg *config.Config, logger zerolog.Logger) *API {
	return &API{
		Pipeline: pipeline,
		Query:    engine,
		Store:    store,
		Cfg:      cfg,
		Logger:   logger,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestLogger(a.Logger))
	r.Use(chimw.Recoverer)

	r.Handle("/metrics", metrics.Handler())
	r.Get("/health/live", a.HealthLive)
	r.Get("/health/ready", a.HealthReady)

	r.Post("/webhook", a.Webhook)
	r.Get("/messages", a.ListMessages)
	r.Get("/stats", a.Stats)

	return r
}

// JSON sends a JSON response with the given status code.
func (a *API) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (a *API) Error(w http.ResponseWriter, status int, message string) {
	a.JSON(w, status, map[string]string{"error": message})
}
