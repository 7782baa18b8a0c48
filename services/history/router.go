package history

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LogStore is the read surface the HTTP layer needs from the journal.
type LogStore interface {
	Get(ctx context.Context, id uuid.UUID) (LogEntry, error)
	List(ctx context.Context, f Filter) ([]LogEntry, error)
}

// ActionRecorder accepts inbound recordAction calls.
type ActionRecorder interface {
	Record(ctx context.Context, req AppendRequest) (LogEntry, error)
}

// UndoRunner reverses a log entry.
type UndoRunner interface {
	Undo(ctx context.Context, logID, requesterID uuid.UUID) (UndoResult, error)
}

// APIConfig controls HTTP behaviour.
type APIConfig struct {
	AllowedOrigins []string
	// UndoRateLimit caps undo attempts per client IP per minute.
	UndoRateLimit int
}

// API wires the journal, recorder, and orchestrator behind chi handlers.
type API struct {
	logs     LogStore
	recorder ActionRecorder
	undo     UndoRunner
	pool     *pgxpool.Pool
	config   APIConfig
}

// NewAPI builds the handler set. pool may be nil; the stats endpoint then
// reports unavailable.
func NewAPI(logs LogStore, recorder ActionRecorder, undo UndoRunner, pool *pgxpool.Pool, cfg APIConfig) (*API, error) {
	if logs == nil {
		return nil, errors.New("log store is required")
	}
	if recorder == nil {
		return nil, errors.New("recorder is required")
	}
	if undo == nil {
		return nil, errors.New("undo runner is required")
	}
	if cfg.UndoRateLimit <= 0 {
		cfg.UndoRateLimit = 30
	}

	return &API{logs: logs, recorder: recorder, undo: undo, pool: pool, config: cfg}, nil
}

// Routes constructs the chi router containing all journal endpoints.
func (a *API) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	if len(a.config.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   a.config.AllowedOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requester-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Post("/logs", a.handleRecord)
		r.Get("/logs", a.handleList)
		r.Get("/logs/undoable", a.handleListUndoable)
		r.Get("/logs/stats", a.handleStats)
		r.Get("/logs/{id}", a.handleGet)

		r.Group(func(r chi.Router) {
			r.Use(httprate.LimitByIP(a.config.UndoRateLimit, time.Minute))
			r.Post("/logs/{id}/undo", a.handleUndo)
		})
	})

	return r
}
