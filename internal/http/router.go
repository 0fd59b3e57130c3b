package api

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"chousei/internal/domain/chat"
	"chousei/internal/domain/participant"
	"chousei/internal/domain/poll"
	"chousei/internal/store"
	"chousei/internal/worker"
)

type Handler struct {
	pollSvc *poll.Service
	partSvc *participant.Service
	chatSvc *chat.Service
	store   store.Store
	eventCh chan<- worker.Event
	db      *sql.DB
}

// NewRouter wires every workflow behind the API. db may be nil when the
// in-memory store backs the server; readiness then only reflects the
// process itself.
func NewRouter(
	pollSvc *poll.Service,
	partSvc *participant.Service,
	chatSvc *chat.Service,
	st store.Store,
	eventCh chan<- worker.Event,
	db *sql.DB,
) http.Handler {
	h := &Handler{
		pollSvc: pollSvc,
		partSvc: partSvc,
		chatSvc: chatSvc,
		store:   st,
		eventCh: eventCh,
		db:      db,
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger)
	r.Use(CORSMiddleware)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/ready", h.handleReady)
	r.Get("/swagger/*", httpSwagger.WrapHandler)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	writeLimit := RateLimitWrites(rate.Every(time.Minute/30), 5)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/history", h.handleRecentPolls)

		r.With(writeLimit).Post("/polls", h.handleCreatePoll)
		r.Route("/polls/{id}", func(r chi.Router) {
			r.Get("/", h.handleGetPoll)
			r.Get("/events", h.handleEvents)

			r.With(writeLimit).Post("/participants", h.handleSubmitResponse)
			r.Patch("/participants/{pid}/paid", h.handleSetPaid)

			r.Post("/candidates", h.handleAddCandidate)
			r.Delete("/candidates/{cid}", h.handleRemoveCandidate)
			r.Patch("/fee", h.handleSetFee)

			r.With(writeLimit).Post("/messages", h.handleSendMessage)
			r.Delete("/messages/{mid}", h.handleDeleteMessage)
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	if h.db == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error":   "db_unavailable",
			"message": "database not ready",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (h *Handler) emit(ev worker.Event) {
	if h.eventCh == nil {
		return
	}
	select {
	case h.eventCh <- ev:
	default:
	}
}
