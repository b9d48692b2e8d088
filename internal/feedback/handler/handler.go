package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"avalia/internal/aggregate"
	"avalia/internal/feedback/models"
	"avalia/internal/feedback/service"
	"avalia/internal/platform/middleware"
	"avalia/internal/transport/http/shared"
	"avalia/internal/view"

	dErrors "avalia/pkg/domain-errors"
)

// Service defines the feedback operations the HTTP layer needs.
type Service interface {
	Submit(ctx context.Context, req service.SubmitRequest) (models.FeedbackRecord, error)
	List(ctx context.Context, filter view.Filter, key view.SortKey) []models.FeedbackRecord
	Stats(ctx context.Context) aggregate.Statistics
	ExportCSV(ctx context.Context, w io.Writer, filter view.Filter, key view.SortKey) error
}

// Handler serves the feedback API consumed by the operator dashboard and the
// rating form.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// New creates a feedback Handler.
func New(svc Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: svc}
}

// Register mounts the feedback routes.
func (h *Handler) Register(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Post("/feedback", h.handleSubmit)
		r.Get("/feedback", h.handleList)
		r.Get("/feedback/export", h.handleExport)
		r.Get("/stats", h.handleStats)
	})
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req service.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "malformed submit body",
			"request_id", middleware.GetRequestID(ctx), "error", err)
		shared.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid request body"))
		return
	}

	record, err := h.service.Submit(ctx, req)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, record)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, key, err := projectionParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	records := h.service.List(r.Context(), filter, key)
	shared.WriteJSON(w, http.StatusOK, map[string]any{
		"count":   len(records),
		"records": records,
	})
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, key, err := projectionParams(r)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="feedback.csv"`)
	if err := h.service.ExportCSV(r.Context(), w, filter, key); err != nil {
		// Headers are already out; all we can do is log.
		h.logger.ErrorContext(r.Context(), "csv export failed",
			"request_id", middleware.GetRequestID(r.Context()), "error", err)
	}
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	shared.WriteJSON(w, http.StatusOK, h.service.Stats(r.Context()))
}

// projectionParams parses the shared min_rating and sort query parameters.
func projectionParams(r *http.Request) (view.Filter, view.SortKey, error) {
	minRating := 0
	if raw := r.URL.Query().Get("min_rating"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return view.Filter{}, "", dErrors.New(dErrors.CodeInvalidInput, "min_rating must be an integer")
		}
		minRating = v
	}
	filter, err := view.ParseFilter(minRating)
	if err != nil {
		return view.Filter{}, "", err
	}
	key, err := view.ParseSortKey(r.URL.Query().Get("sort"))
	if err != nil {
		return view.Filter{}, "", err
	}
	return filter, key, nil
}
