package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/rl1809/inventory-sync/internal/core/domain"
	"github.com/rl1809/inventory-sync/internal/platform/observability"
	"github.com/rl1809/inventory-sync/internal/port"
)

// HTTPHandler serves the inventory backend API over a MovementStore.
type HTTPHandler struct {
	store     port.MovementStore
	publisher port.MovementPublisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewHTTPHandler(store port.MovementStore, publisher port.MovementPublisher, logger *zap.Logger) *HTTPHandler {
	return &HTTPHandler{store: store, publisher: publisher, logger: logger, now: time.Now}
}

func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)
	r.Route("/inventory", func(r chi.Router) {
		r.Post("/movements", h.RecordMovement)
		r.Post("/adjust", h.AdjustStock)
		r.Get("/history", h.History)
		r.Get("/product/{id}/history", h.ProductHistory)
		r.Get("/product/{id}/stock", h.ProductStock)
		r.Get("/report", h.Report)
		r.Get("/low-stock", h.LowStock)
		r.Get("/statistics", h.Statistics)
		r.Get("/trends", h.Trends)
	})
	return r
}

func (h *HTTPHandler) RecordMovement(w http.ResponseWriter, r *http.Request) {
	var m domain.Movement
	if err := json.NewDecoder(r.Body).Decode(&m); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if v := domain.ValidateMovement(m); !v.IsValid() {
		h.fail(w, r, &domain.ValidationError{Errors: v.Errors})
		return
	}

	rec, err := h.store.RecordMovement(r.Context(), m)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.publisher.PublishMovementRecorded(r.Context(), *rec); err != nil {
		observability.L(r.Context(), h.logger).Warn("publish movement failed", zap.Int64("movement_id", rec.ID), zap.Error(err))
	}
	writeData(w, http.StatusCreated, rec, "movement recorded")
}

func (h *HTTPHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	var input domain.AdjustmentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := domain.ValidateAdjustment(input); err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.store.AdjustStock(r.Context(), input)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.publisher.PublishStockAdjusted(r.Context(), *res); err != nil {
		observability.L(r.Context(), h.logger).Warn("publish adjustment failed", zap.Int64("product_id", res.ProductID), zap.Error(err))
	}
	writeData(w, http.StatusOK, res, "stock adjusted")
}

func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseMovementFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.listMovements(w, r, filter)
}

func (h *HTTPHandler) ProductHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	filter, err := domain.ParseMovementFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	filter.ProductID = id
	h.listMovements(w, r, filter)
}

func (h *HTTPHandler) listMovements(w http.ResponseWriter, r *http.Request, filter domain.MovementFilter) {
	records, err := h.store.ListMovements(r.Context(), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(records), "")
}

func (h *HTTPHandler) ProductStock(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	lvl, err := h.store.GetStock(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if lvl == nil {
		h.fail(w, r, fmt.Errorf("product %d: %w", id, domain.ErrProductNotFound))
		return
	}
	writeData(w, http.StatusOK, lvl, "")
}

func (h *HTTPHandler) Report(w http.ResponseWriter, r *http.Request) {
	levels, err := h.store.ListStock(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	includeItems, _ := strconv.ParseBool(r.URL.Query().Get("include_items"))
	writeData(w, http.StatusOK, domain.BuildReport(levels, includeItems, h.now()), "")
}

func (h *HTTPHandler) LowStock(w http.ResponseWriter, r *http.Request) {
	threshold := 0
	if v := r.URL.Query().Get("threshold"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid threshold")
			return
		}
		threshold = n
	}
	levels, err := h.store.LowStock(r.Context(), threshold)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, nonNil(levels), "")
}

func (h *HTTPHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	records, err := h.store.ListMovements(r.Context(), domain.MovementFilter{
		From:  domain.StartOfDay(now).AddDate(0, 0, -29),
		Limit: domain.StatsHistoryLimit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, domain.ComputeStatistics(records, now, domain.TopProductsMax), "")
}

func (h *HTTPHandler) Trends(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days := domain.DefaultTrendDays
	if v := q.Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid days")
			return
		}
		days = n
	}
	var pid int64
	if v := q.Get("product_id"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid product_id")
			return
		}
		pid = n
	}

	now := h.now()
	records, err := h.store.ListMovements(r.Context(), domain.MovementFilter{
		ProductID: pid,
		From:      domain.StartOfDay(now).AddDate(0, 0, -days),
		Limit:     domain.StatsHistoryLimit,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeData(w, http.StatusOK, domain.TrendReport{
		Days:      days,
		ProductID: pid,
		Points:    domain.ComputeTrends(records, days, pid, now),
	}, "")
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *HTTPHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Error())
	case errors.Is(err, domain.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, domain.ErrOptimisticLock):
		writeError(w, http.StatusConflict, "stock was modified concurrently, retry")
	case errors.Is(err, domain.ErrProductNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		observability.L(r.Context(), h.logger).Error("request failed",
			zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return id, true
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func writeData(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, envelope{Success: true, Data: data, Message: message})
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{Success: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
