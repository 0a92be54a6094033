package reports

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/spindle-erp/spindle-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for reports.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs the reports handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/summary", h.summary)
	r.Get("/summary.csv", h.summaryCSV)
	r.Get("/trend", h.trend)
	r.Get("/top-products", h.topProducts)
	r.Get("/overview", h.overview)
}

func (h *Handler) window(r *http.Request) (Window, error) {
	q := r.URL.Query()
	var from, to time.Time
	if v := q.Get("from"); v != "" {
		from, _ = time.Parse("2006-01-02", v)
	}
	if v := q.Get("to"); v != "" {
		to, _ = time.Parse("2006-01-02", v)
	}
	name := RangeName(q.Get("range"))
	if name == "" && from.IsZero() && to.IsZero() {
		name = RangeToday
	}
	return h.service.ResolveWindow(name, from, to)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	summary, err := h.service.SalesSummary(r.Context(), window)
	if err != nil {
		h.logger.Error("sales summary", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) summaryCSV(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	csv, err := h.service.SummaryCSV(r.Context(), window)
	if err != nil {
		h.logger.Error("sales summary csv", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="sales-summary.csv"`)
	_, _ = w.Write(csv)
}

func (h *Handler) trend(w http.ResponseWriter, r *http.Request) {
	days := 14
	if v := r.URL.Query().Get("days"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			days = parsed
		}
	}
	trend, err := h.service.DailyTrend(r.Context(), days)
	if err != nil {
		h.logger.Error("sales trend", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, trend)
}

func (h *Handler) topProducts(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	top, err := h.service.TopProducts(r.Context(), window, limit)
	if err != nil {
		h.logger.Error("top products", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, top)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	window, err := h.window(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	overview, err := h.service.Overview(r.Context(), window)
	if err != nil {
		h.logger.Error("reports overview", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, overview)
}
