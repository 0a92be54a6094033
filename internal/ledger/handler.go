package ledger

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/spindle-erp/spindle-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the ledger handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers ledger routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/movements", h.appendMovement)
	r.Get("/movements", h.listMovements)
	r.Get("/stock", h.currentStock)
}

type appendMovementRequest struct {
	ProductID int64  `json:"product_id" validate:"required"`
	Kind      string `json:"kind" validate:"required,oneof=restock sale_consumption adjustment"`
	QtyChange int64  `json:"qty_change" validate:"required"`
	Note      string `json:"note"`
	RefType   string `json:"ref_type"`
	RefID     int64  `json:"ref_id"`
}

type movementResponse struct {
	ID        int64     `json:"id"`
	ProductID int64     `json:"product_id"`
	Kind      string    `json:"kind"`
	QtyChange int64     `json:"qty_change"`
	Note      string    `json:"note,omitempty"`
	RefType   string    `json:"ref_type,omitempty"`
	RefID     int64     `json:"ref_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *Handler) appendMovement(w http.ResponseWriter, r *http.Request) {
	var req appendMovementRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	movement, err := h.service.Append(r.Context(), AppendInput{
		ProductID: req.ProductID,
		Kind:      MovementKind(req.Kind),
		QtyChange: req.QtyChange,
		Note:      req.Note,
		Reference: Reference{Type: req.RefType, ID: req.RefID},
	})
	if err != nil {
		h.logger.Error("append movement", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toMovementResponse(movement))
}

func (h *Handler) listMovements(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := MovementFilter{Kind: MovementKind(q.Get("kind"))}
	if v := q.Get("product_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product_id")
			return
		}
		filter.ProductID = id
	}
	if v := q.Get("from"); v != "" {
		from, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid from date")
			return
		}
		filter.From = from
	}
	if v := q.Get("to"); v != "" {
		to, err := time.Parse("2006-01-02", v)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid to date")
			return
		}
		filter.To = to.Add(24*time.Hour - time.Nanosecond)
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}
	movements, err := h.service.Movements(r.Context(), filter)
	if err != nil {
		h.logger.Error("list movements", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make([]movementResponse, 0, len(movements))
	for _, m := range movements {
		out = append(out, toMovementResponse(m))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) currentStock(w http.ResponseWriter, r *http.Request) {
	idsParam := r.URL.Query()["product_id"]
	ids := make([]int64, 0, len(idsParam))
	for _, v := range idsParam {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid product_id")
			return
		}
		ids = append(ids, id)
	}
	stock, err := h.service.CurrentStock(r.Context(), ids)
	if err != nil {
		h.logger.Error("current stock", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	out := make(map[string]int64, len(stock))
	for id, qty := range stock {
		out[strconv.FormatInt(id, 10)] = qty
	}
	httpx.JSON(w, http.StatusOK, out)
}

func toMovementResponse(m Movement) movementResponse {
	return movementResponse{
		ID:        m.ID,
		ProductID: m.ProductID,
		Kind:      string(m.Kind),
		QtyChange: m.QtyChange,
		Note:      m.Note,
		RefType:   m.RefType,
		RefID:     m.RefID,
		CreatedAt: m.CreatedAt,
	}
}
