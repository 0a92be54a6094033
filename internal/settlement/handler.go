package settlement

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/spindle-erp/spindle-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for settlements.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the settlement handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers settlement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.settle)
	r.Get("/parties/{id}/ledger", h.partyLedger)
}

type settleRequest struct {
	PartyID int64   `json:"party_id" validate:"required"`
	Amount  float64 `json:"amount" validate:"required,gt=0"`
	Date    string  `json:"date" validate:"omitempty,datetime=2006-01-02"`
	Note    string  `json:"note"`
}

func (h *Handler) settle(w http.ResponseWriter, r *http.Request) {
	var req settleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := SettleInput{PartyID: req.PartyID, Amount: req.Amount, Note: req.Note}
	if req.Date != "" {
		input.Date, _ = time.Parse("2006-01-02", req.Date)
	}
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		if _, err := uuid.Parse(key); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "Idempotency-Key must be a UUID")
			return
		}
		input.IdempotencyKey = key
	}
	record, err := h.service.Settle(r.Context(), input)
	if err != nil {
		h.logger.Error("settle payment", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, record)
}

func (h *Handler) partyLedger(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid party id")
		return
	}
	ledger, err := h.service.PartyLedger(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ledger)
}
