package invoice

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/spindle-erp/spindle-erp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for invoices.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs the invoice handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
}

type lineItemRequest struct {
	ProductID   int64             `json:"product_id"`
	Description string            `json:"description"`
	Qty         float64           `json:"qty" validate:"required,gt=0"`
	Unit        string            `json:"unit"`
	Price       float64           `json:"price" validate:"gte=0"`
	Attributes  map[string]string `json:"attributes"`
}

type createInvoiceRequest struct {
	Kind          string            `json:"kind" validate:"required,oneof=SALE PURCHASE"`
	PartyID       int64             `json:"party_id"`
	PartyName     string            `json:"party_name"`
	PartyPhone    string            `json:"party_phone"`
	Items         []lineItemRequest `json:"items" validate:"required,min=1,dive"`
	Discount      float64           `json:"discount" validate:"gte=0"`
	PaymentMethod string            `json:"payment_method" validate:"omitempty,oneof=cash bank credit"`
	PaidUpfront   float64           `json:"paid_amount" validate:"gte=0"`
	Note          string            `json:"note"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateInput{
		Kind:          Kind(req.Kind),
		PartyID:       req.PartyID,
		PartyName:     req.PartyName,
		PartyPhone:    req.PartyPhone,
		Discount:      req.Discount,
		PaymentMethod: PaymentMethod(req.PaymentMethod),
		PaidUpfront:   req.PaidUpfront,
		Note:          req.Note,
	}
	for _, item := range req.Items {
		input.Items = append(input.Items, LineItemInput{
			ProductID:   item.ProductID,
			Description: item.Description,
			Qty:         item.Qty,
			Unit:        item.Unit,
			Price:       item.Price,
			Attributes:  item.Attributes,
		})
	}
	result, err := h.service.Create(r.Context(), input)
	if err != nil {
		h.logger.Error("create invoice", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListRequest{Kind: Kind(q.Get("kind"))}
	if v := q.Get("party_id"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			req.PartyID = id
		}
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse("2006-01-02", v); err == nil {
			req.To = t
		}
	}
	if v := q.Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			req.Limit = limit
		}
	}
	invoices, err := h.service.List(r.Context(), req)
	if err != nil {
		h.logger.Error("list invoices", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, invoices)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid invoice id")
		return
	}
	inv, err := h.service.Get(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}
