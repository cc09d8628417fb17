package purchasing

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline-erp/ledgerline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for purchase orders.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs purchasing handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers purchase order routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreateOrder)
	r.Get("/", h.handleListOrders)
	r.Get("/{id}", h.handleGetOrder)
	r.Post("/{id}/receive", h.handleReceiveOrder)
}

type orderLineRequest struct {
	ProductID    int64    `json:"product_id" validate:"required,gt=0"`
	Quantity     int64    `json:"quantity" validate:"required,gt=0"`
	UnitCost     float64  `json:"unit_cost" validate:"gte=0"`
	SellingPrice *float64 `json:"selling_price" validate:"omitempty,gte=0"`
	BatchNumber  *string  `json:"batch_number"`
	ExpiryDate   *string  `json:"expiry_date"`
}

type createOrderRequest struct {
	SupplierName string             `json:"supplier_name" validate:"required"`
	WarehouseID  *int64             `json:"warehouse_id" validate:"omitempty,gt=0"`
	Note         *string            `json:"note"`
	Lines        []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateOrderInput{
		SupplierName: req.SupplierName,
		WarehouseID:  req.WarehouseID,
		Note:         req.Note,
	}
	for _, line := range req.Lines {
		in := OrderLineInput{
			ProductID:    line.ProductID,
			Quantity:     line.Quantity,
			UnitCost:     line.UnitCost,
			SellingPrice: line.SellingPrice,
			BatchNumber:  line.BatchNumber,
		}
		if line.ExpiryDate != nil {
			expiry, err := time.Parse("2006-01-02", *line.ExpiryDate)
			if err != nil {
				httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
				return
			}
			in.ExpiryDate = &expiry
		}
		input.Lines = append(input.Lines, in)
	}
	po, err := h.service.CreateOrder(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) handleReceiveOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	po, err := h.service.ReceiveOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	po, err := h.service.GetOrder(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var status *PurchaseOrderStatus
	if v := q.Get("status"); v != "" {
		s := PurchaseOrderStatus(v)
		status = &s
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	list, err := h.service.ListOrders(r.Context(), status, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
