package sales

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline-erp/ledgerline/internal/credit"
	"github.com/ledgerline-erp/ledgerline/internal/platform/httpx"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

// Handler wires HTTP endpoints for sales.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs sales handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers sales routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreateSale)
	r.Get("/", h.handleListSales)
	r.Get("/{id}", h.handleGetSale)
	r.Post("/{id}/approve", h.handleApproveSale)
	r.Post("/{id}/payments", h.handleRegisterPayment)
}

func respondSaleError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, stock.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, stock.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, credit.ErrCreditPeriodExpired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Credit Period Expired", err.Error())
	case errors.Is(err, ErrPaymentExceedsDue):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Payment Exceeds Due", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

type saleLineRequest struct {
	ProductID int64    `json:"product_id" validate:"required,gt=0"`
	Quantity  int64    `json:"quantity" validate:"required,gt=0"`
	UnitPrice *float64 `json:"unit_price" validate:"omitempty,gte=0"`
}

type createSaleRequest struct {
	CustomerID     *int64            `json:"customer_id" validate:"omitempty,gt=0"`
	WarehouseID    *int64            `json:"warehouse_id" validate:"omitempty,gt=0"`
	Discount       float64           `json:"discount" validate:"gte=0"`
	CashAmount     float64           `json:"cash_amount" validate:"gte=0"`
	TransferAmount float64           `json:"transfer_amount" validate:"gte=0"`
	CreditAmount   float64           `json:"credit_amount" validate:"gte=0"`
	Note           *string           `json:"note"`
	Draft          bool              `json:"draft"`
	Lines          []saleLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleCreateSale(w http.ResponseWriter, r *http.Request) {
	var req createSaleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := CreateSaleInput{
		CustomerID:     req.CustomerID,
		WarehouseID:    req.WarehouseID,
		Discount:       req.Discount,
		CashAmount:     req.CashAmount,
		TransferAmount: req.TransferAmount,
		CreditAmount:   req.CreditAmount,
		Note:           req.Note,
		Draft:          req.Draft,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, SaleLineInput{
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	sale, err := h.service.CreateSale(r.Context(), input)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, sale)
}

func (h *Handler) handleGetSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	sale, err := h.service.GetSale(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

func (h *Handler) handleListSales(w http.ResponseWriter, r *http.Request) {
	var f SaleFilter
	q := r.URL.Query()
	if v := q.Get("customer_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "customer_id must be an integer")
			return
		}
		f.CustomerID = &id
	}
	if v := q.Get("status"); v != "" {
		status := SaleStatus(v)
		f.Status = &status
	}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))

	sales, err := h.service.ListSales(r.Context(), f)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sales)
}

func (h *Handler) handleApproveSale(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	sale, err := h.service.ApproveSale(r.Context(), id)
	if err != nil {
		respondSaleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}

type registerPaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	Method string  `json:"method" validate:"required,oneof=cash transfer"`
}

func (h *Handler) handleRegisterPayment(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	var req registerPaymentRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	sale, err := h.service.RegisterPayment(r.Context(), id, req.Amount, PaymentMethod(req.Method))
	if err != nil {
		respondSaleError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, sale)
}
