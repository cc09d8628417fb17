package credit

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline-erp/ledgerline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for customer credit accounts.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs credit handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers customer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleCreateCustomer)
	r.Get("/", h.handleListCustomers)
	r.Get("/{id}", h.handleGetCustomer)
	r.Post("/{id}/credit/purchase", h.handleCreditPurchase)
	r.Post("/{id}/credit/settle", h.handleSettleCredit)
}

func respondCreditError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrCreditPeriodExpired):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Credit Period Expired", err.Error())
	case errors.Is(err, ErrSettlementExceedsBalance):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Settlement Exceeds Balance", err.Error())
	case errors.Is(err, ErrInvalidAmount):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

type createCustomerRequest struct {
	Code            string  `json:"code" validate:"required"`
	Name            string  `json:"name" validate:"required"`
	Phone           string  `json:"phone"`
	CreditLimit     float64 `json:"credit_limit" validate:"gte=0"`
	CreditExpiresAt *string `json:"credit_expires_at"`
}

func (h *Handler) handleCreateCustomer(w http.ResponseWriter, r *http.Request) {
	var req createCustomerRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer := Customer{Code: req.Code, Name: req.Name, Phone: req.Phone, CreditLimit: req.CreditLimit}
	if req.CreditExpiresAt != nil {
		expires, err := time.Parse(time.RFC3339, *req.CreditExpiresAt)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "credit_expires_at must be RFC3339")
			return
		}
		customer.CreditExpiresAt = &expires
	}
	created, err := h.service.CreateCustomer(r.Context(), customer)
	if err != nil {
		h.logger.Error("create customer", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) handleGetCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer id")
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) handleListCustomers(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	customers, err := h.service.ListCustomers(r.Context(), limit, offset)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customers)
}

type creditAmountRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
}

func (h *Handler) handleCreditPurchase(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer id")
		return
	}
	var req creditAmountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.ProcessCreditPurchase(r.Context(), id, req.Amount)
	if err != nil {
		respondCreditError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) handleSettleCredit(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "invalid customer id")
		return
	}
	var req creditAmountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	customer, err := h.service.SettleCredit(r.Context(), id, req.Amount)
	if err != nil {
		respondCreditError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}
