package transfers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline-erp/ledgerline/internal/platform/httpx"
	"github.com/ledgerline-erp/ledgerline/internal/stock"
)

// Handler wires HTTP endpoints for warehouse transfers.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs transfers handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers transfer routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleInitiate)
	r.Get("/", h.handleList)
	r.Get("/{id}", h.handleGet)
	r.Post("/{id}/complete", h.handleComplete)
}

func respondTransferError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidTransferState):
		httpx.Problem(w, http.StatusConflict, "Invalid Transfer State", err.Error())
	case errors.Is(err, stock.ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, stock.ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

type initiateTransferRequest struct {
	FromWarehouseID int64   `json:"from_warehouse_id" validate:"required,gt=0"`
	ToWarehouseID   int64   `json:"to_warehouse_id" validate:"required,gt=0"`
	ProductID       int64   `json:"product_id" validate:"required,gt=0"`
	Quantity        int64   `json:"quantity" validate:"required,gt=0"`
	Note            *string `json:"note"`
}

func (h *Handler) handleInitiate(w http.ResponseWriter, r *http.Request) {
	var req initiateTransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	transfer, err := h.service.InitiateTransfer(r.Context(), InitiateInput{
		FromWarehouseID: req.FromWarehouseID,
		ToWarehouseID:   req.ToWarehouseID,
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Note:            req.Note,
	})
	if err != nil {
		respondTransferError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, transfer)
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	transfer, err := h.service.CompleteTransfer(r.Context(), id)
	if err != nil {
		respondTransferError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	transfer, err := h.service.GetTransfer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, transfer)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var status *TransferStatus
	if v := q.Get("status"); v != "" {
		s := TransferStatus(v)
		status = &s
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	list, err := h.service.ListTransfers(r.Context(), status, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
