package returns

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline-erp/ledgerline/internal/platform/httpx"
)

// Handler wires HTTP endpoints for returns.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs returns handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers returns routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/", h.handleProcessReturn)
	r.Get("/", h.handleListReturns)
	r.Get("/{id}", h.handleGetReturn)
}

func respondReturnError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrReturnQuantityExceeded) {
		httpx.Problem(w, http.StatusConflict, "Return Quantity Exceeded", err.Error())
		return
	}
	httpx.RespondError(w, err)
}

type returnLineRequest struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int64 `json:"quantity" validate:"required,gt=0"`
}

type processReturnRequest struct {
	SaleID  int64               `json:"sale_id" validate:"required,gt=0"`
	Status  string              `json:"status" validate:"omitempty,oneof=pending received completed"`
	Restock bool                `json:"restock"`
	Reason  *string             `json:"reason"`
	Lines   []returnLineRequest `json:"lines" validate:"required,min=1,dive"`
}

func (h *Handler) handleProcessReturn(w http.ResponseWriter, r *http.Request) {
	var req processReturnRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	input := ProcessReturnInput{
		SaleID:  req.SaleID,
		Status:  ReturnStatus(req.Status),
		Restock: req.Restock,
		Reason:  req.Reason,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, ReturnLineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	ret, err := h.service.ProcessReturn(r.Context(), input)
	if err != nil {
		respondReturnError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, ret)
}

func (h *Handler) handleGetReturn(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "id must be an integer")
		return
	}
	ret, err := h.service.GetReturn(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, ret)
}

func (h *Handler) handleListReturns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var saleID int64
	if v := q.Get("sale_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Filter", "sale_id must be an integer")
			return
		}
		saleID = id
	}
	limit, _ := strconv.Atoi(q.Get("limit"))

	list, err := h.service.ListReturns(r.Context(), saleID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}
