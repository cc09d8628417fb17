package stock

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline-erp/ledgerline/internal/platform/httpx"
	"github.com/ledgerline-erp/ledgerline/internal/shared"
)

// Handler wires HTTP endpoints for the stock ledger.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler constructs stock handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/entries", h.handleAddStock)
	r.Post("/reduce", h.handleReduceStock)
	r.Post("/adjust", h.handleAdjustStock)
	r.Post("/batch-transfers", h.handleBatchTransfer)
	r.Get("/movements", h.handleListMovements)
}

func respondStockError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInsufficientStock):
		httpx.Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	case errors.Is(err, ErrInvalidQuantity):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}

type addStockRequest struct {
	ProductID    int64   `json:"product_id" validate:"required"`
	WarehouseID  int64   `json:"warehouse_id"`
	Quantity     int64   `json:"quantity" validate:"required,gt=0"`
	BuyingPrice  float64 `json:"buying_price" validate:"gte=0"`
	SellingPrice float64 `json:"selling_price" validate:"gte=0"`
	BatchNumber  *string `json:"batch_number"`
	ExpiryDate   *string `json:"expiry_date"`
	Note         string  `json:"note"`
}

func (h *Handler) handleAddStock(w http.ResponseWriter, r *http.Request) {
	var req addStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	entry := AddEntry{
		ProductID:    req.ProductID,
		WarehouseID:  req.WarehouseID,
		Quantity:     req.Quantity,
		BuyingPrice:  req.BuyingPrice,
		SellingPrice: req.SellingPrice,
		BatchNumber:  req.BatchNumber,
		Note:         req.Note,
		RefModule:    "MANUAL",
		ActorID:      shared.ActorFromContext(r.Context()),
	}
	if req.ExpiryDate != nil {
		expiry, err := time.Parse("2006-01-02", *req.ExpiryDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "expiry_date must be YYYY-MM-DD")
			return
		}
		entry.ExpiryDate = &expiry
	}
	product, err := h.service.AddStock(r.Context(), entry)
	if err != nil {
		h.logger.Error("add stock", slog.Any("error", err))
		respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

type reduceStockRequest struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	WarehouseID int64  `json:"warehouse_id"`
	Quantity    int64  `json:"quantity" validate:"required,gt=0"`
	Note        string `json:"note"`
}

func (h *Handler) handleReduceStock(w http.ResponseWriter, r *http.Request) {
	var req reduceStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	newQty, err := h.service.ReduceStock(r.Context(), ReduceInput{
		ProductID:   req.ProductID,
		WarehouseID: req.WarehouseID,
		Quantity:    req.Quantity,
		Note:        req.Note,
		RefModule:   "MANUAL",
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]int64{"product_id": req.ProductID, "quantity": newQty})
}

type adjustStockRequest struct {
	ProductID   int64  `json:"product_id" validate:"required"`
	NewQuantity int64  `json:"new_quantity" validate:"gte=0"`
	Reason      string `json:"reason"`
}

func (h *Handler) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	var req adjustStockRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	product, err := h.service.AdjustStock(r.Context(), AdjustInput{
		ProductID:   req.ProductID,
		NewQuantity: req.NewQuantity,
		Reason:      req.Reason,
		ActorID:     shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

type batchTransferRequest struct {
	FromProductID int64  `json:"from_product_id" validate:"required"`
	ToProductID   int64  `json:"to_product_id" validate:"required"`
	Quantity      int64  `json:"quantity" validate:"required,gt=0"`
	Note          string `json:"note"`
}

func (h *Handler) handleBatchTransfer(w http.ResponseWriter, r *http.Request) {
	var req batchTransferRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	err := h.service.TransferStock(r.Context(), TransferInput{
		FromProductID: req.FromProductID,
		ToProductID:   req.ToProductID,
		Quantity:      req.Quantity,
		Note:          req.Note,
		ActorID:       shared.ActorFromContext(r.Context()),
	})
	if err != nil {
		respondStockError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "transferred"})
}

func (h *Handler) handleListMovements(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(r.URL.Query().Get("product_id"), 10, 64)
	if err != nil || productID == 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "product_id is required")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	movements, err := h.service.GetMovements(r.Context(), productID, limit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, movements)
}
