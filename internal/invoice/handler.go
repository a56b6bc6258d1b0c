package invoice

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ToropovAlexei/autosales-sub001/internal/api"
	"github.com/ToropovAlexei/autosales-sub001/internal/db"
	"github.com/ToropovAlexei/autosales-sub001/internal/gateway"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/metrics"
)

type Handler struct {
	service *Service
	repo    Repository
}

func NewHandler(service *Service, repo Repository) *Handler {
	return &Handler{service: service, repo: repo}
}

// Create godoc
// @Summary Create a deposit invoice
// @Tags invoices
// @Accept json
// @Produce json
// @Param request body CreateInvoiceRequest true "Invoice parameters"
// @Success 201 {object} Invoice
// @Failure 400 {object} api.ErrorResponse
// @Failure 502 {object} api.ErrorResponse
// @Router /invoices [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	inv, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrNegativeAmount), errors.Is(err, gateway.ErrUnknownGateway):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		default:
			logger.Errorf("create invoice: %v", err)
			c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "failed to create invoice"})
		}
		return
	}
	c.JSON(http.StatusCreated, inv)
}

type webhookPayload struct {
	Event            string           `json:"event"`
	OrderID          string           `json:"order_id" binding:"required,uuid"`
	GatewayInvoiceID string           `json:"invoice_id"`
	Amount           *decimal.Decimal `json:"amount"`
	Status           string           `json:"status" binding:"required"`
}

// Webhook godoc
// @Summary Payment gateway callback
// @Tags invoices
// @Accept json
// @Produce json
// @Param gateway path string true "Gateway name"
// @Param payload body webhookPayload true "Status update"
// @Success 200 {object} api.MessageResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /webhooks/{gateway} [post]
func (h *Handler) Webhook(c *gin.Context) {
	gatewayName := c.Param("gateway")

	var payload webhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		metrics.RecordWebhook(gatewayName, "bad_payload")
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	orderID, err := uuid.Parse(payload.OrderID)
	if err != nil {
		metrics.RecordWebhook(gatewayName, "bad_payload")
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid order_id"})
		return
	}

	ctx := c.Request.Context()
	if payload.Status == string(gateway.StatusCompleted) {
		err = h.service.HandlePaymentSuccess(ctx, gatewayName, payload.GatewayInvoiceID, orderID, payload.Amount)
	} else {
		err = h.service.HandleGatewayStatus(ctx, gatewayName, orderID, gateway.Status(payload.Status))
	}
	if err != nil {
		switch {
		case errors.Is(err, ErrInvoiceNotFound):
			metrics.RecordWebhook(gatewayName, "not_found")
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrInvoiceMismatch):
			metrics.RecordWebhook(gatewayName, "mismatch")
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrInvoiceExpired),
			errors.Is(err, db.ErrConflict):
			metrics.RecordWebhook(gatewayName, "rejected")
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		default:
			logger.Errorf("webhook %s order %s: %v", gatewayName, payload.OrderID, err)
			metrics.RecordWebhook(gatewayName, "error")
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to process webhook"})
		}
		return
	}

	metrics.RecordWebhook(gatewayName, "ok")
	c.JSON(http.StatusOK, api.MessageResponse{Message: "processed"})
}

// List godoc
// @Summary List invoices
// @Tags invoices
// @Produce json
// @Success 200 {object} api.ListResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /invoices [get]
func (h *Handler) List(c *gin.Context) {
	q, err := listquery.Parse(c.Request.URL.Query(), ListSpec)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	invoices, total, err := h.repo.List(c.Request.Context(), q)
	if err != nil {
		logger.Errorf("list invoices: %v", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list invoices"})
		return
	}
	c.JSON(http.StatusOK, api.ListResponse{Items: invoices, Total: total})
}

// Get godoc
// @Summary Get one invoice
// @Tags invoices
// @Produce json
// @Param id path int true "Invoice ID"
// @Success 200 {object} Invoice
// @Failure 404 {object} api.ErrorResponse
// @Router /invoices/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrInvoiceNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
			return
		}
		logger.Errorf("get invoice %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get invoice"})
		return
	}
	c.JSON(http.StatusOK, inv)
}

// SubmitReceipt godoc
// @Summary Attach a payment receipt
// @Tags invoices
// @Accept json
// @Produce json
// @Param id path int true "Invoice ID"
// @Param request body SubmitReceiptRequest true "Receipt URL"
// @Success 200 {object} Invoice
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /invoices/{id}/receipt [post]
func (h *Handler) SubmitReceipt(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req SubmitReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	inv, err := h.service.SubmitReceipt(c.Request.Context(), id, req.ReceiptURL)
	h.respond(c, inv, err)
}

// Confirm godoc
// @Summary Operator confirmation of a payment
// @Tags invoices
// @Produce json
// @Param id path int true "Invoice ID"
// @Success 200 {object} Invoice
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /invoices/{id}/confirm [post]
func (h *Handler) Confirm(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Confirm(c.Request.Context(), id)
	h.respond(c, inv, err)
}

// Cancel godoc
// @Summary Cancel an open invoice
// @Tags invoices
// @Produce json
// @Param id path int true "Invoice ID"
// @Success 200 {object} Invoice
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /invoices/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Cancel(c.Request.Context(), id)
	h.respond(c, inv, err)
}

// Refund godoc
// @Summary Refund a completed invoice
// @Tags invoices
// @Produce json
// @Param id path int true "Invoice ID"
// @Success 200 {object} Invoice
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /invoices/{id}/refund [post]
func (h *Handler) Refund(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	inv, err := h.service.Refund(c.Request.Context(), id)
	h.respond(c, inv, err)
}

func (h *Handler) respond(c *gin.Context, inv *Invoice, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrInvoiceNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrIllegalTransition), errors.Is(err, ErrInvoiceExpired),
			errors.Is(err, ledger.ErrInsufficientBalance), errors.Is(err, db.ErrConflict):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		default:
			logger.Errorf("invoice operation: %v", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "invoice operation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, inv)
}
