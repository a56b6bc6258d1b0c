package purchase

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ToropovAlexei/autosales-sub001/internal/api"
	"github.com/ToropovAlexei/autosales-sub001/internal/db"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/metrics"
	"github.com/ToropovAlexei/autosales-sub001/internal/product"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Purchase godoc
// @Summary Buy a product with store balance
// @Tags purchases
// @Accept json
// @Produce json
// @Param request body PurchaseRequest true "Purchase parameters"
// @Success 200 {object} PurchaseResult
// @Failure 400 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /purchase [post]
func (h *Handler) Purchase(c *gin.Context) {
	var req PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	result, err := h.service.Purchase(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, product.ErrProductNotFound):
			metrics.RecordPurchase("not_found")
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, product.ErrOutOfStock):
			metrics.RecordPurchase("out_of_stock")
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ledger.ErrInsufficientBalance):
			metrics.RecordPurchase("insufficient_balance")
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, db.ErrConflict):
			metrics.RecordPurchase("conflict")
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: "purchase conflicted, try again"})
		default:
			metrics.RecordPurchase("error")
			logger.Errorf("purchase: %v", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "purchase failed"})
		}
		return
	}
	c.JSON(http.StatusOK, result)
}
