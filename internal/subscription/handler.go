package subscription

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ToropovAlexei/autosales-sub001/internal/api"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListForCustomer godoc
// @Summary List a customer's subscriptions
// @Tags subscriptions
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {array} UserSubscription
// @Failure 400 {object} api.ErrorResponse
// @Router /customers/{customerID}/subscriptions [get]
func (h *Handler) ListForCustomer(c *gin.Context) {
	customerID, ok := api.ParseIDParam(c, "customerID")
	if !ok {
		return
	}
	subs, err := h.repo.GetForCustomer(c.Request.Context(), customerID)
	if err != nil {
		logger.Errorf("list subscriptions for customer %d: %v", customerID, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list subscriptions"})
		return
	}
	c.JSON(http.StatusOK, subs)
}

// Cancel godoc
// @Summary Cancel a subscription
// @Tags subscriptions
// @Produce json
// @Param id path int true "Subscription ID"
// @Success 200 {object} api.MessageResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /subscriptions/{id}/cancel [post]
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	if err := h.repo.Cancel(c.Request.Context(), id, time.Now().UTC()); err != nil {
		if errors.Is(err, ErrSubscriptionNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
			return
		}
		logger.Errorf("cancel subscription %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to cancel subscription"})
		return
	}
	c.JSON(http.StatusOK, api.MessageResponse{Message: "cancelled"})
}
