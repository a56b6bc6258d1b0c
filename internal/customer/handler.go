package customer

import (
	"errors"
	"net/http"

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

// Get godoc
// @Summary Get a customer with cached balance
// @Tags customers
// @Produce json
// @Param customerID path int true "Customer ID"
// @Success 200 {object} Customer
// @Failure 404 {object} api.ErrorResponse
// @Router /customers/{customerID} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "customerID")
	if !ok {
		return
	}
	cust, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
			return
		}
		logger.Errorf("get customer %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get customer"})
		return
	}
	c.JSON(http.StatusOK, cust)
}
