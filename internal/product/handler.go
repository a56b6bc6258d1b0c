package product

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

// List godoc
// @Summary List active products
// @Tags products
// @Produce json
// @Success 200 {array} Product
// @Router /products [get]
func (h *Handler) List(c *gin.Context) {
	products, err := h.repo.ListActive(c.Request.Context())
	if err != nil {
		logger.Errorf("list products: %v", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list products"})
		return
	}
	c.JSON(http.StatusOK, products)
}

// Get godoc
// @Summary Get one product
// @Tags products
// @Produce json
// @Param id path int true "Product ID"
// @Success 200 {object} Product
// @Failure 404 {object} api.ErrorResponse
// @Router /products/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	p, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
			return
		}
		logger.Errorf("get product %d: %v", id, err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to get product"})
		return
	}
	c.JSON(http.StatusOK, p)
}
