package settings

import (
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
// @Summary Current store settings
// @Tags settings
// @Produce json
// @Success 200 {object} Settings
// @Router /settings [get]
func (h *Handler) Get(c *gin.Context) {
	s, err := h.repo.Load(c.Request.Context())
	if err != nil {
		logger.Errorf("load settings: %v", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load settings"})
		return
	}
	c.JSON(http.StatusOK, s)
}

// Update godoc
// @Summary Update store settings
// @Tags settings
// @Accept json
// @Produce json
// @Param request body Update true "Fields to change"
// @Success 200 {object} Settings
// @Failure 400 {object} api.ErrorResponse
// @Router /settings [patch]
func (h *Handler) Update(c *gin.Context) {
	var upd Update
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	s, err := h.repo.Update(c.Request.Context(), upd)
	if err != nil {
		logger.Errorf("update settings: %v", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to update settings"})
		return
	}
	c.JSON(http.StatusOK, s)
}
