package store

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ToropovAlexei/autosales-sub001/internal/api"
	"github.com/ToropovAlexei/autosales-sub001/internal/auth"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
)

type Handler struct {
	service *Service
	repo    Repository
}

func NewHandler(service *Service, repo Repository) *Handler {
	return &Handler{service: service, repo: repo}
}

// Create godoc
// @Summary Open a store balance request
// @Tags balance-requests
// @Accept json
// @Produce json
// @Param request body CreateRequest true "Request parameters"
// @Success 201 {object} BalanceRequest
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /balance-requests [post]
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidWallet), errors.Is(err, ErrBadAmount), errors.Is(err, ErrRateNotSet):
			c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ledger.ErrInsufficientBalance):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		default:
			logger.Errorf("create balance request: %v", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to create balance request"})
		}
		return
	}
	c.JSON(http.StatusCreated, created)
}

// Complete godoc
// @Summary Approve a balance request
// @Tags balance-requests
// @Produce json
// @Param id path int true "Request ID"
// @Success 200 {object} BalanceRequest
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /balance-requests/{id}/complete [post]
func (h *Handler) Complete(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	operator, _ := auth.GetUserEmail(c)
	updated, err := h.service.Complete(c.Request.Context(), id, operator)
	h.respond(c, updated, err)
}

// Reject godoc
// @Summary Reject a balance request
// @Tags balance-requests
// @Accept json
// @Produce json
// @Param id path int true "Request ID"
// @Param request body RejectRequest true "Rejection comment"
// @Success 200 {object} BalanceRequest
// @Failure 404 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /balance-requests/{id}/reject [post]
func (h *Handler) Reject(c *gin.Context) {
	id, ok := api.ParseIDParam(c, "id")
	if !ok {
		return
	}
	var req RejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	operator, _ := auth.GetUserEmail(c)
	updated, err := h.service.Reject(c.Request.Context(), id, operator, req.Comment)
	h.respond(c, updated, err)
}

// List godoc
// @Summary List balance requests
// @Tags balance-requests
// @Produce json
// @Success 200 {object} api.ListResponse
// @Failure 400 {object} api.ErrorResponse
// @Router /balance-requests [get]
func (h *Handler) List(c *gin.Context) {
	q, err := listquery.Parse(c.Request.URL.Query(), ListSpec)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}
	requests, total, err := h.repo.List(c.Request.Context(), q)
	if err != nil {
		logger.Errorf("list balance requests: %v", err)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to list balance requests"})
		return
	}
	c.JSON(http.StatusOK, api.ListResponse{Items: requests, Total: total})
}

func (h *Handler) respond(c *gin.Context, req *BalanceRequest, err error) {
	if err != nil {
		switch {
		case errors.Is(err, ErrRequestNotFound):
			c.JSON(http.StatusNotFound, api.ErrorResponse{Error: err.Error()})
		case errors.Is(err, ErrRequestNotPending):
			c.JSON(http.StatusConflict, api.ErrorResponse{Error: err.Error()})
		default:
			logger.Errorf("balance request operation: %v", err)
			c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "balance request operation failed"})
		}
		return
	}
	c.JSON(http.StatusOK, req)
}
