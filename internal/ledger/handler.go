package ledger

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/ToropovAlexei/autosales-sub001/internal/api"
	"github.com/ToropovAlexei/autosales-sub001/internal/listquery"
)

type Handler struct {
	repo Repository
}

func NewHandler(db *sqlx.DB) *Handler {
	return &Handler{repo: NewRepository(db)}
}

// @Summary      List ledger transactions
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} api.ListResponse
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /transactions [get]
func (h *Handler) List(c *gin.Context) {
	q, err := listquery.Parse(c.Request.URL.Query(), ListSpec)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: err.Error()})
		return
	}

	txs, total, err := h.repo.List(c.Request.Context(), q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{Items: txs, Total: total})
}

// @Summary      Current store reserve balance
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} map[string]interface{}
// @Failure      500 {object} api.ErrorResponse
// @Router       /store-balance [get]
func (h *Handler) StoreBalance(c *gin.Context) {
	last, err := h.repo.GetLast(c.Request.Context())
	if errors.Is(err, ErrNoTransactions) {
		c.JSON(http.StatusOK, gin.H{"store_balance": "0"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load store balance"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"store_balance": last.StoreBalanceAfter})
}

// @Summary      List transactions of a customer
// @Tags         transactions
// @Produce      json
// @Security     BearerAuth
// @Param        customerID path int true "Customer ID"
// @Success      200 {array} Transaction
// @Failure      400 {object} api.ErrorResponse
// @Failure      500 {object} api.ErrorResponse
// @Router       /customers/{customerID}/transactions [get]
func (h *Handler) ListForCustomer(c *gin.Context) {
	customerID, err := strconv.ParseInt(c.Param("customerID"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, api.ErrorResponse{Error: "invalid customer id"})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.repo.ListForCustomer(c.Request.Context(), customerID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}
