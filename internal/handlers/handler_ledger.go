package handlers

import (
	"log/slog"
	"net/http"

	"github.com/SscSPs/sledge/internal/core/domain"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/dto"
	"github.com/SscSPs/sledge/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ledgerHandler handles HTTP requests related to ledgers and their accounts.
type ledgerHandler struct {
	ledgerService portssvc.LedgerSvcFacade
}

func newLedgerHandler(ledgerService portssvc.LedgerSvcFacade) *ledgerHandler {
	return &ledgerHandler{ledgerService: ledgerService}
}

func ledgerKind(c *gin.Context) (domain.LedgerKind, bool) {
	kind, err := domain.ParseLedgerKind(c.Param("kind"))
	if err != nil {
		respondError(c, err, "Invalid ledger kind")
		return domain.LedgerKind{}, false
	}
	return kind, true
}

func (h *ledgerHandler) listLedgers(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var params dto.PageParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}

	page, err := h.ledgerService.ListLedgers(c.Request.Context(), user, params.PageToken)
	if err != nil {
		respondError(c, err, "Failed to list ledgers")
		return
	}

	res := dto.ListLedgersResponse{
		Ledgers:       make([]dto.LedgerResponse, len(page.Items)),
		NextPageToken: nextToken(params.PageToken, page.NextToken),
	}
	for i, l := range page.Items {
		res.Ledgers[i] = dto.ToLedgerResponse(l)
	}
	c.JSON(http.StatusOK, res)
}

func (h *ledgerHandler) getLedger(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	kind, ok := ledgerKind(c)
	if !ok {
		return
	}

	l, err := h.ledgerService.GetLedger(c.Request.Context(), user, kind)
	if err != nil {
		respondError(c, err, "Failed to retrieve ledger")
		return
	}
	c.JSON(http.StatusOK, dto.ToLedgerResponse(l))
}

func (h *ledgerHandler) createAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	kind, ok := ledgerKind(c)
	if !ok {
		return
	}
	var req dto.CreateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	account, err := req.ToDomain()
	if err != nil {
		respondError(c, err, "Invalid account")
		return
	}
	account, err = h.ledgerService.AddAccount(c.Request.Context(), user, kind, account)
	if err != nil {
		respondError(c, err, "Failed to create account")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Account created", slog.String("account_id", account.ID.String()))
	c.JSON(http.StatusCreated, dto.ToAccountResponse(account))
}

func (h *ledgerHandler) updateAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	kind, ok := ledgerKind(c)
	if !ok {
		return
	}
	var req dto.UpdateAccountRequest
	if !bindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	l, err := h.ledgerService.GetLedger(ctx, user, kind)
	if err != nil {
		respondError(c, err, "Failed to retrieve ledger")
		return
	}
	id := domain.AccountID(c.Param("accountID"))
	current, found := l.Account(id)
	if !found {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "Account not found"})
		return
	}
	changed, err := req.Apply(current)
	if err != nil {
		respondError(c, err, "Invalid account update")
		return
	}
	updated, err := h.ledgerService.UpdateAccount(ctx, user, kind, changed)
	if err != nil {
		respondError(c, err, "Failed to update account")
		return
	}
	c.JSON(http.StatusOK, dto.ToAccountResponse(updated))
}

func (h *ledgerHandler) deactivateAccount(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	kind, ok := ledgerKind(c)
	if !ok {
		return
	}

	if err := h.ledgerService.DeactivateAccount(c.Request.Context(), user, kind, domain.AccountID(c.Param("accountID"))); err != nil {
		respondError(c, err, "Failed to deactivate account")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ledgerHandler) getBalance(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	kind, ok := ledgerKind(c)
	if !ok {
		return
	}

	id := domain.AccountID(c.Param("accountID"))
	balance, err := h.ledgerService.Balance(c.Request.Context(), user, kind, id)
	if err != nil {
		respondError(c, err, "Failed to calculate balance")
		return
	}
	c.JSON(http.StatusOK, dto.ToBalanceResponse(id, balance))
}

// RegisterLedgerRoutes registers ledger and account routes on group.
func RegisterLedgerRoutes(group *gin.RouterGroup, ledgerService portssvc.LedgerSvcFacade) {
	h := newLedgerHandler(ledgerService)

	ledgers := group.Group("/ledgers")
	{
		ledgers.GET("", h.listLedgers)
		ledgers.GET("/:kind", h.getLedger)
		ledgers.POST("/:kind/accounts", h.createAccount)
		ledgers.PATCH("/:kind/accounts/:accountID", h.updateAccount)
		ledgers.DELETE("/:kind/accounts/:accountID", h.deactivateAccount)
		ledgers.GET("/:kind/accounts/:accountID/balance", h.getBalance)
	}
}
