package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/SscSPs/sledge/internal/core/domain"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/dto"
	"github.com/SscSPs/sledge/internal/middleware"
	"github.com/gin-gonic/gin"
)

// journalHandler handles HTTP requests related to journals and their transactions.
type journalHandler struct {
	journalService portssvc.JournalSvcFacade
	now            func() time.Time
}

func newJournalHandler(journalService portssvc.JournalSvcFacade) *journalHandler {
	return &journalHandler{journalService: journalService, now: domain.Now}
}

func journalName(c *gin.Context) domain.JournalName {
	return domain.JournalName(c.Param("name"))
}

func (h *journalHandler) listJournals(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var params dto.PageParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters"})
		return
	}

	page, err := h.journalService.ListJournals(c.Request.Context(), user, params.PageToken)
	if err != nil {
		respondError(c, err, "Failed to list journals")
		return
	}

	now := h.now()
	res := dto.ListJournalsResponse{
		Journals:      make([]dto.JournalResponse, len(page.Items)),
		NextPageToken: nextToken(params.PageToken, page.NextToken),
	}
	for i, j := range page.Items {
		res.Journals[i] = dto.ToJournalResponse(j, now, false)
	}
	c.JSON(http.StatusOK, res)
}

func (h *journalHandler) getJournal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	j, err := h.journalService.GetJournal(c.Request.Context(), user, journalName(c))
	if err != nil {
		respondError(c, err, "Failed to retrieve journal")
		return
	}
	c.JSON(http.StatusOK, dto.ToJournalResponse(j, h.now(), true))
}

func (h *journalHandler) addTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.TransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := req.ToDomain("")
	if err != nil {
		respondError(c, err, "Invalid transaction")
		return
	}
	tx, err = h.journalService.AddTransaction(c.Request.Context(), user, journalName(c), tx)
	if err != nil {
		respondError(c, err, "Failed to record transaction")
		return
	}

	middleware.GetLoggerFromCtx(c.Request.Context()).Info("Transaction recorded", slog.String("transaction_id", tx.ID.String()))
	c.JSON(http.StatusCreated, dto.ToTransactionResponse(tx))
}

func (h *journalHandler) updateTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.TransactionRequest
	if !bindJSON(c, &req) {
		return
	}

	tx, err := req.ToDomain(domain.TransactionID(c.Param("transactionID")))
	if err != nil {
		respondError(c, err, "Invalid transaction")
		return
	}
	tx, err = h.journalService.UpdateTransaction(c.Request.Context(), user, journalName(c), tx)
	if err != nil {
		respondError(c, err, "Failed to update transaction")
		return
	}
	c.JSON(http.StatusOK, dto.ToTransactionResponse(tx))
}

func (h *journalHandler) removeTransaction(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	id := domain.TransactionID(c.Param("transactionID"))
	if err := h.journalService.RemoveTransaction(c.Request.Context(), user, journalName(c), id); err != nil {
		respondError(c, err, "Failed to remove transaction")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *journalHandler) reconcileSplit(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}
	var req dto.ReconcileRequest
	if !bindJSON(c, &req) {
		return
	}

	split, err := h.journalService.Reconcile(c.Request.Context(), user, journalName(c), domain.SplitID(c.Param("splitID")), req.Reference)
	if err != nil {
		respondError(c, err, "Failed to reconcile split")
		return
	}
	c.JSON(http.StatusOK, dto.ToSplitResponse(split))
}

func (h *journalHandler) closeJournal(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	if err := h.journalService.Close(c.Request.Context(), user, journalName(c)); err != nil {
		respondError(c, err, "Failed to close journal")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *journalHandler) newVersion(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		return
	}

	version, err := h.journalService.NewVersion(c.Request.Context(), user, journalName(c))
	if err != nil {
		respondError(c, err, "Failed to start a new journal version")
		return
	}
	c.JSON(http.StatusCreated, dto.VersionResponse{Version: version})
}

// RegisterJournalRoutes registers journal routes on group. Signing is left to holders of the
// signing key and is not exposed here.
func RegisterJournalRoutes(group *gin.RouterGroup, journalService portssvc.JournalSvcFacade) {
	h := newJournalHandler(journalService)

	journals := group.Group("/journals")
	{
		journals.GET("", h.listJournals)
		journals.GET("/:name", h.getJournal)
		journals.POST("/:name/transactions", h.addTransaction)
		journals.PUT("/:name/transactions/:transactionID", h.updateTransaction)
		journals.DELETE("/:name/transactions/:transactionID", h.removeTransaction)
		journals.POST("/:name/splits/:splitID/reconcile", h.reconcileSplit)
		journals.POST("/:name/close", h.closeJournal)
		journals.POST("/:name/versions", h.newVersion)
	}
}
