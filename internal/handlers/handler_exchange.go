package handlers

import (
	"net/http"

	"github.com/SscSPs/sledge/internal/core/domain"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/dto"
	"github.com/gin-gonic/gin"
)

type exchangeHandler struct {
	exchangeService portssvc.ExchangeSvc
}

// convert answers GET /exchange?amount=10&from=EUR&to=USD, optionally at a past time via asOf.
func (h *exchangeHandler) convert(c *gin.Context) {
	if _, ok := currentUser(c); !ok {
		return
	}
	var params dto.ExchangeParams
	if err := c.ShouldBindQuery(&params); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid query parameters: " + err.Error()})
		return
	}

	q, err := params.Quantity()
	if err != nil {
		respondError(c, err, "Invalid amount")
		return
	}
	to, err := domain.ParseCommodityID(params.To)
	if err != nil {
		respondError(c, err, "Invalid target commodity")
		return
	}

	var rq domain.RatedQuantity
	if params.AsOf != nil {
		rq, err = h.exchangeService.ConvertAt(c.Request.Context(), q, to, params.AsOf.UTC())
	} else {
		rq, err = h.exchangeService.Convert(c.Request.Context(), q, to)
	}
	if err != nil {
		respondError(c, err, "Failed to convert")
		return
	}
	c.JSON(http.StatusOK, dto.ToExchangeResponse(rq))
}

// RegisterExchangeRoutes registers the conversion route on group.
func RegisterExchangeRoutes(group *gin.RouterGroup, exchangeService portssvc.ExchangeSvc) {
	h := &exchangeHandler{exchangeService: exchangeService}
	group.GET("/exchange", h.convert)
}
