package services

import (
	"github.com/SscSPs/sledge/internal/core/ports/repositories"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
)

// NewContainer wires the services over one connected store. Without prices the container has
// no exchange service; history may be nil.
func NewContainer(store repositories.DataStore, prices portssvc.CommodityPriceService, history portssvc.CommodityPriceHistoryService) *portssvc.ServiceContainer {
	c := &portssvc.ServiceContainer{
		Ledger:  NewLedgerService(store),
		Journal: NewJournalService(store),
	}
	if prices != nil {
		c.Exchange = NewExchangeService(prices, history)
	}
	return c
}
