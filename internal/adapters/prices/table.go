// Package prices holds an in-memory table of commodity price quotes.
package prices

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
	"github.com/SscSPs/sledge/internal/core/domain"
	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
)

// Table keeps quotes per commodity ordered by time. It serves both the current price and the
// history service.
type Table struct {
	mu     sync.RWMutex
	quotes map[domain.CommodityID][]portssvc.PriceQuote
	now    func() time.Time
}

var (
	_ portssvc.CommodityPriceService        = (*Table)(nil)
	_ portssvc.CommodityPriceHistoryService = (*Table)(nil)
)

func NewTable() *Table {
	return &Table{quotes: map[domain.CommodityID][]portssvc.PriceQuote{}, now: domain.Now}
}

// WithClock replaces the clock used for trailing history windows.
func (t *Table) WithClock(now func() time.Time) *Table {
	t.now = now
	return t
}

// Add records quotes. A quote at the same time as an existing one replaces it.
func (t *Table) Add(quotes ...portssvc.PriceQuote) error {
	for _, q := range quotes {
		if err := q.Validate(); err != nil {
			return err
		}
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, q := range quotes {
		q.AsOf = q.AsOf.UTC()
		list := t.quotes[q.Commodity]
		i, found := slices.BinarySearchFunc(list, q.AsOf, func(e portssvc.PriceQuote, at time.Time) int {
			return e.AsOf.Compare(at)
		})
		if found {
			list[i] = q
		} else {
			list = slices.Insert(list, i, q)
		}
		t.quotes[q.Commodity] = list
	}
	return nil
}

// LoadFile reads a JSON array of quotes.
func LoadFile(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewIOError("read", path, err)
	}
	var quotes []portssvc.PriceQuote
	if err := json.Unmarshal(raw, &quotes); err != nil {
		return nil, fmt.Errorf("%w: price file %s: %v", apperrors.ErrSerialization, path, err)
	}
	t := NewTable()
	if err := t.Add(quotes...); err != nil {
		return nil, fmt.Errorf("price file %s: %w", path, err)
	}
	return t, nil
}

func (t *Table) GetPrice(ctx context.Context, commodity domain.CommodityID) (portssvc.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return portssvc.PriceQuote{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.quotes[commodity]
	if len(list) == 0 {
		return portssvc.PriceQuote{}, fmt.Errorf("%w: no price for %s", apperrors.ErrNotFound, commodity)
	}
	return list[len(list)-1], nil
}

func (t *Table) GetHistoricalPrice(ctx context.Context, commodity domain.CommodityID, asOf time.Time) (portssvc.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return portssvc.PriceQuote{}, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.quotes[commodity]
	// first quote strictly after asOf
	i, _ := slices.BinarySearchFunc(list, asOf, func(e portssvc.PriceQuote, at time.Time) int {
		if e.AsOf.After(at) {
			return 1
		}
		return -1
	})
	if i == 0 {
		return portssvc.PriceQuote{}, fmt.Errorf("%w: no price for %s at %s", apperrors.ErrNotFound, commodity, asOf.Format(time.RFC3339))
	}
	return list[i-1], nil
}

func (t *Table) GetPriceTrailingHistory(ctx context.Context, commodity domain.CommodityID, window portssvc.HistoryRange) ([]portssvc.PriceQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, err := portssvc.ParseHistoryRange(window.String()); err != nil {
		return nil, err
	}
	now := t.now()
	since := window.Since(now)

	t.mu.RLock()
	defer t.mu.RUnlock()
	out := []portssvc.PriceQuote{}
	for _, q := range t.quotes[commodity] {
		if !q.AsOf.Before(since) && !q.AsOf.After(now) {
			out = append(out, q)
		}
	}
	return out, nil
}
