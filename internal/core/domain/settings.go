package domain

import (
	"fmt"
	"time"

	"github.com/SscSPs/sledge/internal/apperrors"
)

// StoreSchemaVersion is written into the settings and permissions documents of new stores.
const StoreSchemaVersion = "0.1.0"

// Settings is the per-store settings document.
type Settings struct {
	Version          string      `json:"version"`
	Created          time.Time   `json:"created"`
	DefaultCommodity CommodityID `json:"defaultCommodity"`
}

// DefaultSettings is used for new stores and when a stored document cannot be read.
func DefaultSettings() Settings {
	return Settings{
		Version:          StoreSchemaVersion,
		Created:          Now(),
		DefaultCommodity: MustCurrency("USD"),
	}
}

func (s Settings) Validate() error {
	if s.Version == "" {
		return fmt.Errorf("%w: settings have no version", apperrors.ErrValidation)
	}
	return s.DefaultCommodity.Validate()
}
