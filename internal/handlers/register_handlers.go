package handlers

import (
	"net/http"

	portssvc "github.com/SscSPs/sledge/internal/core/ports/services"
	"github.com/SscSPs/sledge/internal/middleware"
	"github.com/SscSPs/sledge/internal/platform/config"
	"github.com/gin-gonic/gin"
)

// RegisterRoutes sets up all application routes, injecting dependencies using interfaces.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.ServerConfig,
	services *portssvc.ServiceContainer,
) error {
	limiter, err := middleware.NewLimiter(cfg.RateLimit)
	if err != nil {
		return err
	}

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	v1 := r.Group("/api/v1",
		middleware.RateLimit(limiter),
		middleware.AuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer),
	)

	RegisterLedgerRoutes(v1, services.Ledger)
	RegisterJournalRoutes(v1, services.Journal)
	if services.Exchange != nil {
		RegisterExchangeRoutes(v1, services.Exchange)
	}
	return nil
}
