package v1

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"grantflow/grant-portal-backend/internal/auth"
	"grantflow/grant-portal-backend/internal/rfps"
)

// RFPsAPI holds the RFP API dependencies
type RFPsAPI struct {
	Handler    *rfps.Handler
	Service    *rfps.Service
	Repository rfps.Repository
}

// SetupRFPsAPI sets up the RFP API with all dependencies
func SetupRFPsAPI(db *sqlx.DB, closingDuration time.Duration, logger *zap.Logger) *RFPsAPI {
	repository := rfps.NewPostgresRepository(db)
	service := rfps.NewService(repository, closingDuration, logger)
	handler := rfps.NewHandler(service, logger)

	return &RFPsAPI{
		Handler:    handler,
		Service:    service,
		Repository: repository,
	}
}

// RegisterRFPsRoutes registers the RFP routes on the router group
func RegisterRFPsRoutes(router *gin.RouterGroup, api *RFPsAPI, mw *auth.Middleware) {
	api.Handler.RegisterRoutes(router, mw)
}
