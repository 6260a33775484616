package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/starlynx/utility-ledger/internal/api/handler"
	"github.com/starlynx/utility-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transactionHandler *handler.TransactionHandler,
	paymentHandler *handler.PaymentHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.RequestID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account and ledger operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.GET("/:id/entries", accountHandler.GetEntries)
			accounts.POST("/:id/deposits", transactionHandler.Deposit)
			accounts.POST("/:id/withdrawals", transactionHandler.Withdraw)
		}
		v1.POST("/transfers", transactionHandler.Transfer)

		// External payment operations
		payments := v1.Group("/payments")
		{
			payments.POST("", paymentHandler.Initiate)
			payments.POST("/callback", paymentHandler.Callback)
			payments.GET("/outcome", paymentHandler.Outcome)
			payments.GET("/:correlation_id", paymentHandler.GetByCorrelationID)
			payments.GET("/:correlation_id/deliveries", paymentHandler.Deliveries)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
