package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"tolovpay.uz/app/internal/http/handlers"
	"tolovpay.uz/app/internal/http/middleware"
)

type RouterDeps struct {
	Logger    *slog.Logger
	Payments  *handlers.PaymentHandler
	Callbacks *handlers.CallbackHandler
	Reconcile *handlers.ReconcileHandler
}

// NewRouter wires middleware and routes. Callback endpoints sit outside
// /api: providers call them and their contracts own the response shape.
func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.ErrorHandler(deps.Logger))

	cb := r.Group("/callbacks")
	{
		cb.POST("/click", deps.Callbacks.HandleClick)
		cb.POST("/oson", deps.Callbacks.HandleOson)
		cb.POST("/card", deps.Callbacks.HandleCard)
	}

	api := r.Group("/api")
	{
		api.POST("/payments", deps.Payments.Create)
		api.GET("/payments/:id", deps.Payments.Get)
		api.POST("/payments/:id/refund", deps.Payments.Refund)
		api.POST("/payments/:id/cancel", deps.Payments.Cancel)
		api.POST("/payments/:id/confirm", deps.Payments.Confirm)

		api.GET("/reconciliation", deps.Reconcile.Run)
	}

	return r
}
