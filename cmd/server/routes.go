package main

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storeline-pos/internal/gateway/middleware"
	"storeline-pos/internal/services/pos/handler"
)

func newRouter(posHandler *handler.POSHandler) *gin.Engine {
	r := gin.New()

	r.Use(middleware.CORS())
	r.Use(gin.Logger())
	r.Use(gin.Recovery())
	r.Use(middleware.RateLimit("60-M"))

	protected := r.Group("/api/v1")
	protected.Use(middleware.JWTAuth())
	{
		pos := protected.Group("/pos")
		{
			pos.GET("/products", posHandler.ListProducts)
			pos.GET("/products/:code", posHandler.GetProductByCode)
			pos.GET("/tax-rates", posHandler.ListTaxRates)

			pos.POST("/carts", posHandler.CreateCart)
			pos.GET("/carts/:id", posHandler.GetCart)
			pos.POST("/carts/:id/lines", posHandler.AddCartLine)
			pos.PUT("/carts/:id/lines/:lineId", posHandler.UpdateCartLine)
			pos.DELETE("/carts/:id/lines/:lineId", posHandler.RemoveCartLine)
			pos.POST("/carts/:id/payments", posHandler.AddCartPayment)
			pos.PUT("/carts/:id/payments/:paymentId", posHandler.UpdateCartPayment)
			pos.DELETE("/carts/:id/payments/:paymentId", posHandler.RemoveCartPayment)

			pos.POST("/sessions", posHandler.OpenSession)
			pos.POST("/sessions/:id/close", posHandler.CloseSession)
			pos.GET("/stores/:storeId/sessions/last", posHandler.GetLastSession)

			pos.POST("/sales", posHandler.SubmitSale)
			pos.GET("/sales/:id", posHandler.GetSale)

			pos.POST("/returns", posHandler.RegisterReturn)
			pos.GET("/returns/:id", posHandler.GetReturn)

			pos.GET("/credit-schedules/:id", posHandler.GetCreditSchedule)
			pos.POST("/credit-schedules/:id/installments/:seq/pay", posHandler.MarkInstallmentPaid)
		}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"message":   "Server is running",
			"timestamp": time.Now(),
		})
	})

	return r
}
