package restsvc

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// NewRouter собирает gin-роутер публичного API заказов.
func NewRouter(handler *OrderHandler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())

	api := router.Group("/api/v1")
	{
		orders := api.Group("/orders")
		orders.POST("", handler.withIdempotency(handler.CreateOrder))
		orders.GET("", handler.ListOrders)
		orders.GET("/:id", handler.GetOrder)
		orders.PATCH("/:id/status", handler.withIdempotency(handler.ChangeOrderStatus))
	}

	return router
}
