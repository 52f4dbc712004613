package httpserver

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	middleware "github.com/Skotchmaster/crochet_shop/internal/middleware/auth"
)

type Deps struct {
	CartHandler        *CartHTTP
	OrderHandler       *OrderHTTP
	AccountHandler     *AccountHTTP
	AuthHandler        *AuthHTTP
	TestimonialHandler *TestimonialHTTP
	JWTSecret          []byte
	Refresher          middleware.Refresher
	Ready              func(ctx context.Context) error
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.Ready != nil {
			if err := d.Ready(c.Request().Context()); err != nil {
				return c.NoContent(http.StatusServiceUnavailable)
			}
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.Refresher)

	api := e.Group("/api/v1")

	api.GET("/shipping/regions", ShippingRegions)

	auth := api.Group("/auth")
	auth.POST("/register", d.AuthHandler.Register)
	auth.POST("/login", d.AuthHandler.Login)
	auth.POST("/refresh", d.AuthHandler.Refresh)
	auth.POST("/logout", d.AuthHandler.LogOut)
	auth.GET("/user", d.AuthHandler.CurrentUser, authMW.RequireAuth)

	cart := api.Group("/cart", authMW.RequireAuth)
	cart.GET("/:userId", d.CartHandler.GetCart)
	cart.POST("/:userId", d.CartHandler.SaveCart)
	cart.POST("/:userId/merge", d.CartHandler.MergeCart)

	orders := api.Group("/orders")
	orders.POST("", d.OrderHandler.CreateOrder, authMW.RequireAuth)
	orders.GET("/myorders", d.OrderHandler.MyOrders, authMW.RequireAuth)
	orders.DELETE("/:id", d.OrderHandler.DeleteOrder, authMW.RequireAuth)
	orders.DELETE("/:id/product/:productId", d.OrderHandler.CancelLine, authMW.RequireAuth)
	orders.GET("", d.OrderHandler.ListOrders, authMW.RequireAdmin)
	orders.PATCH("/:id/status", d.OrderHandler.UpdateStatus, authMW.RequireAdmin)

	users := api.Group("/users", authMW.RequireAuth)
	users.GET("/:id", d.AccountHandler.GetUser)
	users.PATCH("/:id", d.AccountHandler.UpdateUser)

	testimonials := api.Group("/testimonials")
	testimonials.GET("", d.TestimonialHandler.List)
	testimonials.POST("", d.TestimonialHandler.Create)
	testimonials.GET("/stream", d.TestimonialHandler.Stream)
	testimonials.DELETE("/:id", d.TestimonialHandler.Delete, authMW.RequireAdmin)
}
