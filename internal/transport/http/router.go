package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/handlers"
	"github.com/stitchmart/shop/internal/handlers/cart"
	"github.com/stitchmart/shop/internal/metrics"
	"github.com/stitchmart/shop/internal/service/token"
)

type Deps struct {
	DB             *gorm.DB
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	CatalogHandler *handlers.CatalogHandler
	ReviewHandler  *handlers.ReviewHandler
	ProfileHandler *handlers.ProfileHandler
	CartHandler    *cart.CartHandler
	SearchHandler  *handlers.SearchHandler
	TokenService   *token.TokenService
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/metrics", metrics.Handler())

	v1 := e.Group("/api/v1")

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.POST("/logout", d.AuthHandler.LogOut)

	// Reads are open, mutations require a logged-in user.
	v1.GET("/products", d.ProductHandler.GetProducts)
	v1.GET("/products/:id", d.ProductHandler.GetProduct)
	v1.GET("/products/:id/reviews", d.ReviewHandler.GetReviews)
	v1.GET("/products/:id/rating", d.ReviewHandler.GetRating)
	v1.GET("/brands", d.CatalogHandler.GetBrands)
	v1.GET("/categories", d.CatalogHandler.GetCategories)
	if d.SearchHandler != nil {
		v1.GET("/search", d.SearchHandler.Search)
	}

	auth := v1.Group("", d.TokenService.AutoRefreshMiddleware)

	auth.POST("/products", d.ProductHandler.CreateProduct)
	auth.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	auth.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	auth.POST("/products/:id/reviews", d.ReviewHandler.CreateReview)
	auth.POST("/brands", d.CatalogHandler.CreateBrand)
	auth.POST("/categories", d.CatalogHandler.CreateCategory)

	auth.GET("/cart", d.CartHandler.GetCart)
	auth.POST("/cart", d.CartHandler.AddToCart)
	auth.DELETE("/cart/items/:id", d.CartHandler.RemoveFromCart)
	auth.POST("/cart/checkout", d.CartHandler.Checkout)

	auth.GET("/profile", d.ProfileHandler.GetProfile)
}
