package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/models"
	"github.com/stitchmart/shop/internal/service/token"
)

type ProfileHandler struct {
	DB *gorm.DB
}

type orderSummary struct {
	models.Cart
	Total decimal.Decimal `json:"total"`
}

// GetProfile returns the caller's order history (ordered carts, newest
// first, with read-time totals) and authored reviews.
func (h *ProfileHandler) GetProfile(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var user models.User
	if err := h.DB.First(&user, userID).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "user not found")
	}

	var orders []models.Cart
	if err := h.DB.Preload("Items.Product").
		Where("user_id = ? AND is_ordered = ?", userID, true).
		Order("ordered_at DESC").
		Find(&orders).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list orders")
	}

	summaries := make([]orderSummary, len(orders))
	for i := range orders {
		summaries[i] = orderSummary{Cart: orders[i], Total: orders[i].Total()}
	}

	var reviews []models.Review
	if err := h.DB.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list reviews")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"username": user.Username,
		"orders":   summaries,
		"reviews":  reviews,
	})
}
