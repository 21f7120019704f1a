package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/models"
	"github.com/stitchmart/shop/internal/mykafka"
)

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOutOfStock        = errors.New("product out of stock")
)

type CartHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["userID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// activeCart returns the user's single unordered cart, creating one when
// none exists yet. Carts are provisioned lazily on first interaction.
func activeCart(tx *gorm.DB, userID uint) (*models.Cart, error) {
	var cart models.Cart
	err := tx.Where("user_id = ? AND is_ordered = ?", userID, false).
		FirstOrCreate(&cart, models.Cart{UserID: userID, IsOrdered: false}).Error
	if err != nil {
		return nil, err
	}
	return &cart, nil
}
