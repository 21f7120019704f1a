package cart

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/logging"
	"github.com/stitchmart/shop/internal/metrics"
	"github.com/stitchmart/shop/internal/models"
	"github.com/stitchmart/shop/internal/service/token"
)

func (h *CartHandler) GetCart(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var cart *models.Cart
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		cart, err = activeCart(tx, userID)
		if err != nil {
			return err
		}
		return tx.Preload("Items.Product").First(cart, cart.ID).Error
	})
	if txErr != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load cart")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"cart":  cart,
		"total": cart.Total(),
	})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.add")

	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint `json:"product_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "product_id required")
	}

	var item models.CartItem
	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.First(&product, req.ProductID).Error; err != nil {
			return err
		}
		if product.StockCount == 0 {
			return fmt.Errorf("%w: %s", ErrOutOfStock, product.Name)
		}

		cart, err := activeCart(tx, userID)
		if err != nil {
			return err
		}

		// Re-adding a product bumps the existing line instead of
		// duplicating the (cart, product) pair.
		res := tx.Where("cart_id = ? AND product_id = ?", cart.ID, req.ProductID).First(&item)
		if res.Error == nil {
			item.Quantity += 1
			return tx.Save(&item).Error
		}
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return res.Error
		}

		item = models.CartItem{CartID: cart.ID, ProductID: req.ProductID, Quantity: 1}
		return tx.Create(&item).Error
	})
	if txErr != nil {
		if errors.Is(txErr, gorm.ErrRecordNotFound) {
			l.Warn("add_to_cart_failed", "status", 404, "productID", req.ProductID)
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		if errors.Is(txErr, ErrOutOfStock) {
			l.Warn("add_to_cart_failed", "status", 409, "reason", txErr.Error())
			return echo.NewHTTPError(http.StatusConflict, txErr.Error())
		}
		l.Error("add_to_cart_failed", "status", 500, "error", txErr)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot add to cart")
	}

	h.publish(c, map[string]any{
		"type":      "cart_item_added",
		"userID":    userID,
		"productID": req.ProductID,
		"quantity":  item.Quantity,
	})

	l.Info("add_to_cart_success", "productID", req.ProductID, "quantity", item.Quantity)
	return c.JSON(http.StatusOK, item)
}

func (h *CartHandler) RemoveFromCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.remove")

	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	// The line must sit in the caller's own active cart. Anything else,
	// including another user's item or an already ordered cart, reads as
	// not found.
	var cart models.Cart
	if err := h.DB.Where("user_id = ? AND is_ordered = ?", userID, false).First(&cart).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load cart")
	}

	var item models.CartItem
	if err := h.DB.Where("id = ? AND cart_id = ?", id, cart.ID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			l.Warn("remove_from_cart_failed", "status", 404, "itemID", id)
			return echo.NewHTTPError(http.StatusNotFound, "item not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot load item")
	}

	if err := h.DB.Delete(&item).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete item")
	}

	h.publish(c, map[string]any{
		"type":         "cart_item_deleted",
		"userID":       userID,
		"deleted_item": id,
	})

	return c.JSON(http.StatusOK, map[string]any{"deleted_item": id})
}

// Checkout turns the active cart into an order: every line is validated
// against current stock before any stock moves, stock is decremented with
// guarded updates inside one transaction, the cart is frozen and a fresh
// empty cart takes its place.
func (h *CartHandler) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "cart.checkout")

	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	var (
		ordered models.Cart
		total   decimal.Decimal
	)

	txErr := h.DB.Transaction(func(tx *gorm.DB) error {
		var cart models.Cart
		if err := tx.Preload("Items.Product").
			Where("user_id = ? AND is_ordered = ?", userID, false).
			First(&cart).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrEmptyCart
			}
			return err
		}
		if len(cart.Items) == 0 {
			return ErrEmptyCart
		}

		// Phase one: validate every line before touching anything.
		for _, item := range cart.Items {
			if item.Product.StockCount < item.Quantity {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, item.Product.Name)
			}
		}

		// Phase two: decrement. The stock_count guard makes the update a
		// no-op when a concurrent order drained the shelf between the
		// read above and this write, which rolls the whole order back.
		for i := range cart.Items {
			item := &cart.Items[i]
			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock_count >= ?", item.ProductID, item.Quantity).
				Update("stock_count", gorm.Expr("stock_count - ?", item.Quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return fmt.Errorf("%w: %s", ErrInsufficientStock, item.Product.Name)
			}
		}

		now := time.Now()
		if err := tx.Model(&cart).Updates(map[string]any{
			"is_ordered": true,
			"ordered_at": now,
		}).Error; err != nil {
			return err
		}
		cart.IsOrdered = true
		cart.OrderedAt = &now

		fresh := models.Cart{UserID: userID}
		if err := tx.Create(&fresh).Error; err != nil {
			return err
		}

		total = cart.Total()
		ordered = cart
		return nil
	})

	if txErr != nil {
		switch {
		case errors.Is(txErr, ErrEmptyCart):
			metrics.CheckoutTotal.WithLabelValues("empty").Inc()
			l.Warn("checkout_failed", "status", 409, "reason", "cart is empty")
			return echo.NewHTTPError(http.StatusConflict, "cart is empty")
		case errors.Is(txErr, ErrInsufficientStock):
			metrics.CheckoutTotal.WithLabelValues("insufficient_stock").Inc()
			l.Warn("checkout_failed", "status", 409, "reason", txErr.Error())
			return echo.NewHTTPError(http.StatusConflict, txErr.Error())
		default:
			metrics.CheckoutTotal.WithLabelValues("error").Inc()
			l.Error("checkout_failed", "status", 500, "error", txErr)
			return echo.NewHTTPError(http.StatusInternalServerError, "checkout failed")
		}
	}

	metrics.CheckoutTotal.WithLabelValues("ok").Inc()

	h.publish(c, map[string]any{
		"type":    "order_created",
		"userID":  userID,
		"orderID": ordered.ID,
		"total":   total,
	})

	l.Info("checkout_success", "orderID", ordered.ID, "total", total)
	return c.JSON(http.StatusOK, echo.Map{
		"order_id":   ordered.ID,
		"ordered_at": ordered.OrderedAt,
		"items":      ordered.Items,
		"total":      total,
	})
}
