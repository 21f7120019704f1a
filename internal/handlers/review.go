package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/cache"
	"github.com/stitchmart/shop/internal/logging"
	"github.com/stitchmart/shop/internal/models"
	"github.com/stitchmart/shop/internal/mykafka"
	"github.com/stitchmart/shop/internal/service/token"
	"github.com/stitchmart/shop/internal/validation"
)

const ratingCacheTTL = 5 * time.Minute

type ReviewHandler struct {
	DB       *gorm.DB
	Cache    *cache.Cache
	Producer *mykafka.Producer
}

type CreateReviewRequest struct {
	Rating  uint   `json:"rating"  validate:"required,min=1,max=5"`
	Content string `json:"content" validate:"required"`
}

// ProductRating is the aggregate returned by the rating endpoint and the
// value cached in redis.
type ProductRating struct {
	ProductID uint    `json:"product_id"`
	Average   float64 `json:"average"`
	Count     int64   `json:"count"`
}

func ratingKey(productID uint) string {
	return fmt.Sprintf("product:%d:rating", productID)
}

func (h *ReviewHandler) productID(c echo.Context) (uint, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid product id")
	}
	return uint(id), nil
}

func (h *ReviewHandler) GetReviews(c echo.Context) error {
	productID, err := h.productID(c)
	if err != nil {
		return err
	}

	var reviews []models.Review
	if err := h.DB.Where("product_id = ?", productID).
		Order("created_at DESC").
		Find(&reviews).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list reviews")
	}

	return c.JSON(http.StatusOK, reviews)
}

func (h *ReviewHandler) CreateReview(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "review.create")

	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	productID, err := h.productID(c)
	if err != nil {
		return err
	}

	var req CreateReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		l.Warn("create_review_failed", "status", 400, "reason", validation.FirstError(errs))
		return echo.NewHTTPError(http.StatusBadRequest, validation.FirstError(errs))
	}

	var product models.Product
	if err := h.DB.First(&product, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}

	review := models.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    req.Rating,
		Content:   req.Content,
	}
	if err := h.DB.Create(&review).Error; err != nil {
		l.Error("create_review_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create review")
	}

	// The cached aggregate is stale the moment a review lands.
	if err := h.Cache.Delete(ctx, ratingKey(productID)); err != nil {
		l.Warn("rating_cache_invalidate_failed", "productID", productID, "error", err)
	}

	if h.Producer != nil {
		pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := h.Producer.PublishEvent(pubCtx, "review_events", fmt.Sprint(productID), map[string]any{
			"type":      "review_created",
			"reviewID":  review.ID,
			"productID": productID,
			"userID":    userID,
			"rating":    review.Rating,
		}); err != nil {
			c.Logger().Errorf("Kafka publish error: %v", err)
		}
	}

	l.Info("create_review_success", "reviewID", review.ID, "productID", productID)
	return c.JSON(http.StatusCreated, review)
}

func (h *ReviewHandler) GetRating(c echo.Context) error {
	ctx := c.Request().Context()

	productID, err := h.productID(c)
	if err != nil {
		return err
	}

	var rating ProductRating
	if h.Cache.Get(ctx, ratingKey(productID), &rating) {
		return c.JSON(http.StatusOK, rating)
	}

	var agg struct {
		Average *float64
		Count   int64
	}
	if err := h.DB.Model(&models.Review{}).
		Select("AVG(rating) AS average, COUNT(*) AS count").
		Where("product_id = ?", productID).
		Scan(&agg).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot aggregate reviews")
	}

	rating = ProductRating{ProductID: productID, Count: agg.Count}
	if agg.Average != nil {
		rating.Average = *agg.Average
	}

	if err := h.Cache.Set(ctx, ratingKey(productID), rating, ratingCacheTTL); err != nil {
		logging.FromContext(ctx).Warn("rating_cache_set_failed", "productID", productID, "error", err)
	}

	return c.JSON(http.StatusOK, rating)
}
