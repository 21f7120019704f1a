package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/logging"
	"github.com/stitchmart/shop/internal/models"
	"github.com/stitchmart/shop/internal/mykafka"
	"github.com/stitchmart/shop/internal/service/token"
	"github.com/stitchmart/shop/internal/util"
	"github.com/stitchmart/shop/internal/validation"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

type CreateProductRequest struct {
	Name        string          `json:"name"        validate:"required,letters"`
	SKU         string          `json:"sku"         validate:"omitempty,max=30"`
	Description string          `json:"description"`
	Gender      string          `json:"gender"      validate:"omitempty,oneof=K M N"`
	Size        string          `json:"size"        validate:"omitempty,oneof=XS S M L XL XXL 35-38 39-42 43-46 30 32 34 36"`
	Fabric      string          `json:"fabric"      validate:"omitempty,oneof=C P L S W J K E"`
	Color       string          `json:"color"       validate:"omitempty,oneof=C B N Z R G"`
	Price       decimal.Decimal `json:"price"`
	StockCount  uint            `json:"stock_count"`
	Sale        bool            `json:"sale"`
	BrandID     *uint           `json:"brand_id"`
	CategoryID  *uint           `json:"category_id"`
}

type PatchProductRequest struct {
	Name        *string          `json:"name"        validate:"omitempty,letters"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	StockCount  *uint            `json:"stock_count"`
	Sale        *bool            `json:"sale"`
	BrandID     *uint            `json:"brand_id"`
	CategoryID  *uint            `json:"category_id"`
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}

	return c.JSON(http.StatusOK, product)
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := util.ParseIntDefault(c.QueryParam("page"), 1)
	size := util.ParseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	q := h.DB.Model(&models.Product{})
	if name := c.QueryParam("name"); name != "" {
		q = q.Where("LOWER(name) LIKE LOWER(?)", "%"+name+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot count products")
	}

	var items []models.Product
	if err := q.Order("created_at DESC").Offset(offset).Limit(limit).Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list products")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.create")

	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	req := CreateProductRequest{Gender: "N", Size: "M", Fabric: "C", Color: "B", StockCount: 1}
	if err := c.Bind(&req); err != nil {
		l.Warn("create_product_failed", "status", 400, "reason", "invalid body", "error", err)
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		l.Warn("create_product_failed", "status", 400, "reason", validation.FirstError(errs))
		return echo.NewHTTPError(http.StatusBadRequest, validation.FirstError(errs))
	}
	if req.Price.IsNegative() {
		l.Warn("create_product_failed", "status", 400, "reason", "negative price")
		return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
	}

	prod := models.Product{
		Name:        req.Name,
		SKU:         req.SKU,
		Description: req.Description,
		Gender:      req.Gender,
		Size:        req.Size,
		Fabric:      req.Fabric,
		Color:       req.Color,
		Price:       req.Price,
		StockCount:  req.StockCount,
		Sale:        req.Sale,
		BrandID:     req.BrandID,
		CategoryID:  req.CategoryID,
		OwnerID:     userID,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		if errors.Is(err, models.ErrNegativePrice) {
			return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
		}
		l.Error("create_product_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create product")
	}

	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"sku":       prod.SKU,
		"name":      prod.Name,
	})

	l.Info("create_product_success", "productID", prod.ID, "sku", prod.SKU)
	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "product.patch")

	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req PatchProductRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, validation.FirstError(errs))
	}
	if req.Price != nil && req.Price.IsNegative() {
		return echo.NewHTTPError(http.StatusBadRequest, "price cannot be negative")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}
	// Non-owners get the same answer as a missing product.
	if prod.OwnerID != userID {
		l.Warn("patch_product_failed", "status", 404, "reason", "owner mismatch", "productID", id)
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	if req.Name != nil {
		prod.Name = *req.Name
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Price != nil {
		prod.Price = *req.Price
	}
	if req.StockCount != nil {
		prod.StockCount = *req.StockCount
	}
	if req.Sale != nil {
		prod.Sale = *req.Sale
	}
	if req.BrandID != nil {
		prod.BrandID = req.BrandID
	}
	if req.CategoryID != nil {
		prod.CategoryID = req.CategoryID
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		l.Error("patch_product_failed", "status", 500, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot update product")
	}

	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	userID, err := token.UserID(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "product not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot get product")
	}
	if prod.OwnerID != userID {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	if err := h.DB.Delete(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot delete product")
	}

	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
