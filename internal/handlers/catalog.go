package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/models"
	"github.com/stitchmart/shop/internal/validation"
)

// CatalogHandler owns the brand and category reference data.
type CatalogHandler struct {
	DB *gorm.DB
}

type CreateBrandRequest struct {
	Name    string `json:"name"    validate:"required,capitalized"`
	Country string `json:"country" validate:"required,country_code"`
}

type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required,letters"`
	Description string `json:"description"`
}

func (h *CatalogHandler) GetBrands(c echo.Context) error {
	var brands []models.Brand
	if err := h.DB.Order("id ASC").Find(&brands).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list brands")
	}
	return c.JSON(http.StatusOK, brands)
}

func (h *CatalogHandler) CreateBrand(c echo.Context) error {
	var req CreateBrandRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, validation.FirstError(errs))
	}

	brand := models.Brand{Name: req.Name, Country: req.Country}
	if err := h.DB.Create(&brand).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create brand")
	}
	return c.JSON(http.StatusCreated, brand)
}

func (h *CatalogHandler) GetCategories(c echo.Context) error {
	var categories []models.Category
	if err := h.DB.Order("id ASC").Find(&categories).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot list categories")
	}
	return c.JSON(http.StatusOK, categories)
}

func (h *CatalogHandler) CreateCategory(c echo.Context) error {
	var req CreateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid body")
	}
	if errs := validation.ValidateStruct(req); len(errs) > 0 {
		return echo.NewHTTPError(http.StatusBadRequest, validation.FirstError(errs))
	}

	category := models.Category{Name: req.Name, Description: req.Description}
	if err := h.DB.Create(&category).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "cannot create category")
	}
	return c.JSON(http.StatusCreated, category)
}
