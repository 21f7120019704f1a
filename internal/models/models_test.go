package models_test

import (
	"regexp"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(&models.Product{}, &models.Cart{}, &models.CartItem{}))
	return db
}

func TestSKUGeneratedFromAttributes(t *testing.T) {
	db := newTestDB(t)

	p := models.Product{
		Name:    "Linen Shirt",
		Gender:  "M",
		Size:    "XL",
		Fabric:  "L",
		Color:   "B",
		Price:   decimal.RequireFromString("79.99"),
		OwnerID: 1,
	}
	require.NoError(t, db.Create(&p).Error)
	require.Regexp(t, regexp.MustCompile(`^M-L-B-XL-[0-9A-F]{8}$`), p.SKU)
}

func TestSKUSizeDashesStripped(t *testing.T) {
	db := newTestDB(t)

	p := models.Product{
		Name:    "Wool Socks",
		Gender:  "N",
		Size:    "39-42",
		Fabric:  "W",
		Color:   "G",
		Price:   decimal.RequireFromString("12.00"),
		OwnerID: 1,
	}
	require.NoError(t, db.Create(&p).Error)
	require.Regexp(t, regexp.MustCompile(`^N-W-G-3942-[0-9A-F]{8}$`), p.SKU)
}

func TestSuppliedSKUIsUppercasedAndKept(t *testing.T) {
	db := newTestDB(t)

	p := models.Product{
		Name:    "Denim Jacket",
		SKU:     "custom-sku-1",
		Price:   decimal.RequireFromString("150.00"),
		OwnerID: 1,
	}
	require.NoError(t, db.Create(&p).Error)
	require.Equal(t, "CUSTOM-SKU-1", p.SKU)
}

func TestNegativePriceRejected(t *testing.T) {
	db := newTestDB(t)

	p := models.Product{
		Name:    "Broken",
		Price:   decimal.RequireFromString("-1.00"),
		OwnerID: 1,
	}
	err := db.Create(&p).Error
	require.ErrorIs(t, err, models.ErrNegativePrice)
}

func TestCartTotalFormula(t *testing.T) {
	cart := models.Cart{
		Items: []models.CartItem{
			{Quantity: 2, Product: models.Product{Price: decimal.RequireFromString("100.00")}},
			{Quantity: 1, Product: models.Product{Price: decimal.RequireFromString("50.00")}},
		},
	}
	require.True(t, cart.Total().Equal(decimal.RequireFromString("250.00")))
}

func TestEmptyCartTotalIsZero(t *testing.T) {
	var cart models.Cart
	require.True(t, cart.Total().IsZero())
}
