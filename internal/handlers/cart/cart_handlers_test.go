package cart

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/stitchmart/shop/internal/config"
	"github.com/stitchmart/shop/internal/models"
)

type testEnv struct {
	T  *testing.T
	E  *echo.Echo
	DB *gorm.DB
	H  *CartHandler
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, config.Migrate(db))

	return &testEnv{
		T:  t,
		E:  echo.New(),
		DB: db,
		H:  &CartHandler{DB: db},
	}
}

func (env *testEnv) request(method, path string, body interface{}, userID uint) (*httptest.ResponseRecorder, echo.Context) {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(env.T, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := env.E.NewContext(req, rec)
	c.Set("userID", userID)
	return rec, c
}

func (env *testEnv) createProduct(name string, price string, stock uint) models.Product {
	p := models.Product{
		Name:       name,
		Price:      decimal.RequireFromString(price),
		StockCount: stock,
		OwnerID:    99,
	}
	require.NoError(env.T, env.DB.Create(&p).Error)
	return p
}

func (env *testEnv) addToCart(userID, productID uint) {
	rec, c := env.request(http.MethodPost, "/api/v1/cart", map[string]uint{"product_id": productID}, userID)
	require.NoError(env.T, env.H.AddToCart(c))
	require.Equal(env.T, http.StatusOK, rec.Code)
}

func (env *testEnv) activeCarts(userID uint) []models.Cart {
	var carts []models.Cart
	require.NoError(env.T, env.DB.Where("user_id = ? AND is_ordered = ?", userID, false).Find(&carts).Error)
	return carts
}

func TestGetCartCreatesActiveCartLazily(t *testing.T) {
	env := newTestEnv(t)

	rec, c := env.request(http.MethodGet, "/api/v1/cart", nil, 1)
	require.NoError(t, env.H.GetCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, env.activeCarts(1), 1)

	var resp struct {
		Cart  models.Cart     `json:"cart"`
		Total decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Cart.IsOrdered)
	require.Empty(t, resp.Cart.Items)
	require.True(t, resp.Total.IsZero())
}

func TestCartTotal(t *testing.T) {
	env := newTestEnv(t)
	a := env.createProduct("Shirt", "100.00", 10)
	b := env.createProduct("Socks", "50.00", 10)

	env.addToCart(1, a.ID)
	env.addToCart(1, a.ID)
	env.addToCart(1, b.ID)

	rec, c := env.request(http.MethodGet, "/api/v1/cart", nil, 1)
	require.NoError(t, env.H.GetCart(c))

	var resp struct {
		Total decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Total.Equal(decimal.RequireFromString("250.00")), "got %s", resp.Total)
}

func TestAddSameProductTwiceIncrementsQuantity(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("Shirt", "10.00", 5)

	env.addToCart(1, p.ID)
	env.addToCart(1, p.ID)

	var items []models.CartItem
	require.NoError(t, env.DB.Find(&items).Error)
	require.Len(t, items, 1)
	require.Equal(t, uint(2), items[0].Quantity)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.request(http.MethodPost, "/api/v1/cart", map[string]uint{"product_id": 123}, 1)
	err := env.H.AddToCart(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusNotFound, he.Code)
}

func TestAddToCartOutOfStock(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("Shirt", "10.00", 0)

	_, c := env.request(http.MethodPost, "/api/v1/cart", map[string]uint{"product_id": p.ID}, 1)
	err := env.H.AddToCart(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusConflict, he.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRemoveFromCart(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("Shirt", "10.00", 5)
	env.addToCart(1, p.ID)

	var item models.CartItem
	require.NoError(t, env.DB.First(&item).Error)

	rec, c := env.request(http.MethodDelete, "/api/v1/cart/items/1", nil, 1)
	c.SetParamNames("id")
	c.SetParamValues("1")
	require.NoError(t, env.H.RemoveFromCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestRemoveForeignItemNotFound(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("Shirt", "10.00", 5)
	env.addToCart(1, p.ID)

	// User 2 tries to delete user 1's line item.
	env.addToCart(2, p.ID)
	_, c := env.request(http.MethodDelete, "/api/v1/cart/items/1", nil, 2)
	c.SetParamNames("id")
	c.SetParamValues("1")
	err := env.H.RemoveFromCart(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusNotFound, he.Code)

	var count int64
	require.NoError(t, env.DB.Model(&models.CartItem{}).Where("cart_id = ?", 1).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestCheckoutSuccess(t *testing.T) {
	env := newTestEnv(t)
	a := env.createProduct("Shirt", "100.00", 5)
	b := env.createProduct("Socks", "50.00", 3)

	env.addToCart(1, a.ID)
	env.addToCart(1, a.ID)
	env.addToCart(1, b.ID)

	rec, c := env.request(http.MethodPost, "/api/v1/cart/checkout", nil, 1)
	require.NoError(t, env.H.Checkout(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		OrderID uint            `json:"order_id"`
		Total   decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Total.Equal(decimal.RequireFromString("250.00")), "got %s", resp.Total)

	var shirt, socks models.Product
	require.NoError(t, env.DB.First(&shirt, a.ID).Error)
	require.NoError(t, env.DB.First(&socks, b.ID).Error)
	require.Equal(t, uint(3), shirt.StockCount)
	require.Equal(t, uint(2), socks.StockCount)

	var old models.Cart
	require.NoError(t, env.DB.First(&old, resp.OrderID).Error)
	require.True(t, old.IsOrdered)
	require.NotNil(t, old.OrderedAt)

	// Exactly one fresh active cart remains.
	active := env.activeCarts(1)
	require.Len(t, active, 1)
	require.NotEqual(t, old.ID, active[0].ID)
}

func TestCheckoutInsufficientStockIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	a := env.createProduct("Shirt", "100.00", 5)
	scarce := env.createProduct("Limited Jacket", "200.00", 1)

	env.addToCart(1, a.ID)
	env.addToCart(1, scarce.ID)
	env.addToCart(1, scarce.ID)

	_, c := env.request(http.MethodPost, "/api/v1/cart/checkout", nil, 1)
	err := env.H.Checkout(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusConflict, he.Code)
	require.Contains(t, he.Message, "Limited Jacket")

	// No stock moved, not even for the line that would have passed.
	var shirt, jacket models.Product
	require.NoError(t, env.DB.First(&shirt, a.ID).Error)
	require.NoError(t, env.DB.First(&jacket, scarce.ID).Error)
	require.Equal(t, uint(5), shirt.StockCount)
	require.Equal(t, uint(1), jacket.StockCount)

	// The cart is still active and untouched.
	active := env.activeCarts(1)
	require.Len(t, active, 1)
	var items []models.CartItem
	require.NoError(t, env.DB.Where("cart_id = ?", active[0].ID).Find(&items).Error)
	require.Len(t, items, 2)
}

func TestCheckoutEmptyCart(t *testing.T) {
	env := newTestEnv(t)

	_, c := env.request(http.MethodPost, "/api/v1/cart/checkout", nil, 1)
	err := env.H.Checkout(c)

	var he *echo.HTTPError
	require.ErrorAs(t, err, &he)
	require.Equal(t, http.StatusConflict, he.Code)
}

func TestOneActiveCartAcrossAddCheckoutCycles(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("Shirt", "10.00", 100)

	for i := 0; i < 3; i++ {
		env.addToCart(1, p.ID)
		rec, c := env.request(http.MethodPost, "/api/v1/cart/checkout", nil, 1)
		require.NoError(t, env.H.Checkout(c))
		require.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, env.activeCarts(1), 1)
	}

	var ordered int64
	require.NoError(t, env.DB.Model(&models.Cart{}).
		Where("user_id = ? AND is_ordered = ?", 1, true).
		Count(&ordered).Error)
	require.Equal(t, int64(3), ordered)
}

func TestTotalReflectsPriceAtReadTime(t *testing.T) {
	env := newTestEnv(t)
	p := env.createProduct("Shirt", "10.00", 5)
	env.addToCart(1, p.ID)

	// Price changes after the item went into the cart. The total follows
	// the current price, not the price at add time.
	require.NoError(t, env.DB.Model(&models.Product{}).
		Where("id = ?", p.ID).
		Update("price", decimal.RequireFromString("25.00")).Error)

	rec, c := env.request(http.MethodGet, "/api/v1/cart", nil, 1)
	require.NoError(t, env.H.GetCart(c))

	var resp struct {
		Total decimal.Decimal `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Total.Equal(decimal.RequireFromString("25.00")), "got %s", resp.Total)
}
