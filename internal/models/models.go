package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrNegativePrice = errors.New("price cannot be negative")

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}

type RefreshToken struct {
	ID        uint   `gorm:"primaryKey"          json:"id"`
	Token     string `gorm:"unique;not null"     json:"token"`
	UserID    uint   `gorm:"index;not null"      json:"user_id"`
	Role      string `gorm:"not null"            json:"role"`
	ExpiresAt int64  `gorm:"not null"            json:"expires_at"`
	Revoked   bool   `gorm:"default:false"       json:"revoked"`
}

type Category struct {
	ID          uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string `gorm:"not null"                 json:"name"`
	Description string `json:"description"`
}

type Brand struct {
	ID      uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name    string `gorm:"not null"                 json:"name"`
	Country string `gorm:"not null;size:2"          json:"country"`
}

type Product struct {
	ID          uint            `gorm:"primaryKey;autoIncrement"        json:"id"`
	Name        string          `gorm:"not null"                        json:"name"`
	SKU         string          `gorm:"size:30;uniqueIndex"             json:"sku"`
	Description string          `json:"description"`
	Gender      string          `gorm:"size:1;default:N"                json:"gender"`
	Size        string          `gorm:"size:10;default:M"               json:"size"`
	Fabric      string          `gorm:"size:1;default:C"                json:"fabric"`
	Color       string          `gorm:"size:1;default:B"                json:"color"`
	Price       decimal.Decimal `gorm:"type:numeric(10,2);not null"     json:"price"`
	StockCount  uint            `gorm:"default:1"                       json:"stock_count"`
	Sale        bool            `gorm:"default:false"                   json:"sale"`
	BrandID     *uint           `gorm:"index"                           json:"brand_id"`
	CategoryID  *uint           `gorm:"index"                           json:"category_id"`
	OwnerID     uint            `gorm:"index;not null"                  json:"owner_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// BeforeSave rejects negative prices and keeps the SKU uppercase.
func (p *Product) BeforeSave(tx *gorm.DB) error {
	if p.Price.IsNegative() {
		return ErrNegativePrice
	}
	p.SKU = strings.ToUpper(p.SKU)
	return nil
}

// BeforeCreate derives the SKU from the product attributes when none was
// supplied: GENDER-FABRIC-COLOR-SIZE plus a random 8-char suffix.
func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.Gender == "" {
		p.Gender = "N"
	}
	if p.Size == "" {
		p.Size = "M"
	}
	if p.Fabric == "" {
		p.Fabric = "C"
	}
	if p.Color == "" {
		p.Color = "B"
	}
	if p.SKU == "" {
		size := strings.ReplaceAll(p.Size, "-", "")
		suffix := strings.ToUpper(uuid.NewString()[:8])
		p.SKU = fmt.Sprintf("%s-%s-%s-%s-%s", p.Gender, p.Fabric, p.Color, size, suffix)
	}
	return nil
}

type Cart struct {
	ID        uint       `gorm:"primaryKey;autoIncrement"        json:"id"`
	UserID    uint       `gorm:"index:idx_user_active;not null"  json:"user_id"`
	IsOrdered bool       `gorm:"index:idx_user_active;default:false" json:"is_ordered"`
	OrderedAt *time.Time `json:"ordered_at"`
	CreatedAt time.Time  `json:"created_at"`
	Items     []CartItem `gorm:"foreignKey:CartID"               json:"items"`
}

// Total sums unit price times quantity over the cart lines. Prices are
// looked up at read time, so Items must be loaded with their products.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		line := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

type CartItem struct {
	ID        uint    `gorm:"primaryKey;autoIncrement"                  json:"id"`
	CartID    uint    `gorm:"uniqueIndex:idx_cart_product;not null"     json:"cart_id"`
	ProductID uint    `gorm:"uniqueIndex:idx_cart_product;not null"     json:"product_id"`
	Quantity  uint    `gorm:"default:1;check:quantity>0"                json:"quantity"`
	Product   Product `gorm:"foreignKey:ProductID"                      json:"product"`
}

type Review struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID uint      `gorm:"index;not null"           json:"product_id"`
	UserID    uint      `gorm:"index;not null"           json:"user_id"`
	Rating    uint      `gorm:"not null"                 json:"rating"`
	Content   string    `gorm:"not null"                 json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
