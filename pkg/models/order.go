package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPlaced = "placed"
)

// Amounts of an order are stored without rounding. Prices carry at most
// PriceScale decimals and tax rates at most TaxRateScale, so every subtotal,
// tax and total fits AmountScale.
const (
	PriceScale   = 2
	TaxRateScale = 6
	AmountScale  = PriceScale + TaxRateScale
)

type Order struct {
	ID             string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	CustomerID     string          `gorm:"type:varchar(36);not null;index" json:"customer_id"`
	RestaurantID   string          `gorm:"type:varchar(36);not null;index" json:"restaurant_id"`
	MenuID         string          `gorm:"type:varchar(36);not null" json:"menu_id"`
	Items          string          `gorm:"type:text" json:"items"` // JSON string
	Subtotal       decimal.Decimal `gorm:"type:decimal(18,8)" json:"subtotal"`
	Tax            decimal.Decimal `gorm:"type:decimal(18,8)" json:"tax"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(18,8)" json:"total_amount"`
	PaymentMethod  string          `gorm:"type:varchar(20);not null" json:"payment_method"`
	DeliveryOption string          `gorm:"type:varchar(20);not null" json:"delivery_option"`
	Allergies      string          `gorm:"type:text" json:"allergies"`
	DeliveryNotes  string          `gorm:"type:text" json:"delivery_notes"`
	Status         string          `gorm:"type:varchar(20);default:'placed'" json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	DeletedAt      *time.Time      `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

type OrderItem struct {
	LineID   string          `json:"line_id"`
	ItemID   string          `json:"item_id"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Notes    string          `json:"notes,omitempty"`
}

// OrderConfirmation is what the order service returns for a placed order.
type OrderConfirmation struct {
	OrderID   string          `json:"order_id"`
	Status    string          `json:"status"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`
}
