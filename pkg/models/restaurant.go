package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Restaurant struct {
	ID           string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string         `gorm:"type:varchar(100);not null;index" json:"name"`
	Cuisine      string         `gorm:"type:varchar(50);index" json:"cuisine"`
	Rating       float64        `gorm:"type:decimal(2,1)" json:"rating"`
	DeliveryTime string         `gorm:"type:varchar(30)" json:"delivery_time"`
	Address      string         `gorm:"type:varchar(255)" json:"address"`
	Image        string         `gorm:"type:varchar(512)" json:"image"`
	CreatedAt    time.Time      `json:"-"`
	UpdatedAt    time.Time      `json:"-"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Restaurant) TableName() string {
	return "restaurants"
}

// Menu belongs to exactly one restaurant.
type Menu struct {
	ID           string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name         string `gorm:"type:varchar(100);not null" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	RestaurantID string `gorm:"type:varchar(36);not null;index" json:"restaurant_id"`
}

func (Menu) TableName() string {
	return "menus"
}

type Category struct {
	ID       string `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name     string `gorm:"type:varchar(100);not null" json:"name"`
	MenuID   string `gorm:"type:varchar(36);not null;index" json:"menu_id"`
	Position int    `gorm:"not null;default:0" json:"-"`
}

func (Category) TableName() string {
	return "categories"
}

type MenuItem struct {
	ID          string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Name        string          `gorm:"type:varchar(100);not null" json:"name"`
	Description string          `gorm:"type:text" json:"description"`
	Price       decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"price"`
	Image       string          `gorm:"type:varchar(512)" json:"image"`
	CategoryID  string          `gorm:"type:varchar(36);not null;index" json:"category_id"`
	MenuID      string          `gorm:"type:varchar(36);not null;index" json:"menu_id"`
}

func (MenuItem) TableName() string {
	return "menu_items"
}
