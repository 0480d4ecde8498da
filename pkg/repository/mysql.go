package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/orderdesk/pkg/catalog"
	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var ErrOrderNotFound = errors.New("order not found")

// OpenMySQL connects gorm to MySQL and applies the pool settings.
func OpenMySQL(cfg *config.MySQLConfig) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	return db, nil
}

// MigrateCatalog creates the catalog tables.
func MigrateCatalog(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Customer{}, &models.Restaurant{}, &models.Menu{}, &models.Category{}, &models.MenuItem{}); err != nil {
		return fmt.Errorf("failed to migrate catalog: %w", err)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func likePattern(query string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(query)) + "%"
}

// CatalogRepository serves the catalog from MySQL.
type CatalogRepository struct {
	db *gorm.DB
}

func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func fetchFailed(what string, err error) error {
	return fmt.Errorf("%w: %s: %w", catalog.ErrFetchFailed, what, err)
}

func (r *CatalogRepository) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	var out []models.Customer
	q := r.db.WithContext(ctx).Order("name")
	if query != "" {
		q = q.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ? OR phone LIKE ?",
			likePattern(query), likePattern(query), "%"+likeEscaper.Replace(query)+"%")
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fetchFailed("customers", err)
	}
	return out, nil
}

func (r *CatalogRepository) ListRestaurants(ctx context.Context, query string) ([]models.Restaurant, error) {
	var out []models.Restaurant
	q := r.db.WithContext(ctx).Order("name")
	if query != "" {
		q = q.Where("LOWER(name) LIKE ? OR LOWER(cuisine) LIKE ?", likePattern(query), likePattern(query))
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, fetchFailed("restaurants", err)
	}
	return out, nil
}

func (r *CatalogRepository) ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	var out []models.Menu
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("name").
		Find(&out).Error
	if err != nil {
		return nil, fetchFailed("menus", err)
	}
	return out, nil
}

func (r *CatalogRepository) ListCategories(ctx context.Context, menuID string) ([]models.Category, error) {
	var out []models.Category
	err := r.db.WithContext(ctx).
		Where("menu_id = ?", menuID).
		Order("position, id").
		Find(&out).Error
	if err != nil {
		return nil, fetchFailed("categories", err)
	}
	return out, nil
}

func (r *CatalogRepository) ListMenuItems(ctx context.Context, menuID string) ([]models.MenuItem, error) {
	var out []models.MenuItem
	err := r.db.WithContext(ctx).
		Where("menu_id = ?", menuID).
		Order("category_id, name").
		Find(&out).Error
	if err != nil {
		return nil, fetchFailed("menu items", err)
	}
	return out, nil
}

// OrderRepository stores placed orders.
type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) Migrate() error {
	if err := r.db.AutoMigrate(&models.Order{}); err != nil {
		return fmt.Errorf("failed to migrate orders: %w", err)
	}
	return nil
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *models.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}
