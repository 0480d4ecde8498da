package catalog

import (
	"context"

	"github.com/example/orderdesk/pkg/models"
	"github.com/shopspring/decimal"
)

// Fixture is an in-memory catalog seeded with demo data. Every restaurant
// offers the same menus, and every menu the same categories and items.
type Fixture struct {
	Customers   []models.Customer
	Restaurants []models.Restaurant
	Menus       []models.Menu
	Categories  []models.Category
	Items       []models.MenuItem
}

func NewFixture() *Fixture {
	return &Fixture{
		Customers: []models.Customer{
			{ID: "1", Name: "John Doe", Email: "john@example.com", Phone: "+1 234 567 8900", Address: "123 Main St, City, State"},
			{ID: "2", Name: "Jane Smith", Email: "jane@example.com", Phone: "+1 234 567 8901", Address: "456 Oak Ave, City, State"},
			{ID: "3", Name: "Mike Johnson", Email: "mike@example.com", Phone: "+1 234 567 8902", Address: "789 Pine Rd, City, State"},
		},
		Restaurants: []models.Restaurant{
			{ID: "1", Name: "Pizza Palace", Cuisine: "Italian", Rating: 4.5, DeliveryTime: "25-35 min", Address: "123 Italian St",
				Image: "https://images.unsplash.com/photo-1618160702438-9b02ab6515c9?w=400&h=300&fit=crop"},
			{ID: "2", Name: "Burger House", Cuisine: "American", Rating: 4.2, DeliveryTime: "20-30 min", Address: "456 Burger Ave",
				Image: "https://images.unsplash.com/photo-1721322800607-8c38375eef04?w=400&h=300&fit=crop"},
			{ID: "3", Name: "Sushi Express", Cuisine: "Japanese", Rating: 4.8, DeliveryTime: "30-40 min", Address: "789 Sushi Blvd",
				Image: "https://images.unsplash.com/photo-1582562124811-c09040d0a901?w=400&h=300&fit=crop"},
		},
		Menus: []models.Menu{
			{ID: "1", Name: "Lunch Menu", Description: "Delicious lunch options available all day"},
			{ID: "2", Name: "Dinner Menu", Description: "Special dinner selections with premium ingredients"},
			{ID: "3", Name: "Weekend Special", Description: "Limited time weekend exclusive dishes"},
		},
		Categories: []models.Category{
			{ID: "1", Name: "Appetizers"},
			{ID: "2", Name: "Main Courses"},
			{ID: "3", Name: "Desserts"},
			{ID: "4", Name: "Beverages"},
		},
		Items: []models.MenuItem{
			{ID: "1", Name: "Caesar Salad", Description: "Fresh romaine lettuce with parmesan cheese and croutons",
				Price: decimal.RequireFromString("12.99"), CategoryID: "1",
				Image: "https://images.unsplash.com/photo-1618160702438-9b02ab6515c9?w=300&h=200&fit=crop"},
			{ID: "2", Name: "Grilled Chicken", Description: "Tender grilled chicken breast with herbs and spices",
				Price: decimal.RequireFromString("18.99"), CategoryID: "2",
				Image: "https://images.unsplash.com/photo-1721322800607-8c38375eef04?w=300&h=200&fit=crop"},
			{ID: "3", Name: "Chocolate Cake", Description: "Rich chocolate cake with vanilla frosting",
				Price: decimal.RequireFromString("8.99"), CategoryID: "3",
				Image: "https://images.unsplash.com/photo-1582562124811-c09040d0a901?w=300&h=200&fit=crop"},
			{ID: "4", Name: "Fresh Juice", Description: "Freshly squeezed orange juice",
				Price: decimal.RequireFromString("4.99"), CategoryID: "4",
				Image: "https://images.unsplash.com/photo-1535268647677-300dbf3d78d1?w=300&h=200&fit=crop"},
		},
	}
}

func (f *Fixture) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FilterCustomers(f.Customers, query), nil
}

func (f *Fixture) ListRestaurants(ctx context.Context, query string) ([]models.Restaurant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return FilterRestaurants(f.Restaurants, query), nil
}

func (f *Fixture) restaurant(id string) bool {
	for _, r := range f.Restaurants {
		if r.ID == id {
			return true
		}
	}
	return false
}

func (f *Fixture) ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.restaurant(restaurantID) {
		return []models.Menu{}, nil
	}
	out := make([]models.Menu, len(f.Menus))
	for i, m := range f.Menus {
		m.RestaurantID = restaurantID
		out[i] = m
	}
	return out, nil
}

func (f *Fixture) ListCategories(ctx context.Context, menuID string) ([]models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.Category, len(f.Categories))
	for i, c := range f.Categories {
		c.MenuID = menuID
		out[i] = c
	}
	return out, nil
}

func (f *Fixture) ListMenuItems(ctx context.Context, menuID string) ([]models.MenuItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]models.MenuItem, len(f.Items))
	for i, it := range f.Items {
		it.MenuID = menuID
		out[i] = it
	}
	return out, nil
}
