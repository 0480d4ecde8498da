// Package catalog defines where the wizard's candidate lists come from and
// provides the fixture, remote HTTP and cached implementations.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/example/orderdesk/pkg/models"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrFetchFailed = errors.New("catalog fetch failed")
)

// Catalog is the read side of the ordering backend.
type Catalog interface {
	ListCustomers(ctx context.Context, query string) ([]models.Customer, error)
	ListRestaurants(ctx context.Context, query string) ([]models.Restaurant, error)
	ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error)
	ListCategories(ctx context.Context, menuID string) ([]models.Category, error)
	ListMenuItems(ctx context.Context, menuID string) ([]models.MenuItem, error)
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// MatchCustomer reports whether c matches a search query: case-insensitive
// on name and email, plain substring on phone.
func MatchCustomer(c models.Customer, query string) bool {
	return containsFold(c.Name, query) ||
		containsFold(c.Email, query) ||
		strings.Contains(c.Phone, query)
}

// MatchRestaurant matches on name or cuisine, case-insensitively.
func MatchRestaurant(r models.Restaurant, query string) bool {
	return containsFold(r.Name, query) || containsFold(r.Cuisine, query)
}

func FilterCustomers(in []models.Customer, query string) []models.Customer {
	out := make([]models.Customer, 0, len(in))
	for _, c := range in {
		if MatchCustomer(c, query) {
			out = append(out, c)
		}
	}
	return out
}

func FilterRestaurants(in []models.Restaurant, query string) []models.Restaurant {
	out := make([]models.Restaurant, 0, len(in))
	for _, r := range in {
		if MatchRestaurant(r, query) {
			out = append(out, r)
		}
	}
	return out
}

// FilterItems keeps the items of one category tab. An empty categoryID
// keeps everything.
func FilterItems(in []models.MenuItem, categoryID string) []models.MenuItem {
	if categoryID == "" {
		return in
	}
	out := make([]models.MenuItem, 0, len(in))
	for _, it := range in {
		if it.CategoryID == categoryID {
			out = append(out, it)
		}
	}
	return out
}
