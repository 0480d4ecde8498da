package catalog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/example/orderdesk/pkg/config"
	"github.com/example/orderdesk/pkg/models"
	"github.com/go-resty/resty/v2"
)

// ListResponse is the envelope used by the catalog HTTP endpoints.
type ListResponse[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
}

// HTTPCatalog reads the catalog from a remote service speaking the gateway's
// /api/v1/catalog routes.
type HTTPCatalog struct {
	client *resty.Client
}

func NewHTTPCatalog(cfg config.CatalogConfig) *HTTPCatalog {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json").
		SetRetryCount(0) // the session decides what a failed fetch means
	if cfg.Timeout > 0 {
		client.SetTimeout(cfg.Timeout)
	}
	return &HTTPCatalog{client: client}
}

func list[T any](ctx context.Context, h *HTTPCatalog, path string, params map[string]string, query map[string]string) ([]T, error) {
	var out ListResponse[T]

	resp, err := h.client.R().
		SetContext(ctx).
		SetPathParams(params).
		SetQueryParams(query).
		SetResult(&out).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrFetchFailed, path, err)
	}

	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %w", resp.Request.URL, ErrNotFound)
	case resp.IsError():
		return nil, fmt.Errorf("%w: GET %s returned status %d: %s", ErrFetchFailed, resp.Request.URL, resp.StatusCode(), resp.String())
	}

	if out.Data == nil {
		out.Data = []T{}
	}
	return out.Data, nil
}

func (h *HTTPCatalog) ListCustomers(ctx context.Context, query string) ([]models.Customer, error) {
	return list[models.Customer](ctx, h, "/api/v1/catalog/customers", nil, map[string]string{"q": query})
}

func (h *HTTPCatalog) ListRestaurants(ctx context.Context, query string) ([]models.Restaurant, error) {
	return list[models.Restaurant](ctx, h, "/api/v1/catalog/restaurants", nil, map[string]string{"q": query})
}

func (h *HTTPCatalog) ListMenus(ctx context.Context, restaurantID string) ([]models.Menu, error) {
	return list[models.Menu](ctx, h, "/api/v1/catalog/restaurants/{id}/menus", map[string]string{"id": restaurantID}, nil)
}

func (h *HTTPCatalog) ListCategories(ctx context.Context, menuID string) ([]models.Category, error) {
	return list[models.Category](ctx, h, "/api/v1/catalog/menus/{id}/categories", map[string]string{"id": menuID}, nil)
}

func (h *HTTPCatalog) ListMenuItems(ctx context.Context, menuID string) ([]models.MenuItem, error) {
	return list[models.MenuItem](ctx, h, "/api/v1/catalog/menus/{id}/items", map[string]string{"id": menuID}, nil)
}
