package gateway

import (
	"net/http"

	"github.com/example/orderdesk/pkg/catalog"
	"github.com/gin-gonic/gin"
)

func respondList[T any](g *Gateway, c *gin.Context, items []T, err error) {
	if err != nil {
		g.fail(c, err, nil)
		return
	}
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, catalog.ListResponse[T]{Data: items, Total: len(items)})
}

// listCustomers godoc
// @Summary Search the customer catalog
// @Tags    catalog
// @Produce json
// @Param   q query string false "Search text"
// @Success 200 {object} catalog.ListResponse[models.Customer]
// @Router  /catalog/customers [get]
func (g *Gateway) listCustomers(c *gin.Context) {
	items, err := g.catalog.ListCustomers(c.Request.Context(), c.Query("q"))
	respondList(g, c, items, err)
}

// listRestaurants godoc
// @Summary Search the restaurant catalog
// @Tags    catalog
// @Produce json
// @Param   q query string false "Search text"
// @Success 200 {object} catalog.ListResponse[models.Restaurant]
// @Router  /catalog/restaurants [get]
func (g *Gateway) listRestaurants(c *gin.Context) {
	items, err := g.catalog.ListRestaurants(c.Request.Context(), c.Query("q"))
	respondList(g, c, items, err)
}

// listMenus godoc
// @Summary List the menus of a restaurant
// @Tags    catalog
// @Produce json
// @Param   id path string true "Restaurant ID"
// @Success 200 {object} catalog.ListResponse[models.Menu]
// @Router  /catalog/restaurants/{id}/menus [get]
func (g *Gateway) listMenus(c *gin.Context) {
	items, err := g.catalog.ListMenus(c.Request.Context(), c.Param("id"))
	respondList(g, c, items, err)
}

// listCategories godoc
// @Summary List the categories of a menu
// @Tags    catalog
// @Produce json
// @Param   id path string true "Menu ID"
// @Success 200 {object} catalog.ListResponse[models.Category]
// @Router  /catalog/menus/{id}/categories [get]
func (g *Gateway) listCategories(c *gin.Context) {
	items, err := g.catalog.ListCategories(c.Request.Context(), c.Param("id"))
	respondList(g, c, items, err)
}

// listMenuItems godoc
// @Summary List the items of a menu
// @Tags    catalog
// @Produce json
// @Param   id path string true "Menu ID"
// @Success 200 {object} catalog.ListResponse[models.MenuItem]
// @Router  /catalog/menus/{id}/items [get]
func (g *Gateway) listMenuItems(c *gin.Context) {
	items, err := g.catalog.ListMenuItems(c.Request.Context(), c.Param("id"))
	respondList(g, c, items, err)
}
