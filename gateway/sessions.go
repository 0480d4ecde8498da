package gateway

import (
	"errors"
	"net/http"

	"github.com/example/orderdesk/pkg/session"
	"github.com/example/orderdesk/pkg/wizard"
	"github.com/gin-gonic/gin"
)

type selectRequest struct {
	ID string `json:"id"`
}

type addItemRequest struct {
	ItemID string `json:"item_id" binding:"required"`
}

type updateLineRequest struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

type checkoutRequest struct {
	PaymentMethod  *string `json:"payment_method"`
	DeliveryOption *string `json:"delivery_option"`
	Allergies      *string `json:"allergies"`
	DeliveryNotes  *string `json:"delivery_notes"`
}

// OptionsResponse lists the fixed choices of the wizard.
type OptionsResponse struct {
	wizard.Policy
	Steps []wizard.StepInfo `json:"steps"`
}

func (g *Gateway) run(c *gin.Context, cmd session.Command) {
	snap, err := g.sessions.Do(c.Request.Context(), c.Param("id"), cmd)
	if err != nil {
		g.fail(c, err, &snap)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// options godoc
// @Summary List payment methods, delivery options, tax rate and steps
// @Tags    wizard
// @Produce json
// @Success 200 {object} OptionsResponse
// @Router  /options [get]
func (g *Gateway) options(c *gin.Context) {
	c.JSON(http.StatusOK, OptionsResponse{Policy: g.sessions.Policy(), Steps: wizard.Steps})
}

// createSession godoc
// @Summary Start a new order wizard
// @Tags    sessions
// @Produce json
// @Success 201 {object} session.Snapshot
// @Router  /sessions [post]
func (g *Gateway) createSession(c *gin.Context) {
	snap, err := g.sessions.Create(c.Request.Context())
	if err != nil {
		g.fail(c, err, nil)
		return
	}
	c.Header("Location", "/api/v1/sessions/"+snap.ID)
	c.JSON(http.StatusCreated, snap)
}

// getSession godoc
// @Summary Get the current state of a wizard
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router  /sessions/{id} [get]
func (g *Gateway) getSession(c *gin.Context) {
	g.run(c, &session.GetSnapshot{})
}

// deleteSession godoc
// @Summary Abandon a wizard
// @Tags    sessions
// @Param   id path string true "Session ID"
// @Success 204
// @Failure 404 {object} ErrorResponse
// @Router  /sessions/{id} [delete]
func (g *Gateway) deleteSession(c *gin.Context) {
	if err := g.sessions.Delete(c.Param("id")); err != nil {
		g.fail(c, err, nil)
		return
	}
	c.Status(http.StatusNoContent)
}

// searchCustomers godoc
// @Summary Search customers by name, email or phone
// @Tags    sessions
// @Produce json
// @Param   id path  string true  "Session ID"
// @Param   q  query string false "Search text"
// @Success 200 {object} session.Snapshot
// @Router  /sessions/{id}/customers [get]
func (g *Gateway) searchCustomers(c *gin.Context) {
	g.run(c, &session.SearchCustomers{Query: c.Query("q")})
}

// searchRestaurants godoc
// @Summary Search restaurants by name or cuisine
// @Tags    sessions
// @Produce json
// @Param   id path  string true  "Session ID"
// @Param   q  query string false "Search text"
// @Success 200 {object} session.Snapshot
// @Router  /sessions/{id}/restaurants [get]
func (g *Gateway) searchRestaurants(c *gin.Context) {
	g.run(c, &session.SearchRestaurants{Query: c.Query("q")})
}

func (g *Gateway) bindSelect(c *gin.Context) (string, bool) {
	var req selectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return "", false
	}
	return req.ID, true
}

// selectCustomer godoc
// @Summary Select the customer; an empty id deselects
// @Tags    sessions
// @Accept  json
// @Produce json
// @Param   id   path string        true "Session ID"
// @Param   body body selectRequest true "Customer"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router  /sessions/{id}/customer [put]
func (g *Gateway) selectCustomer(c *gin.Context) {
	if id, ok := g.bindSelect(c); ok {
		g.run(c, &session.SelectCustomer{ID: id})
	}
}

// selectRestaurant godoc
// @Summary Select the restaurant; may ask for confirmation when the cart is not empty
// @Tags    sessions
// @Accept  json
// @Produce json
// @Param   id   path string        true "Session ID"
// @Param   body body selectRequest true "Restaurant"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router  /sessions/{id}/restaurant [put]
func (g *Gateway) selectRestaurant(c *gin.Context) {
	if id, ok := g.bindSelect(c); ok {
		g.run(c, &session.SelectRestaurant{ID: id})
	}
}

// selectMenu godoc
// @Summary Select a menu of the selected restaurant
// @Tags    sessions
// @Accept  json
// @Produce json
// @Param   id   path string        true "Session ID"
// @Param   body body selectRequest true "Menu"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router  /sessions/{id}/menu [put]
func (g *Gateway) selectMenu(c *gin.Context) {
	if id, ok := g.bindSelect(c); ok {
		g.run(c, &session.SelectMenu{ID: id})
	}
}

// selectCategory godoc
// @Summary Switch the category tab of the order step; an empty id shows all items
// @Tags    sessions
// @Accept  json
// @Produce json
// @Param   id   path string        true "Session ID"
// @Param   body body selectRequest true "Category"
// @Success 200 {object} session.Snapshot
// @Router  /sessions/{id}/category [put]
func (g *Gateway) selectCategory(c *gin.Context) {
	if id, ok := g.bindSelect(c); ok {
		g.run(c, &session.SelectCategory{ID: id})
	}
}

// confirmChange godoc
// @Summary Confirm the pending customer or restaurant change, emptying the cart
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Failure 409 {object} ErrorResponse
// @Router  /sessions/{id}/change/confirm [post]
func (g *Gateway) confirmChange(c *gin.Context) {
	g.run(c, &session.ConfirmChange{})
}

// cancelChange godoc
// @Summary Discard the pending change
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Failure 409 {object} ErrorResponse
// @Router  /sessions/{id}/change/cancel [post]
func (g *Gateway) cancelChange(c *gin.Context) {
	g.run(c, &session.CancelChange{})
}

// addItem godoc
// @Summary Add one unit of a menu item to the cart
// @Tags    cart
// @Accept  json
// @Produce json
// @Param   id   path string         true "Session ID"
// @Param   body body addItemRequest true "Item"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router  /sessions/{id}/cart/items [post]
func (g *Gateway) addItem(c *gin.Context) {
	var req addItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	g.run(c, &session.AddItem{ItemID: req.ItemID})
}

// updateLine godoc
// @Summary Change the quantity or notes of a cart line; quantity 0 removes it
// @Tags    cart
// @Accept  json
// @Produce json
// @Param   id     path string            true "Session ID"
// @Param   lineId path string            true "Line ID"
// @Param   body   body updateLineRequest true "Changes"
// @Success 200 {object} session.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router  /sessions/{id}/cart/lines/{lineId} [patch]
func (g *Gateway) updateLine(c *gin.Context) {
	var req updateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	if req.Quantity == nil && req.Notes == nil {
		g.badRequest(c, errors.New("quantity or notes is required"))
		return
	}
	g.run(c, &session.UpdateLine{LineID: c.Param("lineId"), Quantity: req.Quantity, Notes: req.Notes})
}

// removeLine godoc
// @Summary Remove a cart line
// @Tags    cart
// @Produce json
// @Param   id     path string true "Session ID"
// @Param   lineId path string true "Line ID"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router  /sessions/{id}/cart/lines/{lineId} [delete]
func (g *Gateway) removeLine(c *gin.Context) {
	g.run(c, &session.RemoveLine{LineID: c.Param("lineId")})
}

// updateCheckout godoc
// @Summary Set payment method, delivery option, allergies or delivery notes
// @Tags    sessions
// @Accept  json
// @Produce json
// @Param   id   path string          true "Session ID"
// @Param   body body checkoutRequest true "Checkout fields"
// @Success 200 {object} session.Snapshot
// @Failure 400 {object} ErrorResponse
// @Router  /sessions/{id}/checkout [put]
func (g *Gateway) updateCheckout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.badRequest(c, err)
		return
	}
	g.run(c, &session.UpdateCheckout{
		PaymentMethod:  req.PaymentMethod,
		DeliveryOption: req.DeliveryOption,
		Allergies:      req.Allergies,
		DeliveryNotes:  req.DeliveryNotes,
	})
}

// next godoc
// @Summary Go to the next step
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Failure 409 {object} ErrorResponse
// @Router  /sessions/{id}/next [post]
func (g *Gateway) next(c *gin.Context) {
	g.run(c, &session.Next{})
}

// prev godoc
// @Summary Go back one step
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Router  /sessions/{id}/prev [post]
func (g *Gateway) prev(c *gin.Context) {
	g.run(c, &session.Prev{})
}

// submit godoc
// @Summary Place the order and start a fresh wizard
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Failure 409 {object} ErrorResponse
// @Failure 502 {object} ErrorResponse
// @Router  /sessions/{id}/submit [post]
func (g *Gateway) submit(c *gin.Context) {
	g.run(c, &session.Submit{})
}

// reset godoc
// @Summary Abandon the draft and start over
// @Tags    sessions
// @Produce json
// @Param   id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Router  /sessions/{id}/reset [post]
func (g *Gateway) reset(c *gin.Context) {
	g.run(c, &session.Reset{})
}
