package gateway

import (
	"net/http"

	"github.com/example/flowershop/pkg/order"
	"github.com/gin-gonic/gin"
)

// listOrders godoc
// @Summary  List the current customer's orders
// @Tags     orders
// @Security Bearer
// @Produce  json
// @Success  200 {array} models.Order
// @Router   /orders [get]
func (g *Gateway) listOrders(c *gin.Context) {
	s := mustSession(c)
	orders, err := g.orders.ListForCustomer(c.Request.Context(), s.UserID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

// createOrder godoc
// @Summary  Place an order
// @Tags     orders
// @Security Bearer
// @Accept   json
// @Produce  json
// @Param    body body order.CreateInput true "checkout"
// @Success  201 {object} models.Order
// @Failure  400 {object} map[string]string
// @Failure  409 {object} map[string]string
// @Router   /orders [post]
func (g *Gateway) createOrder(c *gin.Context) {
	var in order.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		g.respondError(c, badBody())
		return
	}

	s := mustSession(c)
	o, err := g.orders.Create(c.Request.Context(), s.UserID, in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

func (g *Gateway) getOrder(c *gin.Context) {
	s := mustSession(c)
	o, err := g.orders.GetForCustomer(c.Request.Context(), s.UserID, c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
