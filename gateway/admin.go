package gateway

import (
	"net/http"
	"strconv"

	"github.com/example/flowershop/pkg/apperror"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/order"
	"github.com/gin-gonic/gin"
)

const msgOnlyPaid = "Chỉ có thể cập nhật trạng thái thanh toán sang PAID"

type statusRequest struct {
	OrderStatus models.OrderStatus `json:"orderStatus"`
	Note        string             `json:"note"`
}

type paymentRequest struct {
	PaymentStatus models.PaymentStatus `json:"paymentStatus"`
	Note          string               `json:"note"`
}

func queryInt(c *gin.Context, key string) int64 {
	n, err := strconv.ParseInt(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

func (g *Gateway) dashboard(c *gin.Context) {
	d, err := g.orders.Dashboard(c.Request.Context(), int(queryInt(c, "days")))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, d)
}

func (g *Gateway) adminListOrders(c *gin.Context) {
	f := order.Paginate(models.OrderFilter{
		OrderStatus:   models.OrderStatus(c.Query("status")),
		PaymentStatus: models.PaymentStatus(c.Query("paymentStatus")),
		Query:         c.Query("q"),
		Page:          queryInt(c, "page"),
		Limit:         queryInt(c, "limit"),
	})

	orders, total, err := g.orders.List(c.Request.Context(), f)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"orders": orders,
		"total":  total,
		"page":   f.Page,
		"limit":  f.Limit,
	})
}

func (g *Gateway) adminGetOrder(c *gin.Context) {
	o, next, err := g.orders.Detail(c.Request.Context(), c.Param("id"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"order": o, "allowedNext": next})
}

func (g *Gateway) adminUpdateStatus(c *gin.Context) {
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, badBody())
		return
	}

	s := mustSession(c)
	o, err := g.orders.UpdateStatus(c.Request.Context(), c.Param("id"), req.OrderStatus, s.UserID, req.Note)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) adminMarkPaid(c *gin.Context) {
	var req paymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		g.respondError(c, badBody())
		return
	}
	if st, _ := models.ParsePaymentStatus(string(req.PaymentStatus)); st != models.PaymentPaid {
		g.respondError(c, apperror.BadRequest(msgOnlyPaid))
		return
	}

	s := mustSession(c)
	o, err := g.orders.MarkPaid(c.Request.Context(), c.Param("id"), s.UserID, req.Note)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (g *Gateway) listNotifications(c *gin.Context) {
	items, unread, err := g.inbox.List(c.Request.Context(), queryInt(c, "limit"))
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items, "unread": unread})
}

func (g *Gateway) markNotificationRead(c *gin.Context) {
	if err := g.inbox.MarkRead(c.Request.Context(), c.Param("id")); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) saveBanking(c *gin.Context) {
	var b models.BankingSetting
	if err := c.ShouldBindJSON(&b); err != nil {
		g.respondError(c, badBody())
		return
	}

	saved, err := g.users.SaveBanking(c.Request.Context(), &b)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, saved)
}
