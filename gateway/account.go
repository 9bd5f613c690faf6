package gateway

import (
	"net/http"

	"github.com/example/flowershop/pkg/user"
	"github.com/gin-gonic/gin"
)

func (g *Gateway) register(c *gin.Context) {
	var in user.RegisterInput
	if err := c.ShouldBindJSON(&in); err != nil {
		g.respondError(c, badBody())
		return
	}

	u, err := g.users.Register(c.Request.Context(), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

func (g *Gateway) login(c *gin.Context) {
	var in user.LoginInput
	if err := c.ShouldBindJSON(&in); err != nil {
		g.respondError(c, badBody())
		return
	}

	res, err := g.users.Login(c.Request.Context(), in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (g *Gateway) logout(c *gin.Context) {
	if err := g.users.Logout(c.Request.Context(), c.GetString(tokenKey)); err != nil {
		g.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (g *Gateway) getProfile(c *gin.Context) {
	u, err := g.users.Profile(c.Request.Context(), mustSession(c).UserID)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (g *Gateway) updateProfile(c *gin.Context) {
	var in user.ProfileInput
	if err := c.ShouldBindJSON(&in); err != nil {
		g.respondError(c, badBody())
		return
	}

	u, err := g.users.UpdateProfile(c.Request.Context(), mustSession(c).UserID, in)
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, u)
}

func (g *Gateway) getBanking(c *gin.Context) {
	b, err := g.users.Banking(c.Request.Context())
	if err != nil {
		g.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
