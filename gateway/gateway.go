// Package gateway is the storefront's HTTP API.
package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/example/flowershop/gateway/docs"
	"github.com/example/flowershop/pkg/config"
	"github.com/example/flowershop/pkg/models"
	"github.com/example/flowershop/pkg/order"
	"github.com/example/flowershop/pkg/user"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

type OrderService interface {
	Create(ctx context.Context, customerID string, in order.CreateInput) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID string) ([]*models.Order, error)
	GetForCustomer(ctx context.Context, customerID, id string) (*models.Order, error)
	Detail(ctx context.Context, id string) (*models.Order, []models.OrderStatus, error)
	UpdateStatus(ctx context.Context, id string, to models.OrderStatus, by, note string) (*models.Order, error)
	MarkPaid(ctx context.Context, id, by, note string) (*models.Order, error)
	List(ctx context.Context, f models.OrderFilter) ([]*models.Order, int64, error)
	Dashboard(ctx context.Context, days int) (*models.Dashboard, error)
}

type UserService interface {
	Register(ctx context.Context, in user.RegisterInput) (*models.User, error)
	Login(ctx context.Context, in user.LoginInput) (*user.LoginResult, error)
	Logout(ctx context.Context, token string) error
	Authenticate(ctx context.Context, token string) (*models.Session, error)
	Profile(ctx context.Context, userID string) (*models.User, error)
	UpdateProfile(ctx context.Context, userID string, in user.ProfileInput) (*models.User, error)
	Banking(ctx context.Context) (*models.BankingSetting, error)
	SaveBanking(ctx context.Context, b *models.BankingSetting) (*models.BankingSetting, error)
}

type Inbox interface {
	List(ctx context.Context, limit int64) ([]*models.Notification, int64, error)
	MarkRead(ctx context.Context, id string) error
}

type Gateway struct {
	config *config.Config
	logger *zap.Logger
	router *gin.Engine
	server *http.Server

	orders OrderService
	users  UserService
	inbox  Inbox
}

func NewGateway(cfg *config.Config, logger *zap.Logger, orders OrderService, users UserService, inbox Inbox) *Gateway {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggerMiddleware(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	g := &Gateway{
		config: cfg,
		logger: logger,
		router: router,
		orders: orders,
		users:  users,
		inbox:  inbox,
	}
	g.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	g.SetupRoutes()
	return g
}

func (g *Gateway) SetupRoutes() {
	g.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := g.router.Group("/api")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", g.register)
			auth.POST("/login", g.login)
			auth.POST("/logout", g.authenticate(), g.logout)
		}

		api.GET("/banking", g.getBanking)

		profile := api.Group("/profile", g.authenticate())
		{
			profile.GET("", g.getProfile)
			profile.PUT("", g.updateProfile)
		}

		orders := api.Group("/orders", g.authenticate())
		{
			orders.GET("", g.listOrders)
			orders.POST("", g.createOrder)
			orders.GET("/:id", g.getOrder)
		}

		admin := api.Group("/admin", g.authenticate(), requireAdmin())
		{
			admin.GET("/dashboard", g.dashboard)
			admin.GET("/orders", g.adminListOrders)
			admin.GET("/orders/:id", g.adminGetOrder)
			admin.PATCH("/orders/:id/status", g.adminUpdateStatus)
			admin.PATCH("/orders/:id/payment", g.adminMarkPaid)
			admin.GET("/notifications", g.listNotifications)
			admin.PATCH("/notifications/:id/read", g.markNotificationRead)
			admin.PUT("/banking", g.saveBanking)
		}
	}

	docs.SwaggerInfo.BasePath = "/api"
	g.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
}

func (g *Gateway) Handler() http.Handler {
	return g.router
}

// Start serves until Shutdown is called; it returns nil after a clean shutdown.
func (g *Gateway) Start() error {
	g.logger.Info("Gateway starting", zap.String("address", g.server.Addr))
	if err := g.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (g *Gateway) Shutdown(ctx context.Context) error {
	return g.server.Shutdown(ctx)
}
