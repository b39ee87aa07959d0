// Package server assembles the fiber application and its routes.
package server

import (
	"context"
	"time"

	"go-pos-api/internal/cache"
	"go-pos-api/internal/handler"
	"go-pos-api/internal/middleware"
	"go-pos-api/internal/model"
	"go-pos-api/internal/observability"
	"go-pos-api/internal/receipt"
	"go-pos-api/internal/repository"
	"go-pos-api/internal/service"
	"go-pos-api/internal/ws"
	"go-pos-api/pkg/jwt"
	"go-pos-api/pkg/logger"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Deps are the shared components the routes are built from. Cache, Hub and
// Metrics are optional.
type Deps struct {
	AppName     string
	DB          *gorm.DB
	Log         *zap.Logger
	Tokens      *jwt.Manager
	Cache       *cache.Cache
	Hub         *ws.Hub
	Metrics     *observability.Metrics
	IdleLimit   time.Duration
	HealthCheck func(ctx context.Context) error
}

// New wires repositories, services and handlers into a fiber app.
func New(d Deps) *fiber.App {
	log := d.Log
	if log == nil {
		log = zap.NewNop()
	}

	// 1. Repositories
	productRepo := repository.NewProductRepo(d.DB, log)
	brandRepo := repository.NewBrandRepo(d.DB, log)
	categoryRepo := repository.NewCategoryRepo(d.DB, log)
	txRepo := repository.NewTransactionRepo(d.DB, log)
	tenantRepo := repository.NewTenantRepo(d.DB)
	userRepo := repository.NewUserRepo(d.DB)
	privilegeRepo := repository.NewPrivilegeRepo(d.DB)
	roleRepo := repository.NewRoleRepo(d.DB)

	// 2. Services. A nil hub must not become a non-nil interface.
	var events service.EventPublisher
	if d.Hub != nil {
		events = d.Hub
	}
	var payments service.PaymentRecorder
	if d.Metrics != nil {
		payments = d.Metrics
	}

	catalogService := service.NewCatalogService(productRepo, brandRepo, categoryRepo, d.Cache, events, log)
	txService := service.NewTransactionService(txRepo, productRepo, tenantRepo, events, payments, log, receipt.TextRenderer{})
	dashService := service.NewDashboardService(txRepo)
	authService := service.NewAuthService(userRepo, tenantRepo, roleRepo, d.Tokens, events, d.IdleLimit)
	userService := service.NewUserService(userRepo, privilegeRepo, roleRepo)

	// 3. Handlers
	productHandler := handler.NewProductHandler(catalogService)
	taxonomyHandler := handler.NewTaxonomyHandler(catalogService)
	txHandler := handler.NewTransactionHandler(txService)
	dashHandler := handler.NewDashboardHandler(dashService)
	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(userService)
	roleHandler := handler.NewRoleHandler(roleRepo, privilegeRepo)

	app := fiber.New(fiber.Config{
		AppName:      d.AppName,
		ErrorHandler: handler.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.Middleware(log))
	app.Use(d.Metrics.Middleware())
	app.Use(cors.New())

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if d.HealthCheck != nil {
			if err := d.HealthCheck(c.UserContext()); err != nil {
				log.Warn("health check failed", zap.Error(err))
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
			}
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})
	app.Get("/metrics", d.Metrics.Handler())

	api := app.Group("/api/v1")
	requireAuth := middleware.RequireAuth(d.Tokens, userRepo)
	priv := middleware.RequirePrivilege

	// ============ PUBLIC ROUTES ============
	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Post("/reset-password", authHandler.ResetPassword)
	auth.Post("/validate-token", authHandler.ValidateToken)
	auth.Post("/heartbeat", requireAuth, authHandler.Heartbeat)

	// ============ PROTECTED ROUTES ============
	protected := api.Group("", requireAuth)

	protected.Get("/dashboard/stats", priv(model.PrivDashboardView), dashHandler.GetDashboardStats)
	protected.Get("/dashboard/stock-movement", priv(model.PrivDashboardView), dashHandler.GetStockMovement)

	// Static product paths are registered before /products/:id
	protected.Get("/products", priv(model.PrivProductView), productHandler.GetProducts)
	protected.Get("/products/count", priv(model.PrivProductView), productHandler.CountProducts)
	protected.Post("/products/bulk", priv(model.PrivProductCreate), productHandler.BulkCreate)
	protected.Put("/products/bulk", priv(model.PrivProductUpdate), productHandler.BulkUpdate)
	protected.Delete("/products/bulk", priv(model.PrivProductDelete), productHandler.BulkDelete)
	protected.Get("/products/:id", priv(model.PrivProductView), productHandler.GetProduct)
	protected.Post("/products", priv(model.PrivProductCreate), productHandler.CreateProduct)
	protected.Put("/products/:id", priv(model.PrivProductUpdate), productHandler.UpdateProduct)
	protected.Delete("/products/:id", priv(model.PrivProductDelete), productHandler.DeleteProduct)
	protected.Post("/products/:id/stock", priv(model.PrivStockUpdate), productHandler.UpdateStock)

	protected.Get("/brands", priv(model.PrivProductView), taxonomyHandler.GetBrands)
	protected.Post("/brands", priv(model.PrivBrandManage), taxonomyHandler.CreateBrand)
	protected.Put("/brands/:id", priv(model.PrivBrandManage), taxonomyHandler.UpdateBrand)
	protected.Delete("/brands/:id", priv(model.PrivBrandManage), taxonomyHandler.DeleteBrand)
	protected.Get("/categories", priv(model.PrivProductView), taxonomyHandler.GetCategories)
	protected.Post("/categories", priv(model.PrivCategoryManage), taxonomyHandler.CreateCategory)
	protected.Put("/categories/:id", priv(model.PrivCategoryManage), taxonomyHandler.UpdateCategory)
	protected.Delete("/categories/:id", priv(model.PrivCategoryManage), taxonomyHandler.DeleteCategory)

	protected.Get("/transactions", priv(model.PrivTransactionView), txHandler.GetTransactions)
	protected.Post("/transactions", priv(model.PrivTransactionCreate), txHandler.CreateTransaction)
	protected.Get("/transactions/:id", priv(model.PrivTransactionView), txHandler.GetTransaction)
	protected.Post("/transactions/:id/complete", priv(model.PrivTransactionComplete), txHandler.CompletePayment)
	protected.Get("/transactions/:id/receipt", priv(model.PrivTransactionView), txHandler.GetReceipt)

	protected.Get("/users", priv(model.PrivUserView), userHandler.GetUsers)
	protected.Get("/users/:id", priv(model.PrivUserView), userHandler.GetUser)
	protected.Post("/users", priv(model.PrivUserCreate), userHandler.CreateUser)
	protected.Put("/users/:id", priv(model.PrivUserUpdate), userHandler.UpdateUser)
	protected.Delete("/users/:id", priv(model.PrivUserDelete), userHandler.DeleteUser)
	protected.Put("/users/:id/privileges", priv(model.PrivUserUpdatePrivilege), userHandler.UpdateUserPrivileges)

	protected.Get("/roles", roleHandler.GetRoles)
	protected.Get("/privileges", roleHandler.GetPrivileges)

	if d.Hub != nil {
		registerWebSocket(app, d.Hub, requireAuth)
	}
	return app
}

func registerWebSocket(app *fiber.App, hub *ws.Hub, requireAuth fiber.Handler) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return c.SendStatus(fiber.StatusUpgradeRequired)
	}, requireAuth)

	app.Get("/ws", websocket.New(func(c *websocket.Conn) {
		raw, _ := c.Locals("tenant_id").(string)
		tenantID, err := uuid.Parse(raw)
		if err != nil {
			_ = c.Close()
			return
		}
		hub.Register(c, tenantID)
		defer hub.Unregister(c)

		for {
			// Keep alive loop
			if _, _, err := c.ReadMessage(); err != nil {
				break
			}
		}
	}))
}
