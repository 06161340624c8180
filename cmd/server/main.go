package main

import (
	"strings"

	"feedmill-backend/internal/admin"
	"feedmill-backend/internal/audit"
	"feedmill-backend/internal/auth"
	"feedmill-backend/internal/bags"
	"feedmill-backend/internal/catalog"
	"feedmill-backend/internal/config"
	"feedmill-backend/internal/database"
	"feedmill-backend/internal/formula"
	"feedmill-backend/internal/ledger"
	"feedmill-backend/internal/logger"
	"feedmill-backend/internal/models"
	"feedmill-backend/internal/production"
	"feedmill-backend/internal/reports"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"go.uber.org/zap"
)

func main() {
	log := logger.Must(logger.New())
	defer log.Sync()
	zap.ReplaceGlobals(log)

	cfg := config.Load()
	database.Init(cfg)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Error("unexpected error", zap.Error(err), zap.String("path", c.Path()))
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Unexpected server error",
			})
		},
	})

	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-admin", auth.RegisterAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())

	// Admin-only routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleAdmin))

	// Branch management
	adminRoutes.Post("/branches", admin.CreateBranchHandler())
	adminRoutes.Get("/branches", admin.ListBranchesHandler())
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler())
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler())
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler())
	adminRoutes.Post("/branches/:id/users", admin.CreateBranchUserHandler())
	adminRoutes.Get("/branches/:id/users", admin.ListBranchUsersHandler())

	// Manual stock intervention
	adminRoutes.Post("/stock-adjustments", ledger.AdjustStockHandler())
	adminRoutes.Put("/opened-bags/:id/weight", bags.CorrectWeightHandler())
	adminRoutes.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	// Master data writes (admin or supervisor)
	masterData := protected.Group("")
	masterData.Use(auth.RequireRole(models.RoleAdmin, models.RoleSupervisor))

	masterData.Post("/raw-materials", catalog.CreateRawMaterialHandler())
	masterData.Put("/raw-materials/:id", catalog.UpdateRawMaterialHandler())
	masterData.Delete("/raw-materials/:id", catalog.DeleteRawMaterialHandler())
	masterData.Post("/packaging-materials", catalog.CreatePackagingMaterialHandler())
	masterData.Put("/packaging-materials/:id", catalog.UpdatePackagingMaterialHandler())
	masterData.Delete("/packaging-materials/:id", catalog.DeletePackagingMaterialHandler())
	masterData.Post("/third-party-products", catalog.CreateThirdPartyProductHandler())
	masterData.Put("/third-party-products/:id", catalog.UpdateThirdPartyProductHandler())
	masterData.Post("/products", catalog.CreateProductHandler())
	masterData.Put("/products/:id", catalog.UpdateProductHandler())

	masterData.Post("/formulas", formula.CreateFormulaHandler())
	masterData.Put("/formulas/:id", formula.UpdateFormulaHandler())

	masterData.Post("/production-batches", production.CreateBatchHandler(cfg))

	// Common routes (any authenticated role)
	protected.Get("/raw-materials", catalog.ListRawMaterialsHandler())
	protected.Get("/packaging-materials", catalog.ListPackagingMaterialsHandler())
	protected.Get("/third-party-products", catalog.ListThirdPartyProductsHandler())
	protected.Get("/products", catalog.ListProductsHandler())

	protected.Get("/formulas", formula.ListFormulasHandler())
	protected.Get("/formulas/:id", formula.GetFormulaHandler())
	protected.Get("/formulas/:id/availability", formula.CheckAvailabilityHandler())

	protected.Get("/production-batches", production.ListBatchesHandler())
	protected.Get("/production-batches/:id", production.GetBatchHandler())
	protected.Get("/production-batches/:id/logs", production.ListBatchLogsHandler())
	protected.Post("/production-batches/:id/start", production.StartBatchHandler(cfg))
	protected.Post("/production-batches/:id/pause", production.PauseBatchHandler(cfg))
	protected.Post("/production-batches/:id/resume", production.ResumeBatchHandler(cfg))
	protected.Post("/production-batches/:id/cancel", production.CancelBatchHandler(cfg))
	protected.Post("/production-batches/:id/complete", production.CompleteBatchHandler(cfg))

	protected.Get("/product-bags", bags.ListBagsHandler())
	protected.Get("/product-bags/:serial", bags.GetBagHandler())
	protected.Post("/product-bags/:serial/open", bags.OpenBagHandler())
	protected.Get("/opened-bags", bags.ListOpenedBagsHandler())
	protected.Post("/opened-bags/:id/deduct", bags.DeductWeightHandler())

	protected.Get("/stock-movements", ledger.ListMovementsHandler())

	protected.Get("/reports/production/monthly", reports.MonthlyProductionSummaryHandler())
	protected.Get("/reports/stock-usage", reports.StockUsageHandler())

	protected.Get("/audit-logs", audit.ListAuditLogsHandler())

	log.Info("server listening", zap.String("port", cfg.HTTPPort))
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}
