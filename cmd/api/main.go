package main

import (
	"context"
	"fmt"
	common_api "go-learnerscript/internal/common/api"
	"go-learnerscript/internal/config"
	"go-learnerscript/internal/database"
	"go-learnerscript/internal/features/audit"
	"go-learnerscript/internal/features/auth"
	"go-learnerscript/internal/features/email"
	"go-learnerscript/internal/features/permission"
	"go-learnerscript/internal/features/report"
	"go-learnerscript/internal/features/runner"
	"go-learnerscript/internal/features/schedule"
	"go-learnerscript/internal/logger"
	"go-learnerscript/internal/middleware"
	"go-learnerscript/internal/plugins"
	"go-learnerscript/pkg/utils"
	"log"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// NewFiberServer creates a new Fiber app instance
func NewFiberServer() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			if e, ok := err.(*fiber.Error); ok {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error": err.Error(),
			})
		},
	})

	app.Use(middleware.CORSMiddleware())

	return app
}

// AsRoute is a helper function to reduce boilerplate.
// It tags the constructor so Fx knows to add it to the "routes" group.
func AsRoute(f any) any {
	return fx.Annotate(
		f,
		fx.As(new(common_api.Route)),
		fx.ResultTags(`group:"routes"`),
	)
}

// RegisterAllRoutes takes the group "routes" (slice of interfaces)
// and calls Setup() on each one.
func RegisterAllRoutes(app *fiber.App, routes []common_api.Route) {
	log.Printf("Registering %d routes...\n", len(routes))
	for _, route := range routes {
		route.Setup(app)
	}
	log.Println("All routes registered successfully")
}

// RegisterAllRoutesWithAnnotation wraps RegisterAllRoutes with fx annotations
var RegisterAllRoutesWithAnnotation = fx.Annotate(
	RegisterAllRoutes,
	fx.ParamTags(``, `group:"routes"`),
)

// StartServer creates a lifecycle hook to start Fiber in a goroutine
// and shut it down when the app exits.
func StartServer(lc fx.Lifecycle, app *fiber.App, cfg *config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				port := fmt.Sprintf(":%s", cfg.Port)
				if err := app.Listen(port); err != nil {
					log.Fatalf("Server failed to start: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return app.Shutdown()
		},
	})
}

// NewPluginDeps bundles the collaborators every plugin execution needs.
func NewPluginDeps(lms *database.LMSDB, authorizer plugins.Authorizer, zapLogger *zap.Logger) *plugins.Deps {
	return &plugins.Deps{
		LMS:    lms,
		Auth:   authorizer,
		Logger: zapLogger,
	}
}

func main() {
	app := fx.New(
		fx.Provide(
			// Load Config
			config.LoadConfig,

			// Initialize Logger
			logger.NewLogger,

			// Initialize Fiber Server
			NewFiberServer,

			// Initialize Databases
			database.NewDatabase,
			database.NewLMSDatabase,

			// Plugin machinery
			plugins.NewRegistry,
			permission.NewAuthorizer,
			NewPluginDeps,
			permission.NewResolver,

			// Initialize Repository
			audit.NewAuditRepository,
			report.NewReportRepository,
			schedule.NewScheduleRepository,
			email.NewEmailRepository,

			// Initialize Services
			audit.NewAuditService,
			auth.NewAuthService,
			runner.NewRunner,
			email.NewEmailService,
			report.NewReportService,
			schedule.NewScheduleService,

			// Interface adapters to break circular dependencies
			func(r schedule.ScheduleRepository) report.ScheduleDeleter { return r },

			// Initialize Controller
			auth.NewAuthController,
			audit.NewAuditController,
			report.NewReportController,
			schedule.NewScheduleController,

			// Initialize API Routes
			AsRoute(auth.NewAuthApi),
			AsRoute(audit.NewAuditApi),
			AsRoute(report.NewReportApi),
			AsRoute(schedule.NewScheduleApi),
		),
		fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log}
		}),
		fx.Invoke(
			func(cfg *config.Config) {
				utils.SetSecret(cfg.JWTSecret)
			},

			// Register Routes & Start
			RegisterAllRoutesWithAnnotation,
			StartServer,

			// Scheduled report delivery loop
			func(lc fx.Lifecycle, scheduleService schedule.ScheduleService) {
				lc.Append(fx.Hook{
					OnStart: func(ctx context.Context) error {
						return scheduleService.StartScheduler()
					},
					OnStop: func(ctx context.Context) error {
						scheduleService.StopScheduler()
						return nil
					},
				})
			},
		),
	)

	app.Run()
}
