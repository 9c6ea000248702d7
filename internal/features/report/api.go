package report

import (
	"go-learnerscript/internal/config"
	"go-learnerscript/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ReportApi struct {
	controller *ReportController
	config     *config.Config
}

func NewReportApi(controller *ReportController, config *config.Config) *ReportApi {
	return &ReportApi{
		controller: controller,
		config:     config,
	}
}

func (h *ReportApi) Setup(app *fiber.App) {
	reports := app.Group("/api/reports", middleware.AuthMiddleware(h.config.SkipAuth))

	reports.Post("/", h.controller.CreateReport)
	reports.Get("/", h.controller.ListReports)
	reports.Get("/:id", h.controller.GetReport)
	reports.Put("/:id", h.controller.UpdateReport)
	reports.Delete("/:id", h.controller.DeleteReport)
	reports.Post("/:id/duplicate", h.controller.DuplicateReport)

	reports.Post("/:id/components/:kind/elements", h.controller.AddElement)
	reports.Put("/:id/components/:kind/config", h.controller.SetComponentConfig)
	reports.Put("/:id/elements/:elementId", h.controller.UpdateElement)
	reports.Delete("/:id/elements/:elementId", h.controller.DeleteElement)

	reports.Post("/:id/run", h.controller.RunReport)
	reports.Post("/:id/export", h.controller.ExportReport)
	reports.Post("/:id/charts/:plotId", h.controller.ChartData)
	reports.Get("/:id/filters/:filter/options", h.controller.FilterOptions)
}
