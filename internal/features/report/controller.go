package report

import (
	"context"
	"time"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/features/chart"
	"go-learnerscript/internal/features/runner"
	"go-learnerscript/internal/middleware"
	"go-learnerscript/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ReportController struct {
	Service ReportService
	Runner  runner.Runner
}

func NewReportController(service ReportService, reportRunner runner.Runner) *ReportController {
	return &ReportController{
		Service: service,
		Runner:  reportRunner,
	}
}

// requestContext extracts the caller identity and builds the service context
// carrying the claims for audit attribution.
func (c *ReportController) requestContext(ctx *fiber.Ctx) (context.Context, context.CancelFunc, common_models.RequestContext, error) {
	rc, ok := middleware.RequestContext(ctx)
	if !ok {
		return nil, nil, rc, fiber.NewError(fiber.StatusUnauthorized, "missing credentials")
	}
	ctxt, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	if claims := ctx.Locals(utils.UserClaimsKey); claims != nil {
		ctxt = context.WithValue(ctxt, utils.UserClaimsKey, claims)
	}
	return ctxt, cancel, rc, nil
}

func (c *ReportController) CreateReport(ctx *fiber.Ctx) error {
	var report common_models.Report
	if err := ctx.BodyParser(&report); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel, rc, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	report.OwnerID = rc.UserID
	if err := c.Service.CreateReport(ctxt, &report); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(report)
}

func (c *ReportController) GetReport(ctx *fiber.Ctx) error {
	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	report, err := c.Service.GetReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(report)
}

func (c *ReportController) ListReports(ctx *fiber.Ctx) error {
	ctxt, cancel, rc, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	filter := map[string]interface{}{}
	if t := ctx.Query("type"); t != "" {
		filter["type"] = t
	}

	reports, err := c.Service.ListReports(ctxt, rc, filter)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(reports)
}

func (c *ReportController) UpdateReport(ctx *fiber.Ctx) error {
	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	existing, err := c.Service.GetReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	var report common_models.Report
	if err := ctx.BodyParser(&report); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	report.ID = existing.ID
	report.OwnerID = existing.OwnerID
	report.CreatedAt = existing.CreatedAt

	if err := c.Service.UpdateReport(ctxt, &report); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(report)
}

func (c *ReportController) DeleteReport(ctx *fiber.Ctx) error {
	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.Service.DeleteReport(ctxt, ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Report deleted"})
}

func (c *ReportController) DuplicateReport(ctx *fiber.Ctx) error {
	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	clone, err := c.Service.DuplicateReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(clone)
}

func (c *ReportController) AddElement(ctx *fiber.Ctx) error {
	var element common_models.Element
	if err := ctx.BodyParser(&element); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	kind := common_models.ComponentKind(ctx.Params("kind"))
	id, err := c.Service.AddElement(ctxt, ctx.Params("id"), kind, element)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(fiber.Map{"id": id})
}

func (c *ReportController) UpdateElement(ctx *fiber.Ctx) error {
	var element common_models.Element
	if err := ctx.BodyParser(&element); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.Service.UpdateElement(ctxt, ctx.Params("id"), ctx.Params("elementId"), element); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Element updated"})
}

func (c *ReportController) DeleteElement(ctx *fiber.Ctx) error {
	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if err := c.Service.DeleteElement(ctxt, ctx.Params("id"), ctx.Params("elementId")); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Element deleted"})
}

func (c *ReportController) SetComponentConfig(ctx *fiber.Ctx) error {
	var config map[string]string
	if err := ctx.BodyParser(&config); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	kind := common_models.ComponentKind(ctx.Params("kind"))
	if err := c.Service.SetComponentConfig(ctxt, ctx.Params("id"), kind, config); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Component config updated"})
}

func (c *ReportController) RunReport(ctx *fiber.Ctx) error {
	var req common_models.RunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel, rc, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	report, err := c.Service.GetReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := c.Runner.Run(ctxt, report, &req, rc)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(result)
}

func (c *ReportController) ChartData(ctx *fiber.Ctx) error {
	var req common_models.RunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.PlotID = ctx.Params("plotId")

	ctxt, cancel, rc, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	report, err := c.Service.GetReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	var plot *common_models.Element
	for i := range tree.Plot.Elements {
		if tree.Plot.Elements[i].ID == req.PlotID {
			plot = &tree.Plot.Elements[i]
		}
	}
	if plot == nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "plot element not found"})
	}

	result, err := c.Runner.Run(ctxt, report, &req, rc)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(chart.ToSeries(result, plot))
}

func (c *ReportController) ExportReport(ctx *fiber.Ctx) error {
	var req common_models.RunRequest
	if err := ctx.BodyParser(&req); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	req.WithCalculations = true
	// Exports are unpaginated.
	req.Page = 1
	req.PerPage = 100000

	ctxt, cancel, rc, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	report, err := c.Service.GetReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	result, err := c.Runner.Run(ctxt, report, &req, rc)
	if err != nil {
		return ctx.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	}

	format := ctx.Query("format", "csv")
	filename, data, err := BuildExport(report, result, format)
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	ctx.Set(fiber.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	if format == "csv" {
		ctx.Set(fiber.HeaderContentType, "text/csv")
	} else {
		ctx.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	}
	return ctx.Send(data)
}

func (c *ReportController) FilterOptions(ctx *fiber.Ctx) error {
	ctxt, cancel, _, err := c.requestContext(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	report, err := c.Service.GetReport(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	options, err := c.Runner.FilterOptions(ctxt, report, ctx.Params("filter"))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(options)
}
