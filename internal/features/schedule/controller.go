package schedule

import (
	"context"
	"time"

	"go-learnerscript/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

type ScheduleController struct {
	Service ScheduleService
}

func NewScheduleController(service ScheduleService) *ScheduleController {
	return &ScheduleController{Service: service}
}

func (c *ScheduleController) serviceContext(ctx *fiber.Ctx, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctxt, cancel := context.WithTimeout(context.Background(), timeout)
	if claims := ctx.Locals(utils.UserClaimsKey); claims != nil {
		ctxt = context.WithValue(ctxt, utils.UserClaimsKey, claims)
	}
	return ctxt, cancel
}

func (c *ScheduleController) CreateSchedule(ctx *fiber.Ctx) error {
	var sch Schedule
	if err := ctx.BodyParser(&sch); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	ctxt, cancel := c.serviceContext(ctx, 10*time.Second)
	defer cancel()

	if err := c.Service.CreateSchedule(ctxt, &sch); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.Status(fiber.StatusCreated).JSON(sch)
}

func (c *ScheduleController) GetSchedule(ctx *fiber.Ctx) error {
	ctxt, cancel := c.serviceContext(ctx, 10*time.Second)
	defer cancel()

	sch, err := c.Service.GetSchedule(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(sch)
}

func (c *ScheduleController) ListSchedules(ctx *fiber.Ctx) error {
	ctxt, cancel := c.serviceContext(ctx, 10*time.Second)
	defer cancel()

	schedules, err := c.Service.ListSchedules(ctxt, ctx.Query("report_id"))
	if err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(schedules)
}

func (c *ScheduleController) UpdateSchedule(ctx *fiber.Ctx) error {
	ctxt, cancel := c.serviceContext(ctx, 10*time.Second)
	defer cancel()

	existing, err := c.Service.GetSchedule(ctxt, ctx.Params("id"))
	if err != nil {
		return ctx.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	}

	var sch Schedule
	if err := ctx.BodyParser(&sch); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}
	sch.ID = existing.ID
	sch.TimeCreated = existing.TimeCreated

	if err := c.Service.UpdateSchedule(ctxt, &sch); err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(sch)
}

func (c *ScheduleController) DeleteSchedule(ctx *fiber.Ctx) error {
	ctxt, cancel := c.serviceContext(ctx, 10*time.Second)
	defer cancel()

	if err := c.Service.DeleteSchedule(ctxt, ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Schedule deleted"})
}

func (c *ScheduleController) RunNow(ctx *fiber.Ctx) error {
	// Delivery runs the full report and sends mail; give it more room.
	ctxt, cancel := c.serviceContext(ctx, 5*time.Minute)
	defer cancel()

	if err := c.Service.RunNow(ctxt, ctx.Params("id")); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return ctx.JSON(fiber.Map{"message": "Schedule delivered"})
}
