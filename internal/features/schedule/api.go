package schedule

import (
	"go-learnerscript/internal/config"
	"go-learnerscript/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type ScheduleApi struct {
	controller *ScheduleController
	config     *config.Config
}

func NewScheduleApi(controller *ScheduleController, config *config.Config) *ScheduleApi {
	return &ScheduleApi{
		controller: controller,
		config:     config,
	}
}

func (h *ScheduleApi) Setup(app *fiber.App) {
	schedules := app.Group("/api/schedules", middleware.AuthMiddleware(h.config.SkipAuth))

	schedules.Post("/", h.controller.CreateSchedule)
	schedules.Get("/", h.controller.ListSchedules)
	schedules.Get("/:id", h.controller.GetSchedule)
	schedules.Put("/:id", h.controller.UpdateSchedule)
	schedules.Delete("/:id", h.controller.DeleteSchedule)
	schedules.Post("/:id/run", h.controller.RunNow)
}
