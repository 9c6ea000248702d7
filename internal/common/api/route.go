package api

import "github.com/gofiber/fiber/v2"

// Route is implemented by every feature API so Fx can collect them into the
// "routes" group and register them in one pass.
type Route interface {
	Setup(app *fiber.App)
}
