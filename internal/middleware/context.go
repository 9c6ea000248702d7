package middleware

import (
	"strconv"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/pkg/utils"

	"github.com/gofiber/fiber/v2"
)

// RequestContext builds the explicit per-request identity/scope record from
// the validated claims. The active role and context level default to the
// values baked into the token but can be switched per request via headers,
// the way a user switches role in the report UI.
func RequestContext(c *fiber.Ctx) (common_models.RequestContext, bool) {
	claims, ok := c.Locals(utils.UserClaimsKey).(*utils.UserClaims)
	if !ok {
		return common_models.RequestContext{}, false
	}

	rc := common_models.RequestContext{
		UserID:       claims.UserID,
		Role:         claims.Role,
		ContextLevel: claims.ContextLevel,
		SiteAdmin:    claims.SiteAdmin,
	}

	if role := c.Get("X-LS-Role"); role != "" {
		rc.Role = role
	}
	if lvl := c.Get("X-LS-Context-Level"); lvl != "" {
		if n, err := strconv.Atoi(lvl); err == nil {
			rc.ContextLevel = n
		}
	}
	if rc.ContextLevel == 0 {
		rc.ContextLevel = common_models.ContextCourse
	}
	return rc, true
}
