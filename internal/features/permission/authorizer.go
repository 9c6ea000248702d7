package permission

import (
	"context"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/database"
	"go-learnerscript/internal/plugins"
)

// LMSAuthorizer answers capability questions from the warehouse's role
// tables. Only pass/fail results leave this type; capability semantics stay
// external per the collaborator contract.
type LMSAuthorizer struct {
	lms *database.LMSDB
}

func NewAuthorizer(lms *database.LMSDB) plugins.Authorizer {
	return &LMSAuthorizer{lms: lms}
}

func (a *LMSAuthorizer) IsSiteAdmin(ctx context.Context, userID int64) (bool, error) {
	count, err := a.lms.CountSQL(ctx,
		`SELECT COUNT(*) FROM site_admins WHERE userid = ?`, userID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *LMSAuthorizer) HasCapability(ctx context.Context, capability string, rc common_models.RequestContext) (bool, error) {
	if rc.SiteAdmin {
		return true, nil
	}

	query := `SELECT COUNT(*) FROM role_capabilities rc
		 JOIN role_assignments ra ON ra.roleid = rc.roleid
		 JOIN roles r ON r.id = ra.roleid
		 WHERE ra.userid = ? AND rc.capability = ? AND rc.permission = 1`
	args := []any{rc.UserID, capability}

	// An explicit active role narrows the check to that role's grants.
	if rc.Role != "" {
		query += ` AND r.shortname = ?`
		args = append(args, rc.Role)
	}

	count, err := a.lms.CountSQL(ctx, query, args...)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}
