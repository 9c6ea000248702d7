package plugins

import (
	"context"

	common_models "go-learnerscript/internal/common/models"
)

func builtinPermissions() []PermissionPlugin {
	return []PermissionPlugin{
		&roleInCourseGate{},
		&siteAdminGate{},
		&viewReportsGate{},
	}
}

// RoleInCourse is the permission plugin name the resolver inspects when
// computing role-wise courses.
const RoleInCourse = "roleincourse"

// roleInCourseGate passes when the requesting user holds the configured role
// at the configured context level.
type roleInCourseGate struct{}

func (p *roleInCourseGate) Spec() Spec {
	return Spec{Name: RoleInCourse, Kind: KindPermission, FullName: "Role in course", RequireForm: true}
}

func (p *roleInCourseGate) Execute(ctx context.Context, deps *Deps, form map[string]string, rc common_models.RequestContext) (bool, error) {
	roleID, ok := ToInt64(form["roleid"])
	if !ok {
		return false, nil
	}
	contextLevel, ok := ToInt64(form["contextlevel"])
	if !ok {
		contextLevel = common_models.ContextCourse
	}
	count, err := deps.LMS.CountSQL(ctx,
		`SELECT COUNT(*) FROM role_assignments
		 WHERE userid = ? AND roleid = ? AND contextlevel = ?`,
		rc.UserID, roleID, contextLevel)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// siteAdminGate passes only for site administrators.
type siteAdminGate struct{}

func (p *siteAdminGate) Spec() Spec {
	return Spec{Name: "siteadmin", Kind: KindPermission, FullName: "Site administrator", Unique: true}
}

func (p *siteAdminGate) Execute(ctx context.Context, deps *Deps, _ map[string]string, rc common_models.RequestContext) (bool, error) {
	return deps.Auth.IsSiteAdmin(ctx, rc.UserID)
}

// viewReportsGate passes when the user's active role carries the generic
// report-viewing capability.
type viewReportsGate struct{}

func (p *viewReportsGate) Spec() Spec {
	return Spec{Name: "viewreports", Kind: KindPermission, FullName: "Can view reports", Unique: true}
}

func (p *viewReportsGate) Execute(ctx context.Context, deps *Deps, _ map[string]string, rc common_models.RequestContext) (bool, error) {
	return deps.Auth.HasCapability(ctx, common_models.CapabilityViewReports, rc)
}
