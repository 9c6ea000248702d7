package permission

import (
	"context"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/plugins"
	"go-learnerscript/pkg/expression"

	"go.uber.org/zap"
)

// CourseSet is the resolved course visibility of one user for one report.
// Unrestricted short-circuits all downstream course filtering.
type CourseSet struct {
	Unrestricted bool
	IDs          []int64
}

type Resolver interface {
	// CanView decides whether the user may view the report at all.
	CanView(ctx context.Context, report *common_models.Report, rc common_models.RequestContext) (bool, error)
	// RolewiseCourses computes the restricted course set the user's active
	// role permits, from the report's roleincourse permission elements.
	RolewiseCourses(ctx context.Context, report *common_models.Report, rc common_models.RequestContext) (CourseSet, error)
}

type ResolverImpl struct {
	deps     *plugins.Deps
	registry *plugins.Registry
	logger   *zap.Logger
}

func NewResolver(deps *plugins.Deps, registry *plugins.Registry, logger *zap.Logger) Resolver {
	return &ResolverImpl{deps: deps, registry: registry, logger: logger}
}

func (r *ResolverImpl) CanView(ctx context.Context, report *common_models.Report, rc common_models.RequestContext) (bool, error) {
	if rc.SiteAdmin {
		return true, nil
	}
	if admin, err := r.deps.Auth.IsSiteAdmin(ctx, rc.UserID); err == nil && admin {
		return true, nil
	}
	if manage, err := r.deps.Auth.HasCapability(ctx, common_models.CapabilityManageReports, rc); err == nil && manage {
		return true, nil
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		r.logger.Warn("malformed components blob, treating as empty",
			zap.String("reportId", report.ID.Hex()), zap.Error(err))
	}

	elements := tree.Permissions.Elements
	if len(elements) == 0 {
		// No configured permissions: fall back to the generic capability.
		return r.deps.Auth.HasCapability(ctx, common_models.CapabilityViewReports, rc)
	}

	values := make([]bool, 0, len(elements))
	for _, el := range elements {
		plugin, ok := r.registry.Permission(el.PluginName)
		if !ok {
			r.logger.Warn("unknown permission plugin",
				zap.String("reportId", report.ID.Hex()), zap.String("plugin", el.PluginName))
			values = append(values, false)
			continue
		}
		pass, err := plugin.Execute(ctx, r.deps, el.FormData, rc)
		if err != nil {
			return false, err
		}
		values = append(values, pass)
	}

	logic := tree.Permissions.ConditionExpr()
	if logic == "" {
		// Documented default: explicit conjunction of every element.
		logic = expression.Conjunction(len(values))
	}
	return expression.EvaluateBool(logic, values)
}

func (r *ResolverImpl) RolewiseCourses(ctx context.Context, report *common_models.Report, rc common_models.RequestContext) (CourseSet, error) {
	if rc.SiteAdmin {
		return CourseSet{Unrestricted: true}, nil
	}
	if admin, err := r.deps.Auth.IsSiteAdmin(ctx, rc.UserID); err == nil && admin {
		return CourseSet{Unrestricted: true}, nil
	}
	if manage, err := r.deps.Auth.HasCapability(ctx, common_models.CapabilityManageReports, rc); err == nil && manage {
		return CourseSet{Unrestricted: true}, nil
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		r.logger.Warn("malformed components blob, treating as empty",
			zap.String("reportId", report.ID.Hex()), zap.Error(err))
	}

	union := map[int64]struct{}{}
	for _, el := range tree.Permissions.Elements {
		if el.PluginName != plugins.RoleInCourse {
			continue
		}
		if el.FormData["role"] != "" && el.FormData["role"] != rc.Role {
			continue
		}
		ids, err := r.coursesForElement(ctx, el.FormData, rc)
		if err != nil {
			return CourseSet{}, err
		}
		for _, id := range ids {
			union[id] = struct{}{}
		}
	}

	set := CourseSet{IDs: make([]int64, 0, len(union))}
	for id := range union {
		set.IDs = append(set.IDs, id)
	}
	return set, nil
}

// coursesForElement enumerates the courses one roleincourse element grants at
// its context level, through role-assignment joins.
func (r *ResolverImpl) coursesForElement(ctx context.Context, form map[string]string, rc common_models.RequestContext) ([]int64, error) {
	roleID, err := r.roleID(ctx, form)
	if err != nil {
		return nil, err
	}

	contextLevel, ok := plugins.ToInt64(form["contextlevel"])
	if !ok {
		contextLevel = int64(rc.ContextLevel)
	}

	var query string
	switch contextLevel {
	case common_models.ContextSystem:
		// A system-level role sees every visible course.
		query = `SELECT c.id FROM courses c
			 JOIN role_assignments ra ON ra.contextlevel = ?
			 WHERE ra.userid = ? AND ra.roleid = ? AND c.visible = true`
		return r.courseIDs(ctx, query, common_models.ContextSystem, rc.UserID, roleID)
	case common_models.ContextCategory:
		query = `SELECT c.id FROM courses c
			 JOIN role_assignments ra ON ra.instanceid = c.category AND ra.contextlevel = ?
			 WHERE ra.userid = ? AND ra.roleid = ? AND c.visible = true`
		return r.courseIDs(ctx, query, common_models.ContextCategory, rc.UserID, roleID)
	default:
		query = `SELECT DISTINCT ra.instanceid FROM role_assignments ra
			 JOIN courses c ON c.id = ra.instanceid
			 WHERE ra.userid = ? AND ra.roleid = ? AND ra.contextlevel = ? AND c.visible = true`
		return r.courseIDs(ctx, query, rc.UserID, roleID, common_models.ContextCourse)
	}
}

func (r *ResolverImpl) roleID(ctx context.Context, form map[string]string) (int64, error) {
	if id, ok := plugins.ToInt64(form["roleid"]); ok {
		return id, nil
	}
	var id int64
	err := r.deps.LMS.Get(ctx, &id, `SELECT id FROM roles WHERE shortname = ?`, form["role"])
	return id, err
}

func (r *ResolverImpl) courseIDs(ctx context.Context, query string, args ...any) ([]int64, error) {
	rows, err := r.deps.LMS.RunSQL(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(rows))
	for _, row := range rows {
		for _, v := range row {
			if id, ok := plugins.ToInt64(v); ok {
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}
