package plugins

import (
	"context"
	"fmt"
	"strings"

	common_models "go-learnerscript/internal/common/models"
)

func builtinFilters() []FilterPlugin {
	return []FilterPlugin{
		&coursesFilter{},
		&usersFilter{},
		&statusFilter{},
		&daterangeFilter{},
		&searchtextFilter{},
	}
}

// coursesFilter restricts a report to one course.
type coursesFilter struct{}

func (p *coursesFilter) Spec() Spec {
	return Spec{Name: "courses", Kind: KindFilter, FullName: "Course", Unique: true}
}

func (p *coursesFilter) Options(ctx context.Context, deps *Deps) ([]Option, error) {
	rows, err := deps.LMS.RunSQL(ctx,
		`SELECT id, fullname FROM courses WHERE visible = true ORDER BY fullname`)
	if err != nil {
		return nil, err
	}
	opts := make([]Option, 0, len(rows))
	for _, r := range rows {
		opts = append(opts, Option{Label: ToString(r["fullname"]), Value: ToString(r["id"])})
	}
	return opts, nil
}

func (p *coursesFilter) SelectedLabel(ctx context.Context, deps *Deps, value string) string {
	id, ok := ToInt64(value)
	if !ok {
		return value
	}
	var name string
	if err := deps.LMS.Get(ctx, &name, `SELECT fullname FROM courses WHERE id = ?`, id); err != nil {
		return value
	}
	return name
}

func (p *coursesFilter) SQL(form map[string]string, req *common_models.RunRequest) (string, []any) {
	value := req.Filters["courses"]
	if value == "" {
		return "", nil
	}
	id, ok := ToInt64(value)
	if !ok {
		return "", nil
	}
	column := form["column"]
	if column == "" {
		column = "courseid"
	}
	if !safeIdent(column) {
		return "", nil
	}
	return fmt.Sprintf("AND %s = ?", column), []any{id}
}

// usersFilter restricts a report to one user.
type usersFilter struct{}

func (p *usersFilter) Spec() Spec {
	return Spec{Name: "users", Kind: KindFilter, FullName: "User", Unique: true}
}

func (p *usersFilter) Options(ctx context.Context, deps *Deps) ([]Option, error) {
	rows, err := deps.LMS.RunSQL(ctx,
		`SELECT id, firstname, lastname FROM users WHERE deleted = false ORDER BY lastname, firstname`)
	if err != nil {
		return nil, err
	}
	opts := make([]Option, 0, len(rows))
	for _, r := range rows {
		label := ToString(r["firstname"]) + " " + ToString(r["lastname"])
		opts = append(opts, Option{Label: label, Value: ToString(r["id"])})
	}
	return opts, nil
}

func (p *usersFilter) SelectedLabel(ctx context.Context, deps *Deps, value string) string {
	id, ok := ToInt64(value)
	if !ok {
		return value
	}
	var name string
	if err := deps.LMS.Get(ctx, &name,
		`SELECT firstname || ' ' || lastname FROM users WHERE id = ?`, id); err != nil {
		return value
	}
	return name
}

func (p *usersFilter) SQL(form map[string]string, req *common_models.RunRequest) (string, []any) {
	value := req.Filters["users"]
	if value == "" {
		return "", nil
	}
	id, ok := ToInt64(value)
	if !ok {
		return "", nil
	}
	column := form["column"]
	if column == "" {
		column = "userid"
	}
	if !safeIdent(column) {
		return "", nil
	}
	return fmt.Sprintf("AND %s = ?", column), []any{id}
}

// statusFilter matches a status value.
type statusFilter struct{}

func (p *statusFilter) Spec() Spec {
	return Spec{Name: "status", Kind: KindFilter, FullName: "Status", Unique: true}
}

func (p *statusFilter) Options(_ context.Context, _ *Deps) ([]Option, error) {
	return []Option{
		{Label: "Active", Value: "active"},
		{Label: "Suspended", Value: "suspended"},
		{Label: "Inactive", Value: "inactive"},
	}, nil
}

func (p *statusFilter) SelectedLabel(_ context.Context, _ *Deps, value string) string {
	if value == "" {
		return value
	}
	return strings.ToUpper(value[:1]) + value[1:]
}

func (p *statusFilter) SQL(form map[string]string, req *common_models.RunRequest) (string, []any) {
	value := req.Filters["status"]
	if value == "" {
		return "", nil
	}
	column := form["column"]
	if column == "" {
		column = "status"
	}
	if !safeIdent(column) {
		return "", nil
	}
	return fmt.Sprintf("AND %s = ?", column), []any{value}
}

// daterangeFilter bounds the report's time column by the request range.
type daterangeFilter struct{}

func (p *daterangeFilter) Spec() Spec {
	return Spec{Name: "daterange", Kind: KindFilter, FullName: "Date range", Unique: true}
}

func (p *daterangeFilter) Options(_ context.Context, _ *Deps) ([]Option, error) {
	return nil, nil
}

func (p *daterangeFilter) SelectedLabel(_ context.Context, _ *Deps, value string) string {
	return value
}

func (p *daterangeFilter) SQL(form map[string]string, req *common_models.RunRequest) (string, []any) {
	if req.StartDate == 0 && req.EndDate == 0 {
		return "", nil
	}
	column := form["column"]
	if column == "" {
		column = "timecreated"
	}
	if !safeIdent(column) {
		return "", nil
	}
	switch {
	case req.StartDate != 0 && req.EndDate != 0:
		return fmt.Sprintf("AND %s BETWEEN ? AND ?", column), []any{req.StartDate, req.EndDate}
	case req.StartDate != 0:
		return fmt.Sprintf("AND %s >= ?", column), []any{req.StartDate}
	default:
		return fmt.Sprintf("AND %s <= ?", column), []any{req.EndDate}
	}
}

// searchtextFilter matches free text against the columns configured in form
// data (comma separated).
type searchtextFilter struct{}

func (p *searchtextFilter) Spec() Spec {
	return Spec{Name: "searchtext", Kind: KindFilter, FullName: "Search", Unique: true, RequireForm: true}
}

func (p *searchtextFilter) Options(_ context.Context, _ *Deps) ([]Option, error) {
	return nil, nil
}

func (p *searchtextFilter) SelectedLabel(_ context.Context, _ *Deps, value string) string {
	return value
}

func (p *searchtextFilter) SQL(form map[string]string, req *common_models.RunRequest) (string, []any) {
	if req.Search == "" {
		return "", nil
	}
	var columns []string
	for _, c := range strings.Split(form["columns"], ",") {
		c = strings.TrimSpace(c)
		if c != "" && safeIdent(c) {
			columns = append(columns, c)
		}
	}
	if len(columns) == 0 {
		return "", nil
	}
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, c := range columns {
		parts[i] = fmt.Sprintf("%s ILIKE ?", c)
		args[i] = "%" + req.Search + "%"
	}
	return "AND (" + strings.Join(parts, " OR ") + ")", args
}

// safeIdent accepts plain (optionally table-qualified) column identifiers.
// Anything else is refused rather than interpolated.
func safeIdent(s string) bool {
	if s == "" {
		return false
	}
	dots := 0
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9' && i > 0, r == '_':
		case r == '.' && i > 0 && i < len(s)-1:
			dots++
			if dots > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
