package plugins

import (
	"context"
	"fmt"

	common_models "go-learnerscript/internal/common/models"
)

func builtinColumns() []ColumnPlugin {
	return []ColumnPlugin{
		&fieldColumn{},
		&fullnameColumn{},
		&coursesEnrolledColumn{},
		&statusColumn{},
		&timespentColumn{},
	}
}

func formatFromForm(form map[string]string) common_models.ColumnMeta {
	meta := common_models.ColumnMeta{Align: "left", Wrap: "normal"}
	if a := form["align"]; a != "" {
		meta.Align = a
	}
	if w := form["width"]; w != "" {
		if n, ok := ToInt64(w); ok {
			meta.Width = int(n)
		}
	}
	if wr := form["wrap"]; wr != "" {
		meta.Wrap = wr
	}
	return meta
}

// fieldColumn renders one raw warehouse column selected by form data.
type fieldColumn struct{}

func (p *fieldColumn) Spec() Spec {
	return Spec{Name: "field", Kind: KindColumn, FullName: "Table field", RequireForm: true}
}

func (p *fieldColumn) Execute(_ context.Context, _ *Deps, form map[string]string, row map[string]any, _ string) (any, error) {
	field := form["field"]
	if field == "" {
		return nil, fmt.Errorf("field column requires a field name")
	}
	return row[field], nil
}

func (p *fieldColumn) Format(form map[string]string) common_models.ColumnMeta {
	return formatFromForm(form)
}

// fullnameColumn joins first and last name.
type fullnameColumn struct{}

func (p *fullnameColumn) Spec() Spec {
	return Spec{
		Name:        "fullname",
		Kind:        KindColumn,
		FullName:    "User full name",
		ReportTypes: []string{"users", "grades", "useractivities"},
	}
}

func (p *fullnameColumn) Execute(_ context.Context, _ *Deps, _ map[string]string, row map[string]any, _ string) (any, error) {
	first := ToString(row["firstname"])
	last := ToString(row["lastname"])
	if first == "" && last == "" {
		return ToString(row["fullname"]), nil
	}
	return first + " " + last, nil
}

func (p *fullnameColumn) Format(form map[string]string) common_models.ColumnMeta {
	return formatFromForm(form)
}

// coursesEnrolledColumn fans a user row out into one row per active
// enrolment: it returns the enrolled course names as an array cell.
type coursesEnrolledColumn struct{}

func (p *coursesEnrolledColumn) Spec() Spec {
	return Spec{
		Name:        "coursesenrolled",
		Kind:        KindColumn,
		FullName:    "Enrolled courses",
		ReportTypes: []string{"users"},
	}
}

func (p *coursesEnrolledColumn) Execute(ctx context.Context, deps *Deps, _ map[string]string, row map[string]any, _ string) (any, error) {
	userID, ok := ToInt64(row["id"])
	if !ok {
		return nil, fmt.Errorf("coursesenrolled: row has no user id")
	}
	rows, err := deps.LMS.RunSQL(ctx,
		`SELECT c.fullname FROM courses c
		 JOIN enrolments e ON e.courseid = c.id
		 WHERE e.userid = ? AND e.status = 'active' AND c.visible = true
		 ORDER BY c.fullname`, userID)
	if err != nil {
		return nil, err
	}
	names := make([]any, 0, len(rows))
	for _, r := range rows {
		names = append(names, ToString(r["fullname"]))
	}
	return names, nil
}

func (p *coursesEnrolledColumn) Format(form map[string]string) common_models.ColumnMeta {
	return formatFromForm(form)
}

// statusColumn renders a user/enrolment status value as a label.
type statusColumn struct{}

func (p *statusColumn) Spec() Spec {
	return Spec{Name: "status", Kind: KindColumn, FullName: "Status"}
}

func (p *statusColumn) Execute(_ context.Context, _ *Deps, _ map[string]string, row map[string]any, _ string) (any, error) {
	switch ToString(row["status"]) {
	case "0", "active":
		return "Active", nil
	case "1", "suspended":
		return "Suspended", nil
	case "inactive":
		return "Inactive", nil
	}
	return ToString(row["status"]), nil
}

func (p *statusColumn) Format(form map[string]string) common_models.ColumnMeta {
	meta := formatFromForm(form)
	if form["align"] == "" {
		meta.Align = "center"
	}
	return meta
}

// timespentColumn renders accumulated seconds as H:MM:SS.
type timespentColumn struct{}

func (p *timespentColumn) Spec() Spec {
	return Spec{
		Name:        "timespent",
		Kind:        KindColumn,
		FullName:    "Time spent",
		ReportTypes: []string{"useractivities", "activities"},
	}
}

func (p *timespentColumn) Execute(_ context.Context, _ *Deps, form map[string]string, row map[string]any, _ string) (any, error) {
	field := form["field"]
	if field == "" {
		field = "timespent"
	}
	secs, ok := ToInt64(row[field])
	if !ok {
		return "0:00:00", nil
	}
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60), nil
}

func (p *timespentColumn) Format(form map[string]string) common_models.ColumnMeta {
	meta := formatFromForm(form)
	if form["align"] == "" {
		meta.Align = "right"
	}
	return meta
}
