package plugins

import (
	"context"
	"fmt"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/pkg/expression"
)

func builtinConditions() []ConditionPlugin {
	return []ConditionPlugin{
		&enrolmentCountCondition{},
		&activityCountCondition{},
	}
}

// comparators maps the form operator to its SQL counterpart; anything else is
// a configuration error, never interpolated.
var comparators = map[string]string{
	"eq":  "=",
	"ne":  "<>",
	"gt":  ">",
	"lt":  "<",
	"gte": ">=",
	"lte": "<=",
}

// enrolmentCountCondition selects the users whose active enrolment count
// compares to the configured threshold.
type enrolmentCountCondition struct{}

func (p *enrolmentCountCondition) Spec() Spec {
	return Spec{
		Name:        "enrolmentcount",
		Kind:        KindCondition,
		FullName:    "Enrolment count",
		ReportTypes: []string{"users"},
		RequireForm: true,
	}
}

func (p *enrolmentCountCondition) Execute(ctx context.Context, deps *Deps, form map[string]string, _ common_models.RequestContext) (expression.RecordSet, error) {
	op, ok := comparators[form["operator"]]
	if !ok {
		return nil, fmt.Errorf("enrolmentcount: unknown operator %q", form["operator"])
	}
	threshold, ok := ToInt64(form["value"])
	if !ok {
		return nil, fmt.Errorf("enrolmentcount: value %q is not a number", form["value"])
	}

	rows, err := deps.LMS.RunSQL(ctx, fmt.Sprintf(
		`SELECT userid FROM enrolments WHERE status = 'active'
		 GROUP BY userid HAVING COUNT(*) %s ?`, op), threshold)
	if err != nil {
		return nil, err
	}
	return rowsToSet(rows, "userid"), nil
}

// activityCountCondition selects the courses whose visible activity count
// compares to the configured threshold.
type activityCountCondition struct{}

func (p *activityCountCondition) Spec() Spec {
	return Spec{
		Name:        "activitycount",
		Kind:        KindCondition,
		FullName:    "Activity count",
		ReportTypes: []string{"courses"},
		RequireForm: true,
	}
}

func (p *activityCountCondition) Execute(ctx context.Context, deps *Deps, form map[string]string, _ common_models.RequestContext) (expression.RecordSet, error) {
	op, ok := comparators[form["operator"]]
	if !ok {
		return nil, fmt.Errorf("activitycount: unknown operator %q", form["operator"])
	}
	threshold, ok := ToInt64(form["value"])
	if !ok {
		return nil, fmt.Errorf("activitycount: value %q is not a number", form["value"])
	}

	rows, err := deps.LMS.RunSQL(ctx, fmt.Sprintf(
		`SELECT courseid FROM activities WHERE visible = true
		 GROUP BY courseid HAVING COUNT(*) %s ?`, op), threshold)
	if err != nil {
		return nil, err
	}
	return rowsToSet(rows, "courseid"), nil
}

func rowsToSet(rows []map[string]any, key string) expression.RecordSet {
	set := expression.RecordSet{}
	for _, r := range rows {
		if id, ok := ToInt64(r[key]); ok {
			set[id] = struct{}{}
		}
	}
	return set
}
