// Package plugins defines the polymorphic component-plugin families consumed
// by the report runner, and the startup-time registry that replaces dispatch
// by constructed type names: unknown plugin names are rejected when a report
// is saved, not when it is rendered.
package plugins

import (
	"context"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/database"
	"go-learnerscript/pkg/expression"

	"go.uber.org/zap"
)

type Kind string

const (
	KindColumn      Kind = "column"
	KindFilter      Kind = "filter"
	KindOrdering    Kind = "ordering"
	KindCalculation Kind = "calculation"
	KindCondition   Kind = "condition"
	KindPermission  Kind = "permission"
)

// Authorizer is the external capability collaborator: only pass/fail results
// cross this boundary.
type Authorizer interface {
	IsSiteAdmin(ctx context.Context, userID int64) (bool, error)
	HasCapability(ctx context.Context, capability string, rc common_models.RequestContext) (bool, error)
}

// Deps bundles the collaborators a plugin may consult during execution.
type Deps struct {
	LMS    *database.LMSDB
	Auth   Authorizer
	Logger *zap.Logger
}

// Spec describes a plugin to the registry and the configuration validator.
type Spec struct {
	Name        string   `json:"name"`
	Kind        Kind     `json:"kind"`
	FullName    string   `json:"fullname"`
	ReportTypes []string `json:"report_types"` // empty = usable by all report types
	Unique      bool     `json:"unique"`       // at most one instance per report
	RequireForm bool     `json:"require_form"`
}

// AllowsType reports whether the plugin may be used by the given report type.
func (s Spec) AllowsType(reportType string) bool {
	if len(s.ReportTypes) == 0 {
		return true
	}
	for _, t := range s.ReportTypes {
		if t == reportType {
			return true
		}
	}
	return false
}

type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ColumnPlugin renders one cell per row. Execute may return a scalar or a
// []any; an array cell fans the row out into one row per array index.
type ColumnPlugin interface {
	Spec() Spec
	Execute(ctx context.Context, deps *Deps, form map[string]string, row map[string]any, reportType string) (any, error)
	Format(form map[string]string) common_models.ColumnMeta
}

// FilterPlugin populates filter UI options and contributes SQL predicates
// driven by request-level values.
type FilterPlugin interface {
	Spec() Spec
	Options(ctx context.Context, deps *Deps) ([]Option, error)
	SelectedLabel(ctx context.Context, deps *Deps, value string) string
	// SQL returns a predicate fragment using "?" placeholders plus its bound
	// arguments, or "" when the request carries no value for this filter.
	SQL(form map[string]string, req *common_models.RunRequest) (string, []any)
}

// OrderingPlugin contributes an ORDER BY fragment; HasSQL reports whether it
// contributes ordering at all.
type OrderingPlugin interface {
	Spec() Spec
	HasSQL() bool
	Execute(form map[string]string) string
}

// CalculationPlugin aggregates one rendered column.
type CalculationPlugin interface {
	Spec() Spec
	Execute(values []float64) float64
}

// ConditionPlugin resolves its form data to the set of record ids satisfying
// the condition.
type ConditionPlugin interface {
	Spec() Spec
	Execute(ctx context.Context, deps *Deps, form map[string]string, rc common_models.RequestContext) (expression.RecordSet, error)
}

// PermissionPlugin answers whether the requesting user passes one permission
// element.
type PermissionPlugin interface {
	Spec() Spec
	Execute(ctx context.Context, deps *Deps, form map[string]string, rc common_models.RequestContext) (bool, error)
}
