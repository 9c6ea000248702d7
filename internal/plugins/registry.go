package plugins

import (
	"fmt"

	common_models "go-learnerscript/internal/common/models"
)

// Registry is the explicit (kind, name) -> plugin map, built once at startup.
type Registry struct {
	columns      map[string]ColumnPlugin
	filters      map[string]FilterPlugin
	ordering     map[string]OrderingPlugin
	calculations map[string]CalculationPlugin
	conditions   map[string]ConditionPlugin
	permissions  map[string]PermissionPlugin
}

// NewRegistry builds the registry with every shipped plugin registered.
func NewRegistry() *Registry {
	r := &Registry{
		columns:      map[string]ColumnPlugin{},
		filters:      map[string]FilterPlugin{},
		ordering:     map[string]OrderingPlugin{},
		calculations: map[string]CalculationPlugin{},
		conditions:   map[string]ConditionPlugin{},
		permissions:  map[string]PermissionPlugin{},
	}

	for _, p := range builtinColumns() {
		r.columns[p.Spec().Name] = p
	}
	for _, p := range builtinFilters() {
		r.filters[p.Spec().Name] = p
	}
	for _, p := range builtinOrdering() {
		r.ordering[p.Spec().Name] = p
	}
	for _, p := range builtinCalculations() {
		r.calculations[p.Spec().Name] = p
	}
	for _, p := range builtinConditions() {
		r.conditions[p.Spec().Name] = p
	}
	for _, p := range builtinPermissions() {
		r.permissions[p.Spec().Name] = p
	}

	return r
}

func (r *Registry) Column(name string) (ColumnPlugin, bool) {
	p, ok := r.columns[name]
	return p, ok
}

func (r *Registry) Filter(name string) (FilterPlugin, bool) {
	p, ok := r.filters[name]
	return p, ok
}

func (r *Registry) Ordering(name string) (OrderingPlugin, bool) {
	p, ok := r.ordering[name]
	return p, ok
}

func (r *Registry) Calculation(name string) (CalculationPlugin, bool) {
	p, ok := r.calculations[name]
	return p, ok
}

func (r *Registry) Condition(name string) (ConditionPlugin, bool) {
	p, ok := r.conditions[name]
	return p, ok
}

func (r *Registry) Permission(name string) (PermissionPlugin, bool) {
	p, ok := r.permissions[name]
	return p, ok
}

func (r *Registry) spec(kind Kind, name string) (Spec, bool) {
	switch kind {
	case KindColumn:
		if p, ok := r.columns[name]; ok {
			return p.Spec(), true
		}
	case KindFilter:
		if p, ok := r.filters[name]; ok {
			return p.Spec(), true
		}
	case KindOrdering:
		if p, ok := r.ordering[name]; ok {
			return p.Spec(), true
		}
	case KindCalculation:
		if p, ok := r.calculations[name]; ok {
			return p.Spec(), true
		}
	case KindCondition:
		if p, ok := r.conditions[name]; ok {
			return p.Spec(), true
		}
	case KindPermission:
		if p, ok := r.permissions[name]; ok {
			return p.Spec(), true
		}
	}
	return Spec{}, false
}

func kindFor(component common_models.ComponentKind) Kind {
	switch component {
	case common_models.KindColumns:
		return KindColumn
	case common_models.KindFilters:
		return KindFilter
	case common_models.KindOrdering:
		return KindOrdering
	case common_models.KindCalculations:
		return KindCalculation
	case common_models.KindConditions:
		return KindCondition
	case common_models.KindPermissions:
		return KindPermission
	}
	return ""
}

// ValidateTree checks every element of a component tree against the registry:
// the plugin must exist, allow the report type, honor its unique flag, and
// carry form data when the plugin requires it. Violations are configuration
// errors surfaced at save time.
func (r *Registry) ValidateTree(tree *common_models.ComponentTree, reportType string) error {
	for _, componentKind := range common_models.ComponentKinds {
		if componentKind == common_models.KindPlot {
			// Plot elements are chart configurations, not registry plugins.
			continue
		}
		kind := kindFor(componentKind)
		seen := map[string]int{}
		for _, el := range tree.Component(componentKind).Elements {
			spec, ok := r.spec(kind, el.PluginName)
			if !ok {
				return fmt.Errorf("unknown %s plugin %q", kind, el.PluginName)
			}
			if !spec.AllowsType(reportType) {
				return fmt.Errorf("%s plugin %q not allowed for report type %q", kind, el.PluginName, reportType)
			}
			seen[el.PluginName]++
			if spec.Unique && seen[el.PluginName] > 1 {
				return fmt.Errorf("%s plugin %q may only appear once per report", kind, el.PluginName)
			}
			if spec.RequireForm && len(el.FormData) == 0 {
				return fmt.Errorf("%s plugin %q requires form data", kind, el.PluginName)
			}
		}
	}
	return nil
}
