package runner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/database"
	"go-learnerscript/internal/features/permission"
	"go-learnerscript/internal/plugins"
	"go-learnerscript/pkg/expression"

	"go.uber.org/zap"
)

// Store is the external query-execution collaborator.
type Store interface {
	RunSQL(ctx context.Context, query string, args ...any) ([]map[string]any, error)
	CountSQL(ctx context.Context, query string, args ...any) (int64, error)
}

type Runner interface {
	// Run executes one report for one request. Query-execution failures
	// degrade to an empty result with Degraded set; configuration and
	// authorization failures return errors.
	Run(ctx context.Context, report *common_models.Report, req *common_models.RunRequest, rc common_models.RequestContext) (*common_models.RunResult, error)
	// FilterOptions lists the selectable values of one configured filter.
	FilterOptions(ctx context.Context, report *common_models.Report, filterName string) ([]plugins.Option, error)
}

type RunnerImpl struct {
	Store    Store
	Deps     *plugins.Deps
	Registry *plugins.Registry
	Resolver permission.Resolver
	Logger   *zap.Logger
}

func NewRunner(lms *database.LMSDB, deps *plugins.Deps, registry *plugins.Registry, resolver permission.Resolver, logger *zap.Logger) Runner {
	return &RunnerImpl{
		Store:    lms,
		Deps:     deps,
		Registry: registry,
		Resolver: resolver,
		Logger:   logger,
	}
}

func (r *RunnerImpl) Run(ctx context.Context, report *common_models.Report, req *common_models.RunRequest, rc common_models.RequestContext) (*common_models.RunResult, error) {
	def, err := TypeFor(report.Type)
	if err != nil {
		return nil, err
	}

	for _, param := range def.RequiredParams {
		if req.Params[param] == "" {
			return nil, fmt.Errorf("report type %q requires parameter %q", def.Name, param)
		}
	}

	allowed, err := r.Resolver.CanView(ctx, report, rc)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, fmt.Errorf("insufficient permission to view report %q", report.Name)
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		r.Logger.Warn("malformed components blob, treating as empty",
			zap.String("reportId", report.ID.Hex()), zap.Error(err))
	}

	// Restricted users with no visible courses never reach the store.
	courses, err := r.Resolver.RolewiseCourses(ctx, report, rc)
	if err != nil {
		return nil, err
	}
	if !courses.Unrestricted && len(courses.IDs) == 0 {
		return emptyResult(r.head(tree, req, def)), nil
	}

	query, args, err := r.assemble(ctx, report, req, rc, def, tree, courses)
	if err != nil {
		if _, empty := err.(*emptyConditionSet); empty {
			return emptyResult(r.head(tree, req, def)), nil
		}
		return nil, err
	}

	result := &common_models.RunResult{}

	total, err := r.Store.CountSQL(ctx, "SELECT COUNT(*) FROM ("+query+") q", args...)
	if err != nil {
		r.Logger.Error("report count failed",
			zap.String("reportId", report.ID.Hex()), zap.Error(err))
		return degradedResult(r.head(tree, req, def)), nil
	}
	result.TotalCount = total

	query, args = r.applyOrdering(query, args, req, def, tree)
	query, args = applyPagination(query, args, req, plotLimit(tree, req))

	rows, err := r.Store.RunSQL(ctx, query, args...)
	if err != nil {
		r.Logger.Error("report query failed",
			zap.String("reportId", report.ID.Hex()), zap.Error(err))
		return degradedResult(r.head(tree, req, def)), nil
	}

	elements := r.columnElements(tree, req, def)
	rendered := r.renderRows(ctx, rows, elements, report.Type)
	result.Rows = expandRows(rendered)

	result.Head, result.Columns = r.headAndMeta(elements)

	if req.WithCalculations {
		result.Calculations = r.calculate(tree, result)
	}

	return result, nil
}

// emptyConditionSet signals that the combined conditions matched no records.
type emptyConditionSet struct{}

func (e *emptyConditionSet) Error() string { return "condition set empty" }

// assemble builds the WHERE side of the query: basic params, filter plugin
// predicates, free-text search, course restriction, condition sets. Every
// value is bound; nothing from the request is interpolated.
func (r *RunnerImpl) assemble(ctx context.Context, report *common_models.Report, req *common_models.RunRequest, rc common_models.RequestContext, def TypeDef, tree *common_models.ComponentTree, courses permission.CourseSet) (string, []any, error) {
	query := def.BaseSQL
	var args []any

	for _, param := range def.RequiredParams {
		value, ok := plugins.ToInt64(req.Params[param])
		if !ok {
			return "", nil, fmt.Errorf("parameter %q must be numeric", param)
		}
		query += fmt.Sprintf(" AND %s = ?", def.ParamColumns[param])
		args = append(args, value)
	}

	searched := false
	for _, el := range tree.Filters.Elements {
		plugin, ok := r.Registry.Filter(el.PluginName)
		if !ok {
			r.Logger.Warn("unknown filter plugin",
				zap.String("reportId", report.ID.Hex()), zap.String("plugin", el.PluginName))
			continue
		}
		fragment, fragmentArgs := plugin.SQL(el.FormData, req)
		if fragment == "" {
			continue
		}
		if el.PluginName == "searchtext" {
			searched = true
		}
		query += " " + fragment
		args = append(args, fragmentArgs...)
	}

	// Generic free-text search over the type's search columns, unless a
	// configured searchtext filter already consumed the term.
	if req.Search != "" && !searched && len(def.SearchColumns) > 0 {
		parts := make([]string, len(def.SearchColumns))
		for i, col := range def.SearchColumns {
			parts[i] = col + " ILIKE ?"
			args = append(args, "%"+req.Search+"%")
		}
		query += " AND (" + strings.Join(parts, " OR ") + ")"
	}

	restrictTo := courses
	if report.CourseID > 0 {
		if restrictTo.Unrestricted {
			restrictTo = permission.CourseSet{IDs: []int64{report.CourseID}}
		} else {
			restrictTo.IDs = intersect(restrictTo.IDs, report.CourseID)
		}
	}
	if !restrictTo.Unrestricted && def.CourseRestrict != "" {
		if len(restrictTo.IDs) == 0 {
			return "", nil, &emptyConditionSet{}
		}
		fragment, fragmentArgs, err := database.In(def.CourseRestrict, restrictTo.IDs)
		if err != nil {
			return "", nil, err
		}
		query += " " + fragment
		args = append(args, fragmentArgs...)
	}

	ids, err := r.conditionSet(ctx, report, rc, tree)
	if err != nil {
		return "", nil, err
	}
	if ids != nil {
		if len(ids) == 0 {
			return "", nil, &emptyConditionSet{}
		}
		list := make([]int64, 0, len(ids))
		for id := range ids {
			list = append(list, id)
		}
		fragment, fragmentArgs, err := database.In(fmt.Sprintf("AND %s IN (?)", def.IDColumn), list)
		if err != nil {
			return "", nil, err
		}
		query += " " + fragment
		args = append(args, fragmentArgs...)
	}

	return query, args, nil
}

// conditionSet resolves the conditions component to the permitted record ids.
// nil means unconditioned (all records).
func (r *RunnerImpl) conditionSet(ctx context.Context, report *common_models.Report, rc common_models.RequestContext, tree *common_models.ComponentTree) (expression.RecordSet, error) {
	elements := tree.Conditions.Elements
	if len(elements) == 0 {
		return nil, nil
	}

	sets := make([]expression.RecordSet, 0, len(elements))
	for _, el := range elements {
		plugin, ok := r.Registry.Condition(el.PluginName)
		if !ok {
			return nil, fmt.Errorf("unknown condition plugin %q", el.PluginName)
		}
		set, err := plugin.Execute(ctx, r.Deps, el.FormData, rc)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	logic := tree.Conditions.ConditionExpr()
	if logic == "" {
		logic = expression.Conjunction(len(sets))
	}
	return expression.EvaluateSets(logic, sets)
}

// applyOrdering resolves ORDER BY precedence: explicit request sort first,
// then the first ordering plugin that contributes SQL, then the type default.
// Session-style types skip ordering entirely.
func (r *RunnerImpl) applyOrdering(query string, args []any, req *common_models.RunRequest, def TypeDef, tree *common_models.ComponentTree) (string, []any) {
	if def.SuppressOrder {
		return query, args
	}

	sortCol, sortDir := req.SortColumn, strings.ToUpper(req.SortDir)
	if sortDir != "ASC" && sortDir != "DESC" {
		sortDir = "ASC"
	}

	// A plot element may carry its own sort override.
	if req.PlotID != "" {
		if el := findPlot(tree, req.PlotID); el != nil {
			if c := el.FormData["sortcol"]; c != "" {
				sortCol = c
			}
			if d := strings.ToUpper(el.FormData["sortdir"]); d == "ASC" || d == "DESC" {
				sortDir = d
			}
		}
	}

	if sortCol != "" && contains(def.SortColumns, sortCol) {
		return query + fmt.Sprintf(" ORDER BY %s %s", sortCol, sortDir), args
	}

	for _, el := range tree.Ordering.Elements {
		plugin, ok := r.Registry.Ordering(el.PluginName)
		if !ok || !plugin.HasSQL() {
			continue
		}
		if fragment := plugin.Execute(el.FormData); fragment != "" {
			return query + " ORDER BY " + fragment, args
		}
	}

	if def.DefaultOrder != "" {
		return query + " ORDER BY " + def.DefaultOrder, args
	}
	return query, args
}

func applyPagination(query string, args []any, req *common_models.RunRequest, limit int) (string, []any) {
	perPage := req.PerPage
	if perPage <= 0 {
		perPage = 50
	}
	if limit > 0 && limit < perPage {
		perPage = limit
	}
	page := req.Page
	if page < 1 {
		page = 1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, perPage, (page-1)*perPage)
	return query, args
}

// plotLimit reads the requested plot element's optional row cap. Zero means
// no cap.
func plotLimit(tree *common_models.ComponentTree, req *common_models.RunRequest) int {
	if req.PlotID == "" {
		return 0
	}
	if el := findPlot(tree, req.PlotID); el != nil {
		if n, ok := plugins.ToInt64(el.FormData["limit"]); ok && n > 0 {
			return int(n)
		}
	}
	return 0
}

// columnElements picks the elements that shape the output columns: the plot
// element's axes for chart views, the configured columns otherwise, or a
// synthesized default set from the type catalog.
func (r *RunnerImpl) columnElements(tree *common_models.ComponentTree, req *common_models.RunRequest, def TypeDef) []common_models.Element {
	if req.PlotID != "" {
		if el := findPlot(tree, req.PlotID); el != nil {
			return plotColumnElements(el)
		}
	}
	if len(tree.Columns.Elements) > 0 {
		return tree.Columns.Elements
	}
	elements := make([]common_models.Element, 0, len(def.DefaultColumns))
	for _, col := range def.DefaultColumns {
		elements = append(elements, common_models.Element{
			PluginName: "field",
			FormData:   map[string]string{"field": col, "column": col},
		})
	}
	return elements
}

// plotColumnElements derives field columns from a plot element's axis config:
// pie wants areaname/areavalue, series charts want serieid plus y-axis lists.
func plotColumnElements(el *common_models.Element) []common_models.Element {
	var fields []string
	appendField := func(f string) {
		if f != "" {
			fields = append(fields, f)
		}
	}
	appendField(el.FormData["areaname"])
	appendField(el.FormData["areavalue"])
	appendField(el.FormData["serieid"])
	for _, key := range []string{"yaxis", "yaxisbar", "yaxisline"} {
		for _, f := range strings.Split(el.FormData[key], ",") {
			appendField(strings.TrimSpace(f))
		}
	}

	elements := make([]common_models.Element, 0, len(fields))
	for _, f := range fields {
		elements = append(elements, common_models.Element{
			PluginName: "field",
			FormData:   map[string]string{"field": f, "column": f},
		})
	}
	return elements
}

func findPlot(tree *common_models.ComponentTree, plotID string) *common_models.Element {
	for i := range tree.Plot.Elements {
		if tree.Plot.Elements[i].ID == plotID {
			return &tree.Plot.Elements[i]
		}
	}
	return nil
}

// renderRows runs every column plugin over every fetched row.
func (r *RunnerImpl) renderRows(ctx context.Context, rows []map[string]any, elements []common_models.Element, reportType string) []map[string]any {
	rendered := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out := map[string]any{}
		for _, el := range elements {
			name := columnName(el)
			plugin, ok := r.Registry.Column(el.PluginName)
			if !ok {
				out[name] = nil
				continue
			}
			cell, err := plugin.Execute(ctx, r.Deps, el.FormData, row, reportType)
			if err != nil {
				r.Logger.Warn("column render failed",
					zap.String("plugin", el.PluginName), zap.Error(err))
				cell = nil
			}
			out[name] = cell
		}
		rendered = append(rendered, out)
	}
	return rendered
}

// expandRows unrolls rows containing array-valued cells: one output row per
// array index, scalar cells held constant. This is how a single user row
// becomes one row per enrolled course.
func expandRows(rows []map[string]any) []map[string]any {
	var out []map[string]any
	for _, row := range rows {
		max := 0
		for _, cell := range row {
			if arr, ok := cell.([]any); ok && len(arr) > max {
				max = len(arr)
			}
		}
		if max == 0 {
			out = append(out, row)
			continue
		}
		for i := 0; i < max; i++ {
			expanded := map[string]any{}
			for name, cell := range row {
				if arr, ok := cell.([]any); ok {
					if i < len(arr) {
						expanded[name] = arr[i]
					} else {
						expanded[name] = ""
					}
					continue
				}
				expanded[name] = cell
			}
			out = append(out, expanded)
		}
	}
	return out
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// calculate builds the (column x calculation) cross-tab over the rendered
// rows, stripping markup before parsing values.
func (r *RunnerImpl) calculate(tree *common_models.ComponentTree, result *common_models.RunResult) []common_models.CalcResult {
	var calcs []common_models.CalcResult
	for _, el := range tree.Calculations.Elements {
		plugin, ok := r.Registry.Calculation(el.PluginName)
		if !ok {
			r.Logger.Warn("unknown calculation plugin", zap.String("plugin", el.PluginName))
			continue
		}
		column := el.FormData["column"]
		var values []float64
		for _, row := range result.Rows {
			text := tagPattern.ReplaceAllString(plugins.ToString(row[column]), "")
			if v, err := strconv.ParseFloat(strings.TrimSpace(text), 64); err == nil {
				values = append(values, v)
			}
		}
		calcs = append(calcs, common_models.CalcResult{
			Column: column,
			Plugin: el.PluginName,
			Value:  plugin.Execute(values),
		})
	}
	return calcs
}

func (r *RunnerImpl) FilterOptions(ctx context.Context, report *common_models.Report, filterName string) ([]plugins.Option, error) {
	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		return nil, err
	}
	for _, el := range tree.Filters.Elements {
		if el.PluginName != filterName {
			continue
		}
		plugin, ok := r.Registry.Filter(el.PluginName)
		if !ok {
			return nil, fmt.Errorf("unknown filter plugin %q", el.PluginName)
		}
		return plugin.Options(ctx, r.Deps)
	}
	return nil, fmt.Errorf("report has no %q filter", filterName)
}

func (r *RunnerImpl) head(tree *common_models.ComponentTree, req *common_models.RunRequest, def TypeDef) ([]string, []common_models.ColumnMeta) {
	return r.headAndMeta(r.columnElements(tree, req, def))
}

func (r *RunnerImpl) headAndMeta(elements []common_models.Element) ([]string, []common_models.ColumnMeta) {
	head := make([]string, 0, len(elements))
	meta := make([]common_models.ColumnMeta, 0, len(elements))
	for _, el := range elements {
		name := columnName(el)
		head = append(head, name)
		m := common_models.ColumnMeta{Name: name, Align: "left", Wrap: "normal"}
		if plugin, ok := r.Registry.Column(el.PluginName); ok {
			m = plugin.Format(el.FormData)
			m.Name = name
		}
		meta = append(meta, m)
	}
	return head, meta
}

func columnName(el common_models.Element) string {
	if name := el.FormData["column"]; name != "" {
		return name
	}
	return el.PluginName
}

func emptyResult(head []string, meta []common_models.ColumnMeta) *common_models.RunResult {
	return &common_models.RunResult{Head: head, Columns: meta, Rows: []map[string]any{}}
}

func degradedResult(head []string, meta []common_models.ColumnMeta) *common_models.RunResult {
	res := emptyResult(head, meta)
	res.Degraded = true
	return res
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func intersect(ids []int64, keep int64) []int64 {
	for _, id := range ids {
		if id == keep {
			return []int64{keep}
		}
	}
	return nil
}
