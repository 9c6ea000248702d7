package runner

import (
	"context"
	"errors"
	"strings"
	"testing"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/features/permission"
	"go-learnerscript/internal/plugins"

	"go.uber.org/zap"
)

type mockStore struct {
	rows      []map[string]any
	count     int64
	err       error
	queries   []string
	queryArgs [][]any
}

func (m *mockStore) RunSQL(_ context.Context, query string, args ...any) ([]map[string]any, error) {
	m.queries = append(m.queries, query)
	m.queryArgs = append(m.queryArgs, args)
	if m.err != nil {
		return nil, m.err
	}
	return m.rows, nil
}

func (m *mockStore) CountSQL(_ context.Context, query string, args ...any) (int64, error) {
	m.queries = append(m.queries, query)
	m.queryArgs = append(m.queryArgs, args)
	if m.err != nil {
		return 0, m.err
	}
	return m.count, nil
}

type mockResolver struct {
	allow   bool
	courses permission.CourseSet
}

func (m *mockResolver) CanView(context.Context, *common_models.Report, common_models.RequestContext) (bool, error) {
	return m.allow, nil
}

func (m *mockResolver) RolewiseCourses(context.Context, *common_models.Report, common_models.RequestContext) (permission.CourseSet, error) {
	return m.courses, nil
}

func newTestRunner(store *mockStore, resolver *mockResolver) *RunnerImpl {
	logger := zap.NewNop()
	return &RunnerImpl{
		Store:    store,
		Deps:     &plugins.Deps{Logger: logger},
		Registry: plugins.NewRegistry(),
		Resolver: resolver,
		Logger:   logger,
	}
}

func encodeTree(t *testing.T, tree *common_models.ComponentTree) string {
	t.Helper()
	blob, err := common_models.EncodeComponents(tree)
	if err != nil {
		t.Fatalf("encode components: %v", err)
	}
	return blob
}

func adminContext() common_models.RequestContext {
	return common_models.RequestContext{UserID: 1, Role: "manager", SiteAdmin: true}
}

func TestRunEndToEnd(t *testing.T) {
	tree := &common_models.ComponentTree{
		Columns: common_models.Component{Elements: []common_models.Element{
			{ID: "a", PluginName: "fullname", FormData: map[string]string{"column": "Learner"}},
			{ID: "b", PluginName: "field", FormData: map[string]string{"field": "email", "column": "email"}},
		}},
		Filters: common_models.Component{Elements: []common_models.Element{
			{ID: "c", PluginName: "status"},
		}},
	}
	store := &mockStore{
		count: 2,
		rows: []map[string]any{
			{"id": int64(1), "firstname": "Alice", "lastname": "Smith", "email": "alice@example.com"},
			{"id": int64(2), "firstname": "Bob", "lastname": "Jones", "email": "bob@example.com"},
		},
	}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})

	report := &common_models.Report{Name: "learners", Type: "users", Components: encodeTree(t, tree)}
	req := &common_models.RunRequest{Filters: map[string]string{"status": "active"}, PerPage: 10, Page: 1}

	result, err := r.Run(context.Background(), report, req, adminContext())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Degraded {
		t.Fatal("unexpected degraded result")
	}
	if result.TotalCount != 2 {
		t.Fatalf("total = %d, want 2", result.TotalCount)
	}
	if len(result.Head) != 2 || result.Head[0] != "Learner" || result.Head[1] != "email" {
		t.Fatalf("head = %v", result.Head)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(result.Rows))
	}
	if got := result.Rows[0]["Learner"]; got != "Alice Smith" {
		t.Fatalf("row 0 learner = %v, want Alice Smith", got)
	}
	if got := result.Rows[1]["email"]; got != "bob@example.com" {
		t.Fatalf("row 1 email = %v", got)
	}

	if len(store.queries) != 2 {
		t.Fatalf("queries = %d, want count + select", len(store.queries))
	}
	if !strings.HasPrefix(store.queries[0], "SELECT COUNT(*) FROM (") {
		t.Fatalf("first query is not a count: %s", store.queries[0])
	}
	main := store.queries[1]
	if !strings.Contains(main, "AND status = ?") {
		t.Fatalf("status predicate missing: %s", main)
	}
	if !strings.Contains(main, "ORDER BY u.id DESC") {
		t.Fatalf("default ordering missing: %s", main)
	}
	args := store.queryArgs[1]
	if len(args) != 3 || args[0] != "active" {
		t.Fatalf("args = %v", args)
	}
}

func TestRunRestrictedEmptyCourseSet(t *testing.T) {
	store := &mockStore{count: 99, rows: []map[string]any{{"id": int64(1)}}}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{}})

	report := &common_models.Report{Name: "learners", Type: "users"}
	rc := common_models.RequestContext{UserID: 7, Role: "student"}

	result, err := r.Run(context.Background(), report, &common_models.RunRequest{}, rc)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Rows) != 0 || result.TotalCount != 0 {
		t.Fatalf("expected empty result, got %d rows", len(result.Rows))
	}
	if result.Degraded {
		t.Fatal("empty course set is not a degraded run")
	}
	if len(store.queries) != 0 {
		t.Fatalf("store queried %d times, want 0", len(store.queries))
	}
}

func TestRunDeniedByResolver(t *testing.T) {
	r := newTestRunner(&mockStore{}, &mockResolver{allow: false})
	report := &common_models.Report{Name: "learners", Type: "users"}

	_, err := r.Run(context.Background(), report, &common_models.RunRequest{}, common_models.RequestContext{UserID: 7})
	if err == nil {
		t.Fatal("expected permission error")
	}
}

func TestRunDegradedOnStoreFailure(t *testing.T) {
	store := &mockStore{err: errors.New("connection reset")}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})

	report := &common_models.Report{Name: "learners", Type: "users"}
	result, err := r.Run(context.Background(), report, &common_models.RunRequest{}, adminContext())
	if err != nil {
		t.Fatalf("store failure must not surface as an error: %v", err)
	}
	if !result.Degraded {
		t.Fatal("expected degraded result")
	}
	if len(result.Rows) != 0 {
		t.Fatalf("degraded result carries %d rows", len(result.Rows))
	}
	if len(result.Head) == 0 {
		t.Fatal("degraded result should still carry the head")
	}
}

func TestRunRequiredParamMissing(t *testing.T) {
	r := newTestRunner(&mockStore{}, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})
	report := &common_models.Report{Name: "sessions", Type: "useractivities"}

	_, err := r.Run(context.Background(), report, &common_models.RunRequest{}, adminContext())
	if err == nil || !strings.Contains(err.Error(), "userid") {
		t.Fatalf("err = %v, want missing-param error naming userid", err)
	}
}

func TestRunCourseScopedReport(t *testing.T) {
	store := &mockStore{count: 0, rows: nil}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})

	report := &common_models.Report{Name: "learners", Type: "users", CourseID: 42}
	_, err := r.Run(context.Background(), report, &common_models.RunRequest{}, adminContext())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(store.queries) == 0 {
		t.Fatal("expected store queries")
	}
	if !strings.Contains(store.queries[0], "e.courseid IN (?)") {
		t.Fatalf("course restriction missing: %s", store.queries[0])
	}
	if args := store.queryArgs[0]; len(args) != 1 || args[0] != int64(42) {
		t.Fatalf("args = %v, want [42]", args)
	}
}

func TestExpandRows(t *testing.T) {
	rows := []map[string]any{
		{"fullname": "Alice Smith", "courses": []any{"Algebra", "Biology", "Chemistry"}},
		{"fullname": "Bob Jones", "courses": []any{}},
	}
	out := expandRows(rows)
	if len(out) != 4 {
		t.Fatalf("rows = %d, want 4", len(out))
	}
	for i, course := range []string{"Algebra", "Biology", "Chemistry"} {
		if out[i]["fullname"] != "Alice Smith" {
			t.Fatalf("row %d lost its scalar cell: %v", i, out[i])
		}
		if out[i]["courses"] != course {
			t.Fatalf("row %d course = %v, want %s", i, out[i]["courses"], course)
		}
	}
	if out[3]["fullname"] != "Bob Jones" {
		t.Fatalf("scalar-only row dropped: %v", out[3])
	}
}

func TestExpandRowsPadsShortArrays(t *testing.T) {
	rows := []map[string]any{
		{"a": []any{"x", "y", "z"}, "b": []any{"1"}},
	}
	out := expandRows(rows)
	if len(out) != 3 {
		t.Fatalf("rows = %d, want 3", len(out))
	}
	if out[0]["b"] != "1" || out[1]["b"] != "" || out[2]["b"] != "" {
		t.Fatalf("short array not padded: %v", out)
	}
}

func TestRunCalculations(t *testing.T) {
	tree := &common_models.ComponentTree{
		Columns: common_models.Component{Elements: []common_models.Element{
			{ID: "a", PluginName: "field", FormData: map[string]string{"field": "finalgrade", "column": "finalgrade"}},
		}},
		Calculations: common_models.Component{Elements: []common_models.Element{
			{ID: "b", PluginName: "average", FormData: map[string]string{"column": "finalgrade"}},
			{ID: "c", PluginName: "max", FormData: map[string]string{"column": "finalgrade"}},
		}},
	}
	store := &mockStore{
		count: 3,
		rows: []map[string]any{
			{"finalgrade": "10"},
			{"finalgrade": "<b>20</b>"},
			{"finalgrade": "30"},
		},
	}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})

	report := &common_models.Report{Name: "grades", Type: "grades", Components: encodeTree(t, tree)}
	req := &common_models.RunRequest{WithCalculations: true}

	result, err := r.Run(context.Background(), report, req, adminContext())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(result.Calculations) != 2 {
		t.Fatalf("calculations = %d, want 2", len(result.Calculations))
	}
	if result.Calculations[0].Value != 20 {
		t.Fatalf("average = %v, want 20 (markup stripped)", result.Calculations[0].Value)
	}
	if result.Calculations[1].Value != 30 {
		t.Fatalf("max = %v, want 30", result.Calculations[1].Value)
	}
}

func TestRunPlotRowLimit(t *testing.T) {
	tree := &common_models.ComponentTree{
		Plot: common_models.Component{Elements: []common_models.Element{
			{ID: "p1", PluginName: "pie", FormData: map[string]string{
				"areaname": "status", "areavalue": "total", "limit": "5",
			}},
		}},
	}
	store := &mockStore{count: 0}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})

	report := &common_models.Report{Name: "learners", Type: "users", Components: encodeTree(t, tree)}
	req := &common_models.RunRequest{PlotID: "p1", PerPage: 100, Page: 1}

	if _, err := r.Run(context.Background(), report, req, adminContext()); err != nil {
		t.Fatalf("run: %v", err)
	}
	args := store.queryArgs[1]
	if len(args) != 2 || args[0] != 5 || args[1] != 0 {
		t.Fatalf("pagination args = %v, want plot limit 5 and offset 0", args)
	}

	// Table view of the same report keeps its own page size.
	store.queries, store.queryArgs = nil, nil
	req = &common_models.RunRequest{PerPage: 100, Page: 1}
	if _, err := r.Run(context.Background(), report, req, adminContext()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if args := store.queryArgs[1]; args[0] != 100 {
		t.Fatalf("table view per-page = %v, want 100", args[0])
	}
}

func TestRunSortAllowList(t *testing.T) {
	store := &mockStore{count: 0}
	r := newTestRunner(store, &mockResolver{allow: true, courses: permission.CourseSet{Unrestricted: true}})

	report := &common_models.Report{Name: "learners", Type: "users"}
	req := &common_models.RunRequest{SortColumn: "id; DROP TABLE users", SortDir: "DESC"}

	if _, err := r.Run(context.Background(), report, req, adminContext()); err != nil {
		t.Fatalf("run: %v", err)
	}
	main := store.queries[1]
	if strings.Contains(main, "DROP TABLE") {
		t.Fatalf("unvalidated sort column interpolated: %s", main)
	}
	if !strings.Contains(main, "ORDER BY u.id DESC") {
		t.Fatalf("expected fallback to default order: %s", main)
	}
}

func TestUnknownReportType(t *testing.T) {
	r := newTestRunner(&mockStore{}, &mockResolver{allow: true})
	report := &common_models.Report{Name: "x", Type: "nope"}

	if _, err := r.Run(context.Background(), report, &common_models.RunRequest{}, adminContext()); err == nil {
		t.Fatal("expected unknown-type error")
	}
}
