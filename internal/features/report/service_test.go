package report

import (
	"context"
	"strings"
	"testing"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/plugins"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type mockReportRepo struct {
	reports          map[string]*common_models.Report
	componentsWrites int
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{reports: map[string]*common_models.Report{}}
}

func (m *mockReportRepo) Create(_ context.Context, report *common_models.Report) error {
	if report.ID.IsZero() {
		report.ID = primitive.NewObjectID()
	}
	stored := *report
	m.reports[report.ID.Hex()] = &stored
	return nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id string) (*common_models.Report, error) {
	report, ok := m.reports[id]
	if !ok {
		return nil, nil
	}
	stored := *report
	return &stored, nil
}

func (m *mockReportRepo) List(_ context.Context, _ map[string]interface{}) ([]common_models.Report, error) {
	var out []common_models.Report
	for _, r := range m.reports {
		out = append(out, *r)
	}
	return out, nil
}

func (m *mockReportRepo) Update(_ context.Context, report *common_models.Report) error {
	stored := *report
	m.reports[report.ID.Hex()] = &stored
	return nil
}

func (m *mockReportRepo) UpdateComponents(_ context.Context, id string, blob string) error {
	m.componentsWrites++
	m.reports[id].Components = blob
	return nil
}

func (m *mockReportRepo) Delete(_ context.Context, id string) error {
	delete(m.reports, id)
	return nil
}

type mockAudit struct {
	entries []common_models.AuditAction
}

func (m *mockAudit) LogChange(_ context.Context, action common_models.AuditAction, _ string, _ string, _ map[string]common_models.Change) error {
	m.entries = append(m.entries, action)
	return nil
}

func (m *mockAudit) ListLogs(context.Context, map[string]interface{}, int64, int64) ([]common_models.AuditLog, error) {
	return nil, nil
}

type mockScheduleDeleter struct {
	deleted []string
}

func (m *mockScheduleDeleter) DeleteByReport(_ context.Context, reportID string) error {
	m.deleted = append(m.deleted, reportID)
	return nil
}

func newTestService() (*ReportServiceImpl, *mockReportRepo, *mockAudit, *mockScheduleDeleter) {
	repo := newMockReportRepo()
	auditSvc := &mockAudit{}
	deleter := &mockScheduleDeleter{}
	svc := &ReportServiceImpl{
		Repo:      repo,
		Registry:  plugins.NewRegistry(),
		Audit:     auditSvc,
		Schedules: deleter,
		Logger:    zap.NewNop(),
	}
	return svc, repo, auditSvc, deleter
}

func TestCreateReportValidates(t *testing.T) {
	svc, _, auditSvc, _ := newTestService()

	if err := svc.CreateReport(context.Background(), &common_models.Report{Name: "x", Type: "nope"}); err == nil {
		t.Fatal("unknown type must be rejected")
	}
	if err := svc.CreateReport(context.Background(), &common_models.Report{Type: "users"}); err == nil {
		t.Fatal("missing name must be rejected")
	}

	report := &common_models.Report{Name: "learners", Type: "users"}
	if err := svc.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}
	if report.ID.IsZero() {
		t.Fatal("create must assign an id")
	}
	if len(auditSvc.entries) != 1 || auditSvc.entries[0] != common_models.AuditActionCreate {
		t.Fatalf("audit entries = %v", auditSvc.entries)
	}
}

func TestAddElementAssignsUniqueIDs(t *testing.T) {
	svc, repo, _, _ := newTestService()

	report := &common_models.Report{Name: "learners", Type: "users"}
	if err := svc.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}
	id := report.ID.Hex()

	first, err := svc.AddElement(context.Background(), id, common_models.KindColumns,
		common_models.Element{PluginName: "fullname"})
	if err != nil {
		t.Fatalf("add element: %v", err)
	}
	second, err := svc.AddElement(context.Background(), id, common_models.KindColumns,
		common_models.Element{PluginName: "field", FormData: map[string]string{"field": "email"}})
	if err != nil {
		t.Fatalf("add element: %v", err)
	}
	if first == second || first == "" {
		t.Fatalf("element ids must be unique and non-empty: %q, %q", first, second)
	}
	if repo.componentsWrites != 2 {
		t.Fatalf("componentsWrites = %d, want one write per edit", repo.componentsWrites)
	}

	stored, _ := repo.GetByID(context.Background(), id)
	tree, err := common_models.DecodeComponents(stored.Components)
	if err != nil {
		t.Fatalf("decode stored blob: %v", err)
	}
	if len(tree.Columns.Elements) != 2 {
		t.Fatalf("stored columns = %d, want 2", len(tree.Columns.Elements))
	}
}

func TestAddElementRejectsInvalidTree(t *testing.T) {
	svc, _, _, _ := newTestService()

	report := &common_models.Report{Name: "learners", Type: "users"}
	if err := svc.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}
	id := report.ID.Hex()

	// The status filter is unique per report.
	if _, err := svc.AddElement(context.Background(), id, common_models.KindFilters,
		common_models.Element{PluginName: "status"}); err != nil {
		t.Fatalf("first status filter: %v", err)
	}
	if _, err := svc.AddElement(context.Background(), id, common_models.KindFilters,
		common_models.Element{PluginName: "status"}); err == nil {
		t.Fatal("second status filter must be rejected")
	}

	if _, err := svc.AddElement(context.Background(), id, common_models.KindColumns,
		common_models.Element{PluginName: "doesnotexist"}); err == nil {
		t.Fatal("unknown plugin must be rejected")
	}
}

func TestUpdateAndDeleteElement(t *testing.T) {
	svc, repo, _, _ := newTestService()

	report := &common_models.Report{Name: "learners", Type: "users"}
	if err := svc.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}
	id := report.ID.Hex()

	elID, err := svc.AddElement(context.Background(), id, common_models.KindColumns,
		common_models.Element{PluginName: "field", FormData: map[string]string{"field": "email"}})
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	err = svc.UpdateElement(context.Background(), id, elID,
		common_models.Element{PluginName: "ignored", FormData: map[string]string{"field": "status", "column": "State"}})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := repo.GetByID(context.Background(), id)
	tree, _ := common_models.DecodeComponents(stored.Components)
	_, el := tree.FindElement(elID)
	if el == nil || el.FormData["field"] != "status" {
		t.Fatalf("element after update = %+v", el)
	}
	if el.PluginName != "field" {
		t.Fatalf("plugin binding changed on update: %q", el.PluginName)
	}

	if err := svc.DeleteElement(context.Background(), id, elID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	stored, _ = repo.GetByID(context.Background(), id)
	tree, _ = common_models.DecodeComponents(stored.Components)
	if _, el := tree.FindElement(elID); el != nil {
		t.Fatal("element still present after delete")
	}

	if err := svc.DeleteElement(context.Background(), id, "missing"); err == nil {
		t.Fatal("deleting a missing element must fail")
	}
}

func TestDeleteReportCascadesSchedules(t *testing.T) {
	svc, _, auditSvc, deleter := newTestService()

	report := &common_models.Report{Name: "learners", Type: "users"}
	if err := svc.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}
	id := report.ID.Hex()

	if err := svc.DeleteReport(context.Background(), id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(deleter.deleted) != 1 || deleter.deleted[0] != id {
		t.Fatalf("schedule cascade = %v", deleter.deleted)
	}

	found := false
	for _, action := range auditSvc.entries {
		if action == common_models.AuditActionDelete {
			found = true
		}
	}
	if !found {
		t.Fatal("delete must be audited")
	}
}

func TestDuplicateReport(t *testing.T) {
	svc, _, _, _ := newTestService()

	tree := &common_models.ComponentTree{
		Columns: common_models.Component{Elements: []common_models.Element{
			{ID: "a", PluginName: "fullname"},
		}},
	}
	blob, _ := common_models.EncodeComponents(tree)

	report := &common_models.Report{Name: "learners", Type: "users", Components: blob, Visible: true}
	if err := svc.CreateReport(context.Background(), report); err != nil {
		t.Fatalf("create: %v", err)
	}

	clone, err := svc.DuplicateReport(context.Background(), report.ID.Hex())
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if clone.ID == report.ID {
		t.Fatal("duplicate must get its own id")
	}
	if !strings.HasSuffix(clone.Name, "(copy)") {
		t.Fatalf("clone name = %q", clone.Name)
	}
	if clone.Visible {
		t.Fatal("clones start hidden")
	}
	if clone.Components != report.Components {
		t.Fatal("clone must carry the components blob")
	}
}
