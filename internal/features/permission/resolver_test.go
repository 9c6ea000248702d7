package permission

import (
	"context"
	"testing"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/plugins"

	"go.uber.org/zap"
)

type mockAuthorizer struct {
	siteAdmins   map[int64]bool
	capabilities map[string]bool
}

func (m *mockAuthorizer) IsSiteAdmin(_ context.Context, userID int64) (bool, error) {
	return m.siteAdmins[userID], nil
}

func (m *mockAuthorizer) HasCapability(_ context.Context, capability string, _ common_models.RequestContext) (bool, error) {
	return m.capabilities[capability], nil
}

func newTestResolver(auth *mockAuthorizer) *ResolverImpl {
	logger := zap.NewNop()
	return &ResolverImpl{
		deps:     &plugins.Deps{Auth: auth, Logger: logger},
		registry: plugins.NewRegistry(),
		logger:   logger,
	}
}

func reportWithPermissions(t *testing.T, comp common_models.Component) *common_models.Report {
	t.Helper()
	blob, err := common_models.EncodeComponents(&common_models.ComponentTree{Permissions: comp})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return &common_models.Report{Name: "learners", Type: "users", Components: blob}
}

func TestCanViewSiteAdminBypass(t *testing.T) {
	r := newTestResolver(&mockAuthorizer{})
	report := &common_models.Report{Name: "learners", Type: "users"}

	// Claim flag and site_admins table row each grant on their own.
	ok, err := r.CanView(context.Background(), report, common_models.RequestContext{UserID: 9, SiteAdmin: true})
	if err != nil || !ok {
		t.Fatalf("site admin claim: ok=%v err=%v", ok, err)
	}

	r = newTestResolver(&mockAuthorizer{siteAdmins: map[int64]bool{7: true}})
	ok, err = r.CanView(context.Background(), report, common_models.RequestContext{UserID: 7})
	if err != nil || !ok {
		t.Fatalf("site admin row: ok=%v err=%v", ok, err)
	}
}

func TestCanViewFallsBackToViewCapability(t *testing.T) {
	auth := &mockAuthorizer{capabilities: map[string]bool{common_models.CapabilityViewReports: true}}
	r := newTestResolver(auth)
	report := &common_models.Report{Name: "learners", Type: "users"}

	ok, err := r.CanView(context.Background(), report, common_models.RequestContext{UserID: 5, Role: "teacher"})
	if err != nil || !ok {
		t.Fatalf("view capability: ok=%v err=%v", ok, err)
	}

	auth.capabilities[common_models.CapabilityViewReports] = false
	ok, err = r.CanView(context.Background(), report, common_models.RequestContext{UserID: 5, Role: "teacher"})
	if err != nil || ok {
		t.Fatalf("no capability: ok=%v err=%v", ok, err)
	}
}

func TestCanViewDefaultConjunction(t *testing.T) {
	// Two permission elements with no configured expression: both must pass.
	comp := common_models.Component{Elements: []common_models.Element{
		{ID: "p1", PluginName: "siteadmin"},
		{ID: "p2", PluginName: "viewreports"},
	}}
	report := reportWithPermissions(t, comp)

	auth := &mockAuthorizer{
		siteAdmins:   map[int64]bool{},
		capabilities: map[string]bool{common_models.CapabilityViewReports: true},
	}
	r := newTestResolver(auth)
	rc := common_models.RequestContext{UserID: 5, Role: "teacher"}

	ok, err := r.CanView(context.Background(), report, rc)
	if err != nil {
		t.Fatalf("canview: %v", err)
	}
	if ok {
		t.Fatal("conjunction must fail when one element fails")
	}

	// A single-element component defaults to that element's verdict.
	single := reportWithPermissions(t, common_models.Component{Elements: []common_models.Element{
		{ID: "p1", PluginName: "viewreports"},
	}})
	ok, err = r.CanView(context.Background(), single, rc)
	if err != nil || !ok {
		t.Fatalf("single element default: ok=%v err=%v", ok, err)
	}
}

func TestCanViewConfiguredExpression(t *testing.T) {
	comp := common_models.Component{
		Elements: []common_models.Element{
			{ID: "p1", PluginName: "siteadmin"},
			{ID: "p2", PluginName: "viewreports"},
		},
		Config: map[string]string{"conditionexpr": "c1 or c2"},
	}
	report := reportWithPermissions(t, comp)

	auth := &mockAuthorizer{capabilities: map[string]bool{common_models.CapabilityViewReports: true}}
	r := newTestResolver(auth)

	ok, err := r.CanView(context.Background(), report, common_models.RequestContext{UserID: 5, Role: "teacher"})
	if err != nil || !ok {
		t.Fatalf("disjunction with one passing: ok=%v err=%v", ok, err)
	}
}

func TestCanViewUnknownPluginFailsClosed(t *testing.T) {
	comp := common_models.Component{Elements: []common_models.Element{
		{ID: "p1", PluginName: "doesnotexist"},
	}}
	report := reportWithPermissions(t, comp)

	r := newTestResolver(&mockAuthorizer{})
	ok, err := r.CanView(context.Background(), report, common_models.RequestContext{UserID: 5})
	if err != nil {
		t.Fatalf("canview: %v", err)
	}
	if ok {
		t.Fatal("unknown permission plugin must evaluate as false")
	}
}

func TestRolewiseCoursesUnrestrictedForManagers(t *testing.T) {
	auth := &mockAuthorizer{capabilities: map[string]bool{common_models.CapabilityManageReports: true}}
	r := newTestResolver(auth)
	report := &common_models.Report{Name: "learners", Type: "users"}

	set, err := r.RolewiseCourses(context.Background(), report, common_models.RequestContext{UserID: 5, Role: "manager"})
	if err != nil {
		t.Fatalf("rolewise: %v", err)
	}
	if !set.Unrestricted {
		t.Fatal("manage capability must be unrestricted")
	}
}

func TestRolewiseCoursesEmptyWithoutElements(t *testing.T) {
	r := newTestResolver(&mockAuthorizer{})
	report := &common_models.Report{Name: "learners", Type: "users"}

	set, err := r.RolewiseCourses(context.Background(), report, common_models.RequestContext{UserID: 5, Role: "student"})
	if err != nil {
		t.Fatalf("rolewise: %v", err)
	}
	if set.Unrestricted || len(set.IDs) != 0 {
		t.Fatalf("set = %+v, want restricted empty", set)
	}
}

func TestRolewiseCoursesSkipsOtherRoles(t *testing.T) {
	// The only roleincourse element is scoped to editingteacher; a student
	// request must not trigger any course lookup.
	comp := common_models.Component{Elements: []common_models.Element{
		{ID: "p1", PluginName: plugins.RoleInCourse, FormData: map[string]string{"role": "editingteacher", "roleid": "3"}},
	}}
	report := reportWithPermissions(t, comp)

	r := newTestResolver(&mockAuthorizer{})
	set, err := r.RolewiseCourses(context.Background(), report, common_models.RequestContext{UserID: 5, Role: "student"})
	if err != nil {
		t.Fatalf("rolewise: %v", err)
	}
	if set.Unrestricted || len(set.IDs) != 0 {
		t.Fatalf("set = %+v, want restricted empty", set)
	}
}
