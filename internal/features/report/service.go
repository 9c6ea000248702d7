package report

import (
	"context"
	"fmt"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/features/audit"
	"go-learnerscript/internal/features/runner"
	"go-learnerscript/internal/plugins"

	"go.uber.org/zap"
)

// ScheduleDeleter removes the schedules attached to a report. The schedule
// feature provides the implementation; the indirection keeps this package
// from depending on it.
type ScheduleDeleter interface {
	DeleteByReport(ctx context.Context, reportID string) error
}

type ReportService interface {
	CreateReport(ctx context.Context, report *common_models.Report) error
	GetReport(ctx context.Context, id string) (*common_models.Report, error)
	ListReports(ctx context.Context, rc common_models.RequestContext, filter map[string]interface{}) ([]common_models.Report, error)
	UpdateReport(ctx context.Context, report *common_models.Report) error
	DeleteReport(ctx context.Context, id string) error
	DuplicateReport(ctx context.Context, id string) (*common_models.Report, error)

	AddElement(ctx context.Context, reportID string, kind common_models.ComponentKind, element common_models.Element) (string, error)
	UpdateElement(ctx context.Context, reportID string, elementID string, element common_models.Element) error
	DeleteElement(ctx context.Context, reportID string, elementID string) error
	SetComponentConfig(ctx context.Context, reportID string, kind common_models.ComponentKind, config map[string]string) error
}

type ReportServiceImpl struct {
	Repo      ReportRepository
	Registry  *plugins.Registry
	Audit     audit.AuditService
	Schedules ScheduleDeleter
	Logger    *zap.Logger
}

func NewReportService(repo ReportRepository, registry *plugins.Registry, auditService audit.AuditService, schedules ScheduleDeleter, logger *zap.Logger) ReportService {
	return &ReportServiceImpl{
		Repo:      repo,
		Registry:  registry,
		Audit:     auditService,
		Schedules: schedules,
		Logger:    logger,
	}
}

func (s *ReportServiceImpl) CreateReport(ctx context.Context, report *common_models.Report) error {
	if report.Name == "" {
		return fmt.Errorf("report name is required")
	}
	if _, err := runner.TypeFor(report.Type); err != nil {
		return err
	}
	if err := s.validateComponents(report); err != nil {
		return err
	}
	if len(report.Export) == 0 {
		report.Export = []string{"csv", "xlsx"}
	}

	if err := s.Repo.Create(ctx, report); err != nil {
		return err
	}

	_ = s.Audit.LogChange(ctx, common_models.AuditActionCreate, "reports", report.ID.Hex(), map[string]common_models.Change{
		"name": {New: report.Name},
		"type": {New: report.Type},
	})
	return nil
}

func (s *ReportServiceImpl) GetReport(ctx context.Context, id string) (*common_models.Report, error) {
	report, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if report == nil {
		return nil, fmt.Errorf("report %s not found", id)
	}
	return report, nil
}

func (s *ReportServiceImpl) ListReports(ctx context.Context, rc common_models.RequestContext, filter map[string]interface{}) ([]common_models.Report, error) {
	if filter == nil {
		filter = map[string]interface{}{}
	}
	// Non-admin listings only see visible reports plus their own.
	if !rc.SiteAdmin {
		filter["$or"] = []map[string]interface{}{
			{"visible": true},
			{"owner_id": rc.UserID},
		}
	}
	return s.Repo.List(ctx, filter)
}

func (s *ReportServiceImpl) UpdateReport(ctx context.Context, report *common_models.Report) error {
	if _, err := runner.TypeFor(report.Type); err != nil {
		return err
	}
	if err := s.validateComponents(report); err != nil {
		return err
	}

	existing, err := s.GetReport(ctx, report.ID.Hex())
	if err != nil {
		return err
	}

	if err := s.Repo.Update(ctx, report); err != nil {
		return err
	}

	changes := map[string]common_models.Change{}
	if existing.Name != report.Name {
		changes["name"] = common_models.Change{Old: existing.Name, New: report.Name}
	}
	if existing.Visible != report.Visible {
		changes["visible"] = common_models.Change{Old: existing.Visible, New: report.Visible}
	}
	_ = s.Audit.LogChange(ctx, common_models.AuditActionUpdate, "reports", report.ID.Hex(), changes)
	return nil
}

func (s *ReportServiceImpl) DeleteReport(ctx context.Context, id string) error {
	report, err := s.GetReport(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}

	// Orphaned schedules would keep delivering a report that no longer exists.
	if s.Schedules != nil {
		if err := s.Schedules.DeleteByReport(ctx, id); err != nil {
			s.Logger.Error("failed to delete report schedules",
				zap.String("reportId", id), zap.Error(err))
		}
	}

	_ = s.Audit.LogChange(ctx, common_models.AuditActionDelete, "reports", id, map[string]common_models.Change{
		"name": {Old: report.Name},
	})
	return nil
}

func (s *ReportServiceImpl) DuplicateReport(ctx context.Context, id string) (*common_models.Report, error) {
	source, err := s.GetReport(ctx, id)
	if err != nil {
		return nil, err
	}

	clone := *source
	clone.Name = source.Name + " (copy)"
	clone.Visible = false

	if err := s.Repo.Create(ctx, &clone); err != nil {
		return nil, err
	}

	_ = s.Audit.LogChange(ctx, common_models.AuditActionCreate, "reports", clone.ID.Hex(), map[string]common_models.Change{
		"name":          {New: clone.Name},
		"duplicated_of": {Old: source.ID.Hex()},
	})
	return &clone, nil
}

func (s *ReportServiceImpl) AddElement(ctx context.Context, reportID string, kind common_models.ComponentKind, element common_models.Element) (string, error) {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return "", err
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		s.Logger.Warn("malformed components blob, starting from an empty tree",
			zap.String("reportId", reportID), zap.Error(err))
	}

	comp := tree.Component(kind)
	if comp == nil {
		return "", fmt.Errorf("unknown component kind %q", kind)
	}

	element.ID = tree.NewElementID()
	comp.Elements = append(comp.Elements, element)

	if err := s.Registry.ValidateTree(tree, report.Type); err != nil {
		return "", err
	}
	if err := s.saveTree(ctx, reportID, tree); err != nil {
		return "", err
	}
	return element.ID, nil
}

func (s *ReportServiceImpl) UpdateElement(ctx context.Context, reportID string, elementID string, element common_models.Element) error {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return err
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		return err
	}

	_, existing := tree.FindElement(elementID)
	if existing == nil {
		return fmt.Errorf("element %s not found in report %s", elementID, reportID)
	}

	// Identity and plugin binding are fixed; only the configuration moves.
	existing.FullName = element.FullName
	existing.Summary = element.Summary
	existing.FormData = element.FormData

	if err := s.Registry.ValidateTree(tree, report.Type); err != nil {
		return err
	}
	return s.saveTree(ctx, reportID, tree)
}

func (s *ReportServiceImpl) DeleteElement(ctx context.Context, reportID string, elementID string) error {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return err
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		return err
	}

	kind, existing := tree.FindElement(elementID)
	if existing == nil {
		return fmt.Errorf("element %s not found in report %s", elementID, reportID)
	}

	comp := tree.Component(kind)
	kept := comp.Elements[:0]
	for _, el := range comp.Elements {
		if el.ID != elementID {
			kept = append(kept, el)
		}
	}
	comp.Elements = kept

	return s.saveTree(ctx, reportID, tree)
}

func (s *ReportServiceImpl) SetComponentConfig(ctx context.Context, reportID string, kind common_models.ComponentKind, config map[string]string) error {
	report, err := s.GetReport(ctx, reportID)
	if err != nil {
		return err
	}

	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		return err
	}

	comp := tree.Component(kind)
	if comp == nil {
		return fmt.Errorf("unknown component kind %q", kind)
	}
	comp.Config = config

	return s.saveTree(ctx, reportID, tree)
}

func (s *ReportServiceImpl) saveTree(ctx context.Context, reportID string, tree *common_models.ComponentTree) error {
	blob, err := common_models.EncodeComponents(tree)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdateComponents(ctx, reportID, blob); err != nil {
		return err
	}
	_ = s.Audit.LogChange(ctx, common_models.AuditActionUpdate, "reports", reportID, map[string]common_models.Change{
		"components": {New: "modified"},
	})
	return nil
}

func (s *ReportServiceImpl) validateComponents(report *common_models.Report) error {
	if report.Components == "" {
		return nil
	}
	tree, err := common_models.DecodeComponents(report.Components)
	if err != nil {
		return err
	}
	return s.Registry.ValidateTree(tree, report.Type)
}
