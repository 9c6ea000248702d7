package schedule

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/config"
	"go-learnerscript/internal/database"
	"go-learnerscript/internal/features/audit"
	"go-learnerscript/internal/features/email"
	"go-learnerscript/internal/features/permission"
	"go-learnerscript/internal/features/report"
	"go-learnerscript/internal/features/runner"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// exportPageSize bounds how many rows a scheduled delivery exports.
const exportPageSize = 100000

type ScheduleService interface {
	CreateSchedule(ctx context.Context, sch *Schedule) error
	GetSchedule(ctx context.Context, id string) (*Schedule, error)
	ListSchedules(ctx context.Context, reportID string) ([]Schedule, error)
	UpdateSchedule(ctx context.Context, sch *Schedule) error
	DeleteSchedule(ctx context.Context, id string) error
	// RunNow triggers one delivery immediately, regardless of nextschedule.
	RunNow(ctx context.Context, id string) error

	StartScheduler() error
	StopScheduler()
}

type ScheduleServiceImpl struct {
	Repo     ScheduleRepository
	Reports  report.ReportRepository
	Runner   runner.Runner
	Resolver permission.Resolver
	Email    email.EmailService
	Audit    audit.AuditService
	LMS      *database.LMSDB
	Config   *config.Config
	Logger   *zap.Logger

	cron    *cron.Cron
	entryID cron.EntryID
	wg      sync.WaitGroup
}

func NewScheduleService(
	repo ScheduleRepository,
	reports report.ReportRepository,
	reportRunner runner.Runner,
	resolver permission.Resolver,
	emailService email.EmailService,
	auditService audit.AuditService,
	lms *database.LMSDB,
	cfg *config.Config,
	logger *zap.Logger,
) ScheduleService {
	return &ScheduleServiceImpl{
		Repo:     repo,
		Reports:  reports,
		Runner:   reportRunner,
		Resolver: resolver,
		Email:    emailService,
		Audit:    auditService,
		LMS:      lms,
		Config:   cfg,
		Logger:   logger,
		cron:     cron.New(),
	}
}

func (s *ScheduleServiceImpl) CreateSchedule(ctx context.Context, sch *Schedule) error {
	if err := s.validate(ctx, sch); err != nil {
		return err
	}

	if next, ok := NextRun(sch, time.Now(), s.location(sch), false); ok {
		sch.NextSchedule = next.Unix()
	}

	if err := s.Repo.Create(ctx, sch); err != nil {
		return err
	}

	_ = s.Audit.LogChange(ctx, common_models.AuditActionCreate, "schedules", sch.ID.Hex(), map[string]common_models.Change{
		"report":    {New: sch.ReportID.Hex()},
		"frequency": {New: sch.Frequency},
	})
	return nil
}

func (s *ScheduleServiceImpl) GetSchedule(ctx context.Context, id string) (*Schedule, error) {
	sch, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sch == nil {
		return nil, fmt.Errorf("schedule %s not found", id)
	}
	return sch, nil
}

func (s *ScheduleServiceImpl) ListSchedules(ctx context.Context, reportID string) ([]Schedule, error) {
	filter := map[string]interface{}{}
	if reportID != "" {
		rep, err := s.Reports.GetByID(ctx, reportID)
		if err != nil {
			return nil, err
		}
		if rep == nil {
			return nil, fmt.Errorf("report %s not found", reportID)
		}
		filter["reportid"] = rep.ID
	}
	return s.Repo.List(ctx, filter)
}

func (s *ScheduleServiceImpl) UpdateSchedule(ctx context.Context, sch *Schedule) error {
	if err := s.validate(ctx, sch); err != nil {
		return err
	}

	if next, ok := NextRun(sch, time.Now(), s.location(sch), false); ok {
		sch.NextSchedule = next.Unix()
	} else {
		sch.NextSchedule = 0
	}

	if err := s.Repo.Update(ctx, sch); err != nil {
		return err
	}

	_ = s.Audit.LogChange(ctx, common_models.AuditActionUpdate, "schedules", sch.ID.Hex(), map[string]common_models.Change{
		"frequency": {New: sch.Frequency},
		"schedule":  {New: sch.Schedule},
	})
	return nil
}

func (s *ScheduleServiceImpl) DeleteSchedule(ctx context.Context, id string) error {
	if err := s.Repo.Delete(ctx, id); err != nil {
		return err
	}
	_ = s.Audit.LogChange(ctx, common_models.AuditActionDelete, "schedules", id, nil)
	return nil
}

func (s *ScheduleServiceImpl) RunNow(ctx context.Context, id string) error {
	sch, err := s.GetSchedule(ctx, id)
	if err != nil {
		return err
	}
	return s.deliver(ctx, sch, false)
}

func (s *ScheduleServiceImpl) validate(ctx context.Context, sch *Schedule) error {
	switch sch.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyOnDemand:
	default:
		return fmt.Errorf("unknown frequency %d", sch.Frequency)
	}
	if len(sch.SendingUserIDs) == 0 {
		return fmt.Errorf("schedule needs at least one recipient")
	}
	if sch.ExportFormat == "" {
		sch.ExportFormat = "csv"
	}

	rep, err := s.Reports.GetByID(ctx, sch.ReportID.Hex())
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("report %s not found", sch.ReportID.Hex())
	}
	return nil
}

func (s *ScheduleServiceImpl) location(sch *Schedule) *time.Location {
	if sch.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(sch.Timezone)
	if err != nil {
		s.Logger.Warn("unknown schedule timezone, falling back to UTC",
			zap.String("timezone", sch.Timezone))
		return time.UTC
	}
	return loc
}

// StartScheduler begins the delivery loop: every minute, due schedules are
// fetched and delivered, each on its own goroutine.
func (s *ScheduleServiceImpl) StartScheduler() error {
	id, err := s.cron.AddFunc("* * * * *", s.tick)
	if err != nil {
		return err
	}
	s.entryID = id
	s.cron.Start()
	s.Logger.Info("report scheduler started")
	return nil
}

func (s *ScheduleServiceImpl) StopScheduler() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.wg.Wait()
	s.Logger.Info("report scheduler stopped")
}

func (s *ScheduleServiceImpl) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	due, err := s.Repo.FindDue(ctx, time.Now().Unix())
	if err != nil {
		s.Logger.Error("failed to fetch due schedules", zap.Error(err))
		return
	}

	for i := range due {
		sch := due[i]
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			runCtx, runCancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer runCancel()
			if err := s.deliver(runCtx, &sch, true); err != nil {
				s.Logger.Error("scheduled delivery failed",
					zap.String("scheduleId", sch.ID.Hex()), zap.Error(err))
			}
		}()
	}
}

// deliver runs the report once per schedule and mails the export to every
// permitted recipient. Delivery is at-least-once: a failed nextschedule
// advance is logged but the run still counts as delivered.
func (s *ScheduleServiceImpl) deliver(ctx context.Context, sch *Schedule, fromCron bool) error {
	rep, err := s.Reports.GetByID(ctx, sch.ReportID.Hex())
	if err != nil {
		return err
	}
	if rep == nil {
		return fmt.Errorf("schedule %s points at missing report %s", sch.ID.Hex(), sch.ReportID.Hex())
	}

	role := sch.Role
	if role == "" && sch.RoleID > 0 {
		if err := s.LMS.Get(ctx, &role, `SELECT shortname FROM roles WHERE id = ?`, sch.RoleID); err != nil {
			s.Logger.Warn("failed to resolve schedule role",
				zap.String("scheduleId", sch.ID.Hex()), zap.Int64("roleId", sch.RoleID), zap.Error(err))
		}
	}

	req := &common_models.RunRequest{Page: 1, PerPage: exportPageSize, WithCalculations: true}
	delivered := 0
	fileWritten := false
	for _, userID := range sch.SendingUserIDs {
		rc := common_models.RequestContext{
			UserID:       userID,
			Role:         role,
			ContextLevel: sch.ContextLevel,
		}

		allowed, err := s.Resolver.CanView(ctx, rep, rc)
		if err != nil || !allowed {
			s.Logger.Warn("recipient not permitted to view report, skipping",
				zap.String("scheduleId", sch.ID.Hex()), zap.Int64("userId", userID), zap.Error(err))
			continue
		}

		result, err := s.Runner.Run(ctx, rep, req, rc)
		if err != nil {
			s.Logger.Error("scheduled run failed",
				zap.String("scheduleId", sch.ID.Hex()), zap.Int64("userId", userID), zap.Error(err))
			continue
		}

		filename, data, err := report.BuildExport(rep, result, sch.ExportFormat)
		if err != nil {
			s.Logger.Error("scheduled export failed",
				zap.String("scheduleId", sch.ID.Hex()), zap.Error(err))
			continue
		}

		if sch.ExportToFilesystem != ExportEmail && !fileWritten {
			if err := s.writeExportFile(sch, filename, data); err != nil {
				s.Logger.Error("scheduled filesystem export failed",
					zap.String("scheduleId", sch.ID.Hex()), zap.Error(err))
			} else {
				fileWritten = true
			}
		}
		if sch.ExportToFilesystem == ExportFilesystem {
			delivered++
			continue
		}

		var address string
		if err := s.LMS.Get(ctx, &address, `SELECT email FROM users WHERE id = ?`, userID); err != nil {
			s.Logger.Warn("recipient has no resolvable email",
				zap.String("scheduleId", sch.ID.Hex()), zap.Int64("userId", userID), zap.Error(err))
			continue
		}

		subject := fmt.Sprintf("Scheduled report: %s", rep.Name)
		body := fmt.Sprintf("The report %q is attached (%d rows).", rep.Name, result.TotalCount)
		if err := s.Email.SendEmailWithAttachment(ctx, []string{address}, subject, body, filename, data); err != nil {
			s.Logger.Error("scheduled email failed",
				zap.String("scheduleId", sch.ID.Hex()), zap.Int64("userId", userID), zap.Error(err))
			continue
		}
		delivered++
	}

	s.Logger.Info("schedule delivered",
		zap.String("scheduleId", sch.ID.Hex()),
		zap.String("reportId", rep.ID.Hex()),
		zap.Int("recipients", delivered))

	_ = s.Audit.LogChange(ctx, common_models.AuditActionSchedule, "schedules", sch.ID.Hex(), map[string]common_models.Change{
		"delivered": {New: delivered},
	})

	if next, ok := NextRun(sch, time.Now(), s.location(sch), fromCron); ok {
		if err := s.Repo.MarkDelivered(ctx, sch.ID, next.Unix()); err != nil {
			s.Logger.Error("failed to advance schedule after delivery",
				zap.String("scheduleId", sch.ID.Hex()), zap.Error(err))
		}
	}
	return nil
}

// writeExportFile drops the rendered export under the configured export
// directory, prefixed with the schedule id so repeated runs overwrite
// their own file rather than each other's.
func (s *ScheduleServiceImpl) writeExportFile(sch *Schedule, filename string, data []byte) error {
	dir := s.Config.ExportDir
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, sch.ID.Hex()+"_"+filename)
	return os.WriteFile(path, data, 0o644)
}
