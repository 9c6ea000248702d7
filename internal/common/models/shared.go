package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionLogin    AuditAction = "LOGIN"
	AuditActionReport   AuditAction = "REPORT"
	AuditActionSchedule AuditAction = "SCHEDULE"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action    AuditAction        `bson:"action" json:"action"`
	Entity    string             `bson:"entity" json:"entity"`       // reports, schedules, ...
	RecordID  string             `bson:"record_id" json:"record_id"` // The ID of the record being modified
	ActorID   int64              `bson:"actor_id" json:"actor_id"`
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

// Capabilities consumed from the authorization collaborator.
const (
	CapabilityManageReports = "reports/manage"
	CapabilityViewReports   = "reports/view"
)

// Context levels a role assignment can be scoped to.
const (
	ContextSystem   = 10
	ContextCategory = 40
	ContextCourse   = 50
)

// RequestContext carries the identity and scope of one request through the
// permission resolver and the report runner. It replaces any notion of
// session-scoped role or context level: every call site receives it explicitly.
type RequestContext struct {
	UserID       int64  `json:"user_id"`
	Role         string `json:"role"`          // active role shortname, e.g. "teacher"
	ContextLevel int    `json:"context_level"` // 10 system, 40 category, 50 course
	SiteAdmin    bool   `json:"site_admin"`
}

type Log struct {
	AppId        string    `bson:"app_id" json:"app_id"`
	Message      string    `bson:"message" json:"message"`
	ReportID     string    `bson:"report_id,omitempty" json:"report_id,omitempty"`
	ScheduleID   string    `bson:"schedule_id,omitempty" json:"schedule_id,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
