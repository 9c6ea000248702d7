package schedule

import (
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Delivery frequencies. OnDemand schedules only run when triggered explicitly.
const (
	FrequencyDaily    = 1
	FrequencyWeekly   = 2
	FrequencyMonthly  = 3
	FrequencyOnDemand = -1
)

// Export destinations.
const (
	ExportEmail        = 0 // attach to email only
	ExportFilesystem   = 1 // write to the export directory only
	ExportEmailAndFile = 2 // both
)

// Schedule is one delivery rule for a report. The Schedule field is
// interpreted by frequency: hour of day for daily, weekday (0 = Sunday) for
// weekly, day of month for monthly.
type Schedule struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	ReportID           primitive.ObjectID `bson:"reportid" json:"report_id"`
	Frequency          int                `bson:"frequency" json:"frequency"`
	Schedule           int                `bson:"schedule" json:"schedule"`
	SendingUserIDs     []int64            `bson:"sendinguserids" json:"sending_user_ids"`
	ExportFormat       string             `bson:"exportformat" json:"export_format"` // csv or xlsx
	ExportToFilesystem int                `bson:"exporttofilesystem" json:"export_to_filesystem"`
	RoleID             int64              `bson:"roleid" json:"role_id"`
	Role               string             `bson:"role" json:"role"` // role shortname the delivery runs as
	ContextLevel       int                `bson:"contextlevel" json:"context_level"`
	Timezone           string             `bson:"timezone" json:"timezone"`
	NextSchedule       int64              `bson:"nextschedule" json:"next_schedule"` // unix seconds
	TimeCreated        int64              `bson:"timecreated" json:"time_created"`
	TimeModified       int64              `bson:"timemodified" json:"time_modified"`
}
