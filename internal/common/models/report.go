package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Report is a saved report definition. Components holds the encoded component
// blob; DecodeComponents turns it into a ComponentTree for interpretation.
type Report struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name         string             `json:"name" bson:"name"`
	Type         string             `json:"type" bson:"type"` // users, courses, activities, grades, useractivities
	Summary      string             `json:"summary" bson:"summary"`
	CourseID     int64              `json:"course_id" bson:"course_id"`
	OwnerID      int64              `json:"owner_id" bson:"owner_id"`
	Visible      bool               `json:"visible" bson:"visible"`
	Global       bool               `json:"global" bson:"global"`
	DisableTable bool               `json:"disable_table" bson:"disable_table"`
	Components   string             `json:"components" bson:"components"`
	Export       []string           `json:"export" bson:"export"` // enabled export formats: csv, xlsx
	CreatedAt    time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at" bson:"updated_at"`
}

// RunRequest is the request-level input to one report run.
type RunRequest struct {
	Filters          map[string]string `json:"filters"`
	Params           map[string]string `json:"params"` // basic params required by the report type
	Search           string            `json:"search"`
	StartDate        int64             `json:"start_date"`
	EndDate          int64             `json:"end_date"`
	Page             int               `json:"page"`
	PerPage          int               `json:"per_page"`
	SortColumn       string            `json:"sort_column"`
	SortDir          string            `json:"sort_dir"`
	WithCalculations bool              `json:"with_calculations"`
	PlotID           string            `json:"plot_id"` // element id of the plot to render, empty for table view
}

// ColumnMeta is the per-column display hint emitted alongside the head row.
type ColumnMeta struct {
	Name  string `json:"name"`
	Align string `json:"align"`
	Width int    `json:"width"` // percent, 0 = auto
	Wrap  string `json:"wrap"`
}

// CalcResult is one cell of the calculations cross-tab.
type CalcResult struct {
	Column string  `json:"column"`
	Plugin string  `json:"plugin"`
	Value  float64 `json:"value"`
}

// RunResult is the normalized output of one report run. Degraded marks results
// that are empty because query execution failed, as opposed to genuinely empty.
type RunResult struct {
	Head         []string         `json:"head"`
	Columns      []ColumnMeta     `json:"columns"`
	Rows         []map[string]any `json:"rows"`
	TotalCount   int64            `json:"total_count"`
	Calculations []CalcResult     `json:"calculations,omitempty"`
	Degraded     bool             `json:"degraded"`
}
