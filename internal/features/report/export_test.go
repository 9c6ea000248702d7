package report

import (
	"bytes"
	"encoding/csv"
	"testing"

	common_models "go-learnerscript/internal/common/models"
)

func exportResult() *common_models.RunResult {
	return &common_models.RunResult{
		Head: []string{"fullname", "email"},
		Rows: []map[string]any{
			{"fullname": "Alice Smith", "email": "alice@example.com"},
			{"fullname": "Bob Jones", "email": "bob@example.com"},
		},
		TotalCount: 2,
		Calculations: []common_models.CalcResult{
			{Column: "grade", Plugin: "average", Value: 7.5},
		},
	}
}

func TestBuildExportCSV(t *testing.T) {
	rep := &common_models.Report{Name: "Active Learners", Export: []string{"csv"}}

	filename, data, err := BuildExport(rep, exportResult(), "csv")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filename != "Active_Learners.csv" {
		t.Fatalf("filename = %q", filename)
	}

	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}
	if len(records) != 4 {
		t.Fatalf("records = %d, want header + 2 rows + 1 calculation", len(records))
	}
	if records[0][0] != "fullname" || records[0][1] != "email" {
		t.Fatalf("header = %v", records[0])
	}
	if records[1][0] != "Alice Smith" {
		t.Fatalf("row 1 = %v", records[1])
	}
	if records[3][0] != "average" || records[3][2] != "7.5" {
		t.Fatalf("calculation row = %v", records[3])
	}
}

func TestBuildExportXLSX(t *testing.T) {
	rep := &common_models.Report{Name: "Active Learners", Export: []string{"csv", "xlsx"}}

	filename, data, err := BuildExport(rep, exportResult(), "xlsx")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if filename != "Active_Learners.xlsx" {
		t.Fatalf("filename = %q", filename)
	}
	// xlsx files are zip archives.
	if len(data) < 4 || data[0] != 'P' || data[1] != 'K' {
		t.Fatal("xlsx export is not a zip archive")
	}
}

func TestBuildExportDisabledFormat(t *testing.T) {
	rep := &common_models.Report{Name: "Active Learners", Export: []string{"csv"}}

	if _, _, err := BuildExport(rep, exportResult(), "xlsx"); err == nil {
		t.Fatal("disabled format must be refused")
	}
	if _, _, err := BuildExport(rep, exportResult(), "pdf"); err == nil {
		t.Fatal("unknown format must be refused")
	}
}

func TestSafeFilename(t *testing.T) {
	cases := map[string]string{
		"Active Learners":   "Active_Learners",
		"grades/2026":       "grades2026",
		"  spaced  ":        "spaced",
		"///":               "report",
		"plain_name-1":      "plain_name-1",
	}
	for in, want := range cases {
		if got := safeFilename(in); got != want {
			t.Errorf("safeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}
