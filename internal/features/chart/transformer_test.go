package chart

import (
	"testing"

	common_models "go-learnerscript/internal/common/models"
)

func plotElement(form map[string]string) *common_models.Element {
	return &common_models.Element{ID: "p1", PluginName: "graph", FormData: form}
}

func TestPieChart(t *testing.T) {
	result := &common_models.RunResult{Rows: []map[string]any{
		{"course": "Algebra", "learners": int64(12)},
		{"course": "Biology", "learners": "8"},
		{"course": "Chemistry", "learners": "n/a"},
	}}
	spec := ToSeries(result, plotElement(map[string]string{
		"type": "pie", "areaname": "course", "areavalue": "learners",
	}))
	if spec.Type != "pie" {
		t.Fatalf("type = %q", spec.Type)
	}
	if len(spec.Pairs) != 2 {
		t.Fatalf("pairs = %d, want 2 (non-numeric dropped)", len(spec.Pairs))
	}
	if spec.Pairs[0].Name != "Algebra" || spec.Pairs[0].Value != 12 {
		t.Fatalf("pair 0 = %+v", spec.Pairs[0])
	}
	if spec.Pairs[1].Value != 8 {
		t.Fatalf("pair 1 = %+v", spec.Pairs[1])
	}
}

func TestBarChartParsesDurations(t *testing.T) {
	result := &common_models.RunResult{Rows: []map[string]any{
		{"fullname": "Alice Smith", "timespent": "1:30:00"},
		{"fullname": "Bob Jones", "timespent": "0:45:00"},
	}}
	spec := ToSeries(result, plotElement(map[string]string{
		"type": "bar", "serieid": "fullname", "yaxis": "timespent",
	}))
	if len(spec.Series) != 1 {
		t.Fatalf("series = %d, want 1", len(spec.Series))
	}
	data := spec.Series[0].Data
	if len(data) != 2 || data[0] != 1.5 || data[1] != 0.75 {
		t.Fatalf("data = %v, want [1.5 0.75]", data)
	}
	if len(spec.Categories) != 2 || spec.Categories[0] != "Alice Smith" {
		t.Fatalf("categories = %v", spec.Categories)
	}
}

func TestCategoriesSuppressedByCalculations(t *testing.T) {
	result := &common_models.RunResult{
		Rows:         []map[string]any{{"name": "x", "v": int64(1)}},
		Calculations: []common_models.CalcResult{{Column: "v", Plugin: "sum", Value: 1}},
	}
	spec := ToSeries(result, plotElement(map[string]string{
		"type": "column", "serieid": "name", "yaxis": "v",
	}))
	if spec.Categories != nil {
		t.Fatalf("categories = %v, want nil when calculations are active", spec.Categories)
	}
}

func TestCombinationTruncatesCategories(t *testing.T) {
	result := &common_models.RunResult{Rows: []map[string]any{
		{"name": "a", "enrolled": int64(10), "completed": int64(4)},
		{"name": "b", "enrolled": int64(20), "completed": "n/a"},
		{"name": "c", "enrolled": int64(30), "completed": int64(9)},
	}}
	spec := ToSeries(result, plotElement(map[string]string{
		"type": "combination", "serieid": "name",
		"yaxisbar": "enrolled", "yaxisline": "completed",
	}))
	if len(spec.Series) != 2 {
		t.Fatalf("series = %d, want 2", len(spec.Series))
	}
	if spec.Series[0].Type != "bar" || spec.Series[1].Type != "line" {
		t.Fatalf("series types = %q, %q", spec.Series[0].Type, spec.Series[1].Type)
	}
	// completed only parses for two rows, so the category axis must shrink
	// to match the shortest series.
	if len(spec.Categories) != 2 {
		t.Fatalf("categories = %v, want 2 entries", spec.Categories)
	}
}

func TestWorldMapUppercasesCodes(t *testing.T) {
	result := &common_models.RunResult{Rows: []map[string]any{
		{"country": "in", "learners": int64(120)},
		{"country": "us", "learners": int64(80)},
	}}
	spec := ToSeries(result, plotElement(map[string]string{
		"type": "worldmap", "areaname": "country", "areavalue": "learners",
	}))
	if spec.Pairs[0].Name != "IN" || spec.Pairs[1].Name != "US" {
		t.Fatalf("pairs = %+v, want upper-cased codes", spec.Pairs)
	}
}

func TestUnknownTypeFallsBackToBar(t *testing.T) {
	result := &common_models.RunResult{Rows: []map[string]any{{"name": "a", "v": int64(1)}}}
	spec := ToSeries(result, plotElement(map[string]string{
		"type": "radar", "serieid": "name", "yaxis": "v",
	}))
	if spec.Type != "bar" {
		t.Fatalf("type = %q, want bar fallback", spec.Type)
	}
}
