package chart

import (
	"strconv"
	"strings"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/plugins"
)

// ChartSpec is the render-ready shape handed to the frontend charting layer.
// Pie and world-map charts use Pairs; the series families use Categories plus
// one Series per plotted column.
type ChartSpec struct {
	Type       string   `json:"type"`
	Title      string   `json:"title,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Series     []Series `json:"series,omitempty"`
	Pairs      []Pair   `json:"pairs,omitempty"`
}

type Series struct {
	Name string    `json:"name"`
	Type string    `json:"type,omitempty"`
	Data []float64 `json:"data"`
}

type Pair struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

// ToSeries transforms a tabular run result into the chart shape configured on
// one plot element. Unknown chart types fall back to bar.
func ToSeries(result *common_models.RunResult, plot *common_models.Element) ChartSpec {
	form := plot.FormData
	if form == nil {
		form = map[string]string{}
	}
	chartType := form["type"]
	title := form["title"]
	if title == "" {
		title = plot.Summary
	}

	switch chartType {
	case "pie":
		return ChartSpec{Type: "pie", Title: title, Pairs: pairs(result, form["areaname"], form["areavalue"], false)}
	case "worldmap":
		return ChartSpec{Type: "worldmap", Title: title, Pairs: pairs(result, form["areaname"], form["areavalue"], true)}
	case "combination":
		return combination(result, form, title)
	case "line", "column", "bar":
		return seriesChart(result, form, chartType, title)
	default:
		return seriesChart(result, form, "bar", title)
	}
}

// pairs builds (name, value) tuples, dropping rows whose value cell is not
// numeric. World maps want upper-cased region codes.
func pairs(result *common_models.RunResult, nameCol, valueCol string, upper bool) []Pair {
	out := make([]Pair, 0, len(result.Rows))
	for _, row := range result.Rows {
		value, ok := numeric(row[valueCol])
		if !ok {
			continue
		}
		name := plugins.ToString(row[nameCol])
		if upper {
			name = strings.ToUpper(name)
		}
		out = append(out, Pair{Name: name, Value: value})
	}
	return out
}

func seriesChart(result *common_models.RunResult, form map[string]string, chartType, title string) ChartSpec {
	spec := ChartSpec{Type: chartType, Title: title}
	spec.Series = buildSeries(result, splitColumns(form["yaxis"]), "")
	spec.Categories = categories(result, form["serieid"])
	return spec
}

// combination merges bar and line series over one category axis. The series
// never pad; instead the category list is cut to the shortest series so every
// category has a value in every series.
func combination(result *common_models.RunResult, form map[string]string, title string) ChartSpec {
	spec := ChartSpec{Type: "combination", Title: title}
	spec.Series = append(spec.Series, buildSeries(result, splitColumns(form["yaxisbar"]), "bar")...)
	spec.Series = append(spec.Series, buildSeries(result, splitColumns(form["yaxisline"]), "line")...)
	spec.Categories = categories(result, form["serieid"])

	shortest := len(spec.Categories)
	for _, s := range spec.Series {
		if len(s.Data) < shortest {
			shortest = len(s.Data)
		}
	}
	if shortest < len(spec.Categories) {
		spec.Categories = spec.Categories[:shortest]
	}
	return spec
}

func buildSeries(result *common_models.RunResult, columns []string, seriesType string) []Series {
	out := make([]Series, 0, len(columns))
	for _, col := range columns {
		s := Series{Name: col, Type: seriesType}
		for _, row := range result.Rows {
			if v, ok := numeric(row[col]); ok {
				s.Data = append(s.Data, v)
			}
		}
		out = append(out, s)
	}
	return out
}

// categories reads the series-id column off every row. Calculation results
// collapse the table to aggregate values, so per-row categories are dropped.
func categories(result *common_models.RunResult, serieCol string) []string {
	if len(result.Calculations) > 0 || serieCol == "" {
		return nil
	}
	out := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		out = append(out, plugins.ToString(row[serieCol]))
	}
	return out
}

func splitColumns(csv string) []string {
	var out []string
	for _, c := range strings.Split(csv, ",") {
		if c = strings.TrimSpace(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}

// numeric parses a cell to float64, accepting raw numbers, numeric strings
// with markup stripped, and H:MM:SS durations (converted to hours).
func numeric(cell any) (float64, bool) {
	switch v := cell.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	text := strings.TrimSpace(plugins.ToString(cell))
	if text == "" {
		return 0, false
	}
	if strings.Count(text, ":") == 2 {
		if hours, ok := durationHours(text); ok {
			return hours, true
		}
	}
	v, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func durationHours(text string) (float64, bool) {
	parts := strings.Split(text, ":")
	if len(parts) != 3 {
		return 0, false
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	s, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0, false
	}
	return float64(h) + float64(m)/60 + float64(s)/3600, true
}
