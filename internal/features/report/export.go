package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	common_models "go-learnerscript/internal/common/models"
	"go-learnerscript/internal/plugins"

	"github.com/xuri/excelize/v2"
)

// BuildExport renders a run result into an attachment. Supported formats are
// csv and xlsx; the report's Export list gates what a caller may request.
func BuildExport(report *common_models.Report, result *common_models.RunResult, format string) (string, []byte, error) {
	format = strings.ToLower(format)
	if !exportEnabled(report, format) {
		return "", nil, fmt.Errorf("export format %q is not enabled for report %q", format, report.Name)
	}

	filename := fmt.Sprintf("%s.%s", safeFilename(report.Name), format)
	switch format {
	case "csv":
		data, err := buildCSV(result)
		return filename, data, err
	case "xlsx":
		data, err := buildXLSX(result)
		return filename, data, err
	default:
		return "", nil, fmt.Errorf("unsupported export format %q", format)
	}
}

func exportEnabled(report *common_models.Report, format string) bool {
	for _, f := range report.Export {
		if strings.EqualFold(f, format) {
			return true
		}
	}
	return false
}

func buildCSV(result *common_models.RunResult) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(result.Head); err != nil {
		return nil, err
	}
	for _, row := range result.Rows {
		record := make([]string, len(result.Head))
		for i, col := range result.Head {
			record[i] = plugins.ToString(row[col])
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	for _, calc := range result.Calculations {
		if err := w.Write([]string{calc.Plugin, calc.Column, fmt.Sprintf("%g", calc.Value)}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func buildXLSX(result *common_models.RunResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := "Report"
	index, err := f.NewSheet(sheet)
	if err != nil {
		return nil, err
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	header := make([]interface{}, len(result.Head))
	for i, h := range result.Head {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return nil, err
	}

	for i, row := range result.Rows {
		cells := make([]interface{}, len(result.Head))
		for j, col := range result.Head {
			cells[j] = row[col]
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, err
		}
	}

	// Calculations land below the table with one blank spacer row.
	base := len(result.Rows) + 3
	for i, calc := range result.Calculations {
		cell, err := excelize.CoordinatesToCellName(1, base+i)
		if err != nil {
			return nil, err
		}
		row := []interface{}{calc.Plugin, calc.Column, calc.Value}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func safeFilename(name string) string {
	var b strings.Builder
	for _, r := range strings.TrimSpace(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "report"
	}
	return b.String()
}
