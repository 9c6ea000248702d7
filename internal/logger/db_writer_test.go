package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestRecordCarriesAppId(t *testing.T) {
	w := &DBLogWriter{appId: "learnerscript"}

	rec := w.record(LogEntry{
		Level:      zapcore.ErrorLevel,
		Message:    "report query failed",
		ReportID:   "abc123",
		ScheduleID: "def456",
	})

	if rec.AppId != "learnerscript" {
		t.Fatalf("app id = %q, want learnerscript", rec.AppId)
	}
	if rec.Message != "report query failed" || rec.ReportID != "abc123" || rec.ScheduleID != "def456" {
		t.Fatalf("record lost entry fields: %+v", rec)
	}
	if rec.LogLevelId != 40 {
		t.Fatalf("level id = %d, want 40", rec.LogLevelId)
	}
	if rec.CreatedOnUtc.IsZero() {
		t.Fatal("created timestamp not set")
	}
}

func TestMapLevelToInt(t *testing.T) {
	cases := map[zapcore.Level]int{
		zapcore.DebugLevel: 10,
		zapcore.InfoLevel:  20,
		zapcore.WarnLevel:  30,
		zapcore.ErrorLevel: 40,
		zapcore.FatalLevel: 50,
	}
	for level, want := range cases {
		if got := mapLevelToInt(level); got != want {
			t.Errorf("mapLevelToInt(%v) = %d, want %d", level, got, want)
		}
	}
}
