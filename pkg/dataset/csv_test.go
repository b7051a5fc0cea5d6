package dataset

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mvolkov/fleetsense/pkg/errors"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "metrics.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestCSVSourceLoad(t *testing.T) {
	path := writeCSV(t, `server_id,timestamp,metric_name,average_value,max_value,min_value
web-01,2024-05-01T12:00:00Z,cpu.usage.average,42.5,61.0,30.0
web-02,1714564800000,mem.usage.average,55.0,,
`)

	ds, err := NewCSVSource(path).Load(context.Background())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	samples := ds.Samples()
	if len(samples) != 2 {
		t.Fatalf("got %d samples, want 2", len(samples))
	}

	want := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if !samples[0].Timestamp.Equal(want) {
		t.Errorf("rfc3339 timestamp = %v, want %v", samples[0].Timestamp, want)
	}
	if samples[1].Timestamp.IsZero() {
		t.Error("unix-millisecond timestamp not parsed")
	}
	// Empty max/min fall back to the average.
	if samples[1].MaxValue != 55.0 || samples[1].MinValue != 55.0 {
		t.Errorf("empty bounds did not fall back to avg: %+v", samples[1])
	}
}

func TestCSVSourceMissingColumn(t *testing.T) {
	path := writeCSV(t, `server_id,timestamp,average_value
web-01,2024-05-01T12:00:00Z,42.5
`)

	_, err := NewCSVSource(path).Load(context.Background())
	if !errors.HasCode(err, errors.CodeSchema) {
		t.Errorf("expected SCHEMA_ERROR for missing metric_name, got %v", err)
	}
}

func TestCSVSourceInvalidValue(t *testing.T) {
	path := writeCSV(t, `server_id,timestamp,metric_name,average_value
web-01,2024-05-01T12:00:00Z,cpu.usage.average,not-a-number
`)

	_, err := NewCSVSource(path).Load(context.Background())
	if !errors.HasCode(err, errors.CodeSchema) {
		t.Errorf("expected SCHEMA_ERROR for bad average_value, got %v", err)
	}
}

func TestCSVSourceInvalidTimestamp(t *testing.T) {
	path := writeCSV(t, `server_id,timestamp,metric_name,average_value
web-01,yesterday,cpu.usage.average,42.5
`)

	_, err := NewCSVSource(path).Load(context.Background())
	if !errors.HasCode(err, errors.CodeSchema) {
		t.Errorf("expected SCHEMA_ERROR for bad timestamp, got %v", err)
	}
}

func TestCSVSourceHeaderOnly(t *testing.T) {
	path := writeCSV(t, "server_id,timestamp,metric_name,average_value\n")

	ds, err := NewCSVSource(path).Load(context.Background())
	if err != nil {
		t.Fatalf("header-only file must not error: %v", err)
	}
	if !ds.Empty() {
		t.Errorf("expected empty dataset, got %d samples", ds.Len())
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	_, err := NewCSVSource("/nonexistent/metrics.csv").Load(context.Background())
	if err == nil {
		t.Error("expected error for missing file")
	}
}
