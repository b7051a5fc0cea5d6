package metrics

import (
	"testing"
	"time"

	"github.com/mvolkov/fleetsense/pkg/errors"
)

func day(d int) time.Time {
	return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestDatasetServers(t *testing.T) {
	ds := NewDataset([]Sample{
		{ServerID: "web-02", MetricName: "cpu.usage.average", Timestamp: day(1)},
		{ServerID: "web-01", MetricName: "cpu.usage.average", Timestamp: day(1)},
		{ServerID: "web-02", MetricName: "mem.usage.average", Timestamp: day(2)},
	})

	servers := ds.Servers()
	if len(servers) != 2 {
		t.Fatalf("expected 2 distinct servers, got %d", len(servers))
	}
	if servers[0] != "web-01" || servers[1] != "web-02" {
		t.Errorf("expected lexical order, got %v", servers)
	}
}

func TestDatasetPeriod(t *testing.T) {
	ds := NewDataset([]Sample{
		{ServerID: "a", MetricName: "m", Timestamp: day(5)},
		{ServerID: "a", MetricName: "m", Timestamp: day(2)},
		{ServerID: "a", MetricName: "m", Timestamp: day(9)},
	})

	start, end := ds.Period()
	if !start.Equal(day(2)) || !end.Equal(day(9)) {
		t.Errorf("period = %v..%v, want %v..%v", start, end, day(2), day(9))
	}

	var empty *Dataset
	start, end = empty.Period()
	if !start.IsZero() || !end.IsZero() {
		t.Error("empty dataset must report a zero period")
	}
}

func TestFamilyMatchIsCaseInsensitiveSubstring(t *testing.T) {
	cases := []struct {
		metric string
		family string
		want   bool
	}{
		{"cpu.usage.average", FamilyCPU, true},
		{"CPU.Usage.Maximum", FamilyCPU, true},
		{"mem.usage.average", FamilyCPU, false},
		{"virtualDisk.read.average", FamilyDisk, true},
		{"net.bytesRx.average", FamilyDisk, false},
	}
	for _, c := range cases {
		s := Sample{MetricName: c.metric}
		if got := s.InFamily(c.family); got != c.want {
			t.Errorf("InFamily(%q, %q) = %v, want %v", c.metric, c.family, got, c.want)
		}
	}
}

func TestFilterServerPreservesOrder(t *testing.T) {
	ds := NewDataset([]Sample{
		{ServerID: "a", MetricName: "m1", Timestamp: day(1), AvgValue: 1},
		{ServerID: "b", MetricName: "m1", Timestamp: day(1), AvgValue: 2},
		{ServerID: "a", MetricName: "m2", Timestamp: day(2), AvgValue: 3},
	})

	got := ds.FilterServer("a")
	if got.Len() != 2 {
		t.Fatalf("expected 2 samples for server a, got %d", got.Len())
	}
	if got.Samples()[0].AvgValue != 1 || got.Samples()[1].AvgValue != 3 {
		t.Error("filter must preserve input order")
	}

	if ds.FilterServer("") != ds {
		t.Error("empty filter must return the dataset unchanged")
	}
}

func TestValidateColumns(t *testing.T) {
	ok := []string{"server_id", "timestamp", "metric_name", "average_value", "max_value"}
	if err := ValidateColumns(ok); err != nil {
		t.Fatalf("valid columns rejected: %v", err)
	}

	if err := ValidateColumns([]string{"Server_ID", "TIMESTAMP", "metric_name", "Average_Value"}); err != nil {
		t.Fatalf("column check must be case-insensitive: %v", err)
	}

	err := ValidateColumns([]string{"server_id", "timestamp"})
	if err == nil {
		t.Fatal("expected schema error for missing columns")
	}
	if !errors.HasCode(err, errors.CodeSchema) {
		t.Errorf("expected SCHEMA_ERROR, got %v", err)
	}
}

func TestValidateSamples(t *testing.T) {
	good := NewDataset([]Sample{{ServerID: "a", MetricName: "m", Timestamp: day(1)}})
	if err := ValidateSamples(good); err != nil {
		t.Fatalf("valid samples rejected: %v", err)
	}

	bad := NewDataset([]Sample{
		{ServerID: "a", MetricName: "m", Timestamp: day(1)},
		{ServerID: "", MetricName: "m", Timestamp: day(1)},
	})
	err := ValidateSamples(bad)
	if !errors.HasCode(err, errors.CodeSchema) {
		t.Errorf("expected SCHEMA_ERROR for missing server_id, got %v", err)
	}

	if err := ValidateSamples(nil); err != nil {
		t.Errorf("nil dataset must validate: %v", err)
	}
}
