// Package metrics defines the sample-level data model shared by the
// anomaly detector, the context aggregator, and dataset sources.
package metrics

import (
	"sort"
	"strings"
	"time"

	"github.com/mvolkov/fleetsense/pkg/errors"
)

// Metric family tokens. Family membership is a case-insensitive substring
// match on the metric name, matching the upstream collector's naming
// (cpu.usage.average, mem.usage.maximum, disk.used.latest, ...).
const (
	FamilyCPU    = "cpu.usage"
	FamilyMemory = "mem.usage"
	FamilyDisk   = "disk"
)

// Sample is one observation for a (server, metric) pair. Samples are
// immutable once ingested; the analysis core only reads copies.
type Sample struct {
	ServerID   string
	MetricName string
	Timestamp  time.Time
	AvgValue   float64
	MaxValue   float64
	MinValue   float64
}

// InFamily reports whether the sample's metric belongs to the given family.
func (s Sample) InFamily(family string) bool {
	return strings.Contains(strings.ToLower(s.MetricName), strings.ToLower(family))
}

// Dataset is an ordered collection of samples. Iteration helpers preserve
// input order so that downstream computations stay deterministic.
type Dataset struct {
	samples []Sample
}

// NewDataset wraps samples in a Dataset without copying.
func NewDataset(samples []Sample) *Dataset {
	return &Dataset{samples: samples}
}

// Samples returns the underlying sample slice.
func (d *Dataset) Samples() []Sample {
	if d == nil {
		return nil
	}
	return d.samples
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.samples)
}

// Empty reports whether the dataset holds no samples.
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// Servers returns the distinct server identifiers in lexical order.
func (d *Dataset) Servers() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range d.Samples() {
		if _, ok := seen[s.ServerID]; ok {
			continue
		}
		seen[s.ServerID] = struct{}{}
		out = append(out, s.ServerID)
	}
	sort.Strings(out)
	return out
}

// MetricNames returns the distinct metric names in first-seen order.
func (d *Dataset) MetricNames() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range d.Samples() {
		if _, ok := seen[s.MetricName]; ok {
			continue
		}
		seen[s.MetricName] = struct{}{}
		out = append(out, s.MetricName)
	}
	return out
}

// Period returns the minimum and maximum timestamps across all samples.
// Both are zero for an empty dataset.
func (d *Dataset) Period() (start, end time.Time) {
	for i, s := range d.Samples() {
		if i == 0 {
			start, end = s.Timestamp, s.Timestamp
			continue
		}
		if s.Timestamp.Before(start) {
			start = s.Timestamp
		}
		if s.Timestamp.After(end) {
			end = s.Timestamp
		}
	}
	return start, end
}

// FilterServer returns a dataset restricted to one server, preserving order.
func (d *Dataset) FilterServer(serverID string) *Dataset {
	if serverID == "" {
		return d
	}
	var out []Sample
	for _, s := range d.Samples() {
		if s.ServerID == serverID {
			out = append(out, s)
		}
	}
	return NewDataset(out)
}

// FilterFamily returns the samples whose metric name belongs to family,
// preserving order.
func (d *Dataset) FilterFamily(family string) []Sample {
	var out []Sample
	for _, s := range d.Samples() {
		if s.InFamily(family) {
			out = append(out, s)
		}
	}
	return out
}

// Required dataset columns. Dataset sources must surface a schema failure
// before producing any samples when one of these is absent.
var requiredColumns = []string{"server_id", "timestamp", "metric_name", "average_value"}

// RequiredColumns returns the column names every dataset source must supply.
func RequiredColumns() []string {
	out := make([]string, len(requiredColumns))
	copy(out, requiredColumns)
	return out
}

// ValidateColumns fails fast with a schema error when a required column is
// missing. Column comparison is case-insensitive.
func ValidateColumns(columns []string) error {
	have := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		have[strings.ToLower(strings.TrimSpace(c))] = struct{}{}
	}
	var missing []string
	for _, want := range requiredColumns {
		if _, ok := have[want]; !ok {
			missing = append(missing, want)
		}
	}
	if len(missing) > 0 {
		return errors.New(errors.CodeSchema, "dataset is missing required columns", nil).
			WithContext("missing", missing).
			WithRecoverable(false)
	}
	return nil
}

// ValidateSamples fails fast with a schema error when any sample lacks a
// required field. A nil or empty dataset is valid (no data, not bad data).
func ValidateSamples(d *Dataset) error {
	for i, s := range d.Samples() {
		switch {
		case s.ServerID == "":
			return sampleSchemaError(i, "server_id")
		case s.MetricName == "":
			return sampleSchemaError(i, "metric_name")
		case s.Timestamp.IsZero():
			return sampleSchemaError(i, "timestamp")
		}
	}
	return nil
}

func sampleSchemaError(row int, field string) error {
	return errors.New(errors.CodeSchema, "dataset sample is missing a required field", nil).
		WithContext("row", row).
		WithContext("field", field).
		WithRecoverable(false)
}
