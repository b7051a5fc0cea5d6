package dataset

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mvolkov/fleetsense/pkg/errors"
	"github.com/mvolkov/fleetsense/pkg/metrics"
)

// CSVSource reads samples from a CSV export with a header row. The
// header is validated against the required columns before any record
// is parsed; extra columns are ignored.
type CSVSource struct {
	path string
}

// NewCSVSource creates a CSV-backed source for the file at path.
func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

// Load reads and validates the whole file.
func (c *CSVSource) Load(ctx context.Context) (*metrics.Dataset, error) {
	f, err := os.Open(c.path)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to open csv file", err).
			WithContext("path", c.path)
	}
	defer f.Close()
	return c.read(ctx, f)
}

func (c *CSVSource) read(ctx context.Context, r io.Reader) (*metrics.Dataset, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.New(errors.CodeSchema, "csv file has no header row", nil).
			WithRecoverable(false)
	}
	if err != nil {
		return nil, errors.New(errors.CodeSchema, "failed to read csv header", err).
			WithRecoverable(false)
	}
	if err := metrics.ValidateColumns(header); err != nil {
		return nil, err
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var samples []metrics.Sample
	for row := 1; ; row++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.New(errors.CodeTimeout, "csv load canceled", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New(errors.CodeSchema, "malformed csv record", err).
				WithContext("row", row).
				WithRecoverable(false)
		}

		sample, err := parseRecord(record, index, row)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	ds := metrics.NewDataset(samples)
	if err := metrics.ValidateSamples(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func parseRecord(record []string, index map[string]int, row int) (metrics.Sample, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var sample metrics.Sample
	sample.ServerID = field("server_id")
	sample.MetricName = field("metric_name")

	ts, err := parseTimestamp(field("timestamp"))
	if err != nil {
		return metrics.Sample{}, errors.New(errors.CodeSchema, "invalid timestamp", err).
			WithContext("row", row).
			WithRecoverable(false)
	}
	sample.Timestamp = ts

	avg, err := strconv.ParseFloat(field("average_value"), 64)
	if err != nil {
		return metrics.Sample{}, errors.New(errors.CodeSchema, "invalid average_value", err).
			WithContext("row", row).
			WithRecoverable(false)
	}
	sample.AvgValue = avg

	sample.MaxValue = optionalFloat(field("max_value"), avg)
	sample.MinValue = optionalFloat(field("min_value"), avg)
	return sample, nil
}

func parseTimestamp(s string) (time.Time, error) {
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, &time.ParseError{Layout: time.RFC3339, Value: s}
}

func optionalFloat(s string, fallback float64) float64 {
	if s == "" {
		return fallback
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v
	}
	return fallback
}
