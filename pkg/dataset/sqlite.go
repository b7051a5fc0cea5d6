package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mvolkov/fleetsense/pkg/errors"
	"github.com/mvolkov/fleetsense/pkg/metrics"
)

// DefaultTable is the table metric collectors write into.
const DefaultTable = "server_metrics"

// SQLiteSource reads samples from a sqlite database. Timestamps are
// stored as unix milliseconds; max and min values are nullable since
// some collectors only report averages.
type SQLiteSource struct {
	db    *sql.DB
	table string
}

// SQLiteOption configures a SQLiteSource.
type SQLiteOption func(*SQLiteSource)

// WithTable overrides the source table name.
func WithTable(name string) SQLiteOption {
	return func(s *SQLiteSource) {
		if name != "" {
			s.table = name
		}
	}
}

// NewSQLiteSource wraps an open database handle. The handle stays owned
// by the caller.
func NewSQLiteSource(db *sql.DB, opts ...SQLiteOption) *SQLiteSource {
	s := &SQLiteSource{db: db, table: DefaultTable}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLite opens a sqlite database at path and wraps it as a source.
func OpenSQLite(path string, opts ...SQLiteOption) (*SQLiteSource, func() error, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, errors.New(errors.CodeInternal, "failed to open sqlite database", err).
			WithContext("path", path)
	}
	return NewSQLiteSource(db, opts...), db.Close, nil
}

// Load validates the table schema and reads every sample in insertion
// order.
func (s *SQLiteSource) Load(ctx context.Context) (*metrics.Dataset, error) {
	if err := s.validateSchema(ctx); err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT server_id, timestamp, metric_name, average_value, max_value, min_value FROM %q ORDER BY rowid`,
		s.table)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to query samples", err).
			WithContext("table", s.table)
	}
	defer rows.Close()

	var samples []metrics.Sample
	for rows.Next() {
		var (
			sample   metrics.Sample
			unixMs   int64
			maxValue sql.NullFloat64
			minValue sql.NullFloat64
		)
		if err := rows.Scan(&sample.ServerID, &unixMs, &sample.MetricName, &sample.AvgValue, &maxValue, &minValue); err != nil {
			return nil, errors.New(errors.CodeSchema, "failed to scan sample row", err).
				WithRecoverable(false)
		}
		sample.Timestamp = time.UnixMilli(unixMs).UTC()
		if maxValue.Valid {
			sample.MaxValue = maxValue.Float64
		} else {
			sample.MaxValue = sample.AvgValue
		}
		if minValue.Valid {
			sample.MinValue = minValue.Float64
		} else {
			sample.MinValue = sample.AvgValue
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.New(errors.CodeInternal, "failed to iterate samples", err)
	}

	ds := metrics.NewDataset(samples)
	if err := metrics.ValidateSamples(ds); err != nil {
		return nil, err
	}
	return ds, nil
}

// validateSchema checks the table's columns against the required set
// before any row is read.
func (s *SQLiteSource) validateSchema(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", s.table))
	if err != nil {
		return errors.New(errors.CodeInternal, "failed to inspect table schema", err).
			WithContext("table", s.table)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid        int
			name       string
			colType    string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &defaultVal, &pk); err != nil {
			return errors.New(errors.CodeInternal, "failed to read table schema", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return errors.New(errors.CodeInternal, "failed to iterate table schema", err)
	}

	if len(columns) == 0 {
		return errors.New(errors.CodeSchema, "dataset table does not exist", nil).
			WithContext("table", s.table).
			WithRecoverable(false)
	}
	return metrics.ValidateColumns(columns)
}
