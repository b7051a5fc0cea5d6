// Package dataset loads metric samples from storage backends. Every
// source validates the schema before handing samples to the analysis
// core, so schema failures surface as typed errors at the boundary.
package dataset

import (
	"context"

	"github.com/mvolkov/fleetsense/pkg/metrics"
)

// Source produces a dataset of metric samples.
type Source interface {
	// Load reads all samples. It returns a SCHEMA_ERROR when required
	// columns are absent, before producing any samples.
	Load(ctx context.Context) (*metrics.Dataset, error)
}
