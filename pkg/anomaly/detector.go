// Package anomaly provides statistical outlier detection over metric time
// series and aggregation of per-server context for the analysis pipeline.
//
// Detection is classical statistics, not machine learning: values deviating
// more than three sample standard deviations from the per-metric mean are
// flagged, which keeps results deterministic, explainable, and fast.
package anomaly

import (
	"math"
	"time"

	"github.com/mvolkov/fleetsense/pkg/metrics"
)

// KindStatisticalOutlier tags anomalies produced by the 3-sigma detector.
const KindStatisticalOutlier = "statistical_outlier"

// sigmaThreshold is the minimum deviation, in standard deviations, for a
// sample to be flagged.
const sigmaThreshold = 3.0

// minStdDev guards against division blow-up and against flagging
// numerically flat metrics: a series with near-zero variance cannot
// produce a meaningful z-score.
const minStdDev = 1.0

// Anomaly is a derived fact about one outlying sample. Anomalies are
// computed on demand and never persisted.
type Anomaly struct {
	ServerID   string
	MetricName string
	Timestamp  time.Time
	Value      float64
	Mean       float64
	StdDev     float64
	ZScore     float64
	Kind       string
}

// Detect finds statistical outliers in the dataset, optionally restricted
// to one server. For each distinct metric it computes the sample
// (Bessel-corrected) mean and standard deviation of the average values,
// skips metrics whose deviation is below minStdDev, and emits an anomaly
// for every sample lying more than three deviations from the mean.
//
// Output order follows metric first-seen order then sample order, so the
// result is deterministic for identical input ordering. An empty dataset
// yields an empty result, not an error.
func Detect(ds *metrics.Dataset, serverID string) []Anomaly {
	if ds.Empty() {
		return nil
	}
	ds = ds.FilterServer(serverID)

	var anomalies []Anomaly
	for _, metric := range ds.MetricNames() {
		var series []metrics.Sample
		for _, s := range ds.Samples() {
			if s.MetricName == metric {
				series = append(series, s)
			}
		}

		mean, std, ok := sampleStats(series)
		if !ok || std < minStdDev {
			continue
		}

		for _, s := range series {
			if math.Abs(s.AvgValue-mean) > sigmaThreshold*std {
				anomalies = append(anomalies, Anomaly{
					ServerID:   s.ServerID,
					MetricName: s.MetricName,
					Timestamp:  s.Timestamp,
					Value:      s.AvgValue,
					Mean:       mean,
					StdDev:     std,
					ZScore:     (s.AvgValue - mean) / std,
					Kind:       KindStatisticalOutlier,
				})
			}
		}
	}
	return anomalies
}

// sampleStats returns the mean and sample standard deviation of the
// average values. ok is false when fewer than two samples are present,
// where the sample deviation is undefined.
func sampleStats(series []metrics.Sample) (mean, std float64, ok bool) {
	n := len(series)
	if n < 2 {
		return 0, 0, false
	}
	var sum float64
	for _, s := range series {
		sum += s.AvgValue
	}
	mean = sum / float64(n)

	var sq float64
	for _, s := range series {
		d := s.AvgValue - mean
		sq += d * d
	}
	std = math.Sqrt(sq / float64(n-1))
	return mean, std, true
}
