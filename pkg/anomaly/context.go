package anomaly

import (
	"math"
	"time"

	"github.com/mvolkov/fleetsense/pkg/metrics"
)

// DefaultServerCap bounds how many servers are summarized when no explicit
// server filter is given. This is a cost guard for downstream prompt
// construction; callers needing full coverage pass an explicit filter.
const DefaultServerCap = 10

// ServerSummary is the per-server rollup fed to the analysis pipeline.
// DiskAvg is nil when the server exposes no disk metrics at all, which is
// distinct from a disk usage of zero.
type ServerSummary struct {
	CPUAvg       float64
	CPUMax       float64
	MemAvg       float64
	MemMax       float64
	DiskAvg      *float64
	HasAnomalies bool
}

// Context is the read-only snapshot handed to the analyzer. TotalServers
// and the period cover the whole monitored fleet even when the summary is
// scoped to one server, so the narrative can mention overall coverage.
type Context struct {
	TotalServers int
	PeriodStart  time.Time
	PeriodEnd    time.Time
	Servers      map[string]ServerSummary
	Anomalies    []Anomaly
}

// BuildContext aggregates the dataset into one analysis context,
// optionally scoped to a single server. Malformed samples produce a schema
// error; an empty dataset produces an empty context.
func BuildContext(ds *metrics.Dataset, serverID string) (*Context, error) {
	if err := metrics.ValidateSamples(ds); err != nil {
		return nil, err
	}

	start, end := ds.Period()
	ctx := &Context{
		TotalServers: len(ds.Servers()),
		PeriodStart:  start,
		PeriodEnd:    end,
		Servers:      make(map[string]ServerSummary),
	}

	servers := []string{serverID}
	if serverID == "" {
		servers = ds.Servers()
		if len(servers) > DefaultServerCap {
			servers = servers[:DefaultServerCap]
		}
	}

	for _, server := range servers {
		data := ds.FilterServer(server)
		if data.Empty() {
			continue
		}

		cpuAvg, cpuMax := familyStats(data, metrics.FamilyCPU)
		memAvg, memMax := familyStats(data, metrics.FamilyMemory)

		summary := ServerSummary{
			CPUAvg: round2(cpuAvg),
			CPUMax: round2(cpuMax),
			MemAvg: round2(memAvg),
			MemMax: round2(memMax),
		}

		if disk := data.FilterFamily(metrics.FamilyDisk); len(disk) > 0 {
			avg := round2(meanOf(disk))
			summary.DiskAvg = &avg
		}

		ctx.Servers[server] = summary
	}

	ctx.Anomalies = Detect(ds, serverID)
	for _, a := range ctx.Anomalies {
		if summary, ok := ctx.Servers[a.ServerID]; ok {
			summary.HasAnomalies = true
			ctx.Servers[a.ServerID] = summary
		}
	}

	return ctx, nil
}

// familyStats returns the mean and maximum average value of the samples in
// a metric family. No matching samples yields zeros, not an error.
func familyStats(ds *metrics.Dataset, family string) (avg, max float64) {
	samples := ds.FilterFamily(family)
	if len(samples) == 0 {
		return 0, 0
	}
	max = math.Inf(-1)
	var sum float64
	for _, s := range samples {
		sum += s.AvgValue
		if s.AvgValue > max {
			max = s.AvgValue
		}
	}
	return sum / float64(len(samples)), max
}

func meanOf(samples []metrics.Sample) float64 {
	var sum float64
	for _, s := range samples {
		sum += s.AvgValue
	}
	return sum / float64(len(samples))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
