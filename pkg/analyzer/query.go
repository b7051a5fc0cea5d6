package analyzer

import (
	"regexp"
	"strconv"
)

// QueryMetrics holds the numeric signals parsed out of a free-text
// question, keyed by canonical metric name.
type QueryMetrics struct {
	Values      map[string]float64
	Percentages []float64
}

// Has reports whether a named metric was found in the query.
func (q QueryMetrics) Has(name string) bool {
	_, ok := q.Values[name]
	return ok
}

var percentPattern = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*%`)

// metricPatterns recognize "cpu 85%", "память: 90", and similar phrases.
// Each metric accepts both latin and Cyrillic spellings.
var metricPatterns = []struct {
	name string
	re   *regexp.Regexp
}{
	{"cpu", regexp.MustCompile(`(?i)(?:cpu|цпу|процессор)\D{0,10}?(\d+(?:\.\d+)?)`)},
	{"ram", regexp.MustCompile(`(?i)(?:ram|память|memory|mem)\D{0,10}?(\d+(?:\.\d+)?)`)},
	{"disk", regexp.MustCompile(`(?i)(?:disk|диск)\D{0,10}?(\d+(?:\.\d+)?)`)},
	{"network", regexp.MustCompile(`(?i)(?:сеть|network)\D{0,10}?(\d+(?:\.\d+)?)`)},
	{"requests", regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(?:запросов|запроса|requests?)`)},
}

// ParseQueryMetrics extracts named metric values and bare percentages
// from a free-text question. Unparseable text yields an empty result,
// never an error; the rule engine treats that as "no signals".
func ParseQueryMetrics(query string) QueryMetrics {
	qm := QueryMetrics{Values: make(map[string]float64)}

	for _, p := range metricPatterns {
		m := p.re.FindStringSubmatch(query)
		if m == nil {
			continue
		}
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		qm.Values[p.name] = v
	}

	for _, m := range percentPattern.FindAllStringSubmatch(query, -1) {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		qm.Percentages = append(qm.Percentages, v)
	}
	return qm
}
