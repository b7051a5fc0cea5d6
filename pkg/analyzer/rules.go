package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvolkov/fleetsense/pkg/anomaly"
)

// Band classifies a utilization percentage. Values above Critical are
// critical, values above High are elevated, values below Low are
// underutilized, and everything between Low and High is normal.
type Band struct {
	Low      float64
	High     float64
	Critical float64
}

// Thresholds holds the classification bands per metric family.
type Thresholds struct {
	CPU    Band
	Memory Band
	Disk   Band
}

// DefaultThresholds returns the operational bands the fleet team has
// converged on. Disk has no meaningful low band.
func DefaultThresholds() Thresholds {
	return Thresholds{
		CPU:    Band{Low: 20, High: 70, Critical: 90},
		Memory: Band{Low: 30, High: 80, Critical: 90},
		Disk:   Band{High: 80, Critical: 95},
	}
}

// RuleEngine produces a deterministic Russian-language analysis from
// threshold bands. It is the terminal stage of the provider chain and
// never fails: any input, including an empty one, yields a narrative.
type RuleEngine struct {
	thresholds Thresholds
}

// NewRuleEngine builds a rule engine with the given bands.
func NewRuleEngine(t Thresholds) *RuleEngine {
	return &RuleEngine{thresholds: t}
}

// ruleInput is the normalized signal set the renderer works from,
// whether it came from a fleet context or a parsed query.
type ruleInput struct {
	CPU         *float64
	Memory      *float64
	Disk        *float64
	Percentages []float64
	Anomalous   []serverLoad
	Anomalies   int
}

type serverLoad struct {
	Name   string
	CPUAvg float64
	MemAvg float64
}

// AnalyzeContext classifies fleet-wide averages against the bands and
// renders the findings.
func (e *RuleEngine) AnalyzeContext(fc *anomaly.Context) string {
	var in ruleInput
	if fc != nil && len(fc.Servers) > 0 {
		var cpuSum, memSum, diskSum float64
		diskN := 0
		names := make([]string, 0, len(fc.Servers))
		for name := range fc.Servers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := fc.Servers[name]
			cpuSum += s.CPUAvg
			memSum += s.MemAvg
			if s.DiskAvg != nil {
				diskSum += *s.DiskAvg
				diskN++
			}
			if s.HasAnomalies {
				in.Anomalous = append(in.Anomalous, serverLoad{Name: name, CPUAvg: s.CPUAvg, MemAvg: s.MemAvg})
			}
		}
		n := float64(len(fc.Servers))
		cpu := cpuSum / n
		mem := memSum / n
		in.CPU = &cpu
		in.Memory = &mem
		if diskN > 0 {
			disk := diskSum / float64(diskN)
			in.Disk = &disk
		}
	}
	if fc != nil {
		in.Anomalies = len(fc.Anomalies)
	}
	return e.render(in)
}

// AnalyzeQuery classifies the metrics parsed from a free-text question.
func (e *RuleEngine) AnalyzeQuery(qm QueryMetrics) string {
	var in ruleInput
	if v, ok := qm.Values["cpu"]; ok {
		in.CPU = &v
	}
	if v, ok := qm.Values["ram"]; ok {
		in.Memory = &v
	}
	if v, ok := qm.Values["disk"]; ok {
		in.Disk = &v
	}
	in.Percentages = qm.Percentages
	return e.render(in)
}

func (e *RuleEngine) render(in ruleInput) string {
	var analysis, recs, prios []string

	if in.CPU != nil {
		cpu := *in.CPU
		switch {
		case cpu > e.thresholds.CPU.Critical:
			analysis = append(analysis, fmt.Sprintf("🔴 Критическая загрузка CPU: %.1f%%", cpu))
			recs = append(recs, "Срочно найдите и остановите процессы, потребляющие CPU")
			prios = append(prios, "1. Разгрузка CPU")
		case cpu > e.thresholds.CPU.High:
			analysis = append(analysis, fmt.Sprintf("🟡 Высокая загрузка CPU: %.1f%%", cpu))
			recs = append(recs, "Оптимизируйте тяжелые запросы, добавьте кэширование")
			prios = append(prios, "1. Оптимизация нагрузки CPU")
		case cpu < e.thresholds.CPU.Low:
			analysis = append(analysis, fmt.Sprintf("🔵 Низкая загрузка CPU: %.1f%%", cpu))
		default:
			analysis = append(analysis, fmt.Sprintf("✅ CPU в норме: %.1f%%", cpu))
		}
	}

	if in.Memory != nil {
		mem := *in.Memory
		switch {
		case mem > e.thresholds.Memory.Critical:
			analysis = append(analysis, fmt.Sprintf("🔴 Критическая загрузка памяти: %.1f%%", mem))
			recs = append(recs, "Увеличьте объем RAM или настройте swap")
			prios = append(prios, "2. Расширение памяти")
		case mem > e.thresholds.Memory.High:
			analysis = append(analysis, fmt.Sprintf("🟡 Высокая загрузка памяти: %.1f%%", mem))
			recs = append(recs, "Проверьте приложения на утечки памяти")
			prios = append(prios, "2. Мониторинг памяти")
		case mem < e.thresholds.Memory.Low:
			analysis = append(analysis, fmt.Sprintf("🔵 Низкая загрузка памяти: %.1f%%", mem))
		default:
			analysis = append(analysis, fmt.Sprintf("✅ Память в норме: %.1f%%", mem))
		}
	}

	if in.Disk != nil {
		disk := *in.Disk
		switch {
		case disk > e.thresholds.Disk.Critical:
			analysis = append(analysis, fmt.Sprintf("🔴 Диск почти заполнен: %.1f%%", disk))
			recs = append(recs, "Срочно освободите место на диске")
			prios = append(prios, "3. Очистка диска")
		case disk > e.thresholds.Disk.High:
			analysis = append(analysis, fmt.Sprintf("🟡 Мало места на диске: %.1f%%", disk))
			recs = append(recs, "Удалите старые логи и временные файлы")
			prios = append(prios, "3. Оптимизация хранения")
		default:
			analysis = append(analysis, fmt.Sprintf("✅ Диск в норме: %.1f%%", disk))
		}
	}

	for _, s := range in.Anomalous {
		analysis = append(analysis, fmt.Sprintf("⚠️ Сервер %s с аномалиями: CPU=%.1f%%, RAM=%.1f%%", s.Name, s.CPUAvg, s.MemAvg))
	}
	if in.Anomalies > 0 {
		analysis = append(analysis, fmt.Sprintf("📊 Обнаружено статистических аномалий: %d", in.Anomalies))
		recs = append(recs, "Проверьте серверы с аномалиями в первую очередь")
	}

	// No named signal was classified; fall back to bare percentages or a
	// generic prompt for more detail.
	if in.CPU == nil && in.Memory == nil && in.Disk == nil && in.Anomalies == 0 && len(in.Anomalous) == 0 {
		if len(in.Percentages) > 0 {
			avg := meanFloat(in.Percentages)
			if avg > 80 {
				analysis = append(analysis, fmt.Sprintf("⚠️ Высокая общая нагрузка: %.1f%%", avg))
				recs = append(recs, "Рекомендуется полный аудит загруженных систем")
			} else {
				analysis = append(analysis, fmt.Sprintf("✅ Нагрузка в допустимых пределах: %.1f%%", avg))
			}
		} else {
			analysis = append(analysis, "ℹ️ Недостаточно данных для точного анализа")
			recs = append(recs, "Уточните значения CPU, RAM и диска в процентах")
		}
	}

	if len(recs) == 0 {
		recs = append(recs, "Продолжайте регулярный мониторинг")
	}

	var b strings.Builder
	b.WriteString("📊 АНАЛИЗ:\n")
	for _, line := range analysis {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	b.WriteString("\n🛠️ РЕКОМЕНДАЦИИ:\n")
	for _, line := range recs {
		fmt.Fprintf(&b, "- %s\n", line)
	}
	if len(prios) > 0 {
		b.WriteString("\n🚀 ПРИОРИТЕТЫ:\n")
		for _, line := range prios {
			fmt.Fprintf(&b, "%s\n", line)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func meanFloat(vals []float64) float64 {
	if len(vals) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}
