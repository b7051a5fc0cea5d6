package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mvolkov/fleetsense/pkg/anomaly"
)

// MaxPromptAnomalies caps how many anomalies are spelled out in a
// prompt; past that point additional entries only dilute the context
// window of the small models in the chain.
const MaxPromptAnomalies = 5

// BuildPrompt renders a fleet context into the analysis prompt sent to
// inference providers. Servers are listed in lexical order so the same
// context always produces the same prompt.
func BuildPrompt(fc *anomaly.Context) string {
	var b strings.Builder

	b.WriteString("Ты эксперт по системному администрированию. Проанализируй метрики серверов и дай рекомендации.\n\n")
	fmt.Fprintf(&b, "Всего серверов: %d\n", fc.TotalServers)
	if !fc.PeriodStart.IsZero() {
		fmt.Fprintf(&b, "Период: %s — %s\n", fc.PeriodStart.Format("2006-01-02 15:04"), fc.PeriodEnd.Format("2006-01-02 15:04"))
	}

	if len(fc.Servers) > 0 {
		b.WriteString("\nМетрики серверов:\n")
		names := make([]string, 0, len(fc.Servers))
		for name := range fc.Servers {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s := fc.Servers[name]
			fmt.Fprintf(&b, "- %s: CPU средн=%.2f%% макс=%.2f%%, RAM средн=%.2f%% макс=%.2f%%",
				name, s.CPUAvg, s.CPUMax, s.MemAvg, s.MemMax)
			if s.DiskAvg != nil {
				fmt.Fprintf(&b, ", диск=%.2f%%", *s.DiskAvg)
			}
			b.WriteString("\n")
		}
	}

	if len(fc.Anomalies) > 0 {
		b.WriteString("\nСтатистические аномалии:\n")
		for i, a := range fc.Anomalies {
			if i == MaxPromptAnomalies {
				break
			}
			fmt.Fprintf(&b, "- %s: %s=%.2f (среднее %.2f, Z-оценка %.2f)\n",
				a.ServerID, a.MetricName, a.Value, a.Mean, a.ZScore)
		}
	}

	b.WriteString("\nДай структурированный ответ:\nАНАЛИЗ:\nПРОБЛЕМЫ:\nРЕКОМЕНДАЦИИ:\nПРИОРИТЕТЫ:\n\nОтвечай только на русском языке, будь конкретным и практичным.")
	return b.String()
}

// BuildQueryPrompt wraps a free-text operator question in the same
// role framing as the fleet analysis prompt.
func BuildQueryPrompt(query string) string {
	var b strings.Builder
	b.WriteString("Ты эксперт по системному администрированию. Ответь на вопрос о состоянии серверов.\n\n")
	fmt.Fprintf(&b, "Вопрос: %s\n\n", query)
	b.WriteString("Дай практичный ответ с конкретными рекомендациями. Отвечай только на русском языке.")
	return b.String()
}
