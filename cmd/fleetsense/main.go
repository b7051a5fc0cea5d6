// Command fleetsense analyzes server fleet metrics: statistical anomaly
// detection over a metrics dataset and narrative analysis through a
// hosted-then-local-then-rules provider chain.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/mvolkov/fleetsense/pkg/analyzer"
	"github.com/mvolkov/fleetsense/pkg/anomaly"
	"github.com/mvolkov/fleetsense/pkg/config"
	"github.com/mvolkov/fleetsense/pkg/dataset"
	"github.com/mvolkov/fleetsense/pkg/llm"
	"github.com/mvolkov/fleetsense/pkg/metrics"
	"github.com/mvolkov/fleetsense/pkg/telemetry"
	"github.com/mvolkov/fleetsense/providers/hfapi"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "analyze":
		runAnalyze(ctx, args)
	case "anomalies":
		runAnomalies(ctx, args)
	case "ask":
		runAsk(ctx, args)
	case "version":
		fmt.Printf("fleetsense %s\n", version)
	case "help", "-h", "--help":
		printUsage()
	default:
		fatal(fmt.Errorf("unknown command %q", cmd))
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `fleetsense — server fleet metric analysis

Usage:
  fleetsense analyze   [--config path] [--server id] [--mode auto|hosted|local|rules]
  fleetsense anomalies [--config path] [--server id]
  fleetsense ask       [--config path] <question>
  fleetsense version

Configuration is layered: defaults, then the YAML file given with
--config, then FLEETSENSE_-prefixed environment variables.
`)
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "fleetsense: %v\n", err)
	os.Exit(1)
}

func loadConfig(path string) *config.Config {
	cfg, err := config.Load(path)
	if err != nil {
		fatal(fmt.Errorf("load config: %w", err))
	}
	telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)
	return cfg
}

func initTelemetry(ctx context.Context, cfg *config.Config) func() {
	if !cfg.Telemetry.Enabled {
		return func() {}
	}
	shutdown, err := telemetry.InitWithConfig("fleetsense", version, telemetry.Config{
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		fatal(fmt.Errorf("init telemetry: %w", err))
	}
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdown(shutdownCtx)
	}
}

func openSource(cfg *config.Config) (dataset.Source, func() error) {
	if cfg.Dataset.Path == "" {
		fatal(fmt.Errorf("dataset.path is not configured"))
	}
	switch cfg.Dataset.Driver {
	case "", "sqlite":
		src, closeFn, err := dataset.OpenSQLite(cfg.Dataset.Path)
		if err != nil {
			fatal(err)
		}
		return src, closeFn
	case "csv":
		return dataset.NewCSVSource(cfg.Dataset.Path), func() error { return nil }
	default:
		fatal(fmt.Errorf("unknown dataset driver %q", cfg.Dataset.Driver))
		return nil, nil
	}
}

func buildAnalyzer(cfg *config.Config, mode string) *analyzer.Analyzer {
	chainMetrics, err := telemetry.NewChainMetrics()
	if err != nil {
		fatal(fmt.Errorf("init chain metrics: %w", err))
	}

	opts := []analyzer.Option{
		analyzer.WithChainMetrics(chainMetrics),
		analyzer.WithThresholds(thresholdsFromConfig(cfg.Rules)),
		analyzer.WithMode(analyzer.Mode(mode)),
	}
	if cfg.Analysis.MinUsableLength > 0 {
		opts = append(opts, analyzer.WithMinUsableLength(cfg.Analysis.MinUsableLength))
	}
	if cfg.Analysis.MaxTokens > 0 {
		opts = append(opts, analyzer.WithMaxTokens(cfg.Analysis.MaxTokens))
	}
	if cfg.Analysis.AttemptTimeoutSeconds > 0 {
		opts = append(opts, analyzer.WithAttemptTimeout(time.Duration(cfg.Analysis.AttemptTimeoutSeconds)*time.Second))
	}

	if cfg.Hosted.Token != "" {
		hostedOpts := []hfapi.Option{}
		if cfg.Hosted.TimeoutSeconds > 0 {
			hostedOpts = append(hostedOpts, hfapi.WithTimeout(time.Duration(cfg.Hosted.TimeoutSeconds)*time.Second))
		}
		if cfg.Hosted.PromptLimit > 0 {
			hostedOpts = append(hostedOpts, hfapi.WithPromptLimit(cfg.Hosted.PromptLimit))
		}
		opts = append(opts, analyzer.WithHostedProvider(hfapi.New(cfg.Hosted.Token, hostedOpts...)))
	}
	if cfg.Local.BaseURL != "" {
		opts = append(opts, analyzer.WithLocalProvider(
			llm.NewOllama(cfg.Local.BaseURL, llm.WithOllamaModel(cfg.Local.Model))))
	}

	return analyzer.New(opts...)
}

func thresholdsFromConfig(rc config.RulesConfig) analyzer.Thresholds {
	return analyzer.Thresholds{
		CPU:    analyzer.Band{Low: rc.CPU.Low, High: rc.CPU.High, Critical: rc.CPU.Critical},
		Memory: analyzer.Band{Low: rc.Memory.Low, High: rc.Memory.High, Critical: rc.Memory.Critical},
		Disk:   analyzer.Band{Low: rc.Disk.Low, High: rc.Disk.High, Critical: rc.Disk.Critical},
	}
}

func runAnalyze(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	server := fs.String("server", "", "restrict analysis to one server")
	mode := fs.String("mode", "", "chain mode: auto, hosted, local, rules")
	fs.Parse(args)

	cfg := loadConfig(*configPath)
	shutdown := initTelemetry(ctx, cfg)
	defer shutdown()

	if *mode == "" {
		*mode = cfg.Analysis.Mode
	}

	src, closeFn := openSource(cfg)
	defer closeFn()

	ds, err := src.Load(ctx)
	if err != nil {
		fatal(err)
	}

	fc, err := anomaly.BuildContext(ds, *server)
	if err != nil {
		fatal(err)
	}

	out := buildAnalyzer(cfg, *mode).Analyze(ctx, fc)
	fmt.Println(out)
}

func runAnomalies(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("anomalies", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	server := fs.String("server", "", "restrict detection to one server")
	fs.Parse(args)

	cfg := loadConfig(*configPath)

	src, closeFn := openSource(cfg)
	defer closeFn()

	ds, err := src.Load(ctx)
	if err != nil {
		fatal(err)
	}
	if err := metrics.ValidateSamples(ds); err != nil {
		fatal(err)
	}

	anomalies := anomaly.Detect(ds, *server)
	if len(anomalies) == 0 {
		fmt.Println("no anomalies detected")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tMETRIC\tTIMESTAMP\tVALUE\tMEAN\tZ-SCORE")
	for _, a := range anomalies {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\n",
			a.ServerID, a.MetricName, a.Timestamp.Format(time.RFC3339), a.Value, a.Mean, a.ZScore)
	}
	w.Flush()
}

func runAsk(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		fatal(fmt.Errorf("usage: fleetsense ask [--config path] <question>"))
	}

	cfg := loadConfig(*configPath)
	shutdown := initTelemetry(ctx, cfg)
	defer shutdown()

	out := buildAnalyzer(cfg, cfg.Analysis.Mode).AnalyzeQuery(ctx, question)
	fmt.Println(out)
}
