package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gridline/internal/config"
	"gridline/internal/model"
	"gridline/internal/providers/entsoe"
	"gridline/internal/store"
	"gridline/internal/store/sqlite"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		run(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func run(args []string) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	configPath := fs.String("config", "configs/collector.yaml", "path to collector config")
	areasCSV := fs.String("areas", "", "comma-separated area codes (overrides config)")
	kindsCSV := fs.String("kinds", "", "comma-separated series kinds (overrides config)")
	dbPath := fs.String("db", "", "sqlite database path (overrides config, empty keeps config value)")
	days := fs.Int("days", 0, "lookback window in days (overrides config)")
	verbose := fs.Bool("verbose", false, "debug logging")
	fs.Parse(args)

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := runCollector(logger, *configPath, *areasCSV, *kindsCSV, *dbPath, *days); err != nil {
		logger.Error("collector run failed", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: collector run [options]")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "options:")
	fmt.Fprintln(os.Stderr, "  -config   path to collector config (default: configs/collector.yaml)")
	fmt.Fprintln(os.Stderr, "  -areas    comma-separated area codes (overrides config)")
	fmt.Fprintln(os.Stderr, "  -kinds    comma-separated series kinds (overrides config)")
	fmt.Fprintln(os.Stderr, "  -db       sqlite database path (overrides config)")
	fmt.Fprintln(os.Stderr, "  -days     lookback window in days (overrides config)")
	fmt.Fprintln(os.Stderr, "  -verbose  debug logging")
}

func runCollector(logger *slog.Logger, configPath, areasCSV, kindsCSV, dbPath string, days int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if list := parseList(areasCSV); len(list) > 0 {
		cfg.Areas = list
	}
	if list := parseList(kindsCSV); len(list) > 0 {
		cfg.Kinds = list
	}
	if strings.TrimSpace(dbPath) != "" {
		cfg.DB = strings.TrimSpace(dbPath)
	}
	if days > 0 {
		cfg.LookbackDays = days
	}

	kinds, err := cfg.ParseKinds()
	if err != nil {
		return err
	}

	provider, err := entsoe.New()
	if err != nil {
		return err
	}
	defer provider.Close()

	st, err := openStore(cfg.DB)
	if err != nil {
		return err
	}
	defer st.Close()

	ctx := context.Background()
	end := time.Now().UTC().Truncate(time.Hour)
	start := end.AddDate(0, 0, -cfg.LookbackDays)

	requests := 0
	success := 0
	failed := 0
	skipped := 0
	samples := make([]model.Sample, 0)

	for _, area := range cfg.Areas {
		for _, kind := range kinds {
			requests++
			series, err := provider.FetchSeries(ctx, area, kind, start, end)
			if err != nil {
				if errors.Is(err, entsoe.ErrNoMatchingData) {
					skipped++
					logger.Debug("no data", "area", area, "kind", kind)
					continue
				}
				if errors.Is(err, entsoe.ErrUnauthorized) {
					return err
				}
				failed++
				logger.Warn("fetch failed", "area", area, "kind", kind, "error", err)
				continue
			}
			success++
			samples = append(samples, series...)
			logger.Debug("fetched", "area", area, "kind", kind, "samples", len(series))
		}
	}

	if err := st.UpsertSamples(ctx, samples); err != nil {
		return err
	}
	logger.Info("collector run complete",
		"provider", provider.Name(),
		"areas", len(cfg.Areas),
		"requests", requests,
		"success", success,
		"failed", failed,
		"skipped", skipped,
		"stored", len(samples),
		"window_start", start,
		"window_end", end,
	)
	return nil
}

func openStore(path string) (store.Store, error) {
	if strings.TrimSpace(path) == "" {
		return &store.NopStore{}, nil
	}
	return sqlite.New(path)
}

func parseList(value string) []string {
	raw := strings.Split(value, ",")
	items := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		items = append(items, trimmed)
	}
	return items
}
