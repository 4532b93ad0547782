package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/procurelens/core/pkg/config"
	"github.com/procurelens/core/pkg/observability"
	"github.com/procurelens/core/pkg/pipeline"
	"github.com/procurelens/core/pkg/store"
)

func loadConfig(profile string) (*config.Config, error) {
	cfg := config.Load()
	if profile == "" {
		return cfg, nil
	}
	return config.ApplyProfile(cfg, profile)
}

func runPipelineCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "YAML profile overlaying the environment configuration")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := loadConfig(*profile)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := newLogger(stderr)

	telemetry, err := observability.Setup(ctx, observability.FromEnv())
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "telemetry setup: %v\n", err)
		return 1
	}
	defer func() { _ = telemetry.Shutdown(context.Background()) }()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open serving store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()
	if err := st.Init(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "init serving store: %v\n", err)
		return 1
	}

	source, err := openSourceDB(cfg.SourceDatabaseURL)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open source log: %v\n", err)
		return 1
	}
	defer func() { _ = source.Close() }()

	runner, err := pipeline.NewRunner(cfg, st, log)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	summary, err := runner.Run(ctx, source)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(map[string]any{
		"run_id":           summary.RunID,
		"candidates":       summary.Candidates,
		"counts_by_type":   summary.CountsByType,
		"maverick_reasons": summary.MaverickReason,
	})
	return 0
}

func runBackfillCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("backfill", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "YAML profile overlaying the environment configuration")
	runID := fs.String("run", "", "limit the backfill to one run id")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	cfg, err := loadConfig(*profile)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DatabaseURL)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open serving store: %v\n", err)
		return 1
	}
	defer func() { _ = st.Close() }()
	if err := st.Init(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "init serving store: %v\n", err)
		return 1
	}

	res, err := pipeline.Backfill(ctx, st, *runID, newLogger(stderr))
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	_, _ = fmt.Fprintf(stdout, "examined %d candidates, updated %d\n", res.Examined, res.Updated)
	return 0
}
