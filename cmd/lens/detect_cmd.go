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

	"github.com/procurelens/core/pkg/identity"
	"github.com/procurelens/core/pkg/ocel"
	"github.com/procurelens/core/pkg/pipeline"
	"github.com/procurelens/core/pkg/scoring"
)

// runDetectCmd mines the source log and prints scored candidates without
// touching the serving store.
func runDetectCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("detect", flag.ContinueOnError)
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

	source, err := openSourceDB(cfg.SourceDatabaseURL)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "open source log: %v\n", err)
		return 1
	}
	defer func() { _ = source.Close() }()

	snap, err := ocel.Load(ctx, source)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "load snapshot: %v\n", err)
		return 1
	}

	runner, err := pipeline.NewRunner(cfg, nil, log)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	candidates, err := runner.Detect(ctx, snap)
	if err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}
	scoring.Score(candidates, cfg.Weights)
	scoring.Estimate(candidates)
	if err := identity.Assign(candidates); err != nil {
		_, _ = fmt.Fprintln(stderr, err)
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(candidates)
	return 0
}
