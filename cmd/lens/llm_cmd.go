package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/procurelens/core/pkg/contracts"
	"github.com/procurelens/core/pkg/llm"
	"github.com/procurelens/core/pkg/store"
)

// runLLMCmd executes one LLM task against a stored candidate:
// lens llm <verify|explain> <candidate-id> [-profile path]
func runLLMCmd(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		_, _ = fmt.Fprintln(stderr, "Usage: lens llm <verify|explain> <candidate-id> [flags]")
		return 2
	}
	task, candidateID := args[0], args[1]
	if task != contracts.TaskVerify && task != contracts.TaskExplain {
		_, _ = fmt.Fprintf(stderr, "unknown task %q: want verify or explain\n", task)
		return 2
	}

	fs := flag.NewFlagSet("llm", flag.ContinueOnError)
	fs.SetOutput(stderr)
	profile := fs.String("profile", "", "YAML profile overlaying the environment configuration")
	if err := fs.Parse(args[2:]); err != nil {
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

	var provider llm.Provider
	switch cfg.LLM.Provider {
	case "mock":
		provider = llm.Mock{}
	case "openai":
		provider = llm.NewOpenAI(cfg.LLM)
	default:
		_, _ = fmt.Fprintf(stderr, "unknown LLM provider %q\n", cfg.LLM.Provider)
		return 2
	}

	verifier := llm.NewVerifier(st, provider, cfg.LLM, newLogger(stderr))
	record, err := verifier.Run(ctx, candidateID, task)
	if err != nil {
		var lerr *llm.Error
		if errors.As(err, &lerr) {
			_, _ = fmt.Fprintf(stderr, "%s (status %d): %s\n", lerr.Code, lerr.Status, lerr.Message)
		} else {
			_, _ = fmt.Fprintln(stderr, err)
		}
		return 1
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(record)
	return 0
}
