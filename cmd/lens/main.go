// lens mines a procure-to-pay OCEL log for anomaly candidates and serves
// LLM-backed verification of the results.
package main

import (
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dispatcher
func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run is the entrypoint for testing.
func Run(args []string, stdout, stderr io.Writer) int {
	if len(args) < 2 {
		printUsage(stderr)
		return 2
	}

	switch args[1] {
	case "run":
		return runPipelineCmd(args[2:], stdout, stderr)
	case "detect":
		return runDetectCmd(args[2:], stdout, stderr)
	case "backfill":
		return runBackfillCmd(args[2:], stdout, stderr)
	case "llm":
		return runLLMCmd(args[2:], stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", args[1])
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: lens <command> [flags]")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Commands:")
	_, _ = fmt.Fprintln(w, "  run       mine the source log and persist scored candidates")
	_, _ = fmt.Fprintln(w, "  detect    dry run: mine the source log and print candidates without persisting")
	_, _ = fmt.Fprintln(w, "  backfill  compute severity for stored candidates that predate it")
	_, _ = fmt.Fprintln(w, "  llm       run an LLM task: lens llm <verify|explain> <candidate-id>")
	_, _ = fmt.Fprintln(w, "")
	_, _ = fmt.Fprintln(w, "Configuration comes from the environment (OCEL_DB_URL, SERVING_DB_URL,")
	_, _ = fmt.Fprintln(w, "LLM_PROVIDER, OPENAI_API_KEY, ...), optionally overlaid with -profile.")
}

func newLogger(stderr io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(stderr, nil))
}

// openSourceDB opens the materialized OCEL view. Postgres DSNs go through
// lib/pq, anything else is treated as a SQLite path.
func openSourceDB(dsn string) (*sql.DB, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return sql.Open("postgres", dsn)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
