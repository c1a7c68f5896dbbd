package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gosuda/prime/internal/config"
)

func main() {
	os.Exit(Run(os.Args, os.Stdout, os.Stderr))
}

// Run dispatches a subcommand and returns the process exit code.
func Run(args []string, stdout, stderr io.Writer) int {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintf(stderr, "Error: loading .env: %v\n", err)
		return 1
	}
	logCfg, err := config.LoadLog()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	setupLogging(stderr, logCfg)

	cmd := "serve"
	var rest []string
	if len(args) > 1 {
		cmd, rest = args[1], args[2:]
	}

	switch cmd {
	case "serve":
		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		if err := runServe(ctx); err != nil {
			log.Error().Err(err).Msg("server failed")
			return 1
		}
		return 0
	case "token":
		return runToken(rest, stdout, stderr)
	case "audit":
		return runAudit(rest, stdout, stderr)
	case "help", "--help", "-h":
		printUsage(stdout)
		return 0
	default:
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", cmd)
		printUsage(stderr)
		return 2
	}
}

func printUsage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "Usage: prime <command> [arguments]")
	_, _ = fmt.Fprintln(w, "\nCommands:")
	_, _ = fmt.Fprintln(w, "  serve   Run the governance API server (default)")
	_, _ = fmt.Fprintln(w, "  token   Mint a caller token: --user ID --role ROLE")
	_, _ = fmt.Fprintln(w, "  audit   Print the JSONL audit log: --path FILE [--kind K] [--user ID]")
}

// setupLogging configures the global zerolog logger. Logs go to w so command
// output on stdout stays clean.
func setupLogging(w io.Writer, cfg config.LogConfig) {
	zerolog.SetGlobalLevel(cfg.ZerologLevel())

	if cfg.Format == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(w).With().Timestamp().Logger()
	}
}
