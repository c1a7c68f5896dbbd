package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/gosuda/prime/internal/audit"
	"github.com/gosuda/prime/internal/domain"
)

// runAudit implements `prime audit`: it replays a JSONL audit log in
// sequence order, optionally filtered, one event per line.
func runAudit(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("audit", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		path      string
		kind      string
		userID    string
		requestID string
	)

	cmd.StringVar(&path, "path", os.Getenv("PRIME_AUDIT_PATH"), "JSONL audit file (defaults to PRIME_AUDIT_PATH)")
	cmd.StringVar(&kind, "kind", "", "Only events of this kind")
	cmd.StringVar(&userID, "user", "", "Only events for this user")
	cmd.StringVar(&requestID, "request", "", "Only events for this request")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if path == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --path is required")
		return 2
	}
	if _, err := os.Stat(path); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	ctx := context.Background()

	sink, err := audit.NewJSONLSink(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer sink.Close()

	l, err := audit.New(ctx, sink)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	filter := domain.AuditFilter{Kind: domain.AuditKind(kind), UserID: userID, RequestID: requestID}
	enc := json.NewEncoder(stdout)
	err = l.Replay(ctx, func(e *domain.AuditEvent) error {
		if !filter.Matches(e) {
			return nil
		}
		return enc.Encode(e)
	})
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
