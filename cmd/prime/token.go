package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/gosuda/prime/internal/auth"
	"github.com/gosuda/prime/internal/domain"
)

// runToken implements `prime token`: it signs a caller token with
// PRIME_JWT_SECRET for local testing and service accounts.
func runToken(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("token", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		userID    string
		role      string
		sessionID string
		ttl       time.Duration
	)

	cmd.StringVar(&userID, "user", "", "User ID (REQUIRED)")
	cmd.StringVar(&role, "role", string(domain.RoleUser), "Role: USER, STAFF, ADMIN or SYSTEM")
	cmd.StringVar(&sessionID, "session", "", "Session ID (random when empty)")
	cmd.DurationVar(&ttl, "ttl", time.Hour, "Token lifetime")

	if err := cmd.Parse(args); err != nil {
		return 2
	}

	if userID == "" {
		_, _ = fmt.Fprintln(stderr, "Error: --user is required")
		return 2
	}

	secret := os.Getenv("PRIME_JWT_SECRET")
	if secret == "" {
		_, _ = fmt.Fprintln(stderr, "Error: PRIME_JWT_SECRET is not set")
		return 1
	}

	token, err := auth.IssueToken(secret, domain.User{ID: userID, Role: domain.Role(role), SessionID: sessionID}, ttl)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	_, _ = fmt.Fprintln(stdout, token)
	return 0
}
