package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/gosuda/prime/internal/domain"
)

// JSONLSink appends one JSON object per line to a file and syncs after every
// write. Reopening an existing file resumes its sequence.
type JSONLSink struct {
	path string
	mu   sync.Mutex
	f    *os.File
	last uint64
}

// NewJSONLSink creates or opens path for appending, creating parent directories.
func NewJSONLSink(path string) (*JSONLSink, error) {
	if path == "" {
		return nil, errors.New("audit.NewJSONLSink: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("audit.NewJSONLSink: %w", err)
	}

	s := &JSONLSink{path: path}
	err := s.scanFile(context.Background(), func(e *domain.AuditEvent) bool {
		s.last = e.Sequence
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("audit.NewJSONLSink: resume: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("audit.NewJSONLSink: %w", err)
	}
	s.f = f
	return s, nil
}

func (s *JSONLSink) Append(_ context.Context, e *domain.AuditEvent) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit.JSONLSink.Append: marshal: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return fmt.Errorf("audit.JSONLSink.Append: %w", os.ErrClosed)
	}
	if _, err := s.f.Write(data); err != nil {
		return fmt.Errorf("audit.JSONLSink.Append: write: %w", err)
	}
	if err := s.f.Sync(); err != nil {
		return fmt.Errorf("audit.JSONLSink.Append: sync: %w", err)
	}
	s.last = e.Sequence
	return nil
}

func (s *JSONLSink) LastSequence(_ context.Context) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, nil
}

// Scan reads the file from the start (linear scan).
func (s *JSONLSink) Scan(ctx context.Context, filter domain.AuditFilter, fn func(*domain.AuditEvent) bool) error {
	return s.scanFile(ctx, func(e *domain.AuditEvent) bool {
		if !filter.Matches(e) {
			return true
		}
		return fn(e)
	})
}

func (s *JSONLSink) scanFile(ctx context.Context, fn func(*domain.AuditEvent) bool) error {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e domain.AuditEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("%s:%d: %w", s.path, line, err)
		}
		if !fn(&e) {
			return nil
		}
	}
	return sc.Err()
}

// Close closes the underlying file.
func (s *JSONLSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.f == nil {
		return nil
	}
	err := s.f.Close()
	s.f = nil
	return err
}
