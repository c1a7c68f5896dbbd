package analyzer

import (
	"context"
	"fmt"
	"strings"
)

// Multi asks every classifier in turn and concatenates their verdicts. Any
// single failure fails the whole call, so a broken model cannot be masked by
// a healthy local classifier.
type Multi []Classifier

func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, c := range m {
		names[i] = c.Name()
	}
	return strings.Join(names, "+")
}

func (m Multi) Classify(ctx context.Context, q Query) ([]Verdict, error) {
	var out []Verdict
	for _, c := range m {
		v, err := c.Classify(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", c.Name(), err)
		}
		out = append(out, v...)
	}
	return out, nil
}
