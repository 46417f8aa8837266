package translator

import (
	"context"
	"strings"
	"time"
)

type mockEngine struct {
	dictionary map[string]string
}

// NewMockEngine returns a deterministic engine. Dictionary keys have the form
// "<target>:<text>"; unknown phrases come back as "[<target>] <text>".
func NewMockEngine(dictionary map[string]string) Engine {
	return &mockEngine{dictionary: dictionary}
}

func (m *mockEngine) Translate(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	text := strings.TrimSpace(req.Text)
	if translated, ok := m.dictionary[req.Target+":"+text]; ok {
		return translated, nil
	}
	return "[" + req.Target + "] " + text, nil
}
