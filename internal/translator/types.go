// Package translator implements the translation service that answers the
// widget's POST /translate calls, backed by a pluggable engine.
package translator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/loqalabs/talkez/internal/config"
	"github.com/loqalabs/talkez/internal/language"
)

// Request describes one translation. Source and Target are base codes.
type Request struct {
	Text   string
	Source string
	Target string
}

// Engine is a pluggable translation backend.
type Engine interface {
	Translate(ctx context.Context, req Request) (string, error)
}

var ErrInvalidRequest = errors.New("invalid translation request")

// Validate checks that text and both language codes are present.
func (r Request) Validate() error {
	switch {
	case strings.TrimSpace(r.Text) == "":
		return fmt.Errorf("%w: text is empty", ErrInvalidRequest)
	case r.Source == "":
		return fmt.Errorf("%w: source is empty", ErrInvalidRequest)
	case r.Target == "":
		return fmt.Errorf("%w: target is empty", ErrInvalidRequest)
	}
	return nil
}

// NewEngine builds the engine selected by cfg.Mode.
func NewEngine(cfg config.TranslatorConfig, hc *http.Client) (Engine, error) {
	switch cfg.Mode {
	case "mock", "":
		return NewMockEngine(cfg.Dictionary), nil
	case "ollama":
		return NewOllamaEngine(cfg.Endpoint, cfg.Model, cfg.Temperature, hc), nil
	case "openai":
		return NewOpenAIEngine(cfg.Endpoint, cfg.APIKey, cfg.Model, cfg.Temperature, hc), nil
	case "exec":
		return NewExecEngine(cfg.Command)
	default:
		return nil, fmt.Errorf("unknown translator mode %q", cfg.Mode)
	}
}

func prompt(req Request) string {
	return fmt.Sprintf(
		"Translate the following text from %s to %s. Reply with the translation only, without quotes or commentary.\n\n%s",
		languageName(req.Source), languageName(req.Target), req.Text)
}

const systemPrompt = "You are a professional interpreter. You translate spoken phrases faithfully and naturally."

func languageName(base string) string {
	for _, opt := range language.All() {
		if language.Base(opt.Code) == base {
			name, _, _ := strings.Cut(opt.Label, " (")
			return name
		}
	}
	return base
}
