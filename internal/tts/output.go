package tts

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/loqalabs/talkez/internal/language"
)

const (
	speechRate   = 0.9
	speechPitch  = 1.0
	speechVolume = 1.0
)

// Output is the speech output adapter.
type Output struct {
	engine Engine
	logger *slog.Logger
}

func NewOutput(engine Engine, logger *slog.Logger) *Output {
	return &Output{engine: engine, logger: logger.With(slog.String("component", "tts"))}
}

// Supported reports whether an engine is present.
func (o *Output) Supported() bool {
	return o != nil && o.engine != nil
}

// Speak cancels any utterance in progress and speaks text in languageTag.
// Engine failures are returned as *SynthesisError; an utterance interrupted
// by a later Speak returns ErrInterrupted.
func (o *Output) Speak(ctx context.Context, text, languageTag string) error {
	if !o.Supported() {
		return ErrUnsupported
	}
	o.engine.Cancel()

	u := Utterance{
		ID:     uuid.NewString(),
		Text:   text,
		Lang:   languageTag,
		Voice:  SelectVoice(o.engine.Voices(), languageTag),
		Rate:   speechRate,
		Pitch:  speechPitch,
		Volume: speechVolume,
	}
	attrs := []any{slog.String("utterance_id", u.ID), slog.String("lang", languageTag)}
	if u.Voice != nil {
		attrs = append(attrs, slog.String("voice", u.Voice.Name))
	}
	o.logger.Debug("speaking", attrs...)

	err := o.engine.Speak(ctx, u)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrInterrupted):
		return ErrInterrupted
	default:
		o.logger.Warn("speech synthesis failed", append(attrs, slog.String("error", err.Error()))...)
		var synthErr *SynthesisError
		if errors.As(err, &synthErr) {
			return synthErr
		}
		return &SynthesisError{Detail: err.Error()}
	}
}

// Cancel interrupts the current utterance, if any.
func (o *Output) Cancel() {
	if o.Supported() {
		o.engine.Cancel()
	}
}

// SelectVoice picks the first voice whose language starts with the base code
// of languageTag, else the first voice, else nil.
func SelectVoice(voices []Voice, languageTag string) *Voice {
	if len(voices) == 0 {
		return nil
	}
	base := language.Base(languageTag)
	for i := range voices {
		if strings.HasPrefix(strings.ToLower(voices[i].Lang), base) {
			v := voices[i]
			return &v
		}
	}
	v := voices[0]
	return &v
}
