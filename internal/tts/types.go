package tts

import (
	"context"
	"errors"
)

var (
	// ErrUnsupported reports that no speech synthesis capability is available.
	ErrUnsupported = errors.New("speech synthesis not supported")
	// ErrInterrupted is returned for an utterance cancelled before it finished.
	ErrInterrupted = errors.New("speech interrupted")
)

// SynthesisError wraps an engine failure while speaking.
type SynthesisError struct {
	Detail string
}

func (e *SynthesisError) Error() string {
	return "speech synthesis failed: " + e.Detail
}

// Voice describes an installed voice.
type Voice struct {
	Name    string
	Lang    string
	Default bool
}

// Utterance is one piece of text to speak.
type Utterance struct {
	ID     string
	Text   string
	Lang   string
	Voice  *Voice
	Rate   float64
	Pitch  float64
	Volume float64
}

// Engine is the synthesis capability. Speak blocks until the utterance has
// finished or failed; Cancel interrupts whatever is being spoken. Voices may
// be empty until the engine has loaded them.
type Engine interface {
	Speak(ctx context.Context, u Utterance) error
	Cancel()
	Voices() []Voice
}
