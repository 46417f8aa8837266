package tts

import (
	"context"
	"sync"
	"time"

	"github.com/loqalabs/talkez/internal/language"
)

// MockEngine records utterances and pretends to speak each one for a fixed
// duration. Fail makes the next utterances return an error.
type MockEngine struct {
	voices []Voice
	delay  time.Duration

	mu      sync.Mutex
	spoken  []Utterance
	cancels int
	failure error
	current chan struct{}
}

func NewMockEngine(voices []Voice, delay time.Duration) *MockEngine {
	return &MockEngine{voices: voices, delay: delay}
}

// DemoVoices returns one voice per catalogue language.
func DemoVoices() []Voice {
	var voices []Voice
	for i, opt := range language.All() {
		voices = append(voices, Voice{Name: "Mock " + opt.Label, Lang: opt.Code, Default: i == 0})
	}
	return voices
}

func (m *MockEngine) Speak(ctx context.Context, u Utterance) error {
	interrupt := make(chan struct{})
	m.mu.Lock()
	m.spoken = append(m.spoken, u)
	m.current = interrupt
	failure := m.failure
	m.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-interrupt:
		return ErrInterrupted
	case <-time.After(m.delay):
	}

	m.mu.Lock()
	if m.current == interrupt {
		m.current = nil
	}
	m.mu.Unlock()
	if failure != nil {
		return &SynthesisError{Detail: failure.Error()}
	}
	return nil
}

func (m *MockEngine) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels++
	if m.current != nil {
		close(m.current)
		m.current = nil
	}
}

func (m *MockEngine) Voices() []Voice {
	return append([]Voice(nil), m.voices...)
}

// Fail sets the error returned by subsequent utterances; nil clears it.
func (m *MockEngine) Fail(err error) {
	m.mu.Lock()
	m.failure = err
	m.mu.Unlock()
}

// Spoken returns every utterance received, oldest first.
func (m *MockEngine) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

// Cancels returns how many times Cancel was called.
func (m *MockEngine) Cancels() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cancels
}
