package stt

import (
	"strings"
	"sync"
	"time"
)

// DemoPhrases are the canned utterances the mock recognizer "hears" per language.
var DemoPhrases = map[string]string{
	"fr-FR": "Bonjour, comment allez-vous ?",
	"en-US": "Hello, how are you?",
	"es-ES": "Hola, ¿cómo estás?",
	"de-DE": "Guten Tag, wie geht es Ihnen?",
	"it-IT": "Ciao, come stai?",
	"pt-PT": "Olá, como está?",
	"ja-JP": "こんにちは、お元気ですか？",
	"ko-KR": "안녕하세요, 잘 지내세요?",
	"ru-RU": "Здравствуйте, как дела?",
	"ar-SA": "مرحبا، كيف حالك؟",
}

// MockPlatform hands out scripted recognitions. With a phrase configured for
// the recognition language, Start emits an interim result, the final result
// and the end event asynchronously. Without one, nothing happens until the
// test drives the recognition through Emit, Fail and End.
type MockPlatform struct {
	phrases map[string]string
	delay   time.Duration

	mu           sync.Mutex
	recognitions []*MockRecognition
}

func NewMockPlatform(phrases map[string]string, delay time.Duration) *MockPlatform {
	return &MockPlatform{phrases: phrases, delay: delay}
}

func (p *MockPlatform) NewRecognition(settings Settings) (Recognition, error) {
	rec := &MockRecognition{
		settings: settings,
		phrase:   p.phrases[settings.Language],
		delay:    p.delay,
	}
	p.mu.Lock()
	p.recognitions = append(p.recognitions, rec)
	p.mu.Unlock()
	return rec, nil
}

// Recognitions returns every recognition created so far, oldest first.
func (p *MockPlatform) Recognitions() []*MockRecognition {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*MockRecognition(nil), p.recognitions...)
}

// Last returns the most recently created recognition, or nil.
func (p *MockPlatform) Last() *MockRecognition {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.recognitions) == 0 {
		return nil
	}
	return p.recognitions[len(p.recognitions)-1]
}

type MockRecognition struct {
	callbacks

	settings Settings
	phrase   string
	delay    time.Duration

	state   sync.Mutex
	running bool
	stop    chan struct{}
	starts  int
	stops   int
}

func (m *MockRecognition) Settings() Settings { return m.settings }

func (m *MockRecognition) Start() error {
	m.state.Lock()
	if m.running {
		m.state.Unlock()
		return ErrAlreadyStarted
	}
	m.running = true
	m.starts++
	stop := make(chan struct{})
	m.stop = stop
	m.state.Unlock()

	if m.phrase != "" {
		go m.play(stop)
	}
	return nil
}

func (m *MockRecognition) Stop() {
	m.state.Lock()
	m.stops++
	running := m.running
	if running {
		m.running = false
		close(m.stop)
	}
	m.state.Unlock()
	if running {
		go m.emitEnd()
	}
}

// Running reports whether a session is in progress.
func (m *MockRecognition) Running() bool {
	m.state.Lock()
	defer m.state.Unlock()
	return m.running
}

// Starts returns how many times Start succeeded.
func (m *MockRecognition) Starts() int {
	m.state.Lock()
	defer m.state.Unlock()
	return m.starts
}

// Stops returns how many times Stop was called.
func (m *MockRecognition) Stops() int {
	m.state.Lock()
	defer m.state.Unlock()
	return m.stops
}

// Emit delivers evt to the result handler.
func (m *MockRecognition) Emit(evt ResultEvent) { m.emitResult(evt) }

// Fail delivers code to the error handler.
func (m *MockRecognition) Fail(code string) { m.emitError(code) }

// End finishes the session and delivers the end event.
func (m *MockRecognition) End() {
	m.state.Lock()
	if m.running {
		m.running = false
		close(m.stop)
	}
	m.state.Unlock()
	m.emitEnd()
}

func (m *MockRecognition) play(stop chan struct{}) {
	words := strings.Fields(m.phrase)
	if m.settings.InterimResults && len(words) > 1 {
		if !m.wait(stop) {
			return
		}
		partial := strings.Join(words[:len(words)/2], " ")
		m.emitResult(ResultEvent{Results: []Result{{Alternatives: []Alternative{{Transcript: partial}}}}})
	}
	if !m.wait(stop) {
		return
	}
	m.emitResult(ResultEvent{Results: []Result{{Final: true, Alternatives: []Alternative{{Transcript: m.phrase, Confidence: 0.9}}}}})
	m.finish(stop)
}

func (m *MockRecognition) wait(stop <-chan struct{}) bool {
	select {
	case <-stop:
		return false
	case <-time.After(m.delay):
		return true
	}
}

// finish ends the session that owns stop, unless it already ended.
func (m *MockRecognition) finish(stop chan struct{}) {
	m.state.Lock()
	current := m.running && m.stop == stop
	if current {
		m.running = false
		close(m.stop)
	}
	m.state.Unlock()
	if current {
		m.emitEnd()
	}
}
