package stt

import (
	"errors"
	"strings"
	"sync"
)

var (
	// ErrUnsupported reports that no speech recognition capability is available.
	ErrUnsupported = errors.New("speech recognition not supported")
	// ErrAlreadyStarted is returned by Start on a recognition that is running.
	ErrAlreadyStarted = errors.New("recognition already started")
)

// Alternative is one candidate transcript for a result.
type Alternative struct {
	Transcript string
	Confidence float64
}

// Result is one entry in a recognition result list.
type Result struct {
	Final        bool
	Alternatives []Alternative
}

// ResultEvent carries the whole result list of the current session; only
// entries from ResultIndex onwards changed since the previous event.
type ResultEvent struct {
	ResultIndex int
	Results     []Result
}

// Settings configure a recognition once, at construction.
type Settings struct {
	Language        string
	Continuous      bool
	InterimResults  bool
	MaxAlternatives int
}

// Recognition is a single recognizer instance bound to one language.
// Callbacks may be invoked from any goroutine.
type Recognition interface {
	Start() error
	Stop()
	OnResult(func(ResultEvent))
	OnError(func(code string))
	OnEnd(func())
}

// Platform creates recognitions. It returns ErrUnsupported when the
// capability is missing.
type Platform interface {
	NewRecognition(Settings) (Recognition, error)
}

// Handlers receive the adapter's output.
type Handlers struct {
	// Transcript receives final+interim text for every result event.
	Transcript func(text string)
	// Utterance receives the finalized text once a result becomes final.
	Utterance func(text string)
	Error     func(code string)
	End       func()
}

// Input is the speech input adapter. It owns at most one recognition and
// rebuilds it whenever the language changes.
type Input struct {
	platform Platform
	handlers Handlers

	mu       sync.Mutex
	rec      Recognition
	language string
	// sessions started on rec and end events seen from it; each session
	// ends exactly once, so ended+1 < started means the event is from a
	// session that was already replaced
	started int
	ended   int
}

// DefaultSettings returns the one-utterance, interim-enabled configuration
// used for every recognition.
func DefaultSettings(language string) Settings {
	return Settings{
		Language:        language,
		Continuous:      false,
		InterimResults:  true,
		MaxAlternatives: 1,
	}
}

func NewInput(platform Platform, language string, handlers Handlers) (*Input, error) {
	if platform == nil {
		return nil, ErrUnsupported
	}
	in := &Input{platform: platform, handlers: handlers}
	if err := in.Reconfigure(language); err != nil {
		return nil, err
	}
	return in, nil
}

// Reconfigure stops and detaches the current recognition and builds a new one
// for language. Events still arriving from the old recognition are dropped.
func (in *Input) Reconfigure(language string) error {
	rec, err := in.platform.NewRecognition(DefaultSettings(language))
	if err != nil {
		return err
	}

	in.mu.Lock()
	old := in.rec
	in.rec = rec
	in.language = language
	in.started, in.ended = 0, 0
	in.mu.Unlock()

	if old != nil {
		old.Stop()
	}

	rec.OnResult(func(evt ResultEvent) {
		if in.live(rec) {
			in.handleResult(evt)
		}
	})
	rec.OnError(func(code string) {
		if in.live(rec) && in.handlers.Error != nil {
			in.handlers.Error(code)
		}
	})
	rec.OnEnd(func() {
		if in.ending(rec) && in.handlers.End != nil {
			in.handlers.End()
		}
	})
	return nil
}

// live reports whether an event from rec belongs to its latest session.
func (in *Input) live(rec Recognition) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.rec == rec && in.ended+1 >= in.started
}

// ending counts an end event from rec and reports whether it closes the
// latest session. An end with no session outstanding is passed through.
func (in *Input) ending(rec Recognition) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.rec != rec {
		return false
	}
	if in.ended >= in.started {
		return true
	}
	in.ended++
	return in.ended == in.started
}

// Language returns the language the current recognition was built for.
func (in *Input) Language() string {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.language
}

// Start begins listening for one utterance.
func (in *Input) Start() error {
	in.mu.Lock()
	rec := in.rec
	if rec != nil {
		in.started++
	}
	in.mu.Unlock()
	if rec == nil {
		return ErrUnsupported
	}
	if err := rec.Start(); err != nil {
		in.mu.Lock()
		if in.rec == rec {
			in.started--
		}
		in.mu.Unlock()
		return err
	}
	return nil
}

// Stop ends the current session; the end event still fires.
func (in *Input) Stop() {
	in.mu.Lock()
	rec := in.rec
	in.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

// Close stops and detaches the recognition. No handler fires afterwards.
func (in *Input) Close() {
	in.mu.Lock()
	rec := in.rec
	in.rec = nil
	in.mu.Unlock()
	if rec != nil {
		rec.Stop()
	}
}

func (in *Input) handleResult(evt ResultEvent) {
	final, interim := Partition(evt)
	if in.handlers.Transcript != nil {
		in.handlers.Transcript(final + interim)
	}
	if final != "" && in.handlers.Utterance != nil {
		in.handlers.Utterance(final)
	}
}

// Partition splits the results from evt.ResultIndex onwards into the
// concatenated final and interim text, using the first alternative of each
// result. Pieces are joined without a separator.
func Partition(evt ResultEvent) (final, interim string) {
	start := evt.ResultIndex
	if start < 0 {
		start = 0
	}
	var finalBuf, interimBuf strings.Builder
	for i := start; i < len(evt.Results); i++ {
		result := evt.Results[i]
		if len(result.Alternatives) == 0 {
			continue
		}
		chunk := result.Alternatives[0].Transcript
		if result.Final {
			finalBuf.WriteString(chunk)
		} else {
			interimBuf.WriteString(chunk)
		}
	}
	return finalBuf.String(), interimBuf.String()
}
