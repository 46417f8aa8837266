// Package orchestrator owns the translator session: it drives speech input,
// translation and speech output, and publishes the resulting state.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/loqalabs/talkez/internal/language"
	"github.com/loqalabs/talkez/internal/notify"
	"github.com/loqalabs/talkez/internal/stt"
	"github.com/loqalabs/talkez/internal/tts"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrStopped is returned by actions once Run has returned.
	ErrStopped = errors.New("orchestrator stopped")
	// ErrUnknownLanguage is returned when selecting a code outside the catalogue.
	ErrUnknownLanguage = errors.New("unknown language")
)

const (
	msgUnsupported       = "Speech recognition not supported on this system. Configure a recognizer (stt.mode) to enable voice input."
	msgListening         = "Listening... Speak in %s"
	msgRecognitionError  = "Speech recognition error: %s"
	msgTranslated        = "Translation completed!"
	msgTranslationFailed = "Translation failed. Please try again."
	msgNothingToSpeak    = "No translation to speak"
	msgSpeechFailed      = "Speech synthesis failed"
	msgSpeechUnsupported = "Speech synthesis not supported on this system"
)

// State is a snapshot of the session.
type State struct {
	Source      string
	Target      string
	Listening   bool
	Translating bool
	Speaking    bool
	Transcript  string
	Translation string
	Supported   bool
}

// Translator turns text from one base language code into another.
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// Speaker reads text aloud in a region-qualified language.
type Speaker interface {
	Speak(ctx context.Context, text, languageTag string) error
}

type Options struct {
	Recognizer stt.Platform
	Translator Translator
	Speaker    Speaker
	Notifier   notify.Notifier
	Logger     *slog.Logger
	Source     string
	Target     string
}

// Orchestrator serialises every state change through one event loop started
// by Run. Actions block until the loop has applied them.
type Orchestrator struct {
	recognizer stt.Platform
	translator Translator
	speaker    Speaker
	notifier   notify.Notifier
	logger     *slog.Logger
	tracer     trace.Tracer

	events chan func()
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup

	// owned by the loop
	ctx       context.Context
	state     State
	input     *stt.Input
	inflight  int
	speakTurn int

	subsMu   sync.Mutex
	subs     map[int]chan State
	nextSub  int
	snapshot State
}

func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	notifier := opts.Notifier
	if notifier == nil {
		notifier = notify.Discard
	}
	source, target := opts.Source, opts.Target
	if _, ok := language.Lookup(source); !ok {
		source = language.DefaultSource
	}
	if _, ok := language.Lookup(target); !ok {
		target = language.DefaultTarget
	}
	o := &Orchestrator{
		recognizer: opts.Recognizer,
		translator: opts.Translator,
		speaker:    opts.Speaker,
		notifier:   notifier,
		logger:     logger.With(slog.String("component", "orchestrator")),
		tracer:     otel.Tracer("github.com/loqalabs/talkez/orchestrator"),
		events:     make(chan func(), 64),
		done:       make(chan struct{}),
		subs:       make(map[int]chan State),
		state:      State{Source: source, Target: target, Supported: true},
	}
	o.snapshot = o.state
	return o
}

// Run performs the capability check and processes events until ctx is
// cancelled. It must be called exactly once.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.ctx = ctx
	o.init()
	o.publish()

	defer o.shutdown()
	for {
		select {
		case <-ctx.Done():
			return nil
		case fn := <-o.events:
			fn()
			o.publish()
		}
	}
}

func (o *Orchestrator) init() {
	input, err := stt.NewInput(o.recognizer, o.state.Source, o.inputHandlers())
	if err != nil {
		o.state.Supported = false
		o.logger.Warn("speech recognition unavailable", slog.String("error", err.Error()))
		o.notice(notify.LevelError, msgUnsupported)
		return
	}
	o.input = input
	o.logger.Info("orchestrator ready",
		slog.String("source", o.state.Source),
		slog.String("target", o.state.Target))
}

func (o *Orchestrator) shutdown() {
	o.once.Do(func() { close(o.done) })
	if o.input != nil {
		o.input.Close()
	}
	o.wg.Wait()

	o.subsMu.Lock()
	for id, ch := range o.subs {
		close(ch)
		delete(o.subs, id)
	}
	o.subsMu.Unlock()
}

func (o *Orchestrator) inputHandlers() stt.Handlers {
	return stt.Handlers{
		Transcript: func(text string) {
			o.post(func() { o.state.Transcript = text })
		},
		Utterance: func(text string) {
			o.post(func() { o.translate(text) })
		},
		Error: func(code string) {
			o.post(func() {
				o.state.Listening = false
				o.logger.Warn("speech recognition error", slog.String("code", code))
				o.notice(notify.LevelError, fmt.Sprintf(msgRecognitionError, code))
			})
		},
		End: func() {
			o.post(func() { o.state.Listening = false })
		},
	}
}

// post queues fn for the loop without waiting. It is dropped once the loop
// has stopped.
func (o *Orchestrator) post(fn func()) {
	select {
	case o.events <- fn:
	case <-o.done:
	}
}

// do runs fn on the loop and waits for it.
func (o *Orchestrator) do(fn func()) error {
	applied := make(chan struct{})
	select {
	case o.events <- func() { fn(); close(applied) }:
	case <-o.done:
		return ErrStopped
	}
	select {
	case <-applied:
		return nil
	case <-o.done:
		return ErrStopped
	}
}

func (o *Orchestrator) notice(level notify.Level, message string) {
	o.notifier.Notify(notify.Notice{Level: level, Message: message, Time: time.Now()})
}

// StartListening clears both texts and starts one recognition session in the
// source language. It is a no-op while listening or when unsupported.
func (o *Orchestrator) StartListening() error {
	return o.do(o.startListening)
}

func (o *Orchestrator) startListening() {
	if !o.state.Supported || o.input == nil || o.state.Listening {
		return
	}
	o.state.Transcript = ""
	o.state.Translation = ""
	o.state.Listening = true
	if err := o.input.Start(); err != nil {
		o.state.Listening = false
		o.logger.Warn("failed to start recognition", slog.String("error", err.Error()))
		o.notice(notify.LevelError, fmt.Sprintf(msgRecognitionError, err.Error()))
		return
	}
	o.notice(notify.LevelInfo, fmt.Sprintf(msgListening, language.Label(o.state.Source)))
}

// StopListening stops the current recognition session.
func (o *Orchestrator) StopListening() error {
	return o.do(o.stopListening)
}

func (o *Orchestrator) stopListening() {
	if !o.state.Supported || o.input == nil {
		return
	}
	o.input.Stop()
	o.state.Listening = false
}

// ToggleListening starts listening when idle and stops it otherwise.
func (o *Orchestrator) ToggleListening() error {
	return o.do(func() {
		if o.state.Listening {
			o.stopListening()
			return
		}
		o.startListening()
	})
}

// SetSourceLanguage selects the spoken language and rebuilds the recognizer.
func (o *Orchestrator) SetSourceLanguage(code string) error {
	if _, ok := language.Lookup(code); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLanguage, code)
	}
	return o.do(func() {
		if !o.state.Supported || code == o.state.Source {
			return
		}
		o.state.Source = code
		o.reconfigure()
	})
}

// SetTargetLanguage selects the language translations are produced in.
func (o *Orchestrator) SetTargetLanguage(code string) error {
	if _, ok := language.Lookup(code); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownLanguage, code)
	}
	return o.do(func() {
		if !o.state.Supported {
			return
		}
		o.state.Target = code
	})
}

// SwapLanguages exchanges source and target and clears both texts.
func (o *Orchestrator) SwapLanguages() error {
	return o.do(func() {
		if !o.state.Supported {
			return
		}
		o.state.Source, o.state.Target = o.state.Target, o.state.Source
		o.state.Transcript = ""
		o.state.Translation = ""
		o.reconfigure()
	})
}

func (o *Orchestrator) reconfigure() {
	o.state.Listening = false
	if o.input == nil || o.input.Language() == o.state.Source {
		return
	}
	if err := o.input.Reconfigure(o.state.Source); err != nil {
		o.logger.Warn("failed to rebuild recognizer",
			slog.String("language", o.state.Source),
			slog.String("error", err.Error()))
		return
	}
	o.logger.Debug("recognizer rebuilt", slog.String("language", o.state.Source))
}

func (o *Orchestrator) translate(text string) {
	if strings.TrimSpace(text) == "" || o.translator == nil {
		return
	}
	o.inflight++
	o.state.Translating = true

	source := language.Base(o.state.Source)
	target := language.Base(o.state.Target)
	ctx := o.ctx

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, span := o.tracer.Start(ctx, "orchestrator.translate", trace.WithAttributes(
			attribute.String("source", source),
			attribute.String("target", target)))
		translated, err := o.translator.Translate(ctx, text, source, target)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()

		o.post(func() {
			o.inflight--
			o.state.Translating = o.inflight > 0
			if err != nil {
				o.logger.Warn("translation failed", slog.String("error", err.Error()))
				o.notice(notify.LevelError, msgTranslationFailed)
				return
			}
			o.state.Translation = translated
			o.notice(notify.LevelSuccess, msgTranslated)
		})
	}()
}

// SpeakTranslation reads the current translation aloud in the target
// language. A blank translation only produces a notice.
func (o *Orchestrator) SpeakTranslation() error {
	return o.do(func() {
		if !o.state.Supported {
			return
		}
		text := o.state.Translation
		if strings.TrimSpace(text) == "" {
			o.notice(notify.LevelError, msgNothingToSpeak)
			return
		}
		if o.speaker == nil {
			o.notice(notify.LevelError, msgSpeechUnsupported)
			return
		}
		o.speakTurn++
		turn := o.speakTurn
		o.state.Speaking = true
		target := o.state.Target
		ctx := o.ctx

		o.wg.Add(1)
		go func() {
			defer o.wg.Done()
			ctx, span := o.tracer.Start(ctx, "orchestrator.speak", trace.WithAttributes(attribute.String("lang", target)))
			err := o.speaker.Speak(ctx, text, target)
			if err != nil && !errors.Is(err, tts.ErrInterrupted) {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			span.End()

			o.post(func() {
				if turn != o.speakTurn {
					return
				}
				o.state.Speaking = false
				switch {
				case err == nil, errors.Is(err, tts.ErrInterrupted):
				case errors.Is(err, tts.ErrUnsupported):
					o.notice(notify.LevelError, msgSpeechUnsupported)
				default:
					o.logger.Warn("speech synthesis failed", slog.String("error", err.Error()))
					o.notice(notify.LevelError, msgSpeechFailed)
				}
			})
		}()
	})
}

// State returns the latest published state.
func (o *Orchestrator) State() State {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	return o.snapshot
}

// Subscribe returns a channel receiving the latest state after every change,
// starting with the current one. Slow readers only see the newest state. The
// channel is closed by the returned cancel func or when Run returns.
func (o *Orchestrator) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)
	o.subsMu.Lock()
	id := o.nextSub
	o.nextSub++
	select {
	case <-o.done:
		close(ch)
		o.subsMu.Unlock()
		return ch, func() {}
	default:
	}
	o.subs[id] = ch
	ch <- o.snapshot
	o.subsMu.Unlock()

	return ch, func() {
		o.subsMu.Lock()
		defer o.subsMu.Unlock()
		if sub, ok := o.subs[id]; ok {
			close(sub)
			delete(o.subs, id)
		}
	}
}

func (o *Orchestrator) publish() {
	o.subsMu.Lock()
	defer o.subsMu.Unlock()
	if o.snapshot == o.state {
		return
	}
	o.snapshot = o.state
	for _, ch := range o.subs {
		select {
		case <-ch:
		default:
		}
		ch <- o.snapshot
	}
}
