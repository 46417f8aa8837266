package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/talkez/internal/bus/bustest"
	"github.com/loqalabs/talkez/internal/notify"
	"github.com/loqalabs/talkez/internal/stt"
	"github.com/loqalabs/talkez/internal/translation"
	"github.com/loqalabs/talkez/internal/tts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

// fakeService answers POST /translate from a fixed table keyed by text.
type fakeService struct {
	mu       sync.Mutex
	requests []translation.Request
}

func (f *fakeService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req translation.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch req.Text {
	case "boom":
		w.WriteHeader(http.StatusInternalServerError)
	case "oops":
		_ = json.NewEncoder(w).Encode(translation.Response{Error: "engine exploded"})
	case "Hola":
		_ = json.NewEncoder(w).Encode(translation.Response{TranslatedText: "Hello"})
	case "Bonjour":
		_ = json.NewEncoder(w).Encode(translation.Response{TranslatedText: "Hello"})
	default:
		_ = json.NewEncoder(w).Encode(translation.Response{TranslatedText: "<" + req.Target + ">" + req.Text})
	}
}

func (f *fakeService) Requests() []translation.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]translation.Request(nil), f.requests...)
}

type harness struct {
	orch     *Orchestrator
	platform *stt.MockPlatform
	engine   *tts.MockEngine
	notices  *notify.Recorder
	service  *fakeService
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	service := &fakeService{}
	srv := httptest.NewServer(service)
	t.Cleanup(srv.Close)

	h := &harness{
		platform: stt.NewMockPlatform(nil, 0),
		engine:   tts.NewMockEngine(tts.DemoVoices(), 0),
		notices:  &notify.Recorder{},
		service:  service,
	}
	opts := Options{
		Recognizer: h.platform,
		Translator: translation.NewClient(srv.URL, translation.WithLogger(bustest.Logger())),
		Speaker:    tts.NewOutput(h.engine, bustest.Logger()),
		Notifier:   h.notices,
		Logger:     bustest.Logger(),
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.orch = New(opts)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = h.orch.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return h
}

// recognition returns the live recognition, waiting for Run to build it.
func (h *harness) recognition(t *testing.T) *stt.MockRecognition {
	t.Helper()
	require.Eventually(t, func() bool { return h.platform.Last() != nil }, waitFor, tick)
	return h.platform.Last()
}

func (h *harness) eventually(t *testing.T, cond func(State) bool) State {
	t.Helper()
	require.Eventually(t, func() bool { return cond(h.orch.State()) }, waitFor, tick)
	return h.orch.State()
}

func final(text string) stt.ResultEvent {
	return stt.ResultEvent{Results: []stt.Result{{Final: true, Alternatives: []stt.Alternative{{Transcript: text}}}}}
}

func (h *harness) translateOnce(t *testing.T, text string) State {
	t.Helper()
	before := len(h.service.Requests())
	h.recognition(t).Emit(final(text))
	return h.eventually(t, func(s State) bool {
		return !s.Translating && len(h.service.Requests()) > before
	})
}

func TestFinalTranscriptSetsTranslation(t *testing.T) {
	for _, text := range []string{"Bonjour", "Bonjour tout le monde", "merci"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t)
			state := h.translateOnce(t, text)

			want := "<en>" + text
			if text == "Bonjour" {
				want = "Hello"
			}
			state = h.eventually(t, func(s State) bool { return s.Translation == want })
			assert.False(t, state.Translating)
			assert.Contains(t, h.notices.Messages(), "Translation completed!")

			req := h.service.Requests()[0]
			assert.Equal(t, translation.Request{Text: text, Source: "fr", Target: "en"}, req)
		})
	}
}

func TestTranslationFailureLeavesTranslationUnchanged(t *testing.T) {
	for _, text := range []string{"boom", "oops"} {
		t.Run(text, func(t *testing.T) {
			h := newHarness(t)
			h.translateOnce(t, "Bonjour")
			h.eventually(t, func(s State) bool { return s.Translation == "Hello" })

			state := h.translateOnce(t, text)
			require.Eventually(t, func() bool {
				return slices.Contains(h.notices.Messages(), "Translation failed. Please try again.")
			}, waitFor, tick)
			state = h.orch.State()
			assert.Equal(t, "Hello", state.Translation)
			assert.False(t, state.Translating)
		})
	}
}

func TestBlankUtteranceIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.recognition(t).Emit(final("   "))
	h.eventually(t, func(s State) bool { return s.Transcript == "   " })
	assert.Empty(t, h.service.Requests())
	assert.False(t, h.orch.State().Translating)
}

func TestSwapLanguagesClearsTexts(t *testing.T) {
	h := newHarness(t)
	h.translateOnce(t, "Bonjour")
	h.eventually(t, func(s State) bool { return s.Translation == "Hello" && s.Transcript == "Bonjour" })

	require.NoError(t, h.orch.SwapLanguages())
	state := h.orch.State()
	assert.Equal(t, "en-US", state.Source)
	assert.Equal(t, "fr-FR", state.Target)
	assert.Empty(t, state.Transcript)
	assert.Empty(t, state.Translation)
	assert.Equal(t, "en-US", h.platform.Last().Settings().Language, "recognizer rebuilt for the new source")
}

func TestSpeakWithoutTranslationNeverSynthesizes(t *testing.T) {
	h := newHarness(t)
	h.recognition(t)
	require.NoError(t, h.orch.SpeakTranslation())

	assert.Empty(t, h.engine.Spoken())
	assert.Equal(t, []string{"No translation to speak"}, h.notices.Messages())
	assert.False(t, h.orch.State().Speaking)
}

func TestStartListeningClearsTexts(t *testing.T) {
	h := newHarness(t)
	h.translateOnce(t, "Bonjour")
	h.eventually(t, func(s State) bool { return s.Translation == "Hello" })

	require.NoError(t, h.orch.StartListening())
	state := h.orch.State()
	assert.True(t, state.Listening)
	assert.Empty(t, state.Transcript)
	assert.Empty(t, state.Translation)
	assert.Equal(t, 1, h.platform.Last().Starts())
	assert.Contains(t, h.notices.Messages(), "Listening... Speak in French (France)")
}

func TestStartListeningTwiceIsNoop(t *testing.T) {
	h := newHarness(t)
	h.recognition(t)
	require.NoError(t, h.orch.StartListening())
	require.NoError(t, h.orch.StartListening())
	assert.Equal(t, 1, h.platform.Last().Starts())
}

func TestTranscriptConcatenatesFinalAndInterim(t *testing.T) {
	h := newHarness(t)
	rec := h.recognition(t)
	require.NoError(t, h.orch.StartListening())

	rec.Emit(stt.ResultEvent{ResultIndex: 0, Results: []stt.Result{
		{Final: true, Alternatives: []stt.Alternative{{Transcript: "Bonjour"}}},
		{Final: false, Alternatives: []stt.Alternative{{Transcript: "le mon"}}},
	}})
	h.eventually(t, func(s State) bool { return s.Transcript == "Bonjourle mon" })
}

func TestEndToEndSpanishToEnglish(t *testing.T) {
	h := newHarness(t)
	h.recognition(t)
	require.NoError(t, h.orch.SetSourceLanguage("es-ES"))
	require.NoError(t, h.orch.SetTargetLanguage("en-US"))
	require.NoError(t, h.orch.StartListening())

	rec := h.platform.Last()
	require.Equal(t, "es-ES", rec.Settings().Language)
	rec.Emit(stt.ResultEvent{Results: []stt.Result{{Alternatives: []stt.Alternative{{Transcript: "Ho"}}}}})
	rec.Emit(final("Hola"))
	rec.End()

	state := h.eventually(t, func(s State) bool {
		return s.Translation == "Hello" && !s.Listening && !s.Translating
	})
	assert.Equal(t, "Hola", state.Transcript)
	assert.Equal(t, translation.Request{Text: "Hola", Source: "es", Target: "en"}, h.service.Requests()[0])

	require.NoError(t, h.orch.SpeakTranslation())
	h.eventually(t, func(s State) bool { return !s.Speaking && len(h.engine.Spoken()) == 1 })
	u := h.engine.Spoken()[0]
	assert.Equal(t, "Hello", u.Text)
	assert.Equal(t, "en-US", u.Lang)
}

func TestRecognitionErrorReturnsToIdle(t *testing.T) {
	h := newHarness(t)
	rec := h.recognition(t)
	require.NoError(t, h.orch.StartListening())
	rec.Fail("no-speech")

	h.eventually(t, func(s State) bool { return !s.Listening })
	require.Eventually(t, func() bool {
		return slices.Contains(h.notices.Messages(), "Speech recognition error: no-speech")
	}, waitFor, tick)
}

func TestStopListening(t *testing.T) {
	h := newHarness(t)
	rec := h.recognition(t)
	require.NoError(t, h.orch.ToggleListening())
	assert.True(t, h.orch.State().Listening)
	require.NoError(t, h.orch.ToggleListening())
	assert.False(t, h.orch.State().Listening)
	assert.Equal(t, 1, rec.Stops())
}

func TestRestartAfterStopKeepsListening(t *testing.T) {
	h := newHarness(t)
	rec := h.recognition(t)

	require.NoError(t, h.orch.ToggleListening())
	require.NoError(t, h.orch.ToggleListening())
	require.NoError(t, h.orch.ToggleListening())

	// the stopped session's end event must not close the new one
	assert.Never(t, func() bool { return !h.orch.State().Listening }, 100*time.Millisecond, tick)
	assert.Equal(t, rec.Running(), h.orch.State().Listening)

	require.NoError(t, h.orch.ToggleListening())
	assert.False(t, h.orch.State().Listening)
	require.NoError(t, h.orch.ToggleListening())
	assert.True(t, h.orch.State().Listening)
	assert.True(t, rec.Running())
	assert.Equal(t, 3, rec.Starts())
	for _, msg := range h.notices.Messages() {
		assert.NotContains(t, msg, "Speech recognition error")
	}
}

func TestSourceChangeRebuildsRecognizer(t *testing.T) {
	h := newHarness(t)
	first := h.recognition(t)
	require.NoError(t, h.orch.StartListening())

	require.NoError(t, h.orch.SetSourceLanguage("de-DE"))
	state := h.orch.State()
	assert.Equal(t, "de-DE", state.Source)
	assert.False(t, state.Listening)
	assert.Len(t, h.platform.Recognitions(), 2)
	assert.Equal(t, 1, first.Stops())

	first.Emit(final("stale"))
	require.NoError(t, h.orch.SetTargetLanguage("ja-JP"))
	assert.Empty(t, h.service.Requests())

	assert.ErrorIs(t, h.orch.SetSourceLanguage("xx-XX"), ErrUnknownLanguage)
	assert.ErrorIs(t, h.orch.SetTargetLanguage(""), ErrUnknownLanguage)
}

func TestSpeakFailureNotifies(t *testing.T) {
	h := newHarness(t)
	h.translateOnce(t, "Bonjour")
	h.eventually(t, func(s State) bool { return s.Translation == "Hello" })

	h.engine.Fail(errors.New("device busy"))
	require.NoError(t, h.orch.SpeakTranslation())
	h.eventually(t, func(s State) bool { return !s.Speaking })
	require.Eventually(t, func() bool {
		return slices.Contains(h.notices.Messages(), "Speech synthesis failed")
	}, waitFor, tick)
}

func TestSpeakingFlagWhileSpeaking(t *testing.T) {
	slow := tts.NewMockEngine(nil, time.Hour)
	h := newHarness(t, func(o *Options) { o.Speaker = tts.NewOutput(slow, bustest.Logger()) })
	h.translateOnce(t, "Bonjour")
	h.eventually(t, func(s State) bool { return s.Translation == "Hello" })

	require.NoError(t, h.orch.SpeakTranslation())
	assert.True(t, h.orch.State().Speaking)

	require.NoError(t, h.orch.SpeakTranslation())
	require.Eventually(t, func() bool { return len(slow.Spoken()) == 2 }, waitFor, tick)
	assert.True(t, h.orch.State().Speaking, "interrupted utterance does not clear the newer one")
	assert.NotContains(t, h.notices.Messages(), "Speech synthesis failed")
}

func TestUnsupportedIsTerminal(t *testing.T) {
	h := newHarness(t, func(o *Options) { o.Recognizer = nil })
	state := h.eventually(t, func(s State) bool { return !s.Supported })
	assert.False(t, state.Listening)

	require.NoError(t, h.orch.StartListening())
	require.NoError(t, h.orch.SwapLanguages())
	require.NoError(t, h.orch.SpeakTranslation())
	state = h.orch.State()
	assert.False(t, state.Listening)
	assert.Equal(t, "fr-FR", state.Source)
	require.Len(t, h.notices.Notices(), 1)
	assert.Equal(t, notify.LevelError, h.notices.Notices()[0].Level)
	assert.Contains(t, h.notices.Messages()[0], "Speech recognition not supported")
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	h := newHarness(t)
	h.recognition(t)
	states, cancel := h.orch.Subscribe()
	defer cancel()

	require.NoError(t, h.orch.SetTargetLanguage("ko-KR"))
	require.Eventually(t, func() bool {
		select {
		case s := <-states:
			return s.Target == "ko-KR"
		default:
			return false
		}
	}, waitFor, tick)
}

func TestActionsAfterStopReturnErrStopped(t *testing.T) {
	orch := New(Options{Recognizer: stt.NewMockPlatform(nil, 0)})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- orch.Run(ctx) }()
	require.NoError(t, orch.SetTargetLanguage("it-IT"))

	states, _ := orch.Subscribe()
	cancel()
	require.NoError(t, <-done)

	assert.ErrorIs(t, orch.StartListening(), ErrStopped)
	assert.Equal(t, "it-IT", orch.State().Target)
	for range states {
	}
}

func TestNewFallsBackToDefaultLanguages(t *testing.T) {
	orch := New(Options{Source: "xx", Target: ""})
	assert.Equal(t, "fr-FR", orch.State().Source)
	assert.Equal(t, "en-US", orch.State().Target)
	assert.True(t, orch.State().Supported)
}
