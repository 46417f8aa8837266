package stt

import (
	"encoding/json"
	"io"
	"log/slog"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/loqalabs/talkez/internal/bus/bustest"
	"github.com/loqalabs/talkez/internal/config"
	"github.com/loqalabs/talkez/internal/protocol"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// recorder collects handler output from an Input.
type recorder struct {
	mu          sync.Mutex
	transcripts []string
	utterances  []string
	errors      []string
	ends        int
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		Transcript: func(text string) {
			r.mu.Lock()
			r.transcripts = append(r.transcripts, text)
			r.mu.Unlock()
		},
		Utterance: func(text string) {
			r.mu.Lock()
			r.utterances = append(r.utterances, text)
			r.mu.Unlock()
		},
		Error: func(code string) {
			r.mu.Lock()
			r.errors = append(r.errors, code)
			r.mu.Unlock()
		},
		End: func() {
			r.mu.Lock()
			r.ends++
			r.mu.Unlock()
		},
	}
}

func (r *recorder) snapshot() (transcripts, utterances, errs []string, ends int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.transcripts...),
		append([]string(nil), r.utterances...),
		append([]string(nil), r.errors...),
		r.ends
}

func alt(text string) []Alternative { return []Alternative{{Transcript: text}} }

func TestPartitionConcatenatesWithoutSeparator(t *testing.T) {
	final, interim := Partition(ResultEvent{
		ResultIndex: 0,
		Results: []Result{
			{Final: true, Alternatives: alt("Bonjour")},
			{Final: false, Alternatives: alt("le mon")},
		},
	})
	assert.Equal(t, "Bonjour", final)
	assert.Equal(t, "le mon", interim)
	assert.Equal(t, "Bonjourle mon", final+interim)
}

func TestPartitionStartsAtResultIndex(t *testing.T) {
	final, interim := Partition(ResultEvent{
		ResultIndex: 1,
		Results: []Result{
			{Final: true, Alternatives: alt("already handled")},
			{Final: true, Alternatives: []Alternative{{Transcript: "Hola"}, {Transcript: "Ola"}}},
			{Final: false},
		},
	})
	assert.Equal(t, "Hola", final)
	assert.Empty(t, interim)
}

func TestNewInputUnsupported(t *testing.T) {
	_, err := NewInput(nil, "fr-FR", Handlers{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestInputUsesOneUtteranceSettings(t *testing.T) {
	platform := NewMockPlatform(nil, 0)
	in, err := NewInput(platform, "es-ES", Handlers{})
	require.NoError(t, err)
	assert.Equal(t, "es-ES", in.Language())
	assert.Equal(t, Settings{Language: "es-ES", InterimResults: true, MaxAlternatives: 1}, platform.Last().Settings())
}

func TestInputForwardsTranscriptUtteranceErrorAndEnd(t *testing.T) {
	platform := NewMockPlatform(nil, 0)
	rec := &recorder{}
	in, err := NewInput(platform, "fr-FR", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())

	recognition := platform.Last()
	recognition.Emit(ResultEvent{Results: []Result{{Alternatives: alt("Bonj")}}})
	recognition.Emit(ResultEvent{Results: []Result{
		{Final: true, Alternatives: alt("Bonjour")},
		{Alternatives: alt("le mon")},
	}})
	recognition.Fail("no-speech")
	recognition.End()

	transcripts, utterances, errs, ends := rec.snapshot()
	assert.Equal(t, []string{"Bonj", "Bonjourle mon"}, transcripts)
	assert.Equal(t, []string{"Bonjour"}, utterances)
	assert.Equal(t, []string{"no-speech"}, errs)
	assert.Equal(t, 1, ends)
}

func TestInputReconfigureDropsStaleEvents(t *testing.T) {
	platform := NewMockPlatform(nil, 0)
	rec := &recorder{}
	in, err := NewInput(platform, "fr-FR", rec.handlers())
	require.NoError(t, err)
	old := platform.Last()
	require.NoError(t, in.Start())

	require.NoError(t, in.Reconfigure("de-DE"))
	assert.Equal(t, "de-DE", in.Language())
	assert.Equal(t, 1, old.Stops())
	require.Len(t, platform.Recognitions(), 2)

	old.Emit(ResultEvent{Results: []Result{{Final: true, Alternatives: alt("stale")}}})
	old.Fail("aborted")

	platform.Last().Emit(ResultEvent{Results: []Result{{Final: true, Alternatives: alt("Guten Tag")}}})

	require.Eventually(t, func() bool {
		_, utterances, _, _ := rec.snapshot()
		return len(utterances) == 1
	}, time.Second, 10*time.Millisecond)
	_, utterances, errs, ends := rec.snapshot()
	assert.Equal(t, []string{"Guten Tag"}, utterances)
	assert.Empty(t, errs)
	assert.Zero(t, ends)
}

func TestInputCloseDetaches(t *testing.T) {
	platform := NewMockPlatform(nil, 0)
	rec := &recorder{}
	in, err := NewInput(platform, "fr-FR", rec.handlers())
	require.NoError(t, err)
	in.Close()

	platform.Last().Emit(ResultEvent{Results: []Result{{Final: true, Alternatives: alt("late")}}})
	_, utterances, _, _ := rec.snapshot()
	assert.Empty(t, utterances)
	assert.ErrorIs(t, in.Start(), ErrUnsupported)
}

func TestMockRecognitionScriptedSession(t *testing.T) {
	platform := NewMockPlatform(map[string]string{"en-US": "hello there friend"}, 5*time.Millisecond)
	rec := &recorder{}
	in, err := NewInput(platform, "en-US", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())
	assert.ErrorIs(t, platform.Last().Start(), ErrAlreadyStarted)

	require.Eventually(t, func() bool {
		_, _, _, ends := rec.snapshot()
		return ends == 1
	}, time.Second, 5*time.Millisecond)

	transcripts, utterances, _, _ := rec.snapshot()
	assert.Equal(t, []string{"hello", "hello there friend"}, transcripts)
	assert.Equal(t, []string{"hello there friend"}, utterances)
	assert.False(t, platform.Last().Running())
}

func TestMockRecognitionStopEndsOnce(t *testing.T) {
	platform := NewMockPlatform(map[string]string{"en-US": "hello there"}, time.Hour)
	rec := &recorder{}
	in, err := NewInput(platform, "en-US", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())

	in.Stop()
	in.Stop()
	require.Eventually(t, func() bool {
		_, _, _, ends := rec.snapshot()
		return ends == 1
	}, time.Second, 5*time.Millisecond)
	_, utterances, _, _ := rec.snapshot()
	assert.Empty(t, utterances)
}

func TestNewPlatformModes(t *testing.T) {
	p, err := NewPlatform(config.STTConfig{Mode: "mock"}, nil, newLogger())
	require.NoError(t, err)
	assert.IsType(t, &MockPlatform{}, p)

	p, err = NewPlatform(config.STTConfig{Mode: "none"}, nil, newLogger())
	require.NoError(t, err)
	assert.Nil(t, p)

	_, err = NewPlatform(config.STTConfig{Mode: "bus"}, nil, newLogger())
	assert.Error(t, err)
	_, err = NewPlatform(config.STTConfig{Mode: "exec"}, nil, newLogger())
	assert.Error(t, err)
	_, err = NewPlatform(config.STTConfig{Mode: "whisper"}, nil, newLogger())
	assert.Error(t, err)
}

func TestExecRecognition(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	script := `sh -c 'echo "{\"type\":\"result\",\"result_index\":0,\"results\":[{\"final\":false,\"alternatives\":[{\"transcript\":\"Hol\"}]}]}"; ` +
		`echo "not json"; ` +
		`echo "{\"type\":\"result\",\"result_index\":0,\"results\":[{\"final\":true,\"alternatives\":[{\"transcript\":\"Hola\"}]}]}"' --`
	platform, err := NewExecPlatform(script, newLogger())
	require.NoError(t, err)

	rec := &recorder{}
	in, err := NewInput(platform, "es-ES", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())

	require.Eventually(t, func() bool {
		_, _, _, ends := rec.snapshot()
		return ends == 1
	}, 2*time.Second, 10*time.Millisecond)
	transcripts, utterances, errs, _ := rec.snapshot()
	assert.Equal(t, []string{"Hol", "Hola"}, transcripts)
	assert.Equal(t, []string{"Hola"}, utterances)
	assert.Empty(t, errs)
}

func TestExecRecognitionFailureReportsError(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	platform, err := NewExecPlatform(`sh -c 'exit 2' --`, newLogger())
	require.NoError(t, err)

	rec := &recorder{}
	in, err := NewInput(platform, "es-ES", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())

	require.Eventually(t, func() bool {
		_, _, _, ends := rec.snapshot()
		return ends == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, _, errs, _ := rec.snapshot()
	assert.Equal(t, []string{"audio-capture"}, errs)
}

func TestExecRecognitionStop(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	platform, err := NewExecPlatform(`sh -c 'exec sleep 30' --`, newLogger())
	require.NoError(t, err)

	rec := &recorder{}
	in, err := NewInput(platform, "es-ES", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())
	in.Stop()

	require.Eventually(t, func() bool {
		_, _, _, ends := rec.snapshot()
		return ends == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, _, errs, _ := rec.snapshot()
	assert.Empty(t, errs)
}

func TestBusRecognition(t *testing.T) {
	client := bustest.Connect(t)
	controls := make(chan protocol.RecognitionControl, 4)
	sub, err := client.Conn().Subscribe(protocol.SubjectRecognitionControl, func(msg *nats.Msg) {
		var control protocol.RecognitionControl
		if json.Unmarshal(msg.Data, &control) == nil {
			controls <- control
		}
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = sub.Unsubscribe() })
	require.NoError(t, client.Conn().Flush())

	rec := &recorder{}
	in, err := NewInput(NewBusPlatform(client, newLogger()), "ja-JP", rec.handlers())
	require.NoError(t, err)
	require.NoError(t, in.Start())

	var start protocol.RecognitionControl
	select {
	case start = <-controls:
	case <-time.After(2 * time.Second):
		t.Fatal("no start control received")
	}
	assert.Equal(t, protocol.ActionStart, start.Action)
	assert.Equal(t, "ja-JP", start.Language)
	assert.True(t, start.InterimResults)
	require.NotEmpty(t, start.SessionID)

	require.NoError(t, client.PublishJSON(protocol.SubjectRecognitionResult(start.SessionID), protocol.RecognitionEvent{
		SessionID: start.SessionID,
		Results: []protocol.RecognitionResult{
			{Final: true, Alternatives: []protocol.RecognitionAlternative{{Transcript: "こんにちは"}}},
		},
	}))
	require.NoError(t, client.PublishJSON(protocol.SubjectRecognitionError(start.SessionID), protocol.RecognitionError{SessionID: start.SessionID, Code: "network"}))

	in.Stop()
	var stop protocol.RecognitionControl
	select {
	case stop = <-controls:
	case <-time.After(2 * time.Second):
		t.Fatal("no stop control received")
	}
	assert.Equal(t, protocol.ActionStop, stop.Action)
	assert.Equal(t, start.SessionID, stop.SessionID)

	require.NoError(t, client.PublishJSON(protocol.SubjectRecognitionEnd(start.SessionID), protocol.RecognitionEnd{SessionID: start.SessionID}))

	require.Eventually(t, func() bool {
		_, _, _, ends := rec.snapshot()
		return ends == 1
	}, 2*time.Second, 10*time.Millisecond)
	_, utterances, errs, _ := rec.snapshot()
	assert.Equal(t, []string{"こんにちは"}, utterances)
	assert.Equal(t, []string{"network"}, errs)
}

func TestBusPlatformUnhealthyIsUnsupported(t *testing.T) {
	_, err := NewInput(NewBusPlatform(nil, newLogger()), "fr-FR", Handlers{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

// heldRecognition keeps its callbacks so a test decides when events arrive.
type heldRecognition struct {
	callbacks
	starts int
}

func (h *heldRecognition) Start() error { h.starts++; return nil }
func (h *heldRecognition) Stop()        {}

type heldPlatform struct{ rec *heldRecognition }

func (p heldPlatform) NewRecognition(Settings) (Recognition, error) { return p.rec, nil }

func TestInputDropsEventsOfStoppedSession(t *testing.T) {
	held := &heldRecognition{}
	rec := &recorder{}
	in, err := NewInput(heldPlatform{rec: held}, "fr-FR", rec.handlers())
	require.NoError(t, err)

	require.NoError(t, in.Start())
	in.Stop()
	require.NoError(t, in.Start())

	// the first session reports late, after the second one began
	held.emitError("aborted")
	held.emitEnd()
	_, _, errs, ends := rec.snapshot()
	assert.Empty(t, errs)
	assert.Zero(t, ends)

	held.emitResult(ResultEvent{Results: []Result{{Final: true, Alternatives: alt("Salut")}}})
	held.emitEnd()
	_, utterances, _, ends := rec.snapshot()
	assert.Equal(t, []string{"Salut"}, utterances)
	assert.Equal(t, 1, ends)
	assert.Equal(t, 2, held.starts)
}

func TestInputPassesEndWithoutSession(t *testing.T) {
	held := &heldRecognition{}
	rec := &recorder{}
	_, err := NewInput(heldPlatform{rec: held}, "fr-FR", rec.handlers())
	require.NoError(t, err)

	held.emitEnd()
	_, _, _, ends := rec.snapshot()
	assert.Equal(t, 1, ends)
}
