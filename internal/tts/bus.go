package tts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/protocol"
	"github.com/nats-io/nats.go"
)

const voicesTimeout = time.Second

// BusEngine speaks through a remote synthesizer over NATS. Speak publishes
// on tts.speak and waits for tts.status.<id>.
type BusEngine struct {
	client *bus.Client
	logger *slog.Logger

	mu      sync.Mutex
	current string
	cancel  context.CancelFunc
	voices  []Voice
}

func NewBusEngine(client *bus.Client, logger *slog.Logger) *BusEngine {
	return &BusEngine{client: client, logger: logger.With(slog.String("component", "tts-bus"))}
}

func (b *BusEngine) Speak(ctx context.Context, u Utterance) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	statuses := make(chan *nats.Msg, 1)
	sub, err := b.client.Conn().ChanSubscribe(protocol.SubjectSpeechStatus(u.ID), statuses)
	if err != nil {
		return &SynthesisError{Detail: fmt.Sprintf("subscribe speech status: %v", err)}
	}
	defer func() { _ = sub.Unsubscribe() }()

	b.mu.Lock()
	b.current = u.ID
	b.cancel = cancel
	b.mu.Unlock()
	defer b.clear(u.ID)

	req := protocol.SpeechRequest{
		ID:     u.ID,
		Text:   u.Text,
		Lang:   u.Lang,
		Rate:   u.Rate,
		Pitch:  u.Pitch,
		Volume: u.Volume,
	}
	if u.Voice != nil {
		req.Voice = u.Voice.Name
	}
	if err := b.client.PublishJSON(protocol.SubjectSpeak, req); err != nil {
		return &SynthesisError{Detail: err.Error()}
	}

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.Canceled) {
			return ErrInterrupted
		}
		return ctx.Err()
	case msg := <-statuses:
		var status protocol.SpeechStatus
		if err := json.Unmarshal(msg.Data, &status); err != nil {
			return &SynthesisError{Detail: fmt.Sprintf("decode speech status: %v", err)}
		}
		if status.Error != "" {
			return &SynthesisError{Detail: status.Error}
		}
		return nil
	}
}

func (b *BusEngine) clear(id string) {
	b.mu.Lock()
	if b.current == id {
		b.current = ""
		b.cancel = nil
	}
	b.mu.Unlock()
}

// Cancel tells the remote synthesizer to stop and releases the waiting Speak.
func (b *BusEngine) Cancel() {
	b.mu.Lock()
	id, cancel := b.current, b.cancel
	b.current, b.cancel = "", nil
	b.mu.Unlock()
	if id == "" {
		return
	}
	if err := b.client.PublishJSON(protocol.SubjectSpeakCancel, protocol.SpeechCancel{ID: id, Timestamp: time.Now().UTC()}); err != nil {
		b.logger.Warn("failed to publish speech cancel", slog.String("error", err.Error()))
	}
	cancel()
}

// Voices asks the remote synthesizer for its voices once they are available
// and caches the first non-empty answer.
func (b *BusEngine) Voices() []Voice {
	b.mu.Lock()
	cached := b.voices
	b.mu.Unlock()
	if len(cached) > 0 {
		return append([]Voice(nil), cached...)
	}

	ctx, cancel := context.WithTimeout(context.Background(), voicesTimeout)
	defer cancel()
	var list protocol.VoiceList
	if err := b.client.RequestJSON(ctx, protocol.SubjectVoices, struct{}{}, &list); err != nil {
		b.logger.Debug("voice listing unavailable", slog.String("error", err.Error()))
		return nil
	}
	voices := make([]Voice, 0, len(list.Voices))
	for _, v := range list.Voices {
		voices = append(voices, Voice{Name: v.Name, Lang: v.Lang, Default: v.Default})
	}
	if len(voices) > 0 {
		b.mu.Lock()
		b.voices = voices
		b.mu.Unlock()
	}
	return append([]Voice(nil), voices...)
}
