package stt

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/protocol"
	"github.com/nats-io/nats.go"
)

// BusPlatform reaches a remote recognizer over NATS. Each session gets a
// fresh id; the recognizer reports on stt.session.<id>.{result,error,end}.
type BusPlatform struct {
	client *bus.Client
	logger *slog.Logger
}

func NewBusPlatform(client *bus.Client, logger *slog.Logger) *BusPlatform {
	return &BusPlatform{client: client, logger: logger.With(slog.String("component", "stt-bus"))}
}

func (p *BusPlatform) NewRecognition(settings Settings) (Recognition, error) {
	if p.client == nil || !p.client.Healthy() {
		return nil, ErrUnsupported
	}
	return &busRecognition{platform: p, settings: settings}, nil
}

type busRecognition struct {
	callbacks

	platform *BusPlatform
	settings Settings

	state     sync.Mutex
	sessionID string
	sub       *nats.Subscription
}

func (r *busRecognition) Start() error {
	r.state.Lock()
	defer r.state.Unlock()
	if r.sub != nil {
		return ErrAlreadyStarted
	}

	sessionID := uuid.NewString()
	sub, err := r.platform.client.Conn().Subscribe(protocol.SubjectRecognitionPrefix+"."+sessionID+".>", r.handle)
	if err != nil {
		return fmt.Errorf("subscribe recognition session: %w", err)
	}
	control := protocol.RecognitionControl{
		SessionID:       sessionID,
		Action:          protocol.ActionStart,
		Language:        r.settings.Language,
		Continuous:      r.settings.Continuous,
		InterimResults:  r.settings.InterimResults,
		MaxAlternatives: r.settings.MaxAlternatives,
		Timestamp:       time.Now().UTC(),
	}
	if err := r.platform.client.PublishJSON(protocol.SubjectRecognitionControl, control); err != nil {
		_ = sub.Unsubscribe()
		return fmt.Errorf("publish recognition start: %w", err)
	}
	r.sessionID = sessionID
	r.sub = sub
	r.platform.logger.Debug("recognition session started",
		slog.String("session_id", sessionID),
		slog.String("language", r.settings.Language))
	return nil
}

// Stop asks the recognizer to finish; the session ends when it reports end.
func (r *busRecognition) Stop() {
	r.state.Lock()
	sessionID := r.sessionID
	active := r.sub != nil
	r.state.Unlock()
	if !active {
		return
	}
	control := protocol.RecognitionControl{
		SessionID: sessionID,
		Action:    protocol.ActionStop,
		Timestamp: time.Now().UTC(),
	}
	if err := r.platform.client.PublishJSON(protocol.SubjectRecognitionControl, control); err != nil {
		r.platform.logger.Warn("failed to publish recognition stop", slog.String("error", err.Error()))
		r.finish(sessionID)
	}
}

func (r *busRecognition) handle(msg *nats.Msg) {
	parts := strings.Split(msg.Subject, ".")
	if len(parts) != 4 {
		return
	}
	sessionID, kind := parts[2], parts[3]

	switch kind {
	case "result":
		var evt protocol.RecognitionEvent
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			r.platform.logger.Warn("failed to decode recognition result", slog.String("error", err.Error()))
			return
		}
		r.emitResult(fromWire(evt.ResultIndex, evt.Results))
	case "error":
		var evt protocol.RecognitionError
		if err := json.Unmarshal(msg.Data, &evt); err != nil {
			r.platform.logger.Warn("failed to decode recognition error", slog.String("error", err.Error()))
			return
		}
		r.emitError(evt.Code)
	case "end":
		r.finish(sessionID)
	}
}

// finish tears down the session subscription and delivers end once.
func (r *busRecognition) finish(sessionID string) {
	r.state.Lock()
	if r.sub == nil || r.sessionID != sessionID {
		r.state.Unlock()
		return
	}
	sub := r.sub
	r.sub = nil
	r.state.Unlock()

	_ = sub.Unsubscribe()
	r.emitEnd()
}

func fromWire(index int, results []protocol.RecognitionResult) ResultEvent {
	evt := ResultEvent{ResultIndex: index, Results: make([]Result, 0, len(results))}
	for _, result := range results {
		converted := Result{Final: result.Final, Alternatives: make([]Alternative, 0, len(result.Alternatives))}
		for _, alt := range result.Alternatives {
			converted.Alternatives = append(converted.Alternatives, Alternative{Transcript: alt.Transcript, Confidence: alt.Confidence})
		}
		evt.Results = append(evt.Results, converted)
	}
	return evt
}
