package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/protocol"
	"github.com/nats-io/nats.go"
)

// Service answers translate.request messages on the bus with the same
// engine and semantics as the HTTP handler.
type Service struct {
	bus     *bus.Client
	handler *Handler
	sub     *nats.Subscription
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	logger  *slog.Logger
}

func NewService(parent context.Context, busClient *bus.Client, handler *Handler, logger *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		bus:     busClient,
		handler: handler,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.With(slog.String("component", "translator-service")),
	}
}

func (s *Service) Start() error {
	sub, err := s.bus.Conn().QueueSubscribe(protocol.SubjectTranslateRequest, "translator", s.handleRequest)
	if err != nil {
		return fmt.Errorf("subscribe translate requests: %w", err)
	}
	s.sub = sub
	return nil
}

func (s *Service) Close() {
	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool {
	return s.sub != nil && s.sub.IsValid()
}

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TranslateRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode translate request", slogError(err))
		s.respond(msg, protocol.TranslateResponse{Error: "invalid JSON body"})
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		translated, err := s.handler.translate(s.ctx, "bus", Request{Text: req.Text, Source: req.Source, Target: req.Target})
		if err != nil {
			s.respond(msg, protocol.TranslateResponse{Error: err.Error()})
			return
		}
		s.respond(msg, protocol.TranslateResponse{TranslatedText: translated})
	}()
}

func (s *Service) respond(msg *nats.Msg, resp protocol.TranslateResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		s.logger.Warn("failed to marshal translate response", slogError(err))
		return
	}
	if err := msg.Respond(data); err != nil {
		s.logger.Warn("failed to respond to translate request", slogError(err))
	}
}
