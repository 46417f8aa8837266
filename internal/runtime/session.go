package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loqalabs/talkez/internal/notify"
	"github.com/loqalabs/talkez/internal/orchestrator"
	"github.com/loqalabs/talkez/internal/stt"
	"github.com/loqalabs/talkez/internal/translation"
	"github.com/loqalabs/talkez/internal/tts"
	"github.com/loqalabs/talkez/internal/ui"
)

const toastBuffer = 16

// Session is one widget instance: the orchestrator plus the toast feed the
// shell renders.
type Session struct {
	Orchestrator *orchestrator.Orchestrator
	Toasts       *ui.Toasts
	output       *tts.Output
}

// NewSession wires recognition, translation and synthesis from the config.
// When the runtime hosts /translate itself, the widget talks to that host.
func (r *Runtime) NewSession() (*Session, error) {
	platform, err := stt.NewPlatform(r.cfg.STT, r.bus, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recognizer: %w", err)
	}
	engine, err := tts.NewEngine(r.cfg.TTS, r.bus, r.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}
	output := tts.NewOutput(engine, r.logger)

	baseURL := r.cfg.Translation.BaseURL
	if addr := r.Addr(); addr != "" {
		baseURL = "http://" + addr
	}
	client := translation.NewClient(baseURL,
		translation.WithTimeout(time.Duration(r.cfg.Translation.TimeoutMS)*time.Millisecond),
		translation.WithLogger(r.logger),
	)

	toasts := ui.NewToasts(toastBuffer)
	notifiers := []notify.Notifier{toasts, notify.NewLogNotifier(r.logger)}
	if r.bus != nil {
		notifiers = append(notifiers, notify.NewBusNotifier(r.bus, r.logger))
	}

	opts := orchestrator.Options{
		Recognizer: platform,
		Translator: client,
		Notifier:   notify.Multi(notifiers...),
		Logger:     r.logger,
		Source:     r.cfg.Languages.Source,
		Target:     r.cfg.Languages.Target,
	}
	if output.Supported() {
		opts.Speaker = output
	}

	r.logger.Info("widget session created",
		slog.String("stt", r.cfg.STT.Mode),
		slog.String("tts", r.cfg.TTS.Mode),
		slog.String("translation", baseURL),
	)
	return &Session{
		Orchestrator: orchestrator.New(opts),
		Toasts:       toasts,
		output:       output,
	}, nil
}

// RunWidget starts the runtime, runs a session behind the terminal shell and
// tears everything down when the user quits or ctx is cancelled.
func (r *Runtime) RunWidget(ctx context.Context, serveHTTP bool, opts ...tea.ProgramOption) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if err := r.Start(ctx, serveHTTP); err != nil {
		r.Close()
		return err
	}
	defer r.Close()

	session, err := r.NewSession()
	if err != nil {
		return err
	}

	orchDone := make(chan error, 1)
	go func() { orchDone <- session.Orchestrator.Run(ctx) }()

	states, unsubscribe := session.Orchestrator.Subscribe()
	defer unsubscribe()

	model := ui.New(session.Orchestrator, session.Orchestrator.State(), states, session.Toasts.C())
	uiErr := ui.Run(ctx, model, opts...)

	session.output.Cancel()
	cancel()
	if err := <-orchDone; err != nil && uiErr == nil {
		return err
	}
	return uiErr
}
