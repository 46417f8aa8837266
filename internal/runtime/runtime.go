// Package runtime assembles the process: telemetry, the optional message
// bus, the translation host and the widget session.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/config"
	"github.com/loqalabs/talkez/internal/natsserver"
	"github.com/loqalabs/talkez/internal/translator"
)

type Runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	traceOut io.Writer

	httpServer     *http.Server
	listener       net.Listener
	telemetryClose func(context.Context) error
	natsServer     *natsserver.EmbeddedServer
	bus            *bus.Client
	service        *translator.Service
	ready          atomic.Bool
	wg             sync.WaitGroup
	closeOnce      sync.Once
}

type Option func(*Runtime)

// WithTraceOutput sets where spans are written when telemetry.trace_stdout
// is enabled. It defaults to io.Discard.
func WithTraceOutput(w io.Writer) Option {
	return func(r *Runtime) {
		r.traceOut = w
	}
}

func New(cfg config.Config, logger *slog.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:      cfg,
		logger:   logger,
		traceOut: io.Discard,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Serve runs the translation host until ctx is cancelled.
func (r *Runtime) Serve(ctx context.Context) error {
	if err := r.Start(ctx, true); err != nil {
		r.Close()
		return err
	}
	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.Close()
	return nil
}

// Start brings up telemetry and the bus and, when serveHTTP is set, the HTTP
// host with /translate. It returns once everything is listening.
func (r *Runtime) Start(ctx context.Context, serveHTTP bool) error {
	shutdownTelemetry, metricsHandler, err := setupTelemetry(r.cfg, r.traceOut, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.telemetryClose = shutdownTelemetry

	if err := r.startBus(ctx); err != nil {
		return err
	}

	if !serveHTTP && !r.cfg.Translator.ServeBus {
		r.ready.Store(true)
		return nil
	}

	engine, err := translator.NewEngine(r.cfg.Translator, nil)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}
	handler := translator.NewHandler(engine, r.cfg.Translator.AllowedOrigins, r.logger)

	if r.cfg.Translator.ServeBus && r.bus != nil {
		r.service = translator.NewService(ctx, r.bus, handler, r.logger)
		if err := r.service.Start(); err != nil {
			return err
		}
		r.logger.Info("translator answering bus requests")
	}

	if serveHTTP {
		if err := r.startHTTP(handler, metricsHandler); err != nil {
			return err
		}
	}

	r.ready.Store(true)
	return nil
}

func (r *Runtime) startBus(ctx context.Context) error {
	if !r.cfg.Bus.Enabled {
		return nil
	}
	busCfg := r.cfg.Bus
	srv, err := natsserver.Start(busCfg, r.logger)
	if err != nil {
		return err
	}
	r.natsServer = srv
	if srv != nil {
		busCfg.Servers = []string{srv.ClientURL()}
	}

	client, err := bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return err
	}
	r.bus = client
	return nil
}

func (r *Runtime) startHTTP(handler http.Handler, metricsHandler http.Handler) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.Handle("/translate", otelhttp.NewHandler(handler, "translate"))
	if metricsHandler != nil {
		mux.Handle("/metrics", metricsHandler)
	}

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	r.listener = ln
	r.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.logger.Info("translation host started", slog.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the address the HTTP host listens on, or "" when it is not running.
func (r *Runtime) Addr() string {
	if r.listener == nil {
		return ""
	}
	return r.listener.Addr().String()
}

// Bus returns the bus client, or nil when the bus is disabled.
func (r *Runtime) Bus() *bus.Client {
	return r.bus
}

// Close stops everything Start brought up, in reverse order.
func (r *Runtime) Close() {
	r.closeOnce.Do(func() {
		r.ready.Store(false)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if r.httpServer != nil {
			if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
				r.logger.Error("http shutdown error", slog.String("error", err.Error()))
			}
		}
		r.wg.Wait()

		if r.service != nil {
			r.service.Close()
		}
		if r.bus != nil {
			r.bus.Close()
		}
		r.natsServer.Shutdown()

		if r.telemetryClose != nil {
			if err := r.telemetryClose(shutdownCtx); err != nil {
				r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
			}
		}
	})
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}
