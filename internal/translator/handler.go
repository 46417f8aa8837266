package translator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type translateRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type translateResponse struct {
	TranslatedText string `json:"translatedText,omitempty"`
	Error          string `json:"error,omitempty"`
}

// Handler serves POST /translate.
type Handler struct {
	engine  Engine
	origins []string
	logger  *slog.Logger
	timeout time.Duration

	requests metric.Int64Counter
	latency  metric.Float64Histogram
}

// NewHandler wraps engine. origins lists the browser origins allowed by CORS;
// "*" allows any.
func NewHandler(engine Engine, origins []string, logger *slog.Logger) *Handler {
	h := &Handler{
		engine:  engine,
		origins: origins,
		logger:  logger.With(slog.String("component", "translator-http")),
		timeout: 60 * time.Second,
	}
	h.initMetrics()
	return h
}

func (h *Handler) initMetrics() {
	meter := otel.Meter("github.com/loqalabs/talkez/translator")
	requests, err := meter.Int64Counter("talkez.translator.requests",
		metric.WithDescription("Translation requests served, by transport and outcome"))
	if err != nil {
		h.logger.Warn("failed to create request counter", slogError(err))
	}
	latency, err := meter.Float64Histogram("talkez.translator.latency",
		metric.WithDescription("Engine latency per translation"),
		metric.WithUnit("ms"))
	if err != nil {
		h.logger.Warn("failed to create latency histogram", slogError(err))
	}
	h.requests = requests
	h.latency = latency
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.applyCORS(w, r)
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		w.Header().Set("Allow", "POST, OPTIONS")
		writeJSON(w, http.StatusMethodNotAllowed, translateResponse{Error: "method not allowed"})
		return
	}

	var body translateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, translateResponse{Error: "invalid JSON body"})
		return
	}

	translated, err := h.translate(r.Context(), "http", Request{Text: body.Text, Source: body.Source, Target: body.Target})
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, ErrInvalidRequest) {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, translateResponse{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, translateResponse{TranslatedText: translated})
}

// translate validates req and runs the engine, recording metrics for transport.
func (h *Handler) translate(ctx context.Context, transport string, req Request) (string, error) {
	if err := req.Validate(); err != nil {
		h.record(ctx, transport, "invalid", 0)
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	start := time.Now()
	translated, err := h.engine.Translate(ctx, req)
	elapsed := time.Since(start)
	if err != nil {
		h.record(ctx, transport, "error", elapsed)
		h.logger.Warn("translation engine failed",
			slog.String("source", req.Source),
			slog.String("target", req.Target),
			slogError(err))
		return "", errors.New("translation engine failed")
	}
	h.record(ctx, transport, "success", elapsed)
	h.logger.Debug("translation served",
		slog.String("source", req.Source),
		slog.String("target", req.Target),
		slog.Duration("latency", elapsed))
	return translated, nil
}

func (h *Handler) record(ctx context.Context, transport, outcome string, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("transport", transport), attribute.String("outcome", outcome))
	if h.requests != nil {
		h.requests.Add(ctx, 1, attrs)
	}
	if h.latency != nil && elapsed > 0 {
		h.latency.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	}
}

func (h *Handler) applyCORS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	if !slices.Contains(h.origins, "*") && !slices.Contains(h.origins, origin) {
		return
	}
	header := w.Header()
	header.Set("Access-Control-Allow-Origin", origin)
	header.Add("Vary", "Origin")
	header.Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
		header.Set("Access-Control-Allow-Headers", requested)
	} else {
		header.Set("Access-Control-Allow-Headers", "Content-Type")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
