package stt

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"sync"

	"github.com/loqalabs/talkez/internal/protocol"
	"github.com/mattn/go-shellwords"
)

// ExecPlatform runs an external recognizer command per session. The command
// is started with --language, --max-alternatives and, when interim results
// are wanted, --interim. It writes JSON lines to stdout:
//
//	{"type":"result","result_index":0,"results":[{"final":true,"alternatives":[{"transcript":"..."}]}]}
//	{"type":"error","code":"no-speech"}
//
// The session ends when the process exits.
type ExecPlatform struct {
	cmd    []string
	logger *slog.Logger
}

type execLine struct {
	Type        string                       `json:"type"`
	ResultIndex int                          `json:"result_index"`
	Results     []protocol.RecognitionResult `json:"results"`
	Code        string                       `json:"code"`
}

func NewExecPlatform(command string, logger *slog.Logger) (*ExecPlatform, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse stt command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("stt command is empty")
	}
	return &ExecPlatform{cmd: args, logger: logger.With(slog.String("component", "stt-exec"))}, nil
}

func (p *ExecPlatform) NewRecognition(settings Settings) (Recognition, error) {
	return &execRecognition{platform: p, settings: settings}, nil
}

type execRecognition struct {
	callbacks

	platform *ExecPlatform
	settings Settings

	state   sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

func (r *execRecognition) args() []string {
	args := append([]string{}, r.platform.cmd[1:]...)
	args = append(args, "--language", r.settings.Language)
	if r.settings.InterimResults {
		args = append(args, "--interim")
	}
	if r.settings.MaxAlternatives > 0 {
		args = append(args, "--max-alternatives", strconv.Itoa(r.settings.MaxAlternatives))
	}
	return args
}

func (r *execRecognition) Start() error {
	r.state.Lock()
	defer r.state.Unlock()
	if r.cancel != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := exec.CommandContext(ctx, r.platform.cmd[0], r.args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return fmt.Errorf("stt stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		cancel()
		return fmt.Errorf("start stt command: %w", err)
	}
	r.cancel = cancel
	r.stopped = false

	go r.run(cmd, stdout, &stderr, cancel)
	return nil
}

func (r *execRecognition) run(cmd *exec.Cmd, stdout io.Reader, stderr *bytes.Buffer, cancel context.CancelFunc) {
	failed := false
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var msg execLine
		if err := json.Unmarshal(line, &msg); err != nil {
			r.platform.logger.Warn("skipping malformed recognizer line", slog.String("error", err.Error()))
			continue
		}
		switch msg.Type {
		case "result":
			r.emitResult(fromWire(msg.ResultIndex, msg.Results))
		case "error":
			failed = true
			r.emitError(msg.Code)
		default:
			r.platform.logger.Debug("ignoring recognizer line", slog.String("type", msg.Type))
		}
	}
	err := cmd.Wait()
	cancel()

	r.state.Lock()
	stopped := r.stopped
	r.cancel = nil
	r.state.Unlock()

	if err != nil && !stopped && !failed {
		r.platform.logger.Warn("stt command failed",
			slog.String("error", err.Error()),
			slog.String("stderr", stderr.String()))
		r.emitError("audio-capture")
	}
	r.emitEnd()
}

func (r *execRecognition) Stop() {
	r.state.Lock()
	defer r.state.Unlock()
	if r.cancel != nil {
		r.stopped = true
		r.cancel()
	}
}
