package tts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/loqalabs/talkez/internal/config"
	"github.com/mattn/go-shellwords"
)

// ExecEngine runs an external synthesizer per utterance. The utterance is
// written to stdin as JSON; stdout carries JSON lines with base64 16-bit PCM.
// The audio is saved as a WAV file and handed to the player command, if any.
type ExecEngine struct {
	cmd        []string
	player     []string
	sampleRate int
	channels   int
	outputDir  string
	voices     []Voice
	logger     *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	serial chan struct{}
}

type execRequest struct {
	Text       string  `json:"text"`
	Lang       string  `json:"lang"`
	Voice      string  `json:"voice,omitempty"`
	Rate       float64 `json:"rate"`
	Pitch      float64 `json:"pitch"`
	Volume     float64 `json:"volume"`
	SampleRate int     `json:"sample_rate"`
	Channels   int     `json:"channels"`
}

type execResponse struct {
	PCMBase64 string `json:"pcm_base64"`
	Final     bool   `json:"final"`
	Error     string `json:"error,omitempty"`
}

func NewExecEngine(cfg config.TTSConfig, logger *slog.Logger) (*ExecEngine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(cfg.Command)
	if err != nil {
		return nil, fmt.Errorf("parse tts command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("tts command empty")
	}
	var player []string
	if cfg.PlayerCommand != "" {
		player, err = shellwords.NewParser().Parse(cfg.PlayerCommand)
		if err != nil {
			return nil, fmt.Errorf("parse tts player command: %w", err)
		}
	}
	voices := make([]Voice, 0, len(cfg.Voices))
	for _, v := range cfg.Voices {
		voices = append(voices, Voice{Name: v.Name, Lang: v.Lang})
	}
	return &ExecEngine{
		cmd:        args,
		player:     player,
		sampleRate: cfg.SampleRate,
		channels:   cfg.Channels,
		outputDir:  cfg.OutputDir,
		voices:     voices,
		logger:     logger.With(slog.String("component", "tts-exec")),
		serial:     make(chan struct{}, 1),
	}, nil
}

func (e *ExecEngine) Voices() []Voice {
	return append([]Voice(nil), e.voices...)
}

func (e *ExecEngine) Cancel() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
}

func (e *ExecEngine) Speak(ctx context.Context, u Utterance) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()

	select {
	case e.serial <- struct{}{}:
	case <-ctx.Done():
		return e.interrupted(ctx)
	}
	defer func() { <-e.serial }()

	pcm, err := e.synthesize(ctx, u)
	if err != nil {
		if ctx.Err() != nil {
			return e.interrupted(ctx)
		}
		return err
	}

	path := filepath.Join(e.outputDir, u.ID+".wav")
	if err := writeWav(path, pcm, e.sampleRate, e.channels); err != nil {
		return &SynthesisError{Detail: err.Error()}
	}
	e.logger.Debug("speech rendered", slog.String("path", path), slog.Int("bytes", len(pcm)))

	if len(e.player) == 0 {
		return nil
	}
	play := exec.CommandContext(ctx, e.player[0], append(append([]string{}, e.player[1:]...), path)...)
	var stderr bytes.Buffer
	play.Stderr = &stderr
	if err := play.Run(); err != nil {
		if ctx.Err() != nil {
			return e.interrupted(ctx)
		}
		return &SynthesisError{Detail: fmt.Sprintf("player failed: %v: %s", err, stderr.String())}
	}
	return nil
}

// interrupted maps a done context to the error Speak reports.
func (e *ExecEngine) interrupted(ctx context.Context) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ErrInterrupted
	}
	return ctx.Err()
}

func (e *ExecEngine) synthesize(ctx context.Context, u Utterance) ([]byte, error) {
	req := execRequest{
		Text:       u.Text,
		Lang:       u.Lang,
		Rate:       u.Rate,
		Pitch:      u.Pitch,
		Volume:     u.Volume,
		SampleRate: e.sampleRate,
		Channels:   e.channels,
	}
	if u.Voice != nil {
		req.Voice = u.Voice.Name
	}
	data, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(data)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, &SynthesisError{Detail: fmt.Sprintf("start tts command: %v", err)}
	}

	var pcm []byte
	var lineErr error
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || lineErr != nil {
			continue
		}
		var resp execResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			lineErr = fmt.Errorf("decode tts output: %w", err)
			continue
		}
		if resp.Error != "" {
			lineErr = errors.New(resp.Error)
			continue
		}
		chunk, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
		if err != nil {
			lineErr = fmt.Errorf("decode tts pcm: %w", err)
			continue
		}
		pcm = append(pcm, chunk...)
	}
	waitErr := cmd.Wait()
	if lineErr != nil {
		return nil, &SynthesisError{Detail: lineErr.Error()}
	}
	if waitErr != nil {
		return nil, &SynthesisError{Detail: fmt.Sprintf("tts command failed: %v: %s", waitErr, stderr.String())}
	}
	if err := scanner.Err(); err != nil {
		return nil, &SynthesisError{Detail: err.Error()}
	}
	return pcm, nil
}

func writeWav(path string, pcm []byte, sampleRate, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create speech dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create wav: %w", err)
	}
	defer file.Close()

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	enc := wav.NewEncoder(file, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
