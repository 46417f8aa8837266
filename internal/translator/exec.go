package translator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"

	"github.com/mattn/go-shellwords"
)

type execEngine struct {
	cmd []string
}

type execRequest struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	Target string `json:"target"`
}

type execResponse struct {
	TranslatedText string `json:"translatedText"`
	Error          string `json:"error,omitempty"`
}

// NewExecEngine runs command once per translation. The request is written to
// stdin as JSON and a single JSON object is expected on stdout.
func NewExecEngine(command string) (Engine, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse translator command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("translator command empty")
	}
	return &execEngine{cmd: args}, nil
}

func (e *execEngine) Translate(ctx context.Context, req Request) (string, error) {
	input, err := json.Marshal(execRequest{Text: req.Text, Source: req.Source, Target: req.Target})
	if err != nil {
		return "", err
	}

	cmd := exec.CommandContext(ctx, e.cmd[0], e.cmd[1:]...)
	cmd.Stdin = bytes.NewReader(input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("translator command failed: %w: %s", err, stderr.String())
	}

	var resp execResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode translator response: %w", err)
	}
	if resp.Error != "" {
		return "", errors.New(resp.Error)
	}
	return resp.TranslatedText, nil
}
