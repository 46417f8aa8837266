package translator

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

type openAIEngine struct {
	client      *openai.Client
	model       string
	temperature float64
}

// NewOpenAIEngine targets any OpenAI-compatible chat completions endpoint.
// An empty baseURL uses the public API.
func NewOpenAIEngine(baseURL, apiKey, model string, temperature float64, hc *http.Client) Engine {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if hc != nil {
		opts = append(opts, option.WithHTTPClient(hc))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := openai.NewClient(opts...)
	return &openAIEngine{client: &client, model: model, temperature: temperature}
}

func (e *openAIEngine) Translate(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(e.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt(req)),
		},
	}
	if e.temperature > 0 {
		params.Temperature = openai.Float(e.temperature)
	}
	resp, err := e.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai returned no choices")
	}
	choice := resp.Choices[0]
	if choice.Message.Refusal != "" {
		return "", errors.New("openai refused: " + choice.Message.Refusal)
	}
	out := strings.TrimSpace(choice.Message.Content)
	if out == "" {
		return "", errors.New("openai returned an empty translation")
	}
	return out, nil
}
