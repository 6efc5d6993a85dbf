package llm

import (
	"context"
	"fmt"

	httputils "scribe/scribe/utils/http"
	"scribe/scribe/utils/logging"
)

const (
	OpenAIChatURL = "https://api.openai.com/v1/chat/completions"
	GroqChatURL   = "https://api.groq.com/openai/v1/chat/completions"
)

// GPTClient talks to any OpenAI compatible chat endpoint, Groq included.
type GPTClient struct {
	apiKey  string
	baseURL string
}

func NewGPTClient(apiKey, baseURL string) *GPTClient {
	if baseURL == "" {
		baseURL = OpenAIChatURL
	}
	return &GPTClient{apiKey: apiKey, baseURL: baseURL}
}

type gptChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type gptResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Run executes a single non-streaming completion.
func (c *GPTClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "gpt_run")()

	gptReq := gptChatRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if opts, ok := req.Options.(map[string]interface{}); ok {
		if t, ok := opts["temperature"].(float64); ok {
			gptReq.Temperature = &t
		}
	}

	var parsed gptResponse
	if err := httputils.PostJSONWithAuth(ctx, c.baseURL, c.apiKey, gptReq, &parsed); err != nil {
		return "", fmt.Errorf("GPT request failed: %w", err)
	}
	if len(parsed.Choices) > 0 {
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("no content in GPT response")
}
