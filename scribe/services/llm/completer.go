package llm

import (
	"context"
	"fmt"

	"scribe/scribe/config"
)

const systemPrompt = "You are a professional meeting assistant that creates clear, structured meeting summaries."

// Runner is one chat backend.
type Runner interface {
	Run(ctx context.Context, req ChatRequest) (string, error)
}

// Completer turns a single prompt into a completion on the configured
// backend and model.
type Completer struct {
	runner   Runner
	model    string
	provider string
	options  interface{}
}

func NewCompleter(provider, model string, runner Runner) *Completer {
	return &Completer{
		runner:   runner,
		model:    model,
		provider: provider,
		options:  map[string]interface{}{"temperature": 0.5},
	}
}

// FromConfig picks the backend named by cfg.LLMProvider.
func FromConfig(ctx context.Context, cfg config.Config) (*Completer, error) {
	switch cfg.LLMProvider {
	case "ollama", "":
		return NewCompleter("ollama", cfg.OllamaModel, NewOllamaClient(cfg.OllamaBaseURL)), nil
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for provider openai")
		}
		return NewCompleter("openai", cfg.OpenAIModel, NewGPTClient(cfg.OpenAIAPIKey, OpenAIChatURL)), nil
	case "groq":
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("missing GROQ_API_KEY for provider groq")
		}
		return NewCompleter("groq", cfg.GroqModel, NewGPTClient(cfg.GroqAPIKey, GroqChatURL)), nil
	case "gemini":
		gc, err := NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiProject, cfg.GeminiLocation)
		if err != nil {
			return nil, err
		}
		return NewCompleter("gemini", cfg.GeminiModel, gc), nil
	}
	return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
}

func (c *Completer) Provider() string {
	return c.provider
}

func (c *Completer) Complete(ctx context.Context, prompt string) (string, error) {
	return c.runner.Run(ctx, ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Options: c.options,
	})
}
