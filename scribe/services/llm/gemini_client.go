package llm

import (
	"context"
	"fmt"
	"strings"

	"scribe/scribe/utils/logging"

	"google.golang.org/genai"
)

type GeminiClient struct {
	client *genai.Client
}

// NewGeminiClient uses the Gemini API when apiKey is set and Vertex AI with
// application default credentials otherwise.
func NewGeminiClient(ctx context.Context, apiKey, project, location string) (*GeminiClient, error) {
	cc := &genai.ClientConfig{
		Project:  project,
		Location: location,
		Backend:  genai.BackendVertexAI,
	}
	if apiKey != "" {
		cc = &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("error creating GenAI client: %w", err)
	}
	return &GeminiClient{client: client}, nil
}

func (c *GeminiClient) Run(ctx context.Context, req ChatRequest) (string, error) {
	defer logging.LogDuration(ctx, "gemini_run")()

	var system []string
	var contents []*genai.Content
	for _, m := range req.Messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, &genai.Content{Role: "model", Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: "user", Parts: []*genai.Part{{Text: m.Content}}})
		}
	}

	var gc *genai.GenerateContentConfig
	if len(system) > 0 {
		gc = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: strings.Join(system, "\n")}}},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, req.Model, contents, gc)
	if err != nil {
		return "", fmt.Errorf("error generating content: %w", err)
	}
	if resp != nil && len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
		var sb strings.Builder
		for _, p := range resp.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() > 0 {
			return sb.String(), nil
		}
	}
	return "", fmt.Errorf("no content generated")
}
