package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiProvider calls the Gemini API through the official SDK.
type GeminiProvider struct {
	apiKey string
	model  string
	client *genai.Client
}

func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if strings.TrimSpace(model) == "" {
		model = "gemini-2.0-flash-lite"
	}
	return &GeminiProvider{apiKey: strings.TrimSpace(apiKey), model: model}
}

var ErrGeminiNoAPIKey = fmt.Errorf("gemini: api key not configured")

func (p *GeminiProvider) Name() string {
	return "gemini/" + p.model
}

func (p *GeminiProvider) ensureClient(ctx context.Context) error {
	if p.apiKey == "" {
		return ErrGeminiNoAPIKey
	}
	if p.client == nil {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:      p.apiKey,
			HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
		})
		if err != nil {
			return fmt.Errorf("gemini: create client: %w", err)
		}
		p.client = client
	}
	return nil
}

func (p *GeminiProvider) ClassifyIntent(ctx context.Context, req IntentRequest) (IntentResponse, error) {
	text, err := p.generate(ctx, classifySystemPrompt+"\n\n"+classifyUserPrompt(req.Input))
	if err != nil {
		return IntentResponse{}, err
	}
	return parseIntentResponse(text)
}

func (p *GeminiProvider) Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error) {
	text, err := p.generate(ctx, analyzePrompt(req))
	if err != nil {
		return AnalyzeResponse{}, err
	}
	return AnalyzeResponse{Answer: text}, nil
}

func (p *GeminiProvider) generate(ctx context.Context, prompt string) (string, error) {
	if err := p.ensureClient(ctx); err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}
