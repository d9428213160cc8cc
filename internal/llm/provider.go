package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Provider defines the model calls the engine may fall back to. Both calls are
// best-effort: the engine always has a deterministic answer ready when a
// provider errors out.
type Provider interface {
	// ClassifyIntent asks the model to label an input the keyword rules could
	// not place. The response intent is one of "add", "delete", "query",
	// "general".
	ClassifyIntent(ctx context.Context, req IntentRequest) (IntentResponse, error)
	// Analyze answers a free-form question given a plain-text data context.
	Analyze(ctx context.Context, req AnalyzeRequest) (AnalyzeResponse, error)
	// Name identifies the provider and model for session logs.
	Name() string
}

type IntentRequest struct {
	Input string `json:"input"`
}

type IntentResponse struct {
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
}

type AnalyzeRequest struct {
	Question string
	Context  string
}

type AnalyzeResponse struct {
	Answer string
}

var ErrEmptyResponse = errors.New("llm: empty response")

const classifySystemPrompt = "You classify a personal-finance command. " +
	"Return ONLY valid JSON with keys: intent (one of \"add\", \"delete\", \"query\", \"general\") " +
	"and confidence (number 0-1). No other text."

func classifyUserPrompt(input string) string {
	return "Classify this input:\n" + input
}

func analyzePrompt(req AnalyzeRequest) string {
	var b strings.Builder
	b.WriteString("You are a personal expense analyst. Answer the question using ONLY the data below.\n")
	b.WriteString("Answer in one or two plain English sentences with concrete amounts. ")
	b.WriteString("Do not output code, JSON, markdown, lists or instructions.\n\n")
	b.WriteString("DATA:\n")
	b.WriteString(req.Context)
	b.WriteString("\nQUESTION: ")
	b.WriteString(req.Question)
	b.WriteString("\n")
	return b.String()
}

// decodeJSON parses model text that should be a JSON object, tolerating the
// code fences smaller models wrap answers in despite instructions.
func decodeJSON(text string, out interface{}) error {
	s := strings.TrimSpace(text)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx != -1 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	if err := json.Unmarshal([]byte(s), out); err != nil {
		return fmt.Errorf("decode model JSON: %w", err)
	}
	return nil
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

func parseIntentResponse(text string) (IntentResponse, error) {
	var out IntentResponse
	if err := decodeJSON(text, &out); err != nil {
		// Some models answer with the bare word. Accept that too.
		word := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".\"' "))
		switch word {
		case "add", "delete", "query", "general":
			return IntentResponse{Intent: word, Confidence: 0.5}, nil
		}
		return IntentResponse{}, err
	}
	out.Intent = strings.ToLower(strings.TrimSpace(out.Intent))
	out.Confidence = clamp01(out.Confidence)
	switch out.Intent {
	case "add", "delete", "query", "general":
		return out, nil
	}
	return IntentResponse{}, fmt.Errorf("llm: unknown intent %q", out.Intent)
}
