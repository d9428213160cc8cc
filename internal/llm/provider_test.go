package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseIntentResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		text       string
		intent     string
		confidence float64
		wantErr    bool
	}{
		{
			name:       "clean json",
			text:       `{"intent": "add", "confidence": 0.92}`,
			intent:     "add",
			confidence: 0.92,
		},
		{
			name:       "fenced json",
			text:       "```json\n{\"intent\": \"query\", \"confidence\": 0.8}\n```",
			intent:     "query",
			confidence: 0.8,
		},
		{
			name:       "json with chatter",
			text:       "Sure! Here's the classification: {\"intent\": \"delete\", \"confidence\": 1.4}",
			intent:     "delete",
			confidence: 1, // clamped
		},
		{
			name:       "bare word",
			text:       "query",
			intent:     "query",
			confidence: 0.5,
		},
		{
			name:       "bare word with punctuation",
			text:       `"General."`,
			intent:     "general",
			confidence: 0.5,
		},
		{
			name:    "unknown intent",
			text:    `{"intent": "purchase", "confidence": 0.9}`,
			wantErr: true,
		},
		{
			name:    "not json not a word",
			text:    "I think the user wants to do something",
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := parseIntentResponse(tt.text)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.intent, got.Intent)
			require.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestDecodeJSONStripsFences(t *testing.T) {
	t.Parallel()

	var out struct {
		Intent string `json:"intent"`
	}
	require.NoError(t, decodeJSON("```\n{\"intent\": \"add\"}\n```", &out))
	require.Equal(t, "add", out.Intent)

	require.Error(t, decodeJSON("no structure here", &out))
}

func TestOllamaClassifyIntent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/generate", r.URL.Path)
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.False(t, req.Stream)
		require.Contains(t, req.Prompt, "Classify this input")

		json.NewEncoder(w).Encode(ollamaResponse{Response: `{"intent": "add", "confidence": 0.9}`})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	resp, err := p.ClassifyIntent(t.Context(), IntentRequest{Input: "put down 12 bucks for pizza"})
	require.NoError(t, err)
	require.Equal(t, "add", resp.Intent)
}

func TestOllamaAnalyze(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req ollamaRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Contains(t, req.Prompt, "DATA:")
		require.Contains(t, req.Prompt, "August 2026: total $50.00")
		require.Contains(t, req.Prompt, "QUESTION: compare this month to last month")

		json.NewEncoder(w).Encode(ollamaResponse{Response: "  You spent $50.00 this month.  "})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	resp, err := p.Analyze(t.Context(), AnalyzeRequest{
		Question: "compare this month to last month",
		Context:  "August 2026: total $50.00 over 1 expenses\n",
	})
	require.NoError(t, err)
	require.Equal(t, "You spent $50.00 this month.", resp.Answer)
}

func TestOllamaServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	_, err := p.Analyze(t.Context(), AnalyzeRequest{Question: "anything"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 500")
}

func TestOllamaModelError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Error: "model not found"})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	_, err := p.Analyze(t.Context(), AnalyzeRequest{Question: "anything"})
	require.ErrorContains(t, err, "model not found")
}

func TestOllamaEmptyResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ollamaResponse{Response: "   "})
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "test-model")
	_, err := p.Analyze(t.Context(), AnalyzeRequest{Question: "anything"})
	require.ErrorIs(t, err, ErrEmptyResponse)
}

func TestGeminiRequiresAPIKey(t *testing.T) {
	t.Parallel()

	p := NewGeminiProvider("", "")
	require.Equal(t, "gemini/gemini-2.0-flash-lite", p.Name())
	_, err := p.Analyze(t.Context(), AnalyzeRequest{Question: "anything"})
	require.ErrorIs(t, err, ErrGeminiNoAPIKey)
}

func TestOllamaDefaults(t *testing.T) {
	t.Parallel()

	p := NewOllamaProvider("", "")
	require.Equal(t, "ollama/llama3.2:3b", p.Name())
	require.Equal(t, "http://localhost:11434", p.endpoint)
}
