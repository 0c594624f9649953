package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

const geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"

// GeminiOracle talks to the Gemini REST API. Same prompts as the Ollama
// backend, different transport.
type GeminiOracle struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGeminiOracle creates an oracle backed by the hosted Gemini API.
func NewGeminiOracle(apiKey, model string) *GeminiOracle {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiOracle{
		apiKey: apiKey,
		model:  model,
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

// Name returns the provider identifier recorded on classifications.
func (s *GeminiOracle) Name() string {
	return "gemini/" + s.model
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (s *GeminiOracle) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf(geminiEndpoint, s.model, s.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call gemini: %w", err)
	}
	defer resp.Body.Close()

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("gemini error: %s", result.Error.Message)
	}
	if len(result.Candidates) == 0 || len(result.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return result.Candidates[0].Content.Parts[0].Text, nil
}

// ClassifyEmails sends the whole batch in one prompt, same contract as the
// Ollama backend.
func (s *GeminiOracle) ClassifyEmails(ctx context.Context, batch []EmailInput) (map[string]EmailVerdict, error) {
	if len(batch) == 0 {
		return map[string]EmailVerdict{}, nil
	}

	response, err := s.generate(ctx, buildClassifyPrompt(batch))
	if err != nil {
		return nil, err
	}

	raw, err := extractJSONArray(response)
	if err != nil {
		return nil, fmt.Errorf("failed to locate verdict array: %w", err)
	}

	var verdicts []ollamaVerdict
	if err := json.Unmarshal([]byte(raw), &verdicts); err != nil {
		return nil, fmt.Errorf("failed to parse verdicts: %w", err)
	}

	out := make(map[string]EmailVerdict, len(verdicts))
	for _, v := range verdicts {
		if v.ID == "" {
			continue
		}
		out[v.ID] = v.EmailVerdict
	}
	log.Printf("[Gemini] Classified %d/%d emails", len(out), len(batch))
	return out, nil
}

// ScoreLinks rates each URL's standalone value.
func (s *GeminiOracle) ScoreLinks(ctx context.Context, batch LinkBatch) ([]LinkScore, error) {
	if len(batch.URLs) == 0 {
		return nil, nil
	}

	response, err := s.generate(ctx, buildScorePrompt(batch))
	if err != nil {
		return nil, err
	}

	raw, err := extractJSONArray(response)
	if err != nil {
		return nil, fmt.Errorf("failed to locate score array: %w", err)
	}

	var scores []LinkScore
	if err := json.Unmarshal([]byte(raw), &scores); err != nil {
		return nil, fmt.Errorf("failed to parse scores: %w", err)
	}
	return scores, nil
}
