package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"
)

// OllamaOracle talks to a local Ollama server over its /api/generate endpoint.
type OllamaOracle struct {
	baseURL string
	model   string
	client  *http.Client
}

// NewOllamaOracle creates an oracle backed by a local Ollama instance.
func NewOllamaOracle(baseURL, model string) *OllamaOracle {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3.2"
	}
	return &OllamaOracle{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   model,
		client:  &http.Client{Timeout: 180 * time.Second},
	}
}

// Name returns the provider identifier recorded on classifications.
func (s *OllamaOracle) Name() string {
	return "ollama/" + s.model
}

type ollamaRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
	Format string `json:"format,omitempty"`
}

type ollamaResponse struct {
	Response string `json:"response"`
}

func (s *OllamaOracle) generate(ctx context.Context, prompt string) (string, error) {
	reqBody := ollamaRequest{
		Model:  s.model,
		Prompt: prompt,
		Stream: false,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.baseURL+"/api/generate", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var result ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return result.Response, nil
}

type ollamaVerdict struct {
	ID string `json:"id"`
	EmailVerdict
}

// ClassifyEmails sends the whole batch in one prompt and parses a JSON array
// of verdicts keyed by the caller-assigned IDs. Emails the model skipped are
// simply absent from the returned map.
func (s *OllamaOracle) ClassifyEmails(ctx context.Context, batch []EmailInput) (map[string]EmailVerdict, error) {
	if len(batch) == 0 {
		return map[string]EmailVerdict{}, nil
	}

	prompt := buildClassifyPrompt(batch)
	response, err := s.generate(ctx, prompt)
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
	log.Printf("[Ollama] Classified %d/%d emails", len(out), len(batch))
	return out, nil
}

// ScoreLinks asks the model to rate each URL's standalone value given the
// email it arrived in.
func (s *OllamaOracle) ScoreLinks(ctx context.Context, batch LinkBatch) ([]LinkScore, error) {
	if len(batch.URLs) == 0 {
		return nil, nil
	}

	prompt := buildScorePrompt(batch)
	response, err := s.generate(ctx, prompt)
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

func buildClassifyPrompt(batch []EmailInput) string {
	var b strings.Builder
	b.WriteString(`You are an email triage assistant. Classify each email below.

For every email return an object with these fields:
- "id": the email's id, copied verbatim
- "category": exactly one of "newsletter", "transactional", "notification", "personal", "marketing", "actionable", "noise"
- "confidence": your confidence from 0.0 to 1.0
- "topics": up to 5 short topic strings
- "relevance_score": how valuable this email is to the recipient, 0.0 to 1.0
- "summary": one sentence, max 25 words

Respond with ONLY a JSON array of these objects, one per email, no other text.

Emails:
`)
	for i, e := range batch {
		fmt.Fprintf(&b, "\n--- Email %d (id: %s) ---\n", i+1, e.ID)
		fmt.Fprintf(&b, "From: %s <%s>\n", e.FromName, e.FromAddress)
		fmt.Fprintf(&b, "Subject: %s\n", e.Subject)
		if e.Date != "" {
			fmt.Fprintf(&b, "Date: %s\n", e.Date)
		}
		fmt.Fprintf(&b, "Body:\n%s\n", truncate(e.BodyPreview, 2000))
	}
	return b.String()
}

func buildScorePrompt(batch LinkBatch) string {
	var b strings.Builder
	b.WriteString(`You rate links found inside an email for standalone reading value.

For every URL return an object with these fields:
- "url": the URL, copied verbatim
- "relevance_score": 0.0 to 1.0, how worthwhile the linked content is on its own
- "reason": a short justification, max 15 words

Respond with ONLY a JSON array of these objects, no other text.

`)
	fmt.Fprintf(&b, "Email subject: %s\n", batch.Subject)
	fmt.Fprintf(&b, "Email sender: %s\n", batch.FromAddress)
	if batch.Category != "" {
		fmt.Fprintf(&b, "Email category: %s\n", batch.Category)
	}
	b.WriteString("\nURLs:\n")
	for _, u := range batch.URLs {
		fmt.Fprintf(&b, "- %s\n", u)
	}
	return b.String()
}
