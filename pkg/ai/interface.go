package ai

import "context"

// EmailInput is one email handed to the oracle for classification.
type EmailInput struct {
	ID          string
	Subject     string
	FromName    string
	FromAddress string
	Date        string
	BodyPreview string
}

// EmailVerdict is the oracle's answer for one email. Callers validate it
// against the classification contract before trusting any field.
type EmailVerdict struct {
	Category       string   `json:"category"`
	Confidence     float64  `json:"confidence"`
	Topics         []string `json:"topics"`
	RelevanceScore float64  `json:"relevance_score"`
	Summary        string   `json:"summary"`
}

// LinkBatch is the context for scoring one email's extracted URLs.
type LinkBatch struct {
	Subject     string
	FromAddress string
	Category    string
	URLs        []string
}

// LinkScore is the oracle's relevance estimate for one URL.
type LinkScore struct {
	URL            string  `json:"url"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason"`
}

// Oracle is the inference capability: batch email classification and link
// relevance scoring. Implementations return a verdict map keyed by input ID;
// an email missing from the map is a per-email failure, not a batch failure.
type Oracle interface {
	Name() string
	ClassifyEmails(ctx context.Context, batch []EmailInput) (map[string]EmailVerdict, error)
	ScoreLinks(ctx context.Context, batch LinkBatch) ([]LinkScore, error)
}

// ProviderType selects the oracle backend.
type ProviderType string

const (
	ProviderOllama ProviderType = "ollama"
	ProviderGemini ProviderType = "gemini"
	ProviderAuto   ProviderType = "auto"
)
