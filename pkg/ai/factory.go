package ai

import "log"

// FactoryConfig carries the provider selection knobs.
type FactoryConfig struct {
	Provider      string
	OllamaBaseURL string
	OllamaModel   string
	GeminiAPIKey  string
}

// NewOracle picks an oracle backend. "auto" prefers Gemini when an API key is
// configured and falls back to the local Ollama instance otherwise.
func NewOracle(cfg FactoryConfig) Oracle {
	switch ProviderType(cfg.Provider) {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			log.Printf("[AI] Gemini selected but no API key set, falling back to Ollama")
			return NewOllamaOracle(cfg.OllamaBaseURL, cfg.OllamaModel)
		}
		log.Printf("[AI] Using Gemini oracle")
		return NewGeminiOracle(cfg.GeminiAPIKey, "")
	case ProviderOllama:
		log.Printf("[AI] Using Ollama oracle (model: %s)", cfg.OllamaModel)
		return NewOllamaOracle(cfg.OllamaBaseURL, cfg.OllamaModel)
	default:
		if cfg.GeminiAPIKey != "" {
			log.Printf("[AI] Auto-selected Gemini oracle")
			return NewGeminiOracle(cfg.GeminiAPIKey, "")
		}
		log.Printf("[AI] Auto-selected Ollama oracle (model: %s)", cfg.OllamaModel)
		return NewOllamaOracle(cfg.OllamaBaseURL, cfg.OllamaModel)
	}
}
