package ai

import (
	"fmt"

	"triage-backend/pkg/gemini"
)

// Config holds AI provider configuration
type Config struct {
	Provider ProviderType // "gemini", "ollama", "auto" or "none"

	// Gemini config
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string

	// Ollama config
	OllamaBaseURL string // e.g., "http://localhost:11434"
	OllamaModel   string // e.g., "llama3", "mistral"

	// OllamaSettings, when set, is read on every call so the endpoint can change at runtime
	OllamaSettings *OllamaSettings
}

// NewClassifierService creates a ClassifierService based on the config.
// It returns (nil, nil) when classification is switched off, which callers treat as "unavailable".
func NewClassifierService(cfg Config) (ClassifierService, error) {
	switch cfg.Provider {
	case ProviderNone:
		return nil, nil

	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return newGemini(cfg), nil

	case ProviderOllama:
		if cfg.OllamaBaseURL == "" {
			return nil, fmt.Errorf("OLLAMA_BASE_URL is required for Ollama provider")
		}
		return newOllama(cfg), nil

	case ProviderAuto, "":
		// Gemini first when a key exists, Ollama as the fallback route
		var g ClassifierService
		if cfg.GeminiAPIKey != "" {
			g = newGemini(cfg)
		}
		var o *OllamaService
		if cfg.OllamaBaseURL != "" {
			o = newOllama(cfg)
		}
		switch {
		case g != nil && o != nil:
			return NewFallbackService(g, o), nil
		case g != nil:
			return g, nil
		case o != nil:
			return o, nil
		}
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func newGemini(cfg Config) *gemini.GeminiService {
	return gemini.NewGeminiService(cfg.GeminiAPIKey).WithModel(cfg.GeminiModel).WithBaseURL(cfg.GeminiBaseURL)
}

func newOllama(cfg Config) *OllamaService {
	if cfg.OllamaSettings != nil {
		return NewOllamaServiceWithGetters(cfg.OllamaSettings.BaseURL, cfg.OllamaSettings.Model)
	}
	return NewOllamaService(cfg.OllamaBaseURL, cfg.OllamaModel)
}
