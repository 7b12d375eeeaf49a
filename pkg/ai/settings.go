package ai

import "sync"

// OllamaSettings holds the Ollama endpoint and model, editable at runtime
type OllamaSettings struct {
	mu      sync.RWMutex
	baseURL string
	model   string
}

// NewOllamaSettings initializes runtime settings from static config
func NewOllamaSettings(baseURL, model string) *OllamaSettings {
	return &OllamaSettings{baseURL: baseURL, model: model}
}

// BaseURL returns the current Ollama base URL
func (s *OllamaSettings) BaseURL() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.baseURL
}

// Model returns the current Ollama model
func (s *OllamaSettings) Model() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.model
}

// Update replaces the base URL and, when non-empty, the model
func (s *OllamaSettings) Update(baseURL, model string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.baseURL = baseURL
	if model != "" {
		s.model = model
	}
}
