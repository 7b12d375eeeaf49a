package ai

import (
	"context"
)

// ClassifierService is the interface for external email classification.
// Implementations return the raw model text; parsing and validation happen in the caller.
// Implement this interface to add new AI providers (Gemini, Ollama, OpenAI, etc.)
type ClassifierService interface {
	ClassifyEmail(ctx context.Context, prompt string) (string, error)
}

// ProviderType represents the AI provider type
type ProviderType string

const (
	ProviderGemini ProviderType = "gemini"
	ProviderOllama ProviderType = "ollama"
	ProviderAuto   ProviderType = "auto"
	ProviderNone   ProviderType = "none"
)
