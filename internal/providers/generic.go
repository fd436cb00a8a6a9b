package providers

import "fmt"

// GenericProvider implements the Provider interface for any
// OpenAI-compatible endpoint the registry doesn't otherwise recognize.
type GenericProvider struct{}

func init() {
	Register(&GenericProvider{})
}

func (p *GenericProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:         ProviderGeneric,
		DisplayName:  "Generic (OpenAI-compatible)",
		Description:  "any OpenAI-compatible chat/embedding endpoint",
		DefaultURLs:  map[ModelType]string{},
		ModelTypes:   []ModelType{ModelTypeChat, ModelTypeEmbedding},
		RequiresAuth: false,
	}
}

func (p *GenericProvider) ValidateConfig(config *Config) error {
	if config.BaseURL == "" {
		return fmt.Errorf("base URL is required for generic provider")
	}
	if config.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
