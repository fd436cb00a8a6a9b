package providers

import "fmt"

const OpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements the Provider interface for OpenAI.
type OpenAIProvider struct{}

func init() {
	Register(&OpenAIProvider{})
}

func (p *OpenAIProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:        ProviderOpenAI,
		DisplayName: "OpenAI",
		Description: "gpt-4o, gpt-4o-mini, text-embedding-3-*",
		DefaultURLs: map[ModelType]string{
			ModelTypeChat:      OpenAIBaseURL,
			ModelTypeEmbedding: OpenAIBaseURL,
		},
		ModelTypes:   []ModelType{ModelTypeChat, ModelTypeEmbedding},
		RequiresAuth: true,
	}
}

func (p *OpenAIProvider) ValidateConfig(config *Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required for OpenAI provider")
	}
	if config.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}
