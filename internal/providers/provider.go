// Package providers holds the shared metadata registry for LLM/embedding
// backends: provider name, default endpoints, which model types it serves,
// and config validation. internal/llmclient and internal/embedding both
// dispatch through this registry rather than hard-coding backend specifics.
package providers

// ModelType is which kind of model a backend entry serves.
type ModelType string

const (
	ModelTypeChat      ModelType = "chat"
	ModelTypeEmbedding ModelType = "embedding"
	ModelTypeRerank    ModelType = "rerank"
)

// ProviderName identifies a registered provider.
type ProviderName string

const (
	ProviderOpenAI  ProviderName = "openai"
	ProviderOllama  ProviderName = "ollama"
	ProviderAliyun  ProviderName = "aliyun"
	ProviderGeneric ProviderName = "generic"
)

// Config is the per-backend connection configuration a provider validates.
type Config struct {
	APIKey    string
	BaseURL   string
	ModelName string
}

// ProviderInfo is a provider's static metadata.
type ProviderInfo struct {
	Name         ProviderName
	DisplayName  string
	Description  string
	DefaultURLs  map[ModelType]string
	ModelTypes   []ModelType
	RequiresAuth bool
}

// GetDefaultURL returns the default base URL for a model type, or "" if the
// provider has none configured (e.g. the generic provider requires the
// caller to supply one).
func (i ProviderInfo) GetDefaultURL(mt ModelType) string {
	return i.DefaultURLs[mt]
}

func (i ProviderInfo) supports(mt ModelType) bool {
	for _, t := range i.ModelTypes {
		if t == mt {
			return true
		}
	}
	return false
}

// Provider is the interface every backend provider implements.
type Provider interface {
	Info() ProviderInfo
	ValidateConfig(config *Config) error
}
