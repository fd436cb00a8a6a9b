package providers

import (
	"fmt"
	"strings"
)

const AliyunBaseURL = "https://dashscope.aliyuncs.com/compatible-mode/v1"

// AliyunProvider implements the Provider interface for Alibaba Cloud's
// DashScope OpenAI-compatible endpoint (Qwen models).
type AliyunProvider struct{}

func init() {
	Register(&AliyunProvider{})
}

func (p *AliyunProvider) Info() ProviderInfo {
	return ProviderInfo{
		Name:        ProviderAliyun,
		DisplayName: "Aliyun (DashScope)",
		Description: "qwen-max, qwen-plus, text-embedding-v*",
		DefaultURLs: map[ModelType]string{
			ModelTypeChat:      AliyunBaseURL,
			ModelTypeEmbedding: AliyunBaseURL,
		},
		ModelTypes:   []ModelType{ModelTypeChat, ModelTypeEmbedding},
		RequiresAuth: true,
	}
}

func (p *AliyunProvider) ValidateConfig(config *Config) error {
	if config.APIKey == "" {
		return fmt.Errorf("API key is required for Aliyun provider")
	}
	if config.ModelName == "" {
		return fmt.Errorf("model name is required")
	}
	return nil
}

// IsQwen3Model reports whether modelName names a Qwen3-generation model,
// which takes a different tool-calling payload shape than earlier Qwen
// releases.
func IsQwen3Model(modelName string) bool {
	return strings.HasPrefix(strings.ToLower(modelName), "qwen3")
}
