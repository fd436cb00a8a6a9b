package providers

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderRegistry(t *testing.T) {
	t.Run("default providers registered", func(t *testing.T) {
		providers := List()
		assert.NotEmpty(t, providers)
		for _, name := range []ProviderName{ProviderOpenAI, ProviderOllama, ProviderAliyun, ProviderGeneric} {
			p, ok := Get(name)
			assert.True(t, ok, "provider %s should be registered", name)
			assert.NotNil(t, p)
		}
	})

	t.Run("GetOrDefault fallback", func(t *testing.T) {
		p := GetOrDefault("nonexistent")
		require.NotNil(t, p)
		assert.Equal(t, ProviderGeneric, p.Info().Name)
	})
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		url      string
		expected ProviderName
	}{
		{"https://api.openai.com/v1", ProviderOpenAI},
		{"https://dashscope.aliyuncs.com/compatible-mode/v1", ProviderAliyun},
		{"http://localhost:11434", ProviderOllama},
		{"https://custom-endpoint.example.com/v1", ProviderGeneric},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, DetectProvider(tt.url))
	}
}

func TestOpenAIProviderValidation(t *testing.T) {
	p := &OpenAIProvider{}
	assert.NoError(t, p.ValidateConfig(&Config{APIKey: "sk-test", ModelName: "gpt-4o"}))
	assert.Error(t, p.ValidateConfig(&Config{ModelName: "gpt-4o"}))
	assert.Error(t, p.ValidateConfig(&Config{APIKey: "sk-test"}))
}

func TestAliyunModelDetection(t *testing.T) {
	assert.True(t, IsQwen3Model("qwen3-32b"))
	assert.False(t, IsQwen3Model("qwen-max"))
}

func TestListByModelType(t *testing.T) {
	chat := ListByModelType(ModelTypeChat)
	assert.NotEmpty(t, chat)
}
