package providers

import (
	"sort"
	"strings"
	"sync"
)

var (
	mu       sync.RWMutex
	registry = map[ProviderName]Provider{}
)

// Register adds a provider to the registry. Called from each provider
// file's init().
func Register(p Provider) {
	mu.Lock()
	defer mu.Unlock()
	registry[p.Info().Name] = p
}

// Get returns the provider registered under name, if any.
func Get(name ProviderName) (Provider, bool) {
	mu.RLock()
	defer mu.RUnlock()
	p, ok := registry[name]
	return p, ok
}

// GetOrDefault returns the provider registered under name, falling back to
// the generic OpenAI-compatible provider when name is unknown.
func GetOrDefault(name ProviderName) Provider {
	if p, ok := Get(name); ok {
		return p
	}
	p, _ := Get(ProviderGeneric)
	return p
}

// List returns every registered provider's metadata, sorted by name for
// determinism.
func List() []ProviderInfo {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]ProviderInfo, 0, len(registry))
	for _, p := range registry {
		out = append(out, p.Info())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListByModelType returns every registered provider that serves mt.
func ListByModelType(mt ModelType) []ProviderInfo {
	var out []ProviderInfo
	for _, info := range List() {
		if info.supports(mt) {
			out = append(out, info)
		}
	}
	return out
}

// DetectProvider guesses a provider from a base URL, used when a user
// supplies an endpoint without naming the provider explicitly.
func DetectProvider(baseURL string) ProviderName {
	u := strings.ToLower(baseURL)
	switch {
	case strings.Contains(u, "api.openai.com"):
		return ProviderOpenAI
	case strings.Contains(u, "dashscope.aliyuncs.com"):
		return ProviderAliyun
	case strings.Contains(u, "localhost:11434") || strings.Contains(u, "/api/generate") || strings.Contains(u, "ollama"):
		return ProviderOllama
	default:
		return ProviderGeneric
	}
}
