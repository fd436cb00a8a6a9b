package llmclient

import "net/url"

func parseOllamaURL(raw string) *url.URL {
	if raw == "" {
		raw = "http://localhost:11434"
	}
	u, err := url.Parse(raw)
	if err != nil {
		u, _ = url.Parse("http://localhost:11434")
	}
	return u
}
