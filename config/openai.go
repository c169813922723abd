package config

import (
	"os"
	"sync"
)

var (
	openaiOnce   sync.Once
	openaiConfig *OpenAIConfig
)

// OpenAIConfig configures the language understanding client. BaseURL may
// point at any OpenAI-compatible endpoint.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

func GetOpenAIConfig() *OpenAIConfig {
	openaiOnce.Do(func() {
		loadEnv()

		openaiConfig = &OpenAIConfig{
			APIKey:  os.Getenv("OPENAI_API_KEY"),
			BaseURL: os.Getenv("OPENAI_BASE_URL"),
			Model:   getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		}
	})
	return openaiConfig
}
