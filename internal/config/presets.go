package config

import (
	"sort"
	"time"

	"github.com/san-kum/qlab/internal/chat"
)

// Presets are ready-made chat sections for common providers.
var Presets = map[string]ChatConfig{
	"gemini": {
		Provider: chat.ProviderGemini, Model: chat.DefaultGeminiModel,
		Temperature: DefaultTemperature, Timeout: DefaultTimeout,
	},
	"openai": {
		Provider: chat.ProviderOpenAI, Model: chat.DefaultOpenAIModel,
		Temperature: DefaultTemperature, Timeout: DefaultTimeout,
	},
	"ollama": {
		Provider: chat.ProviderOpenAI, Model: "llama3.2", BaseURL: "http://localhost:11434/v1",
		Temperature: DefaultTemperature, Timeout: 5 * time.Minute,
	},
}

// GetPreset returns the default config with the named chat preset applied,
// or nil.
func GetPreset(name string) *Config {
	p, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	cfg.Chat = p
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
