package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/san-kum/qlab/internal/chat"
	"github.com/san-kum/qlab/internal/viz"
)

const (
	DefaultTemperature = 0.7
	DefaultTimeout     = 60 * time.Second
	DefaultFPS         = 30
	DefaultTheme       = "slate"
	DefaultLogFile     = "qlab.log"
	DefaultAddr        = "127.0.0.1:8080"
	DefaultSessionTTL  = 10 * time.Minute
)

type Config struct {
	Chat   ChatConfig   `yaml:"chat"`
	Lab    LabConfig    `yaml:"lab"`
	Log    LogConfig    `yaml:"log"`
	Server ServerConfig `yaml:"server"`
}

// ChatConfig selects the completion provider. Credentials are never stored
// here; they are read from the environment on every request.
type ChatConfig struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	BaseURL     string        `yaml:"base_url"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
}

type LabConfig struct {
	FPS   int    `yaml:"fps"`
	Theme string `yaml:"theme"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	File   string `yaml:"file"`
	Pretty bool   `yaml:"pretty"`
}

type ServerConfig struct {
	Addr       string        `yaml:"addr"`
	SessionTTL time.Duration `yaml:"session_ttl"`
	// Origins are extra host patterns allowed to use the web lab from
	// another site.
	Origins []string `yaml:"origins,omitempty"`
}

func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			Provider:    chat.ProviderGemini,
			Model:       chat.DefaultGeminiModel,
			Temperature: DefaultTemperature,
			Timeout:     DefaultTimeout,
		},
		Lab: LabConfig{
			FPS:   DefaultFPS,
			Theme: DefaultTheme,
		},
		Log: LogConfig{
			Level: "info",
			File:  DefaultLogFile,
		},
		Server: ServerConfig{
			Addr:       DefaultAddr,
			SessionTTL: DefaultSessionTTL,
		},
	}
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Resolve builds the effective configuration: the YAML file at path (if it
// exists) over the defaults, then .env, then QLAB_* environment overrides.
func Resolve(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		loaded, err := Load(path)
		switch {
		case err == nil:
			cfg = loaded
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
	}

	// a missing .env is fine
	_ = godotenv.Load()

	cfg.ApplyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from QLAB_* variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("QLAB_PROVIDER"); v != "" {
		c.Chat.Provider = v
	}
	if v := os.Getenv("QLAB_MODEL"); v != "" {
		c.Chat.Model = v
	}
	if v := os.Getenv("QLAB_BASE_URL"); v != "" {
		c.Chat.BaseURL = v
	}
	if v := os.Getenv("QLAB_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

func (c *Config) Validate() error {
	switch c.Chat.Provider {
	case chat.ProviderGemini, chat.ProviderOpenAI:
	default:
		return fmt.Errorf("unknown chat provider %q", c.Chat.Provider)
	}
	if c.Chat.Temperature < 0 || c.Chat.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0, 2]", c.Chat.Temperature)
	}
	if c.Chat.Timeout < 0 {
		return fmt.Errorf("negative chat timeout %s", c.Chat.Timeout)
	}
	if c.Lab.FPS <= 0 {
		return fmt.Errorf("fps must be positive, got %d", c.Lab.FPS)
	}
	if c.Server.SessionTTL < 0 {
		return fmt.Errorf("negative session ttl %s", c.Server.SessionTTL)
	}
	if !viz.HasTheme(c.Lab.Theme) {
		return fmt.Errorf("unknown theme %q", c.Lab.Theme)
	}
	return nil
}

// ChatOptions converts the chat section for chat.New.
func (c *Config) ChatOptions() chat.Options {
	return chat.Options{
		Provider: c.Chat.Provider,
		Model:    c.Chat.Model,
		BaseURL:  c.Chat.BaseURL,
		Timeout:  c.Chat.Timeout,
	}
}

// FrameInterval is the time between animation frames.
func (c *Config) FrameInterval() time.Duration {
	if c.Lab.FPS <= 0 {
		return time.Second / DefaultFPS
	}
	return time.Second / time.Duration(c.Lab.FPS)
}
