package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type SandboxConfig struct {
	// PythonWasm is the path to a CPython WASI build, loaded lazily on the
	// first python run.
	PythonWasm string `mapstructure:"python_wasm"`
	// TimeoutMs is the wall-clock limit per run.
	TimeoutMs int `mapstructure:"timeout_ms"`
}

type ReviewConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
}

type LanguagesConfig struct {
	// TemplatesFile optionally overrides the built-in starter templates.
	TemplatesFile string `mapstructure:"templates_file"`
}

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Sandbox   SandboxConfig   `mapstructure:"sandbox"`
	Review    ReviewConfig    `mapstructure:"review"`
	Languages LanguagesConfig `mapstructure:"languages"`
}

// Timeout returns the configured execution limit as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Sandbox.TimeoutMs) * time.Millisecond
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("coderoom")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.coderoom")

	v.SetDefault("server.port", 8080)
	v.SetDefault("sandbox.python_wasm", "./assets/python.wasm")
	v.SetDefault("sandbox.timeout_ms", 5000)
	v.SetDefault("review.base_url", "")
	v.SetDefault("review.api_key", "${OPENAI_API_KEY}")
	v.SetDefault("review.model", "gpt-4o-mini")

	if err := v.ReadInConfig(); err != nil {
		// Running on defaults without a config file is fine.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	// Expand environment variables in the API key
	if strings.HasPrefix(cfg.Review.APIKey, "${") && strings.HasSuffix(cfg.Review.APIKey, "}") {
		envVar := cfg.Review.APIKey[2 : len(cfg.Review.APIKey)-1]
		cfg.Review.APIKey = os.Getenv(envVar)
	}

	return &cfg, nil
}
