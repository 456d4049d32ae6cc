package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	// Core
	Addr        string `env:"APP_ADDR" envDefault:":8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Generative model
	GeminiAPIKey string `env:"GEMINI_API_KEY,required"`
	GeminiModel  string `env:"GEMINI_MODEL" envDefault:"gemini-1.5-flash"`

	// WhatsApp Cloud API
	MetaAccessToken   string `env:"META_ACCESS_TOKEN,required"`
	MetaPhoneNumberID string `env:"META_PHONE_NUMBER_ID,required"`
	MetaVerifyToken   string `env:"META_VERIFY_TOKEN,required"`
	MetaAPIVersion    string `env:"META_API_VERSION" envDefault:"v20.0"`

	// Workers
	WorkerCount int `env:"WORKER_COUNT" envDefault:"4"`
	QueueSize   int `env:"QUEUE_SIZE" envDefault:"256"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.WorkerCount < 1 {
		cfg.WorkerCount = 1
	}
	return cfg, nil
}
