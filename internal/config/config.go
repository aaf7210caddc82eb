// Package config содержит логику чтения конфигурации сервиса заказов.
package config

import (
	"flag"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	defaultRunAddress = "localhost:8080"
	defaultKafkaTopic = "order-status-events"
)

// Config содержит параметры конфигурации сервиса заказов.
type Config struct {
	RunAddress       string `env:"RUN_ADDRESS"`
	DatabaseURI      string `env:"DATABASE_URI"`
	NotifyWebhookURL string `env:"NOTIFY_WEBHOOK_URL"`
	KafkaBrokers     string `env:"KAFKA_BROKERS"`
	KafkaTopic       string `env:"KAFKA_TOPIC"`
	AdminAPIKey      string `env:"ADMIN_API_KEY"`
	AuthSecret       string `env:"AUTH_SECRET"`
}

// Parse считывает конфигурацию из флагов командной строки и переменных окружения.
// Непустая переменная окружения имеет приоритет над флагом.
func Parse() (*Config, error) {
	fromEnv := Config{}
	if err := env.Parse(&fromEnv); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg := &Config{}

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI, in-memory store when empty")
	flag.StringVar(&cfg.NotifyWebhookURL, "w", "", "webhook URL for status change notifications")
	flag.StringVar(&cfg.KafkaBrokers, "k", "", "comma-separated Kafka brokers for status events")
	flag.StringVar(&cfg.KafkaTopic, "t", defaultKafkaTopic, "Kafka topic for status events")
	flag.StringVar(&cfg.AdminAPIKey, "admin-key", "", "API key operators exchange for a session token")
	flag.StringVar(&cfg.AuthSecret, "secret", "", "secret used to sign operator tokens")

	flag.Parse()

	override(&cfg.RunAddress, fromEnv.RunAddress)
	override(&cfg.DatabaseURI, fromEnv.DatabaseURI)
	override(&cfg.NotifyWebhookURL, fromEnv.NotifyWebhookURL)
	override(&cfg.KafkaBrokers, fromEnv.KafkaBrokers)
	override(&cfg.KafkaTopic, fromEnv.KafkaTopic)
	override(&cfg.AdminAPIKey, fromEnv.AdminAPIKey)
	override(&cfg.AuthSecret, fromEnv.AuthSecret)

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.KafkaTopic == "" {
		cfg.KafkaTopic = defaultKafkaTopic
	}

	return cfg, nil
}

func override(dst *string, envValue string) {
	if envValue != "" {
		*dst = envValue
	}
}

// Brokers возвращает список адресов Kafka без пустых элементов.
func (c *Config) Brokers() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
