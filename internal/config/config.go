package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database DatabaseConfig `yaml:"database"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq"`
	Backend  BackendConfig  `yaml:"backend"`
	KDS      KDSConfig      `yaml:"kds"`
	Tender   TenderConfig   `yaml:"tender"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type RabbitMQConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

type BackendConfig struct {
	BaseURL        string `yaml:"base_url"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type KDSConfig struct {
	BaseURL          string `yaml:"base_url"`
	HeartbeatSeconds int    `yaml:"heartbeat_seconds"`
	MaxReconnects    int    `yaml:"max_reconnects"`
}

type TenderConfig struct {
	// SurchargeRate is the card-processing fee rate applied per card leg,
	// e.g. "0.029" for 2.9%.
	SurchargeRate decimal.Decimal `yaml:"surcharge_rate"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Backend.BaseURL == "" {
		return fmt.Errorf("backend.base_url is required")
	}
	if c.KDS.BaseURL == "" {
		return fmt.Errorf("kds.base_url is required")
	}
	if c.Tender.SurchargeRate.IsNegative() {
		return fmt.Errorf("tender.surcharge_rate must not be negative")
	}
	return nil
}
