package main

import (
	"fmt"
	"strings"
	"time"

	"questhub/internal/attestation"
	"questhub/internal/oracle"
	"questhub/internal/payments"
	"questhub/internal/repository"

	"github.com/spf13/viper"
)

const (
	configPath   = "./"
	configName   = "config"
	configFormat = "yaml"
)

type Config struct {
	Database repository.Config `yaml:"database"`
	Server   ServerConfig      `yaml:"server"`

	Auth         AuthConfig         `yaml:"auth"`
	Oracle       oracle.Config      `yaml:"oracle"`
	Attestation  attestation.Config `yaml:"attestation"`
	Payments     payments.Config    `yaml:"payments"`
	Verification VerificationConfig `yaml:"verification"`
	Rewards      RewardsConfig      `yaml:"rewards"`
	Sweeper      SweeperConfig      `yaml:"sweeper"`

	LogLevel string `yaml:"logLevel"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port string `yaml:"port"`
}

type AuthConfig struct {
	SessionSecret string `yaml:"sessionSecret"`
	DebugMode     bool   `yaml:"debugMode"`
}

type VerificationConfig struct {
	Cooldown      time.Duration `yaml:"cooldown"`
	VerifyTimeout time.Duration `yaml:"verifyTimeout"`
}

type RewardsConfig struct {
	// PointsWhenExhausted credits reward points even when FCFS prize
	// slots ran out; points are not escrow-backed.
	PointsWhenExhausted bool `yaml:"pointsWhenExhausted"`
}

type SweeperConfig struct {
	Interval time.Duration `yaml:"interval"`
}

func LoadConfig() (*Config, error) {
	viper.SetConfigName(configName)
	viper.AddConfigPath(configPath)
	viper.SetConfigType(configFormat)

	viper.SetDefault("verification.cooldown", time.Hour)
	viper.SetDefault("verification.verifyTimeout", 15*time.Second)
	viper.SetDefault("rewards.pointsWhenExhausted", true)
	viper.SetDefault("sweeper.interval", time.Minute)
	viper.SetDefault("logLevel", "info")

	viper.AutomaticEnv()
	viper.SetEnvPrefix("APP")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}
