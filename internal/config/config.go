package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Auth     AuthConfig
	Poll     PollConfig
	Realtime RealtimeConfig
}

type ServerConfig struct {
	BaseURL string
	Timeout time.Duration
}

type AuthConfig struct {
	Username string
	Password string
}

type PollConfig struct {
	Interval time.Duration
}

type RealtimeConfig struct {
	Enabled bool
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")

	viper.SetDefault("server.timeout", "10s")
	viper.SetDefault("poll.interval", "5s")
	viper.SetDefault("realtime.enabled", true)

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
