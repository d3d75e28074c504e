package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/mcdev12/burgerrush/go/internal/game/events"
	"github.com/mcdev12/burgerrush/go/internal/game/relay"
	"gopkg.in/yaml.v3"
)

type Config struct {
	LogLevel string `yaml:"log_level"`

	Server struct {
		Host           string   `yaml:"host"`
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`

	Game struct {
		DefaultSeconds int `yaml:"default_seconds"`
		MaxSeconds     int `yaml:"max_seconds"`
	} `yaml:"game"`

	Relay struct {
		NATSURL       string   `yaml:"nats_url"` // empty disables the relay
		Stream        string   `yaml:"stream"`
		SubjectPrefix string   `yaml:"subject_prefix"`
		Events        []string `yaml:"events"`
	} `yaml:"relay"`
}

func defaultConfig() *Config {
	var cfg Config
	cfg.LogLevel = "info"
	cfg.Server.Port = "5000"
	cfg.Game.DefaultSeconds = 120
	cfg.Game.MaxSeconds = 3600

	js := relay.DefaultJetStreamConfig()
	cfg.Relay.Stream = js.StreamName
	cfg.Relay.SubjectPrefix = js.SubjectPrefix
	return &cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig builds the configuration from defaults, the optional YAML file at
// path, and finally the environment. A missing file is not an error.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	applyEnv(config)

	if config.Game.DefaultSeconds < 0 {
		return nil, fmt.Errorf("default_seconds must not be negative, got %d", config.Game.DefaultSeconds)
	}
	if config.Game.MaxSeconds < 0 {
		return nil, fmt.Errorf("max_seconds must not be negative, got %d", config.Game.MaxSeconds)
	}
	return config, nil
}

func applyEnv(config *Config) {
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.Server.Host = getEnv("HOST", config.Server.Host)
	config.Server.Port = getEnv("PORT", config.Server.Port)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}
	config.Game.DefaultSeconds = getEnvAsInt("GAME_DEFAULT_SECONDS", config.Game.DefaultSeconds)
	config.Game.MaxSeconds = getEnvAsInt("GAME_MAX_SECONDS", config.Game.MaxSeconds)
	config.Relay.NATSURL = getEnv("NATS_URL", config.Relay.NATSURL)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// RelayEvents returns the configured mirror list, or the relay defaults
func (c *Config) RelayEvents() []events.Name {
	if len(c.Relay.Events) == 0 {
		return relay.DefaultEvents
	}
	names := make([]events.Name, 0, len(c.Relay.Events))
	for _, e := range c.Relay.Events {
		names = append(names, events.Name(e))
	}
	return names
}
