package config

import (
	"strconv"
	"time"
)

// Config represents the complete issuegate configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Server  ServerConfig  `yaml:"server"`
	State   StateConfig   `yaml:"state"`
	GitHub  GitHubConfig  `yaml:"github"`
	Webhook WebhookConfig `yaml:"webhook"`
	Events  EventsConfig  `yaml:"events"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// ServerConfig defines the HTTP listener.
type ServerConfig struct {
	Port      int    `yaml:"port"`
	PublicDir string `yaml:"public_dir,omitempty"`
}

// StateConfig defines event log storage settings.
type StateConfig struct {
	Path string `yaml:"path"`
}

// GitHubConfig identifies the upstream repository and how to reach it.
type GitHubConfig struct {
	Token   string        `yaml:"token"`
	Owner   string        `yaml:"owner"`
	Repo    string        `yaml:"repo"`
	BaseURL string        `yaml:"base_url,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
}

// WebhookConfig defines inbound webhook settings.
type WebhookConfig struct {
	Secret      string `yaml:"secret"`
	MaxBodySize int64  `yaml:"max_body_size,omitempty"`
}

// EventsConfig tunes the in-memory helpers around the event log.
type EventsConfig struct {
	RecentKeys   int           `yaml:"recent_keys"`
	RecentKeyTTL time.Duration `yaml:"recent_key_ttl"`
	StreamBuffer int           `yaml:"stream_buffer"`
}

// Defaults returns a Config populated with default values.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "issuegate",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		State: StateConfig{
			Path: "./data/events.db",
		},
		GitHub: GitHubConfig{
			BaseURL: "https://api.github.com/",
			Timeout: 20 * time.Second,
		},
		Webhook: WebhookConfig{
			MaxBodySize: 25 << 20,
		},
		Events: EventsConfig{
			RecentKeys:   4096,
			RecentKeyTTL: time.Hour,
			StreamBuffer: 256,
		},
	}
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}
