package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Environment variables recognised by Load.
const (
	EnvGitHubToken   = "GITHUB_TOKEN"
	EnvGitHubOwner   = "GITHUB_OWNER"
	EnvGitHubRepo    = "GITHUB_REPO"
	EnvWebhookSecret = "WEBHOOK_SECRET"
	EnvPort          = "PORT"
	EnvGitHubAPIURL  = "GITHUB_API_URL"
	EnvGitHubTimeout = "GITHUB_TIMEOUT"
	EnvGitHubRPS     = "GITHUB_RPS"
	EnvDBPath        = "ISSUEGATE_DB_PATH"
	EnvLogLevel      = "LOG_LEVEL"
	EnvLogFormat     = "LOG_FORMAT"
	EnvPublicDir     = "PUBLIC_DIR"
)

// Load builds the configuration from defaults, an optional YAML file, a .env
// file in the working directory and the process environment, in that order of
// increasing precedence. The result is validated before it is returned.
func Load(configPath string) (*Config, error) {
	return LoadWithEnvFile(configPath, ".env")
}

// LoadWithEnvFile is Load with an explicit dotenv path. A missing dotenv file
// is not an error.
func LoadWithEnvFile(configPath, envFile string) (*Config, error) {
	cfg, err := Resolve(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve merges every configuration source without validating the result,
// so callers such as the check command can report all problems at once.
func Resolve(configPath, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Defaults()
	if configPath != "" {
		if err := loadConfigFile(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file not found: %s\n"+
			"Hint: Check the path or run with --config flag", path)
	}

	expanded := interpolateEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overlays environment values onto cfg. Only variables that are set
// and non-empty take effect.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	get := func(name string) (string, bool) {
		v, ok := lookup(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	if v, ok := get(EnvGitHubToken); ok {
		cfg.GitHub.Token = v
	}
	if v, ok := get(EnvGitHubOwner); ok {
		cfg.GitHub.Owner = v
	}
	if v, ok := get(EnvGitHubRepo); ok {
		cfg.GitHub.Repo = v
	}
	if v, ok := get(EnvWebhookSecret); ok {
		cfg.Webhook.Secret = v
	}
	if v, ok := get(EnvGitHubAPIURL); ok {
		cfg.GitHub.BaseURL = v
	}
	if v, ok := get(EnvDBPath); ok {
		cfg.State.Path = v
	}
	if v, ok := get(EnvLogLevel); ok {
		cfg.Service.LogLevel = strings.ToLower(v)
	}
	if v, ok := get(EnvLogFormat); ok {
		cfg.Service.LogFormat = strings.ToLower(v)
	}
	if v, ok := get(EnvPublicDir); ok {
		cfg.Server.PublicDir = v
	}

	if v, ok := get(EnvPort); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s must be an integer (got %q)", EnvPort, v)
		}
		cfg.Server.Port = port
	}
	if v, ok := get(EnvGitHubTimeout); ok {
		d, err := parseTimeout(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvGitHubTimeout, err)
		}
		cfg.GitHub.Timeout = d
	}
	if v, ok := get(EnvGitHubRPS); ok {
		rps, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s must be a number (got %q)", EnvGitHubRPS, v)
		}
		cfg.GitHub.RequestsPerSecond = rps
	}
	return nil
}

// parseTimeout accepts a Go duration ("20s") or a bare number of seconds ("20").
func parseTimeout(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return d, nil
}

// interpolateEnv replaces ${VAR} with environment variable values.
// Undefined variables are left as-is (not expanded).
func interpolateEnv(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// Validate reports every problem with the configuration. Missing required
// values are named by their environment variable.
func (c *Config) Validate() error {
	var errs []error

	required := []struct {
		env   string
		value string
	}{
		{EnvGitHubToken, c.GitHub.Token},
		{EnvGitHubOwner, c.GitHub.Owner},
		{EnvGitHubRepo, c.GitHub.Repo},
		{EnvWebhookSecret, c.Webhook.Secret},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" || envVarPattern.MatchString(r.value) {
			errs = append(errs, fmt.Errorf("missing required env var: %s", r.env))
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port must be between 1 and 65535 (got %d)", c.Server.Port))
	}
	if c.GitHub.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("github.timeout must be positive"))
	}
	if c.GitHub.RequestsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("github.requests_per_second must not be negative"))
	}
	if c.Webhook.MaxBodySize <= 0 {
		errs = append(errs, fmt.Errorf("webhook.max_body_size must be positive"))
	}
	if c.State.Path == "" {
		errs = append(errs, fmt.Errorf("state.path is required"))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Service.LogLevel] {
		errs = append(errs, fmt.Errorf("service.log_level must be one of: debug, info, warn, error (got %q)", c.Service.LogLevel))
	}
	if c.Service.LogFormat != "json" && c.Service.LogFormat != "text" {
		errs = append(errs, fmt.Errorf("service.log_format must be json or text (got %q)", c.Service.LogFormat))
	}

	return errors.Join(errs...)
}
