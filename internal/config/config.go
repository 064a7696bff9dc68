package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/lu-zhengda/mailsession/internal/domain"
)

const appName = "mailsession"

// Config holds all mailsession configuration.
type Config struct {
	Backend   BackendConfig   `toml:"backend"`
	Session   SessionConfig   `toml:"session"`
	Users     UsersConfig     `toml:"users"`
	Gmail     GmailConfig     `toml:"gmail"`
	Assistant AssistantConfig `toml:"assistant"`
	Log       LogConfig       `toml:"log"`
}

// BackendConfig selects the remote data gateway.
type BackendConfig struct {
	Kind     string `toml:"kind" validate:"oneof=graphql gmail"`
	Endpoint string `toml:"endpoint" validate:"omitempty,url"`
	Timeout  string `toml:"timeout"`
	PageSize int    `toml:"page_size" validate:"gte=0,lte=500"`
}

// SessionConfig holds the initial session view.
type SessionConfig struct {
	DefaultFolder string `toml:"default_folder" validate:"required"`
}

// UsersConfig holds user selection settings.
type UsersConfig struct {
	Default string `toml:"default"`
}

// GmailConfig holds Gmail OAuth credentials.
// Users can set them in the config file, the environment, or a .env file.
type GmailConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
}

// AssistantConfig configures the optional writing assistant.
type AssistantConfig struct {
	Provider string `toml:"provider" validate:"omitempty,oneof=none ollama bedrock"`
	Endpoint string `toml:"endpoint" validate:"omitempty,url"`
	Model    string `toml:"model"`
	Region   string `toml:"region"`
	Timeout  string `toml:"timeout"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

var validate = validator.New()

func defaults() Config {
	return Config{
		Backend: BackendConfig{
			Kind:     "graphql",
			Endpoint: "http://localhost:4000/graphql",
			Timeout:  "30s",
			PageSize: 50,
		},
		Session: SessionConfig{
			DefaultFolder: string(domain.FolderInbox),
		},
		Assistant: AssistantConfig{
			Timeout: "60s",
		},
		Log: LogConfig{
			Level: "warn",
		},
	}
}

// Load reads config from path. If path is empty or missing, defaults are
// used. Environment variables, including those from a .env file in the
// working directory or the config directory, override file values.
func Load(path string) (*Config, error) {
	cfg := defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err == nil {
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	loadDotEnv()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadDotEnv loads .env files without overriding variables already set.
func loadDotEnv() {
	for _, p := range []string{".env", filepath.Join(ConfigDir(), ".env")} {
		if _, err := os.Stat(p); err == nil {
			_ = godotenv.Load(p)
		}
	}
}

func (c *Config) applyEnv() {
	if v := os.Getenv("MAILSESSION_BACKEND"); v != "" {
		c.Backend.Kind = v
	}
	if v := os.Getenv("MAILSESSION_ENDPOINT"); v != "" {
		c.Backend.Endpoint = v
	}
	if v := os.Getenv("GMAIL_CLIENT_ID"); v != "" {
		c.Gmail.ClientID = v
	}
	if v := os.Getenv("GMAIL_CLIENT_SECRET"); v != "" {
		c.Gmail.ClientSecret = v
	}
	if v := os.Getenv("MAILSESSION_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks field values and durations.
func (c *Config) Validate() error {
	c.Backend.Kind = strings.ToLower(strings.TrimSpace(c.Backend.Kind))
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Backend.Kind == "graphql" && c.Backend.Endpoint == "" {
		return errors.New("invalid config: backend.endpoint is required for the graphql backend")
	}
	if _, err := c.DefaultFolder(); err != nil {
		return fmt.Errorf("invalid config: session.default_folder: %w", err)
	}
	if _, err := parseDuration(c.Backend.Timeout); err != nil {
		return fmt.Errorf("invalid config: backend.timeout: %w", err)
	}
	if _, err := parseDuration(c.Assistant.Timeout); err != nil {
		return fmt.Errorf("invalid config: assistant.timeout: %w", err)
	}
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("invalid config: log.level: %w", err)
	}
	return nil
}

// DefaultFolder returns the folder a new session starts in.
func (c *Config) DefaultFolder() (domain.Folder, error) {
	return domain.ParseFolder(c.Session.DefaultFolder)
}

// BackendTimeout returns the per-request gateway timeout.
func (c *Config) BackendTimeout() time.Duration {
	d, _ := parseDuration(c.Backend.Timeout)
	return d
}

// AssistantTimeout returns the per-request assistant timeout.
func (c *Config) AssistantTimeout() time.Duration {
	d, _ := parseDuration(c.Assistant.Timeout)
	return d
}

// LogLevel returns the configured logrus level.
func (c *Config) LogLevel() (logrus.Level, error) {
	if c.Log.Level == "" {
		return logrus.WarnLevel, nil
	}
	return logrus.ParseLevel(c.Log.Level)
}

// Token returns the bearer token for the GraphQL backend from the
// environment, if any.
func Token() string {
	return os.Getenv("MAILSESSION_TOKEN")
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}

// ConfigDir returns the mailsession config directory path.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appName)
}

// DataDir returns the mailsession data directory path.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, appName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", appName)
}

// DefaultPath returns the default config file location.
func DefaultPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}
