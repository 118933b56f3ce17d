// Package config loads and validates service configuration.
//
// Precedence, highest first: environment variables (CONCIERGE_*), the
// config file (~/.concierge/config.yaml or --config), then built-in
// defaults. Secrets are masked when the config is marshalled for
// logging.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel errors returned by Load and Validate.
var (
	ErrConfigNotFound = errors.New("config file not found")
	ErrInvalidConfig  = errors.New("invalid configuration")
)

const (
	envPrefix      = "CONCIERGE"
	configDirName  = ".concierge"
	configFileName = "config"
	configFileType = "yaml"
)

// Config is the root of all runtime settings.
type Config struct {
	Server    Server    `mapstructure:"server"`
	Database  Database  `mapstructure:"database"`
	AI        AI        `mapstructure:"ai"`
	Retrieval Retrieval `mapstructure:"retrieval"`
	Memory    Memory    `mapstructure:"memory"`
	Agent     Agent     `mapstructure:"agent"`
	Log       Log       `mapstructure:"log"`
}

// Server configures the HTTP listener.
type Server struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Database configures the Postgres connection.
type Database struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	SSLMode  string `mapstructure:"sslmode"`
	// URL, when set, overrides the individual fields above.
	URL string `mapstructure:"url"`
}

// AI selects the model provider and names the generation and embedding
// models.
type AI struct {
	// Provider is one of "googleai" or "ollama".
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`
	Embedder string `mapstructure:"embedder"`
	APIKey   string `mapstructure:"api_key"`
	// EmbeddingDim must match the vector column width in the schema.
	EmbeddingDim int `mapstructure:"embedding_dim"`
	// OllamaHost is only consulted when Provider is "ollama".
	OllamaHost string `mapstructure:"ollama_host"`
}

// Retrieval tunes the knowledge search performed before generation.
type Retrieval struct {
	TopK     int     `mapstructure:"top_k"`
	MinScore float64 `mapstructure:"min_score"`
}

// Memory tunes conversation history.
type Memory struct {
	// WindowTurns is how many recent turns are replayed into the prompt.
	WindowTurns int `mapstructure:"window_turns"`
	// RetentionCap is the per-chat turn count beyond which the oldest
	// turns are evicted.
	RetentionCap int `mapstructure:"retention_cap"`
}

// Agent tunes the response cycle.
type Agent struct {
	MaxAttempts    int           `mapstructure:"max_attempts"`
	InitialBackoff time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `mapstructure:"max_backoff"`
	MaxToolRounds  int           `mapstructure:"max_tool_rounds"`
	// RequestsPerSecond caps calls to the model provider. Zero disables
	// the limiter.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// Log configures the structured logger.
type Log struct {
	Level     string `mapstructure:"level"`
	JSON      bool   `mapstructure:"json"`
	AddSource bool   `mapstructure:"add_source"`
}

// Load reads configuration from the given file path, or from the
// default location when path is empty. A missing default file is fine;
// a missing explicit file is an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	bindEnvVariables(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, configDirName))
		}
		v.SetConfigName(configFileName)
		v.SetConfigType(configFileType)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "concierge")
	v.SetDefault("database.name", "concierge")
	v.SetDefault("database.sslmode", "disable")

	v.SetDefault("ai.provider", "googleai")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.embedder", "text-embedding-004")
	v.SetDefault("ai.embedding_dim", 768)
	v.SetDefault("ai.ollama_host", "http://localhost:11434")

	v.SetDefault("retrieval.top_k", 5)
	v.SetDefault("retrieval.min_score", 0.5)

	v.SetDefault("memory.window_turns", 20)
	v.SetDefault("memory.retention_cap", 200)

	v.SetDefault("agent.max_attempts", 3)
	v.SetDefault("agent.initial_backoff", 500*time.Millisecond)
	v.SetDefault("agent.max_backoff", 10*time.Second)
	v.SetDefault("agent.max_tool_rounds", 3)
	v.SetDefault("agent.requests_per_second", 2.0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", true)
	v.SetDefault("log.add_source", false)
}

func bindEnvVariables(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit binds so env vars work without a config file present.
	for _, key := range []string{
		"server.host", "server.port",
		"database.host", "database.port", "database.user",
		"database.password", "database.name", "database.sslmode",
		"database.url",
		"ai.provider", "ai.model", "ai.embedder", "ai.api_key",
		"ai.embedding_dim", "ai.ollama_host",
		"retrieval.top_k", "retrieval.min_score",
		"memory.window_turns", "memory.retention_cap",
		"agent.max_attempts", "agent.initial_backoff",
		"agent.max_backoff", "agent.max_tool_rounds",
		"agent.requests_per_second",
		"log.level", "log.json", "log.add_source",
	} {
		mustBind(v, key)
	}
}

func mustBind(v *viper.Viper, key string) {
	if err := v.BindEnv(key); err != nil {
		panic(fmt.Sprintf("bind env %s: %v", key, err))
	}
}

// PostgresURL returns the connection string for pgx. An explicit
// database.url wins over the assembled form.
func (c *Config) PostgresURL() string {
	if c.Database.URL != "" {
		return c.Database.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", c.Database.Host, c.Database.Port),
		Path:   c.Database.Name,
	}
	if c.Database.Password != "" {
		u.User = url.UserPassword(c.Database.User, c.Database.Password)
	} else {
		u.User = url.User(c.Database.User)
	}
	q := u.Query()
	q.Set("sslmode", c.Database.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// FullModelName returns the provider-qualified model name for genkit,
// e.g. "googleai/gemini-2.5-flash". A name already containing "/" is
// returned as-is.
func (c *Config) FullModelName() string {
	if strings.Contains(c.AI.Model, "/") {
		return c.AI.Model
	}
	return c.AI.Provider + "/" + c.AI.Model
}

// Addr returns the host:port the HTTP server binds to.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MarshalJSON masks secrets so the config can be logged safely.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.AI.APIKey = maskSecret(a.AI.APIKey)
	a.Database.Password = maskSecret(a.Database.Password)
	a.Database.URL = maskSecret(a.Database.URL)
	return json.Marshal(a)
}

func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "****"
	}
	return s[:4] + "****"
}
