package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const appName = "animeqa"

// Request modes accepted by `mode` and `ask --mode`.
const (
	ModeBuffered = "buffered"
	ModeChunked  = "chunked"
	ModeEvents   = "events"
)

type Config struct {
	BackendURL      string           `mapstructure:"backend_url"`
	Timeout         time.Duration    `mapstructure:"timeout"`
	StreamTimeout   time.Duration    `mapstructure:"stream_timeout"`
	Mode            string           `mapstructure:"mode"`
	StreamTransport string           `mapstructure:"stream_transport"`
	Markdown        bool             `mapstructure:"markdown"`
	Log             LogConfig        `mapstructure:"log"`
	Initialize      InitializeConfig `mapstructure:"initialize"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// InitializeConfig holds the retrieval settings sent by `animeqa init`.
type InitializeConfig struct {
	DataDir        string `mapstructure:"data_dir" yaml:"data_dir"`
	DBDir          string `mapstructure:"db_dir" yaml:"db_dir"`
	EmbeddingModel string `mapstructure:"embedding_model" yaml:"embedding_model"`
	LLMModel       string `mapstructure:"llm_model" yaml:"llm_model"`
	KDocs          int    `mapstructure:"k_docs" yaml:"k_docs"`
}

// KDocs bounds.
const (
	MinKDocs = 1
	MaxKDocs = 10
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("backend_url", "http://localhost:5000")
	v.SetDefault("timeout", "60s")
	v.SetDefault("stream_timeout", "5m")
	v.SetDefault("mode", ModeBuffered)
	v.SetDefault("stream_transport", ModeChunked)
	v.SetDefault("markdown", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("initialize.data_dir", "./data")
	v.SetDefault("initialize.db_dir", "./db")
	v.SetDefault("initialize.embedding_model", "sentence-transformers/all-mpnet-base-v2")
	v.SetDefault("initialize.llm_model", "groq:llama-3.1-8b-instant")
	v.SetDefault("initialize.k_docs", 3)
}

// Load reads the config file at path, or the default location when path is
// empty. A missing default file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ANIMEQA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// ANIMEQA_BACKEND_URL wins over the bare BACKEND_URL.
	if err := v.BindEnv("backend_url", "ANIMEQA_BACKEND_URL", "BACKEND_URL"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
		v.AddConfigPath(".")
	}

	// Read config file (optional unless given explicitly)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	resolved, err := ResolveValue(cfg.BackendURL)
	if err != nil {
		return nil, fmt.Errorf("resolve backend_url: %w", err)
	}
	cfg.BackendURL = strings.TrimRight(resolved, "/")
	cfg.Log.File = expandEnv(cfg.Log.File)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid backend_url %q: want an http(s) URL", c.BackendURL)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("invalid timeout %s: must not be negative", c.Timeout)
	}
	if c.StreamTimeout < 0 {
		return fmt.Errorf("invalid stream_timeout %s: must not be negative", c.StreamTimeout)
	}
	switch c.Mode {
	case ModeBuffered, ModeChunked, ModeEvents:
	default:
		return fmt.Errorf("invalid mode %q: want %s, %s or %s", c.Mode, ModeBuffered, ModeChunked, ModeEvents)
	}
	switch c.StreamTransport {
	case ModeChunked, ModeEvents:
	default:
		return fmt.Errorf("invalid stream_transport %q: want %s or %s", c.StreamTransport, ModeChunked, ModeEvents)
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log.level %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text":
	default:
		return fmt.Errorf("invalid log.format %q: want json or text", c.Log.Format)
	}
	return c.Initialize.Validate()
}

// Validate checks the retrieval settings.
func (ic InitializeConfig) Validate() error {
	if ic.KDocs < MinKDocs || ic.KDocs > MaxKDocs {
		return fmt.Errorf("invalid initialize.k_docs %d: must be between %d and %d", ic.KDocs, MinKDocs, MaxKDocs)
	}
	return nil
}

// ApplyOverrides layers command-line flags over the loaded config. Empty
// values leave the config unchanged. backendURL is resolved like the file
// value.
func (c *Config) ApplyOverrides(backendURL, logLevel string) error {
	if backendURL != "" {
		resolved, err := ResolveValue(backendURL)
		if err != nil {
			return fmt.Errorf("resolve --backend-url: %w", err)
		}
		c.BackendURL = strings.TrimRight(resolved, "/")
	}
	if logLevel != "" {
		c.Log.Level = logLevel
	}
	return nil
}

// expandEnv expands ${VAR} or $VAR in a string
func expandEnv(s string) string {
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		varName := s[2 : len(s)-1]
		return os.Getenv(varName)
	}
	if strings.HasPrefix(s, "$") {
		return os.Getenv(s[1:])
	}
	return s
}

func configDir() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config dir: %w", err)
	}
	return filepath.Join(dir, appName), nil
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Exists returns true if a config file exists at path, or at the default
// location when path is empty.
func Exists(path string) bool {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return false
		}
	}
	_, err := os.Stat(path)
	return err == nil
}

// fileConfig is the on-disk and printed shape; durations are kept readable.
type fileConfig struct {
	BackendURL      string           `yaml:"backend_url"`
	Timeout         string           `yaml:"timeout"`
	StreamTimeout   string           `yaml:"stream_timeout"`
	Mode            string           `yaml:"mode"`
	StreamTransport string           `yaml:"stream_transport"`
	Markdown        bool             `yaml:"markdown"`
	Log             fileLogConfig    `yaml:"log"`
	Initialize      InitializeConfig `yaml:"initialize"`
}

type fileLogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// Marshal renders cfg as YAML in the config file format.
func Marshal(cfg *Config) ([]byte, error) {
	return yaml.Marshal(fileConfig{
		BackendURL:      cfg.BackendURL,
		Timeout:         cfg.Timeout.String(),
		StreamTimeout:   cfg.StreamTimeout.String(),
		Mode:            cfg.Mode,
		StreamTransport: cfg.StreamTransport,
		Markdown:        cfg.Markdown,
		Log: fileLogConfig{
			Level:  cfg.Log.Level,
			Format: cfg.Log.Format,
			File:   cfg.Log.File,
		},
		Initialize: cfg.Initialize,
	})
}

// SaveInitialize writes ic into the initialize section of the config file at
// path, or at the default location when path is empty. The rest of the file
// is written back as read: values stay unresolved and env or flag overrides
// are not persisted.
func SaveInitialize(ic InitializeConfig, path string) (string, error) {
	if path == "" {
		var err error
		if path, err = GetConfigPath(); err != nil {
			return "", err
		}
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetConfigPermissions(0600)
	if _, err := os.Stat(path); err == nil {
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("failed to read config: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("failed to read config: %w", err)
	}

	v.Set("initialize.data_dir", ic.DataDir)
	v.Set("initialize.db_dir", ic.DBDir)
	v.Set("initialize.embedding_model", ic.EmbeddingModel)
	v.Set("initialize.llm_model", ic.LLMModel)
	v.Set("initialize.k_docs", ic.KDocs)

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return "", fmt.Errorf("failed to write config: %w", err)
	}
	return path, nil
}
