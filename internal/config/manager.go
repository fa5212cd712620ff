package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"video-parser/pkg/models"
)

// EnvPrefix prefixes every environment override, e.g. VP_SERVER_PORT
const EnvPrefix = "VP"

// legacyEnv maps configuration keys to the environment names older deployments use
var legacyEnv = map[string]string{
	"auth.secret_token":       "API_SECRET_TOKEN",
	"auth.basic_username":     "PARSE_VIDEO_USERNAME",
	"auth.basic_password":     "PARSE_VIDEO_PASSWORD",
	"platforms.douyin.cookie": "DOUYIN_COOKIE",
}

// Manager manages application configuration
type Manager struct {
	config *models.Config
	viper  *viper.Viper
	logger zerolog.Logger
}

// NewManager creates a new configuration manager
func NewManager() *Manager {
	return &Manager{
		config: &models.Config{},
		viper:  viper.New(),
		logger: zerolog.New(os.Stdout).With().Timestamp().Logger(),
	}
}

// Load loads configuration from file and environment. configPath may name a
// file or a directory; when empty the default search paths are used.
func (m *Manager) Load(configPath string) (*models.Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	m.setDefaults()

	m.viper.SetConfigType("yaml")
	switch {
	case configPath == "":
		m.viper.SetConfigName("config")
		m.viper.AddConfigPath(".")
		m.viper.AddConfigPath("./config")
		m.viper.AddConfigPath("$HOME/.video-parser")
		m.viper.AddConfigPath("/etc/video-parser")
	case isConfigFile(configPath):
		m.viper.SetConfigFile(configPath)
	default:
		m.viper.SetConfigName("config")
		m.viper.AddConfigPath(configPath)
	}

	// Enable environment variable support
	m.viper.SetEnvPrefix(EnvPrefix)
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	m.viper.AutomaticEnv()
	if err := m.bindLegacyEnv(); err != nil {
		return nil, err
	}

	if err := m.viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		m.logger.Debug().Msg("No config file found, using defaults and environment")
	}

	if err := m.viper.Unmarshal(m.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := Validate(m.config); err != nil {
		return nil, err
	}

	if err := m.ensureDirectories(); err != nil {
		return nil, fmt.Errorf("error ensuring directories: %w", err)
	}

	return m.config, nil
}

func isConfigFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// bindLegacyEnv binds the prefixed name first so it wins over the legacy one
func (m *Manager) bindLegacyEnv() error {
	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := m.viper.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("error binding %s: %w", legacy, err)
		}
	}
	return nil
}

// ConfigFile returns the file the configuration was read from, if any
func (m *Manager) ConfigFile() string {
	return m.viper.ConfigFileUsed()
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	m.viper.SetDefault("server.host", "0.0.0.0")
	m.viper.SetDefault("server.port", 8080)
	m.viper.SetDefault("server.read_timeout", 30)
	m.viper.SetDefault("server.write_timeout", 60)

	// Database defaults
	m.viper.SetDefault("database.enabled", false)
	m.viper.SetDefault("database.path", "./data/video-parser.db")

	// Log defaults
	m.viper.SetDefault("log.level", "info")
	m.viper.SetDefault("log.format", "text")
	m.viper.SetDefault("log.output", "stdout")

	// Proxy defaults
	m.viper.SetDefault("proxy.enabled", false)
	m.viper.SetDefault("proxy.type", "http")
	m.viper.SetDefault("proxy.host", "")
	m.viper.SetDefault("proxy.port", 0)
	m.viper.SetDefault("proxy.username", "")
	m.viper.SetDefault("proxy.password", "")

	// Platform defaults
	m.viper.SetDefault("platforms.douyin.enabled", true)
	m.viper.SetDefault("platforms.douyin.cookie", "")
	m.viper.SetDefault("platforms.douyin.mobile_user_agent", "")
	m.viper.SetDefault("platforms.douyin.desktop_user_agent", "")
	m.viper.SetDefault("platforms.douyin.redirect_timeout", 5)
	m.viper.SetDefault("platforms.douyin.page_timeout", 15)
	m.viper.SetDefault("platforms.douyin.api_timeout", 15)
	m.viper.SetDefault("platforms.douyin.direct_url_timeout", 10)

	// Signer defaults
	m.viper.SetDefault("signer.script_path", "")
	m.viper.SetDefault("signer.function", "sign")

	// Auth defaults
	m.viper.SetDefault("auth.enabled", true)
	m.viper.SetDefault("auth.secret_token", "")
	m.viper.SetDefault("auth.basic_username", "")
	m.viper.SetDefault("auth.basic_password", "")
	m.viper.SetDefault("auth.jwt_secret", "")
	m.viper.SetDefault("auth.token_expiry", 24)
	m.viper.SetDefault("auth.admin_password", "")

	// Rate limit defaults
	m.viper.SetDefault("rate_limit.enabled", true)
	m.viper.SetDefault("rate_limit.requests_per_second", 10)
	m.viper.SetDefault("rate_limit.burst", 30)
	m.viper.SetDefault("rate_limit.max_concurrent", 100)
	m.viper.SetDefault("rate_limit.whitelisted_ips", []string{"127.0.0.1", "::1"})

	// Batch defaults
	m.viper.SetDefault("batch.max_concurrent", 4)
	m.viper.SetDefault("batch.max_items", 50)
	m.viper.SetDefault("batch.job_retention", 60)
}

// Validate checks values that would otherwise fail later at runtime
func Validate(config *models.Config) error {
	if config.Server.Port < 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port: %d", config.Server.Port)
	}

	d := config.Platforms.Douyin
	for name, seconds := range map[string]int{
		"redirect_timeout":   d.RedirectTimeout,
		"page_timeout":       d.PageTimeout,
		"api_timeout":        d.APITimeout,
		"direct_url_timeout": d.DirectURLTimeout,
	} {
		if seconds < 0 {
			return fmt.Errorf("invalid platforms.douyin.%s: %d", name, seconds)
		}
	}

	if config.Proxy.Enabled {
		switch config.Proxy.Type {
		case "http", "https", "socks5":
		default:
			return fmt.Errorf("invalid proxy.type: %q", config.Proxy.Type)
		}
		if config.Proxy.Host == "" || config.Proxy.Port <= 0 {
			return errors.New("proxy.host and proxy.port are required when the proxy is enabled")
		}
	}

	if config.RateLimit.Enabled && config.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("invalid rate_limit.requests_per_second: %d", config.RateLimit.RequestsPerSecond)
	}

	if config.Batch.MaxConcurrent < 0 || config.Batch.MaxItems < 0 || config.Batch.JobRetention < 0 {
		return errors.New("batch limits must not be negative")
	}

	return nil
}

// ensureDirectories ensures all required directories exist
func (m *Manager) ensureDirectories() error {
	var dirs []string
	if m.config.Database.Enabled {
		dirs = append(dirs, filepath.Dir(m.config.Database.Path))
	}
	if out := m.config.Log.Output; out != "" && out != "stdout" && out != "stderr" {
		dirs = append(dirs, filepath.Dir(out))
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating directory %s: %w", dir, err)
		}
	}

	return nil
}

// NewLogger builds the process logger from the log section and installs it as
// the global zerolog logger
func NewLogger(config *models.Config) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(config.Log.Level)
	if err != nil || config.Log.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer
	switch config.Log.Output {
	case "", "stdout":
		out = os.Stdout
	case "stderr":
		out = os.Stderr
	default:
		file, err := os.OpenFile(config.Log.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("error opening log file: %w", err)
		}
		out = file
	}

	if config.Log.Format != "json" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "2006-01-02 15:04:05", NoColor: out != os.Stdout && out != os.Stderr}
	}

	logger := zerolog.New(out).Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger, nil
}

// Marshal renders the configuration as YAML
func Marshal(config *models.Config) ([]byte, error) {
	data, err := yaml.Marshal(config)
	if err != nil {
		return nil, fmt.Errorf("error marshaling config: %w", err)
	}
	return data, nil
}

// WriteDefault writes a commented default configuration file. An existing file
// is only replaced when overwrite is set.
func WriteDefault(path string, overwrite bool) error {
	if _, err := os.Stat(path); err == nil && !overwrite {
		return fmt.Errorf("config file already exists: %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(defaultConfig), 0600); err != nil {
		return fmt.Errorf("error writing default config: %w", err)
	}
	return nil
}

const defaultConfig = `# Video Parser Configuration

server:
  host: 0.0.0.0
  port: 8080
  read_timeout: 30
  write_timeout: 60

database:
  # persist the session credential across restarts
  enabled: false
  path: ./data/video-parser.db

log:
  level: info
  format: text   # text | json
  output: stdout # stdout | stderr | file path

proxy:
  enabled: false
  type: http     # http | https | socks5
  host: ""
  port: 0
  username: ""
  password: ""

platforms:
  douyin:
    enabled: true
    # session cookie for the signed API; also DOUYIN_COOKIE
    cookie: ""
    mobile_user_agent: ""
    desktop_user_agent: ""
    # seconds
    redirect_timeout: 5
    page_timeout: 15
    api_timeout: 15
    direct_url_timeout: 10

signer:
  # defaults to a_bogus.js next to the binary or in the working directory
  script_path: ""
  function: sign

auth:
  enabled: true
  # x-auth-token header value; also API_SECRET_TOKEN
  secret_token: ""
  # HTTP basic auth for parse routes; also PARSE_VIDEO_USERNAME / PARSE_VIDEO_PASSWORD
  basic_username: ""
  basic_password: ""
  jwt_secret: ""
  token_expiry: 24 # hours
  admin_password: ""

rate_limit:
  enabled: true
  requests_per_second: 10
  burst: 30
  max_concurrent: 100
  whitelisted_ips:
    - "127.0.0.1"
    - "::1"

batch:
  max_concurrent: 4
  max_items: 50
  job_retention: 60 # minutes a finished background job stays queryable
`
