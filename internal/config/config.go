package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/imclient/internal/errors"
)

const (
	// ConfigFileName is the name of the configuration file.
	ConfigFileName = "imclient.json"

	// TokenEnv overrides the token from the file.
	TokenEnv = "IMCLIENT_TOKEN"

	// DefaultTransport is the transport used when none is configured.
	DefaultTransport = "tcp"

	// DefaultTable is the default watermark table.
	DefaultTable = "im_watermarks"
)

// Config represents the complete imclient.json configuration.
type Config struct {
	// Account is the login account.
	Account int64 `json:"account"`

	// Token is the login token.
	Token string `json:"token,omitempty"`

	Server  ServerConfig  `json:"server"`
	Session SessionConfig `json:"session,omitempty"`
	History HistoryConfig `json:"history,omitempty"`
	Store   StoreConfig   `json:"store,omitempty"`
	Archive ArchiveConfig `json:"archive,omitempty"`
	Debug   DebugConfig   `json:"debug,omitempty"`
	Log     LogConfig     `json:"log,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// ServerConfig selects the server and transport.
type ServerConfig struct {
	// Address is host:port for the tcp transport.
	Address string `json:"address,omitempty"`

	// URL is the endpoint for the ws transport.
	URL string `json:"url,omitempty"`

	// Transport is "tcp" or "ws".
	Transport string `json:"transport,omitempty"`
}

// SessionConfig contains connection timing. Durations use Go syntax
// (e.g., "30s").
type SessionConfig struct {
	ConnectTimeout string `json:"connectTimeout,omitempty"`
	RequestTimeout string `json:"requestTimeout,omitempty"`
	ReconnectDelay string `json:"reconnectDelay,omitempty"`

	// Heartbeat is the heartbeat interval; "0s" disables heartbeats.
	Heartbeat string `json:"heartbeat,omitempty"`

	// LoadContacts fetches the contact list after login.
	LoadContacts bool `json:"loadContacts,omitempty"`
}

// HistoryConfig tunes history retrieval.
type HistoryConfig struct {
	PageSize int `json:"pageSize,omitempty"`
	Attempts int `json:"attempts,omitempty"`
}

// StoreConfig selects the watermark store. An empty Driver keeps
// watermarks in memory.
type StoreConfig struct {
	Driver  string `json:"driver,omitempty"`
	DSN     string `json:"dsn,omitempty"`
	Dialect string `json:"dialect,omitempty"`
	Table   string `json:"table,omitempty"`
}

// ArchiveConfig selects where exported history goes. Bucket takes
// precedence over Dir.
type ArchiveConfig struct {
	Bucket string `json:"bucket,omitempty"`
	Prefix string `json:"prefix,omitempty"`
	Dir    string `json:"dir,omitempty"`
	Gzip   bool   `json:"gzip,omitempty"`

	// Region and Endpoint address the S3 service. Endpoint is only needed
	// for S3 compatible stores and switches to path-style addressing.
	Region   string `json:"region,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
}

// DebugConfig configures the debug HTTP server. An empty Listen disables it.
type DebugConfig struct {
	Listen string `json:"listen,omitempty"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `json:"level,omitempty"`

	// Format is "text" or "json".
	Format string `json:"format,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads imclient.json from dir.
func Load(dir string) (*Config, error) {
	return LoadFile(filepath.Join(dir, ConfigFileName))
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E100").
				WithDetail("No " + ConfigFileName + " found in " + filepath.Dir(path)).
				WithSuggestion("Run 'imclient init' to write a starter configuration")
		}
		return nil, errors.New("E101").Wrap(err)
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.New("E101").
			WithDetail("Failed to parse " + ConfigFileName + ": " + err.Error()).
			WithSuggestion("Check that " + ConfigFileName + " is valid JSON")
	}

	cfg.configPath = path
	cfg.applyDefaults()
	if token := os.Getenv(TokenEnv); token != "" {
		cfg.Token = token
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// SaveTo writes the configuration to the specified path.
func (c *Config) SaveTo(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.New("E101").Wrap(err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.New("E101").Wrap(err)
	}
	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Server.Transport == "" {
		c.Server.Transport = DefaultTransport
	}

	if c.Session.ConnectTimeout == "" {
		c.Session.ConnectTimeout = "30s"
	}
	if c.Session.RequestTimeout == "" {
		c.Session.RequestTimeout = "5s"
	}
	if c.Session.ReconnectDelay == "" {
		c.Session.ReconnectDelay = "5s"
	}
	if c.Session.Heartbeat == "" {
		c.Session.Heartbeat = "60s"
	}

	if c.History.PageSize == 0 {
		c.History.PageSize = 20
	}
	if c.History.Attempts == 0 {
		c.History.Attempts = 1
	}

	if c.Store.Driver != "" && c.Store.Table == "" {
		c.Store.Table = DefaultTable
	}

	if c.Archive.Bucket != "" && c.Archive.Region == "" {
		c.Archive.Region = "us-east-1"
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	invalid := func(detail string) error {
		return errors.New("E101").WithDetail(detail)
	}

	switch c.Server.Transport {
	case "tcp":
		if c.Server.Address == "" {
			return invalid("server.address is required for the tcp transport")
		}
	case "ws":
		if c.Server.URL == "" {
			return invalid("server.url is required for the ws transport")
		}
	default:
		return invalid("server.transport must be \"tcp\" or \"ws\", got " + c.Server.Transport)
	}

	for name, v := range map[string]string{
		"session.connectTimeout": c.Session.ConnectTimeout,
		"session.requestTimeout": c.Session.RequestTimeout,
		"session.reconnectDelay": c.Session.ReconnectDelay,
		"session.heartbeat":      c.Session.Heartbeat,
	} {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return invalid(name + " must be a non-negative duration such as \"5s\"")
		}
	}

	if c.History.PageSize < 0 || c.History.Attempts < 0 {
		return invalid("history.pageSize and history.attempts must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return invalid("log.level: " + err.Error())
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return invalid("log.format must be \"text\" or \"json\"")
	}
	return nil
}

// duration parses a validated duration field.
func duration(v string) time.Duration {
	d, _ := time.ParseDuration(v)
	return d
}

// ConnectTimeout returns session.connectTimeout.
func (c *Config) ConnectTimeout() time.Duration { return duration(c.Session.ConnectTimeout) }

// RequestTimeout returns session.requestTimeout.
func (c *Config) RequestTimeout() time.Duration { return duration(c.Session.RequestTimeout) }

// ReconnectDelay returns session.reconnectDelay.
func (c *Config) ReconnectDelay() time.Duration { return duration(c.Session.ReconnectDelay) }

// HeartbeatInterval returns session.heartbeat.
func (c *Config) HeartbeatInterval() time.Duration { return duration(c.Session.Heartbeat) }

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level)))
	return level, err
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ConfigFileName))
	return err == nil
}
