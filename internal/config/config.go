package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Cache backends.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
)

// Config holds application configuration
type Config struct {
	// Last.fm users to ingest
	Users []string

	// Events requested per Last.fm page (1-200)
	PageSize int

	// "backfill" fills history below the oldest stored scrobble,
	// "forward" only fetches scrobbles newer than the newest one
	Direction string

	// Directory holding scrobbles.db and state.json
	DataDir string

	LastFM      LastFMConfig
	MusicBrainz MusicBrainzConfig
	Cache       CacheConfig
	Redis       RedisConfig
	Daemon      DaemonConfig
	Server      ServerConfig
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey  string
	BaseURL string
}

// MusicBrainzConfig holds metadata provider configuration
type MusicBrainzConfig struct {
	UserAgent string
	BaseURL   string
	Interval  time.Duration // Minimum spacing between requests
}

// CacheConfig selects where artist and album metadata is cached
type CacheConfig struct {
	Backend string
}

// RedisConfig is used when Cache.Backend is "redis"
type RedisConfig struct {
	Addr   string
	DB     int
	Prefix string
}

// DaemonConfig holds scheduler configuration
type DaemonConfig struct {
	Interval time.Duration
}

// ServerConfig holds HTTP trigger configuration
type ServerConfig struct {
	Addr string
}

// Load reads configuration from file and environment.
// If configFile is empty, config.yaml is looked up in the config
// directory and the working directory.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(getConfigDir())
		v.AddConfigPath(".")
	}

	v.SetDefault("page_size", 200)
	v.SetDefault("direction", "backfill")
	v.SetDefault("data_dir", getConfigDir())
	v.SetDefault("lastfm.base_url", "https://ws.audioscrobbler.com/2.0/")
	v.SetDefault("musicbrainz.base_url", "https://musicbrainz.org/ws/2/")
	v.SetDefault("musicbrainz.interval", time.Second)
	v.SetDefault("cache.backend", CacheSQLite)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "scrobbledb:")
	v.SetDefault("daemon.interval", time.Hour)
	v.SetDefault("server.addr", "127.0.0.1:8080")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine when searching; an explicit one must exist.
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix("SCROBBLEDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		Users:     splitUsers(v.GetStringSlice("users")),
		PageSize:  v.GetInt("page_size"),
		Direction: v.GetString("direction"),
		DataDir:   v.GetString("data_dir"),
		LastFM: LastFMConfig{
			APIKey:  v.GetString("lastfm.api_key"),
			BaseURL: v.GetString("lastfm.base_url"),
		},
		MusicBrainz: MusicBrainzConfig{
			UserAgent: v.GetString("musicbrainz.user_agent"),
			BaseURL:   v.GetString("musicbrainz.base_url"),
			Interval:  v.GetDuration("musicbrainz.interval"),
		},
		Cache: CacheConfig{
			Backend: v.GetString("cache.backend"),
		},
		Redis: RedisConfig{
			Addr:   v.GetString("redis.addr"),
			DB:     v.GetInt("redis.db"),
			Prefix: v.GetString("redis.prefix"),
		},
		Daemon: DaemonConfig{
			Interval: v.GetDuration("daemon.interval"),
		},
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
	}

	return cfg, nil
}

// Validate reports settings that make ingestion impossible.
func (c *Config) Validate() error {
	var errs []error
	if c.LastFM.APIKey == "" {
		errs = append(errs, errors.New("lastfm.api_key is required"))
	}
	if c.MusicBrainz.UserAgent == "" {
		errs = append(errs, errors.New("musicbrainz.user_agent is required (e.g. \"scrobbledb/1.0 (you@example.com)\")"))
	}
	if c.PageSize < 1 || c.PageSize > 200 {
		errs = append(errs, fmt.Errorf("page_size must be between 1 and 200, got %d", c.PageSize))
	}
	switch c.Direction {
	case "backfill", "forward":
	default:
		errs = append(errs, fmt.Errorf("direction must be backfill or forward, got %q", c.Direction))
	}
	switch c.Cache.Backend {
	case CacheSQLite, CacheRedis:
	default:
		errs = append(errs, fmt.Errorf("cache.backend must be %s or %s, got %q", CacheSQLite, CacheRedis, c.Cache.Backend))
	}
	return errors.Join(errs...)
}

// DatabasePath returns the SQLite database location.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "scrobbles.db")
}

// StateFile returns the daemon state file location.
func (c *Config) StateFile() string {
	return filepath.Join(c.DataDir, "state.json")
}

// splitUsers accepts users given as a YAML list or as one comma or
// space separated string (as environment variables are).
func splitUsers(raw []string) []string {
	var users []string
	for _, entry := range raw {
		for _, u := range strings.FieldsFunc(entry, func(r rune) bool { return r == ',' || r == ' ' }) {
			users = append(users, u)
		}
	}
	return users
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "scrobbledb")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}
