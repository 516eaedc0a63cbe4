// Package config loads backlog settings from defaults, an optional YAML
// file, a .env file, the environment and command-line flags, in increasing
// order of precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/cdtdelta/backlog/internal/database"
	"github.com/cdtdelta/backlog/internal/table"
)

// EnvPrefix prefixes every environment variable, e.g. BACKLOG_STORE_DSN.
const EnvPrefix = "BACKLOG"

// Config keys.
const (
	KeyStoreDriver      = "store.driver"
	KeyStoreDSN         = "store.dsn"
	KeyServerAddr       = "server.addr"
	KeyServerCacheTTL   = "server.cache_ttl"
	KeyAdminToken       = "admin.token"
	KeyIGDBClientID     = "igdb.client_id"
	KeyIGDBClientSecret = "igdb.client_secret"
	KeyTablePageSize    = "table.page_size"
	KeyLogLevel         = "log.level"
	KeyLogFormat        = "log.format"
)

var (
	ErrDriverUnknown    = errors.New("unknown store driver")
	ErrDSNEmpty         = errors.New("store dsn must not be empty")
	ErrAddrEmpty        = errors.New("server address must not be empty")
	ErrCacheTTLInvalid  = errors.New("cache ttl must not be negative")
	ErrPageSizeInvalid  = errors.New("page size must be one of 10, 30, 50")
	ErrLogFormatUnknown = errors.New("log format must be json or console")
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"driver":      KeyStoreDriver,
	"dsn":         KeyStoreDSN,
	"addr":        KeyServerAddr,
	"cache-ttl":   KeyServerCacheTTL,
	"admin-token": KeyAdminToken,
	"log-level":   KeyLogLevel,
	"log-format":  KeyLogFormat,
}

// StoreConfig selects the row store.
type StoreConfig struct {
	Driver string
	DSN    string
}

// ServerConfig holds the HTTP listener and snapshot cache settings.
type ServerConfig struct {
	Addr     string
	CacheTTL time.Duration
}

// IGDBConfig holds the Twitch credentials of the metadata proxy.
type IGDBConfig struct {
	ClientID     string
	ClientSecret string
}

// LogConfig controls the zap logger.
type LogConfig struct {
	Level  string
	Format string
}

// Config is the resolved configuration.
type Config struct {
	Store      StoreConfig
	Server     ServerConfig
	AdminToken string
	IGDB       IGDBConfig
	PageSize   int
	Log        LogConfig
}

// Options controls where Load looks for settings.
type Options struct {
	// File is an optional YAML config file. A missing file is not an error.
	File string
	// EnvFiles are .env files loaded before reading the environment. When
	// empty, ".env" in the working directory is tried.
	EnvFiles []string
	// Flags, when set, override every other source for the flags named in
	// flagKeys that were changed on the command line.
	Flags *pflag.FlagSet
}

// Load resolves the configuration and validates it.
func Load(opts Options) (*Config, error) {
	if err := godotenv.Load(opts.EnvFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The metadata proxy also honours the Twitch variable names.
	if err := v.BindEnv(KeyIGDBClientID, EnvPrefix+"_IGDB_CLIENT_ID", "TWITCH_CLIENT_ID"); err != nil {
		return nil, err
	}
	if err := v.BindEnv(KeyIGDBClientSecret, EnvPrefix+"_IGDB_CLIENT_SECRET", "TWITCH_CLIENT_SECRET"); err != nil {
		return nil, err
	}

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	if opts.Flags != nil {
		for name, key := range flagKeys {
			if f := opts.Flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString(KeyStoreDriver)),
			DSN:    v.GetString(KeyStoreDSN),
		},
		Server: ServerConfig{
			Addr:     v.GetString(KeyServerAddr),
			CacheTTL: v.GetDuration(KeyServerCacheTTL),
		},
		AdminToken: v.GetString(KeyAdminToken),
		IGDB: IGDBConfig{
			ClientID:     v.GetString(KeyIGDBClientID),
			ClientSecret: v.GetString(KeyIGDBClientSecret),
		},
		PageSize: v.GetInt(KeyTablePageSize),
		Log: LogConfig{
			Level:  v.GetString(KeyLogLevel),
			Format: strings.ToLower(v.GetString(KeyLogFormat)),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyStoreDriver, database.DriverSQLite)
	v.SetDefault(KeyStoreDSN, "backlog.db")
	v.SetDefault(KeyServerAddr, ":8080")
	v.SetDefault(KeyServerCacheTTL, "10m")
	v.SetDefault(KeyTablePageSize, table.DefaultPageSize)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "json")
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case database.DriverSQLite, database.DriverPostgres:
	default:
		return fmt.Errorf("%w: %q", ErrDriverUnknown, c.Store.Driver)
	}
	if c.Store.DSN == "" {
		return ErrDSNEmpty
	}
	if c.Server.Addr == "" {
		return ErrAddrEmpty
	}
	if c.Server.CacheTTL < 0 {
		return ErrCacheTTLInvalid
	}
	if !table.ValidPageSize(c.PageSize) {
		return fmt.Errorf("%w: %d", ErrPageSizeInvalid, c.PageSize)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("%w: %q", ErrLogFormatUnknown, c.Log.Format)
	}
	return nil
}

// AdminEnabled reports whether an admin token is configured.
func (c Config) AdminEnabled() bool {
	return c.AdminToken != ""
}

// IGDBEnabled reports whether metadata proxy credentials are configured.
func (c Config) IGDBEnabled() bool {
	return c.IGDB.ClientID != "" && c.IGDB.ClientSecret != ""
}
