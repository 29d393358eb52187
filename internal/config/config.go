// Package config provides functionality for managing configuration options
// for the application using command-line flags, environment variables and
// an optional JSON config file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atinyakov/totpkeeper/internal/totp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g. TOTPKEEPER_STORE.
const EnvPrefix = "TOTPKEEPER"

// Options holds the configuration values for the application.
type Options struct {
	// Config is the path to the JSON config file.
	Config string `mapstructure:"config"`

	// Store is the path of the JSON store file.
	Store string `mapstructure:"store"`

	// DatabaseDSN selects the PostgreSQL backend when set.
	DatabaseDSN string `mapstructure:"database_dsn"`

	// KeyFile seals the JSON store with a key derived from this file.
	KeyFile string `mapstructure:"key_file"`

	// LogLevel is the zap level for diagnostics on stderr.
	LogLevel string `mapstructure:"log_level"`

	// LockTimeout bounds the wait for the store lock.
	LockTimeout time.Duration `mapstructure:"lock_timeout"`

	// IgnoreCase folds case for exact identity matches.
	IgnoreCase bool `mapstructure:"ignore_case"`

	// TOTP holds the code generation parameters.
	TOTP TOTPOptions `mapstructure:"totp"`
}

// TOTPOptions configures code generation.
type TOTPOptions struct {
	Step      uint64 `mapstructure:"step"`
	Digits    int    `mapstructure:"digits"`
	Algorithm string `mapstructure:"algorithm"`
}

// flag name -> config key
var flagKeys = map[string]string{
	"config":       "config",
	"store":        "store",
	"database-dsn": "database_dsn",
	"key-file":     "key_file",
	"log-level":    "log_level",
	"lock-timeout": "lock_timeout",
	"ignore-case":  "ignore_case",
}

// RegisterFlags adds the global flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("config", "c", "", "path to JSON config file")
	fs.StringP("store", "s", "", "path to the secret store file")
	fs.String("database-dsn", "", "PostgreSQL DSN; uses the database instead of the store file")
	fs.String("key-file", "", "seal the store file with a key derived from this file")
	fs.String("log-level", "", "log level: debug, info, warn, error")
	fs.Duration("lock-timeout", 0, "how long to wait for another process to release the store")
	fs.Bool("ignore-case", false, "match identities case-insensitively")
}

// Load resolves the options. Precedence, lowest first: defaults, config
// file, environment, flags that were set explicitly.
func Load(fs *pflag.FlagSet) (*Options, error) {
	v := viper.New()

	v.SetDefault("config", defaultConfigPath())
	v.SetDefault("store", defaultStorePath())
	v.SetDefault("database_dsn", "")
	v.SetDefault("key_file", "")
	v.SetDefault("log_level", "warn")
	v.SetDefault("lock_timeout", "5s")
	v.SetDefault("ignore_case", false)
	v.SetDefault("totp.step", totp.DefaultStep)
	v.SetDefault("totp.digits", totp.DefaultDigits)
	v.SetDefault("totp.algorithm", totp.SHA1.String())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if fs != nil {
		for name, key := range flagKeys {
			f := fs.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path := v.GetString("config"); path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("error while parsing config file: %w", err)
			}
		}
	}

	var opts Options
	if err := v.Unmarshal(&opts); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &opts, nil
}

// Params converts the TOTP options to engine parameters.
func (o *Options) Params() (totp.Params, error) {
	alg, err := totp.ParseAlgorithm(o.TOTP.Algorithm)
	if err != nil {
		return totp.Params{}, err
	}
	p := totp.Params{
		Step:      o.TOTP.Step,
		Digits:    o.TOTP.Digits,
		Algorithm: alg,
	}
	return p, p.Validate()
}

func (o *Options) validate() error {
	if o.Store == "" && o.DatabaseDSN == "" {
		return errors.New("config: store path is required")
	}
	if o.LockTimeout < 0 {
		return errors.New("config: lock_timeout must not be negative")
	}
	if _, err := o.Params(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".totp_keeper.json"
	}
	return filepath.Join(home, ".totp_keeper.json")
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "totpkeeper", "config.json")
}
