package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atinyakov/totpkeeper/internal/totp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	opts, err := Load(newFlags(t))
	require.NoError(t, err)

	assert.Equal(t, ".totp_keeper.json", filepath.Base(opts.Store))
	assert.Empty(t, opts.DatabaseDSN)
	assert.Equal(t, "warn", opts.LogLevel)
	assert.Equal(t, 5*time.Second, opts.LockTimeout)
	assert.False(t, opts.IgnoreCase)

	p, err := opts.Params()
	require.NoError(t, err)
	assert.Equal(t, totp.DefaultParams(), p)
}

func TestLoad_ConfigFileEnvAndFlags(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(`{
		"store": "/from/file.json",
		"log_level": "info",
		"ignore_case": true,
		"totp": {"digits": 8, "algorithm": "sha256"}
	}`), 0o600))

	t.Setenv("TOTPKEEPER_LOG_LEVEL", "debug")
	t.Setenv("TOTPKEEPER_TOTP_STEP", "60")

	opts, err := Load(newFlags(t, "--config", cfgPath, "--store", "/from/flag.json", "--lock-timeout", "250ms"))
	require.NoError(t, err)

	assert.Equal(t, cfgPath, opts.Config)
	assert.Equal(t, "/from/flag.json", opts.Store)
	assert.Equal(t, "debug", opts.LogLevel)
	assert.True(t, opts.IgnoreCase)
	assert.Equal(t, 250*time.Millisecond, opts.LockTimeout)

	p, err := opts.Params()
	require.NoError(t, err)
	assert.Equal(t, totp.Params{Step: 60, Digits: 8, Algorithm: totp.SHA256}, p)
}

func TestLoad_MissingConfigFileIgnored(t *testing.T) {
	opts, err := Load(newFlags(t, "--config", filepath.Join(t.TempDir(), "absent.json"), "--store", "s.json"))
	require.NoError(t, err)
	assert.Equal(t, "s.json", opts.Store)
}

func TestLoad_BadConfigFile(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte("{broken"), 0o600))

	_, err := Load(newFlags(t, "--config", cfgPath))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config file")
}

func TestLoad_InvalidTOTP(t *testing.T) {
	t.Setenv("TOTPKEEPER_TOTP_DIGITS", "12")
	_, err := Load(newFlags(t, "--store", "s.json"))
	assert.ErrorIs(t, err, totp.ErrInvalidParams)

	t.Setenv("TOTPKEEPER_TOTP_DIGITS", "6")
	t.Setenv("TOTPKEEPER_TOTP_ALGORITHM", "md5")
	_, err = Load(newFlags(t, "--store", "s.json"))
	assert.ErrorIs(t, err, totp.ErrInvalidParams)
}

func TestLoad_NilFlagSet(t *testing.T) {
	t.Setenv("TOTPKEEPER_DATABASE_DSN", "postgres://localhost/totp")
	opts, err := Load(nil)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/totp", opts.DatabaseDSN)
}
