package veloxdb

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/syssam/veloxdb/dialect"
	"github.com/syssam/veloxdb/dialect/sql"
	"github.com/syssam/veloxdb/fieldcrypt"
	"github.com/syssam/veloxdb/view"
)

// Config holds the module's settings: the database connection, the
// encryption secrets for field-level encryption, and the declared views.
type Config struct {
	// Dialect is one of dialect.Postgres, dialect.MySQL, dialect.SQLite.
	Dialect string `yaml:"dialect"`
	// DSN is the database connection string. Overridable with VELOXDB_DSN.
	DSN string `yaml:"dsn"`
	// Secrets are the encryption secrets, newest first. Overridable with
	// VELOXDB_SECRETS (comma-separated).
	Secrets []string `yaml:"secrets"`
	// SecretsFile points to a file with one secret per line, newest first.
	// When set it takes precedence over Secrets and supports hot rotation.
	SecretsFile string `yaml:"secrets_file"`
	// RawKeys disables key derivation: secrets must already be encoded
	// Fernet keys.
	RawKeys bool `yaml:"raw_keys"`
	// Views declares the views to keep in sync.
	Views []ViewConfig `yaml:"views"`
}

// ViewConfig declares one view in the configuration file.
type ViewConfig struct {
	Name            string   `yaml:"name"`
	SQL             string   `yaml:"sql"`
	Dependencies    []string `yaml:"dependencies"`
	Materialized    bool     `yaml:"materialized"`
	ConcurrentIndex string   `yaml:"concurrent_index"`
}

// LoadConfig reads a YAML configuration file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("veloxdb: reading config: %w", err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return nil, fmt.Errorf("veloxdb: parsing config: %w", err)
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if dsn := os.Getenv("VELOXDB_DSN"); dsn != "" {
		c.DSN = dsn
	}
	if secrets := os.Getenv("VELOXDB_SECRETS"); secrets != "" {
		c.Secrets = strings.Split(secrets, ",")
	}
}

// Validate checks the configuration for structural errors. View
// declarations are validated by Registry.
func (c *Config) Validate() error {
	switch c.Dialect {
	case dialect.Postgres, dialect.MySQL, dialect.SQLite:
	case "":
		return NewConfigError("dialect", "missing")
	default:
		return NewConfigError("dialect", fmt.Sprintf("unsupported dialect %q", c.Dialect))
	}
	if c.DSN == "" {
		return NewConfigError("dsn", "missing")
	}
	if c.SecretsFile != "" && len(c.Secrets) > 0 {
		return NewConfigError("secrets", "secrets and secrets_file are mutually exclusive")
	}
	return nil
}

// Open opens a database driver for the configured dialect and DSN.
func (c *Config) Open() (*sql.Driver, error) {
	return sql.Open(c.Dialect, c.DSN)
}

// Keyset builds the encryption keyset from the configured secrets. With
// SecretsFile set, the returned provider watches the file and picks up
// rotations without a restart; the caller owns closing it.
func (c *Config) Keyset() (fieldcrypt.Provider, error) {
	var opts []fieldcrypt.Option
	if c.RawKeys {
		opts = append(opts, fieldcrypt.WithRawKeys())
	}
	if c.SecretsFile != "" {
		src, err := fieldcrypt.Watch(c.SecretsFile, opts...)
		if err != nil {
			return nil, err
		}
		return src, nil
	}
	ks, err := fieldcrypt.New(c.Secrets, opts...)
	if err != nil {
		return nil, err
	}
	return ks, nil
}

// Registry builds the view registry from the configured declarations.
func (c *Config) Registry() (*view.Registry, error) {
	reg := view.NewRegistry()
	for _, v := range c.Views {
		err := reg.Register(view.Definition{
			Name:            v.Name,
			SQL:             v.SQL,
			Dependencies:    v.Dependencies,
			Materialized:    v.Materialized,
			ConcurrentIndex: v.ConcurrentIndex,
		})
		if err != nil {
			return nil, err
		}
	}
	return reg, nil
}
