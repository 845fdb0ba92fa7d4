// Package config resolves pidcheck settings from defaults, an optional YAML
// file and PIDCHECK_* environment variables, in that order of precedence.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"pidcheck/internal/evaluate"
	"pidcheck/internal/resolve"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "PIDCHECK_"

// Storage drivers.
const (
	StorageMemory   = "memory"
	StorageSQLite   = "sqlite"
	StoragePostgres = "postgres"
)

// Blob drivers.
const (
	BlobFilesystem = "fs"
	BlobS3         = "s3"
	BlobMemory     = "memory"
)

// Config is the resolved configuration.
type Config struct {
	LogLevel     string   `yaml:"log_level"`
	LogFormat    string   `yaml:"log_format"`
	CatalogPaths []string `yaml:"catalog_paths"`
	Storage      Storage  `yaml:"storage"`
	Blob         Blob     `yaml:"blob"`
	HTTP         HTTP     `yaml:"http"`
	// Compatibility replaces the default compatibility table when non-empty.
	Compatibility [][]string `yaml:"compatibility"`
	// Derived is merged over the default derived quantity table.
	Derived resolve.Table `yaml:"derived"`
}

// Storage selects the schematic store.
type Storage struct {
	Driver      string `yaml:"driver"`
	SQLitePath  string `yaml:"sqlite_path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Blob selects the report archive.
type Blob struct {
	Driver string `yaml:"driver"`
	FSRoot string `yaml:"fs_root"`
	S3     S3     `yaml:"s3"`
}

// S3 holds S3 or MinIO connection settings.
type S3 struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	PathStyle bool   `yaml:"path_style"`
}

// HTTP configures the HTTP host.
type HTTP struct {
	Addr string `yaml:"addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel:  "info",
		LogFormat: "text",
		Storage:   Storage{Driver: StorageMemory, SQLitePath: "pidcheck.db"},
		Blob:      Blob{Driver: BlobMemory, FSRoot: "./blobdata", S3: S3{Region: "us-east-1"}},
		HTTP:      HTTP{Addr: ":6969"},
	}
}

// Load resolves the configuration. path names a YAML file; when empty,
// PIDCHECK_CONFIG is consulted and a missing variable means no file. getenv
// is usually os.Getenv.
func Load(path string, getenv func(string) string) (Config, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	cfg := Default()
	if path == "" {
		path = getenv(EnvPrefix + "CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config %s: %w", path, err)
		}
	}
	applyEnv(&cfg, getenv)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) {
	set := func(name string, dst *string) {
		if v := strings.TrimSpace(getenv(EnvPrefix + name)); v != "" {
			*dst = v
		}
	}
	set("LOG_LEVEL", &cfg.LogLevel)
	set("LOG_FORMAT", &cfg.LogFormat)
	set("STORAGE_DRIVER", &cfg.Storage.Driver)
	set("SQLITE_PATH", &cfg.Storage.SQLitePath)
	set("POSTGRES_DSN", &cfg.Storage.PostgresDSN)
	set("BLOB_DRIVER", &cfg.Blob.Driver)
	set("BLOB_FS_ROOT", &cfg.Blob.FSRoot)
	set("BLOB_S3_BUCKET", &cfg.Blob.S3.Bucket)
	set("BLOB_S3_REGION", &cfg.Blob.S3.Region)
	set("BLOB_S3_ENDPOINT", &cfg.Blob.S3.Endpoint)
	set("HTTP_ADDR", &cfg.HTTP.Addr)
	if v := strings.TrimSpace(getenv(EnvPrefix + "BLOB_S3_PATH_STYLE")); v != "" {
		cfg.Blob.S3.PathStyle = strings.EqualFold(v, "true") || v == "1"
	}
	if v := getenv(EnvPrefix + "CATALOG_PATHS"); v != "" {
		for _, p := range strings.Split(v, ",") {
			if p = strings.TrimSpace(p); p != "" {
				cfg.CatalogPaths = append(cfg.CatalogPaths, p)
			}
		}
	}
}

// Validate checks driver names, the compatibility pairs and derived rules.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case StorageMemory, StorageSQLite:
	case StoragePostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage driver postgres requires %sPOSTGRES_DSN", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	switch c.Blob.Driver {
	case BlobFilesystem, BlobMemory:
	case BlobS3:
		if c.Blob.S3.Bucket == "" {
			return fmt.Errorf("blob driver s3 requires %sBLOB_S3_BUCKET", EnvPrefix)
		}
	default:
		return fmt.Errorf("unknown blob driver %q", c.Blob.Driver)
	}
	for i, pair := range c.Compatibility {
		if len(pair) != 2 {
			return fmt.Errorf("compatibility[%d]: want 2 values, got %d", i, len(pair))
		}
	}
	if err := c.Derived.Validate(); err != nil {
		return err
	}
	return nil
}

// DerivedTable returns the default derived table overlaid with Derived.
func (c Config) DerivedTable() resolve.Table {
	return resolve.DefaultTable().Merge(c.Derived)
}

// CompatibilityTable returns the configured compatibility table, or the
// default one when none is configured.
func (c Config) CompatibilityTable() *evaluate.Compatibility {
	if len(c.Compatibility) == 0 {
		return evaluate.DefaultCompatibility()
	}
	pairs := make([]evaluate.Pair, 0, len(c.Compatibility))
	for _, p := range c.Compatibility {
		if len(p) == 2 {
			pairs = append(pairs, evaluate.Pair{p[0], p[1]})
		}
	}
	return evaluate.NewCompatibility(pairs...)
}
