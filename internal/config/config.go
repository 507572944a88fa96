// Package config loads ffiload settings from a YAML file with environment
// overrides. Environment variables always win over YAML values; secrets
// (the database DSN and the object-store secret key) come only from the
// environment.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/koustreak/ffiload/internal/database"
	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/filestore"
	"github.com/koustreak/ffiload/internal/logger"
	"github.com/koustreak/ffiload/internal/source"
)

// Source kinds.
const (
	SourceDir   = "dir"
	SourceMinIO = "minio"
)

// Config holds all configuration for ffiload.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Source   SourceConfig   `yaml:"source"`
	Import   ImportConfig   `yaml:"import"`
	Log      LogConfig      `yaml:"log"`
	Server   ServerConfig   `yaml:"server"`
}

// DatabaseConfig selects and pools the target store.
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" env:"FFILOAD_DB_DRIVER" env-default:"sqlserver"`
	DSN             string        `yaml:"-" env:"FFILOAD_DB_DSN"` // Secret - not in YAML
	MaxConns        int32         `yaml:"max_conns" env:"FFILOAD_DB_MAX_CONNS" env-default:"4"`
	MinConns        int32         `yaml:"min_conns" env:"FFILOAD_DB_MIN_CONNS" env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime" env:"FFILOAD_DB_MAX_CONN_LIFETIME" env-default:"30m"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"FFILOAD_DB_MAX_CONN_IDLE_TIME" env-default:"5m"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout" env:"FFILOAD_DB_CONNECT_TIMEOUT" env-default:"10s"`
}

// SourceConfig locates pending export files.
type SourceConfig struct {
	// Kind is "dir" (a local directory) or "minio" (an S3-compatible bucket).
	Kind      string `yaml:"kind" env:"FFILOAD_SOURCE_KIND" env-default:"dir"`
	Dir       string `yaml:"dir" env:"FFILOAD_SOURCE_DIR"`
	Bucket    string `yaml:"bucket" env:"FFILOAD_SOURCE_BUCKET"`
	Prefix    string `yaml:"prefix" env:"FFILOAD_SOURCE_PREFIX"`
	Processed string `yaml:"processed" env:"FFILOAD_SOURCE_PROCESSED" env-default:"processed/"`
	Endpoint  string `yaml:"endpoint" env:"FFILOAD_SOURCE_ENDPOINT"`
	AccessKey string `yaml:"access_key" env:"FFILOAD_SOURCE_ACCESS_KEY"`
	SecretKey string `yaml:"-" env:"FFILOAD_SOURCE_SECRET_KEY"` // Secret - not in YAML
	UseSSL    bool   `yaml:"use_ssl" env:"FFILOAD_SOURCE_USE_SSL" env-default:"false"`
	Region    string `yaml:"region" env:"FFILOAD_SOURCE_REGION"`
}

// ImportConfig tunes the per-file pipeline.
type ImportConfig struct {
	PivotVersions  []string `yaml:"pivot_versions" env:"FFILOAD_PIVOT_VERSIONS" env-separator:"," env-default:"1.05.13,1.05.08"`
	SkipDuplicates bool     `yaml:"skip_duplicates" env:"FFILOAD_SKIP_DUPLICATES" env-default:"false"`
	Exclusions     []string `yaml:"exclusions" env:"FFILOAD_EXCLUSIONS" env-separator:"," env-default:"FuelConstants_DL,FuelConstants_ExpDL,FuelConstants_FWD,FuelConstants_Veg,FuelConstants_CWD,Schema_Version,Program,Project,DataGridViewSettings,MasterSpecies_LastModified,Settings"`
	BatchSize      int      `yaml:"batch_size" env:"FFILOAD_BATCH_SIZE" env-default:"100"`
	StampTable     string   `yaml:"stamp_table" env:"FFILOAD_STAMP_TABLE" env-default:"Last_Modified_Date"`

	// Machine and User identify the actor in the last-modified record.
	// Empty values fall back to the host name and $USER.
	Machine string `yaml:"machine" env:"FFILOAD_MACHINE"`
	User    string `yaml:"user" env:"FFILOAD_USER"`

	ReportDir string `yaml:"report_dir" env:"FFILOAD_REPORT_DIR"`
	TimeZone  string `yaml:"time_zone" env:"FFILOAD_TIME_ZONE" env-default:"Local"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level" env:"FFILOAD_LOG_LEVEL" env-default:"info"`
	Format string `yaml:"format" env:"FFILOAD_LOG_FORMAT" env-default:"json"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"FFILOAD_SERVER_ADDR" env-default:":8080"`
}

// Load reads path (if non-empty) with environment overrides and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	var err error
	if path == "" {
		err = cleanenv.ReadEnv(cfg)
	} else {
		err = cleanenv.ReadConfig(path, cfg)
	}
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("failed to read config %q", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	if err := c.StoreConfig().Validate(); err != nil {
		return err
	}

	switch c.Source.Kind {
	case SourceDir:
		if c.Source.Dir == "" {
			return errs.New(errs.ErrKindInvalidInput, "source.dir is required for a dir source")
		}
	case SourceMinIO:
		if c.Source.Endpoint == "" || c.Source.Bucket == "" {
			return errs.New(errs.ErrKindInvalidInput, "source.endpoint and source.bucket are required for a minio source")
		}
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported source kind %q", c.Source.Kind)
	}

	if c.Import.BatchSize <= 0 {
		return errs.Newf(errs.ErrKindInvalidInput, "import.batch_size must be positive, got %d", c.Import.BatchSize)
	}
	if _, err := c.Import.Location(); err != nil {
		return err
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "unsupported log format %q", c.Log.Format)
	}
	return nil
}

// StoreConfig returns the store connection settings.
func (c *Config) StoreConfig() *database.Config {
	d := c.Database
	return &database.Config{
		Driver:          database.Driver(d.Driver),
		DSN:             d.DSN,
		MaxConns:        d.MaxConns,
		MinConns:        d.MinConns,
		MaxConnLifetime: d.MaxConnLifetime,
		MaxConnIdleTime: d.MaxConnIdleTime,
		ConnectTimeout:  d.ConnectTimeout,
	}
}

// FilestoreConfig returns the settings of the store holding the exports.
func (c *Config) FilestoreConfig() *filestore.Config {
	s := c.Source
	if s.Kind == SourceMinIO {
		cfg := filestore.DefaultConfig(s.Endpoint, s.AccessKey, s.SecretKey)
		cfg.UseSSL = s.UseSSL
		cfg.Region = s.Region
		return cfg
	}
	return filestore.LocalConfig(s.Dir)
}

// SourceOptions locates the exports inside the file store.
func (c *Config) SourceOptions() source.Options {
	return source.Options{
		Bucket:    c.Source.Bucket,
		Prefix:    c.Source.Prefix,
		Processed: c.Source.Processed,
	}
}

// LoggerConfig returns the logger settings.
func (c *Config) LoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	cfg.Level = c.Log.Level
	cfg.Format = c.Log.Format
	return cfg
}

// Location resolves TimeZone.
func (c ImportConfig) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("import.time_zone %q", c.TimeZone), err)
	}
	return loc, nil
}

// Actor returns the machine and user names of the last-modified record.
func (c ImportConfig) Actor() (machine, user string) {
	machine, user = c.Machine, c.User
	if machine == "" {
		machine, _ = os.Hostname()
	}
	if user == "" {
		user = os.Getenv("USER")
		if user == "" {
			user = os.Getenv("USERNAME")
		}
	}
	return machine, user
}
