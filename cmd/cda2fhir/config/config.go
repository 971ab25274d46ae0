// Package config reads the run configuration from flags, CDA2FHIR_*
// environment variables and an optional .env file, in that precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. CDA2FHIR_DB_URL.
const EnvPrefix = "CDA2FHIR"

// Keys shared by viper, flags and environment variables.
const (
	KeyDBDriver       = "db_driver"
	KeyDBURL          = "db_url"
	KeyOutput         = "output"
	KeyBatchSize      = "batch_size"
	KeyFamilies       = "families"
	KeyUpdateExisting = "update_existing"
	KeySample         = "sample"
	KeyCompoundLimit  = "compound_limit"
	KeyLogLevel       = "log_level"
	KeyCacheEnabled   = "cache_enabled"
	KeyCacheMaxSize   = "cache_max_size"
	KeyS3Bucket       = "s3_bucket"
	KeyS3Region       = "s3_region"
	KeyS3Endpoint     = "s3_endpoint"
	KeyS3Prefix       = "s3_prefix"
	KeyS3PathStyle    = "s3_path_style"
)

var drivers = []string{"sqlite", "postgres", "pgx"}

type Config struct {
	DBDriver       string   `mapstructure:"db_driver"`
	DBURL          string   `mapstructure:"db_url"`
	Output         string   `mapstructure:"output"`
	BatchSize      int      `mapstructure:"batch_size"`
	Families       []string `mapstructure:"families"`
	UpdateExisting bool     `mapstructure:"update_existing"`
	Sample         []string `mapstructure:"sample"`
	CompoundLimit  int      `mapstructure:"compound_limit"`
	LogLevel       string   `mapstructure:"log_level"`
	CacheEnabled   bool     `mapstructure:"cache_enabled"`
	CacheMaxSize   int      `mapstructure:"cache_max_size"`
	S3Bucket       string   `mapstructure:"s3_bucket"`
	S3Region       string   `mapstructure:"s3_region"`
	S3Endpoint     string   `mapstructure:"s3_endpoint"`
	S3Prefix       string   `mapstructure:"s3_prefix"`
	S3PathStyle    bool     `mapstructure:"s3_path_style"`
}

// LoadEnvFile loads path into the process environment. A missing file is
// not an error; existing variables are never overwritten.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// NewViper returns a viper instance with every key defaulted and bound to
// its environment variable.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	v.SetDefault(KeyDBDriver, "sqlite")
	v.SetDefault(KeyDBURL, "")
	v.SetDefault(KeyOutput, "output")
	v.SetDefault(KeyBatchSize, 1000)
	v.SetDefault(KeyFamilies, []string{})
	v.SetDefault(KeyUpdateExisting, false)
	v.SetDefault(KeySample, []string{})
	v.SetDefault(KeyCompoundLimit, 10)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyCacheEnabled, true)
	v.SetDefault(KeyCacheMaxSize, 100000)
	v.SetDefault(KeyS3Bucket, "")
	v.SetDefault(KeyS3Region, "")
	v.SetDefault(KeyS3Endpoint, "")
	v.SetDefault(KeyS3Prefix, "")
	v.SetDefault(KeyS3PathStyle, false)
	return v
}

// Load decodes v into a Config and validates it.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Families = splitList(cfg.Families)
	cfg.Sample = splitList(cfg.Sample)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings a transform run needs.
func (c *Config) Validate() error {
	if c.DBURL == "" {
		return fmt.Errorf("%s_DB_URL is required", EnvPrefix)
	}
	known := false
	for _, d := range drivers {
		if c.DBDriver == d {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("db driver must be one of %s, got %q", strings.Join(drivers, ", "), c.DBDriver)
	}
	if c.Output == "" {
		return fmt.Errorf("output directory is required")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.CompoundLimit <= 0 {
		return fmt.Errorf("compound limit must be positive, got %d", c.CompoundLimit)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	if _, err := c.SampleLimits(); err != nil {
		return err
	}
	if c.S3Bucket == "" && (c.S3Endpoint != "" || c.S3Prefix != "") {
		return fmt.Errorf("%s_S3_BUCKET is required when an S3 endpoint or prefix is set", EnvPrefix)
	}
	return nil
}

// Level is the parsed log level; info when unset.
func (c *Config) Level() zerolog.Level {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return level
}

// SampleLimits parses the "family=n" sample entries.
func (c *Config) SampleLimits() (map[string]int, error) {
	limits := make(map[string]int, len(c.Sample))
	for _, entry := range c.Sample {
		name, value, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("sample %q must look like family=n", entry)
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("sample %q needs a non-negative count", entry)
		}
		limits[strings.TrimSpace(name)] = n
	}
	return limits, nil
}

// Publish reports whether output is uploaded after the run.
func (c *Config) Publish() bool {
	return c.S3Bucket != ""
}

// splitList accepts both repeated values and comma separated ones.
func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
