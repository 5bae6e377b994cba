// Package config provides configuration management using Viper. Everything
// the pipeline needs is carried in an explicit Config record; no package
// reads the environment on its own.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Catalog CatalogConfig `mapstructure:"catalog"`
	Source  SourceConfig  `mapstructure:"source"`
	Assets  AssetsConfig  `mapstructure:"assets"`
	Publish PublishConfig `mapstructure:"publish"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// CatalogConfig holds the on-disk locations of the two catalogs and the
// local output directories for repackaged assets.
type CatalogConfig struct {
	GroupedPath   string `mapstructure:"grouped_path"`
	ZipPath       string `mapstructure:"zip_path"`
	FlatGeobufDir string `mapstructure:"flatgeobuf_dir"`
	ZipDir        string `mapstructure:"zip_dir"`
}

// SourceConfig describes the remote archive the sync run reads from.
type SourceConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// ListingURL returns the yearly directory-listing URL for the given time.
func (s SourceConfig) ListingURL(now time.Time) string {
	return fmt.Sprintf("%s/%d/", strings.TrimRight(s.BaseURL, "/"), now.Year())
}

// AssetsConfig holds the public base URLs the catalogued assets resolve to
// and the optional style endpoint. An empty StyleURL means no style links
// are ever attached.
type AssetsConfig struct {
	FGBBaseURL string `mapstructure:"fgb_base_url"`
	ZipBaseURL string `mapstructure:"zip_base_url"`
	StyleURL   string `mapstructure:"style_url"`
}

// PublishConfig holds optional S3 upload settings; an empty bucket disables
// publishing.
type PublishConfig struct {
	Bucket string `mapstructure:"bucket"`
	Region string `mapstructure:"region"`
	Prefix string `mapstructure:"prefix"`
}

func (p PublishConfig) Enabled() bool { return p.Bucket != "" }

// ServerConfig holds the read-only catalog API settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.grouped_path", "daily_items.parquet")
	v.SetDefault("catalog.zip_path", "zipped_assets.parquet")
	v.SetDefault("catalog.flatgeobuf_dir", "flatgeobufs")
	v.SetDefault("catalog.zip_dir", "zips")
	v.SetDefault("source.base_url", "https://download.dmi.dk/public/ICESERVICE/SIGRID3")
	v.SetDefault("source.timeout", 60*time.Second)
	v.SetDefault("assets.fgb_base_url", "https://your-bucket.example.com/daily")
	v.SetDefault("assets.zip_base_url", "https://your-bucket.example.com/zips")
	v.SetDefault("assets.style_url", "")
	v.SetDefault("publish.bucket", "")
	v.SetDefault("publish.region", "eu-west-1")
	v.SetDefault("publish.prefix", "")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.console", false)
}

// Load reads configuration from defaults, an optional yaml file, and
// ICESTAC_* environment variables, in increasing precedence.
func Load(cfgFile string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ICESTAC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Catalog.GroupedPath == "" || c.Catalog.ZipPath == "" {
		return fmt.Errorf("catalog paths must not be empty")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must not be empty")
	}
	if c.Assets.FGBBaseURL == "" || c.Assets.ZipBaseURL == "" {
		return fmt.Errorf("asset base urls must not be empty")
	}
	return nil
}
