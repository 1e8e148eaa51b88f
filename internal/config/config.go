// Package config loads settings from defaults, an optional YAML file, a .env
// file and the environment, in increasing priority.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/tomkat-cr/abstractgo/internal/apiclient"
	"github.com/tomkat-cr/abstractgo/internal/dashboard"
	"github.com/tomkat-cr/abstractgo/internal/export"
	"github.com/tomkat-cr/abstractgo/internal/logging"
	"github.com/tomkat-cr/abstractgo/internal/sink"
)

// EnvPrefix namespaces environment overrides, e.g. ABSTRACTGO_API_TIMEOUT.
const EnvPrefix = "ABSTRACTGO"

type Config struct {
	API      APIConfig      `mapstructure:"api"`
	Export   ExportConfig   `mapstructure:"export"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Server   ServerConfig   `mapstructure:"server"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Log      LogConfig      `mapstructure:"log"`
}

type APIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RetryAttempts  int           `mapstructure:"retry_attempts"`
	RetryDelay     time.Duration `mapstructure:"retry_delay"`
	Token          string        `mapstructure:"token"`
	HistoryLimit   int           `mapstructure:"history_limit"`
	PDFExtractPath string        `mapstructure:"pdf_extract_path"`
}

type ExportConfig struct {
	Format    string   `mapstructure:"format"`
	Sections  []string `mapstructure:"sections"`
	OutputDir string   `mapstructure:"output_dir"`
}

type SinkConfig struct {
	Kind  string      `mapstructure:"kind"`
	MinIO MinIOConfig `mapstructure:"minio"`
}

type MinIOConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Prefix    string `mapstructure:"prefix"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Options locate the optional files. Empty EnvFile means ".env".
type Options struct {
	File    string
	EnvFile string
}

// Load reads configuration. Missing .env files are ignored; a named config
// file that cannot be read is an error.
func Load(opts Options) (*Config, error) {
	envFile := opts.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
	}

	v := viper.New()
	setDefaults(v)

	if opts.File != "" {
		v.SetConfigFile(opts.File)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// The frontend deployments set these names.
	if err := v.BindEnv("api.base_url", EnvPrefix+"_API_BASE_URL", "API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api.base_url", apiclient.DefaultBaseURL)
	v.SetDefault("api.timeout", apiclient.DefaultTimeout)
	v.SetDefault("api.retry_attempts", apiclient.DefaultRetryAttempts)
	v.SetDefault("api.retry_delay", apiclient.DefaultRetryDelay)
	v.SetDefault("api.token", "")
	v.SetDefault("api.history_limit", 10)
	v.SetDefault("api.pdf_extract_path", "/pdfread")

	v.SetDefault("export.format", string(export.FormatPDF))
	v.SetDefault("export.sections", []string{"all"})
	v.SetDefault("export.output_dir", "./exports")

	v.SetDefault("sink.kind", "local")
	v.SetDefault("sink.minio.endpoint", "")
	v.SetDefault("sink.minio.access_key", "")
	v.SetDefault("sink.minio.secret_key", "")
	v.SetDefault("sink.minio.bucket", "abstractgo-exports")
	v.SetDefault("sink.minio.use_ssl", false)
	v.SetDefault("sink.minio.prefix", "")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("schedule.cron", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var errs []error
	if _, err := c.ExportFormat(); err != nil {
		errs = append(errs, fmt.Errorf("export.format: %w", err))
	}
	if _, err := c.ExportSections(); err != nil {
		errs = append(errs, fmt.Errorf("export.sections: %w", err))
	}
	switch c.Sink.Kind {
	case "local", "":
	case "minio":
		if c.Sink.MinIO.Endpoint == "" || c.Sink.MinIO.Bucket == "" {
			errs = append(errs, errors.New("sink.minio: endpoint and bucket are required"))
		}
	default:
		errs = append(errs, fmt.Errorf("sink.kind: unknown sink %q", c.Sink.Kind))
	}
	if c.API.Timeout < 0 || c.API.RetryDelay < 0 {
		errs = append(errs, errors.New("api: durations must not be negative"))
	}
	return errors.Join(errs...)
}

// ExportFormat parses export.format.
func (c *Config) ExportFormat() (export.Format, error) {
	return export.ParseFormat(c.Export.Format)
}

// ExportSections parses export.sections.
func (c *Config) ExportSections() ([]dashboard.Section, error) {
	return dashboard.ParseSections(c.Export.Sections)
}

// Client builds the API client configuration.
func (c *Config) Client(hooks apiclient.Hooks) apiclient.Config {
	return apiclient.Config{
		BaseURL:       c.API.BaseURL,
		Timeout:       c.API.Timeout,
		RetryAttempts: c.API.RetryAttempts,
		RetryDelay:    c.API.RetryDelay,
		Token:         c.API.Token,
		Hooks:         hooks,
	}
}

// Logging builds the logger configuration.
func (c *Config) Logging() logging.Config {
	return logging.Config{Level: c.Log.Level, Format: c.Log.Format}
}

// OpenSink builds the configured artifact sink.
func (c *Config) OpenSink() (sink.Sink, error) {
	return sink.New(sink.Kind(c.Sink.Kind), c.Export.OutputDir, sink.MinIOConfig{
		Endpoint:  c.Sink.MinIO.Endpoint,
		AccessKey: c.Sink.MinIO.AccessKey,
		SecretKey: c.Sink.MinIO.SecretKey,
		Bucket:    c.Sink.MinIO.Bucket,
		UseSSL:    c.Sink.MinIO.UseSSL,
		Prefix:    c.Sink.MinIO.Prefix,
	})
}
