package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/codebuildervaibhav/whisper-transcriber/internal/transcription"
)

// DefaultPath is where the server looks for its configuration.
const DefaultPath = "config/config.yaml"

// Config represents the application configuration
type Config struct {
	Server struct {
		Port                   int    `yaml:"port"`
		Host                   string `yaml:"host"`
		ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
	} `yaml:"server"`

	Whisper struct {
		Command []string `yaml:"command"`
		Model   string   `yaml:"model"`
		Device  string   `yaml:"device"`
		Threads int      `yaml:"threads"`
		FFmpeg  string   `yaml:"ffmpeg"`
		FFprobe string   `yaml:"ffprobe"`
	} `yaml:"whisper"`

	Workers struct {
		Count int `yaml:"count"`
	} `yaml:"workers"`

	Storage struct {
		TempDir   string `yaml:"temp_dir"`
		OutputDir string `yaml:"output_dir"`
		Database  string `yaml:"database"`
	} `yaml:"storage"`

	Cleanup struct {
		IntervalMinutes int `yaml:"interval_minutes"`
		MaxAgeHours     int `yaml:"max_age_hours"`
	} `yaml:"cleanup"`

	Jobs struct {
		TTLMinutes int `yaml:"ttl_minutes"`
	} `yaml:"jobs"`

	GoogleDrive struct {
		Enabled         bool   `yaml:"enabled"`
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		FolderName      string `yaml:"folder_name"`
	} `yaml:"google_drive"`

	Limits struct {
		MaxFileSizeMB     int      `yaml:"max_file_size_mb"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"limits"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.Server.Host = "0.0.0.0"
	cfg.Server.Port = 8000
	cfg.Server.ShutdownTimeoutSeconds = 30

	cfg.Whisper.Command = []string{"python", "-m", "whisper"}
	cfg.Whisper.Model = "medium"
	cfg.Whisper.Device = "cpu"
	cfg.Whisper.FFmpeg = "ffmpeg"
	cfg.Whisper.FFprobe = "ffprobe"

	cfg.Storage.TempDir = "temp"
	cfg.Storage.OutputDir = "outputs"
	cfg.Storage.Database = "transcripts.db"

	cfg.Cleanup.IntervalMinutes = 30
	cfg.Cleanup.MaxAgeHours = 24

	cfg.GoogleDrive.CredentialsFile = "credentials.json"
	cfg.GoogleDrive.TokenFile = "token.json"
	cfg.GoogleDrive.FolderName = "Transcripts"

	cfg.Limits.MaxFileSizeMB = 10
	cfg.Limits.AllowedExtensions = append([]string(nil), transcription.DefaultFormats...)

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return &cfg
}

// Load reads the YAML file at path over the defaults. A missing file is not
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if len(c.Whisper.Command) == 0 || strings.TrimSpace(c.Whisper.Command[0]) == "" {
		errs = append(errs, errors.New("whisper.command must not be empty"))
	}
	if c.Workers.Count < 0 {
		errs = append(errs, errors.New("workers.count must be >= 0 (0 = unbounded)"))
	}
	if c.Storage.TempDir == "" {
		errs = append(errs, errors.New("storage.temp_dir is required"))
	}
	if c.Storage.OutputDir == "" {
		errs = append(errs, errors.New("storage.output_dir is required"))
	}
	if c.Limits.MaxFileSizeMB <= 0 {
		errs = append(errs, errors.New("limits.max_file_size_mb must be positive"))
	}
	for _, ext := range c.Limits.AllowedExtensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("limits.allowed_extensions entry %q must start with a dot", ext))
		}
	}
	if c.Cleanup.IntervalMinutes <= 0 {
		errs = append(errs, errors.New("cleanup.interval_minutes must be positive"))
	}
	if c.Jobs.TTLMinutes < 0 {
		errs = append(errs, errors.New("jobs.ttl_minutes must be >= 0 (0 = keep forever)"))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be text or json", c.Logging.Format))
	}
	return errors.Join(errs...)
}

// Addr is the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// MaxUploadBytes is the upload size limit in bytes.
func (c *Config) MaxUploadBytes() int64 {
	return int64(c.Limits.MaxFileSizeMB) * 1024 * 1024
}

// JobTTL is how long terminal jobs stay queryable; zero keeps them forever.
func (c *Config) JobTTL() time.Duration {
	return time.Duration(c.Jobs.TTLMinutes) * time.Minute
}

// ShutdownTimeout bounds graceful shutdown.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// CleanupInterval is the period between cleanup sweeps.
func (c *Config) CleanupInterval() time.Duration {
	return time.Duration(c.Cleanup.IntervalMinutes) * time.Minute
}

// CleanupMaxAge is how long an orphaned temp file may live.
func (c *Config) CleanupMaxAge() time.Duration {
	return time.Duration(c.Cleanup.MaxAgeHours) * time.Hour
}
