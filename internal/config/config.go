package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/phrazzld/stylebatch/internal/redact"
	"github.com/phrazzld/stylebatch/internal/storage"
)

// ErrInvalidConfig is returned when loaded settings fail validation.
var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds all application configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Batch    BatchConfig    `mapstructure:"batch"`
	Tracker  TrackerConfig  `mapstructure:"tracker"`
	Log      LogConfig      `mapstructure:"log"`
}

// DatabaseConfig configures the warehouse and the run ledger. An empty URL
// disables both; fetch then needs a snapshot instead.
type DatabaseConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}

// LLMConfig contains the image model settings.
type LLMConfig struct {
	GeminiAPIKey string `mapstructure:"gemini_api_key"`
	ModelName    string `mapstructure:"model_name" validate:"required"`

	// StylesPath overrides the embedded style catalog.
	StylesPath string `mapstructure:"styles_path"`
}

// StorageConfig lays out the output tree. Area directories are relative to
// BaseDir unless absolute.
type StorageConfig struct {
	BaseDir        string `mapstructure:"base_dir" validate:"required"`
	RawDir         string `mapstructure:"raw_dir"`
	TransformedDir string `mapstructure:"transformed_dir"`
	DocumentsDir   string `mapstructure:"documents_dir"`
	ReportsDir     string `mapstructure:"reports_dir"`
	DataDir        string `mapstructure:"data_dir"`
	LogsDir        string `mapstructure:"logs_dir"`
}

// Layout converts the settings into a storage.Layout.
func (c StorageConfig) Layout() storage.Layout {
	layout := storage.DefaultLayout(c.BaseDir)
	for area, dir := range map[storage.Area]string{
		storage.AreaRaw:         c.RawDir,
		storage.AreaTransformed: c.TransformedDir,
		storage.AreaDocuments:   c.DocumentsDir,
		storage.AreaReports:     c.ReportsDir,
		storage.AreaData:        c.DataDir,
		storage.AreaLogs:        c.LogsDir,
	} {
		if dir != "" {
			layout.Dirs[area] = dir
		}
	}
	return layout
}

// BatchConfig controls concurrency, retries and reporting of a batch.
type BatchConfig struct {
	DownloadConcurrency  int           `mapstructure:"download_concurrency" validate:"gte=1,lte=64"`
	TransformConcurrency int           `mapstructure:"transform_concurrency" validate:"gte=1,lte=32"`
	MaxAttempts          int           `mapstructure:"max_attempts" validate:"gte=1,lte=10"`
	DownloadDelay        time.Duration `mapstructure:"download_delay" validate:"gte=0"`
	TransformDelay       time.Duration `mapstructure:"transform_delay" validate:"gte=0"`
	DownloadTimeout      time.Duration `mapstructure:"download_timeout" validate:"gt=0"`

	// Timeout bounds a whole command. Zero means no limit.
	Timeout     time.Duration `mapstructure:"timeout" validate:"gte=0"`
	Styles      []string      `mapstructure:"styles" validate:"required,min=1,dive,required"`
	TopN        int           `mapstructure:"top_n" validate:"gte=1"`
	VerifyCache bool          `mapstructure:"verify_cache"`
}

// TrackerConfig configures issue filing.
type TrackerConfig struct {
	Token     string        `mapstructure:"token"`
	Owner     string        `mapstructure:"owner"`
	Repo      string        `mapstructure:"repo"`
	Branch    string        `mapstructure:"branch" validate:"required"`
	Labels    []string      `mapstructure:"labels"`
	Assignees []string      `mapstructure:"assignees"`
	Pacing    time.Duration `mapstructure:"pacing" validate:"gte=0"`
	BaseURL   string        `mapstructure:"base_url" validate:"omitempty,url"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`

	// File receives a copy of every record. Relative paths resolve under
	// the logs area.
	File string `mapstructure:"file"`
}

// Requirement names a setting a command cannot run without.
type Requirement int

// Requirements checked by Config.Require.
const (
	RequireLLM Requirement = iota + 1
	RequireDatabase
	RequireTracker
)

// Require reports the first missing setting among reqs.
func (c *Config) Require(reqs ...Requirement) error {
	for _, r := range reqs {
		switch r {
		case RequireLLM:
			if strings.TrimSpace(c.LLM.GeminiAPIKey) == "" {
				return fmt.Errorf("%w: llm.gemini_api_key is required (STYLEBATCH_LLM_GEMINI_API_KEY)", ErrInvalidConfig)
			}
		case RequireDatabase:
			if strings.TrimSpace(c.Database.URL) == "" {
				return fmt.Errorf("%w: database.url is required (STYLEBATCH_DATABASE_URL)", ErrInvalidConfig)
			}
		case RequireTracker:
			if c.Tracker.Token == "" {
				return fmt.Errorf("%w: tracker.token is required (STYLEBATCH_TRACKER_TOKEN)", ErrInvalidConfig)
			}
			if c.Tracker.Owner == "" || c.Tracker.Repo == "" {
				return fmt.Errorf("%w: tracker.owner and tracker.repo are required", ErrInvalidConfig)
			}
		}
	}
	return nil
}

// LogFilePath resolves Log.File against the logs area.
func (c *Config) LogFilePath() string {
	if c.Log.File == "" || filepath.IsAbs(c.Log.File) {
		return c.Log.File
	}
	layout := c.Storage.Layout()
	dir := layout.Dirs[storage.AreaLogs]
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(layout.Base, dir)
	}
	return filepath.Join(dir, c.Log.File)
}

// Safe returns the settings as a flat map suitable for logging, with every
// secret masked.
func (c *Config) Safe() map[string]any {
	return map[string]any{
		"database.url":                redact.URL(c.Database.URL),
		"llm.gemini_api_key":          redact.Secret(c.LLM.GeminiAPIKey),
		"llm.model_name":              c.LLM.ModelName,
		"llm.styles_path":             c.LLM.StylesPath,
		"storage.base_dir":            c.Storage.BaseDir,
		"batch.download_concurrency":  c.Batch.DownloadConcurrency,
		"batch.transform_concurrency": c.Batch.TransformConcurrency,
		"batch.max_attempts":          c.Batch.MaxAttempts,
		"batch.styles":                c.Batch.Styles,
		"batch.timeout":               c.Batch.Timeout.String(),
		"tracker.token":               redact.Secret(c.Tracker.Token),
		"tracker.repository":          strings.Trim(c.Tracker.Owner+"/"+c.Tracker.Repo, "/"),
		"log.level":                   c.Log.Level,
	}
}
