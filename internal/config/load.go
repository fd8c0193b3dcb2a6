package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "STYLEBATCH"

// FileName is the config file looked up when no explicit path is given.
const FileName = "stylebatch"

type loadOptions struct {
	path      string
	overrides map[string]any
}

// Option customizes Load.
type Option func(*loadOptions)

// WithFile reads settings from path instead of searching for stylebatch.yaml.
func WithFile(path string) Option {
	return func(o *loadOptions) { o.path = path }
}

// WithOverride sets key after every other source, for command-line flags.
// Empty strings are ignored so unset flags do not clobber the config.
func WithOverride(key string, value any) Option {
	return func(o *loadOptions) {
		if s, ok := value.(string); ok && s == "" {
			return
		}
		if o.overrides == nil {
			o.overrides = make(map[string]any)
		}
		o.overrides[key] = value
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.url", "")
	v.SetDefault("llm.gemini_api_key", "")
	v.SetDefault("llm.model_name", "gemini-2.0-flash-preview-image-generation")
	v.SetDefault("llm.styles_path", "")

	v.SetDefault("storage.base_dir", "./output")
	for _, area := range []string{"raw", "transformed", "documents", "reports", "data", "logs"} {
		v.SetDefault("storage."+area+"_dir", "")
	}

	v.SetDefault("batch.download_concurrency", 5)
	v.SetDefault("batch.transform_concurrency", 3)
	v.SetDefault("batch.max_attempts", 3)
	v.SetDefault("batch.download_delay", 2*time.Second)
	v.SetDefault("batch.transform_delay", time.Second)
	v.SetDefault("batch.download_timeout", 30*time.Second)
	v.SetDefault("batch.timeout", time.Duration(0))
	v.SetDefault("batch.styles", []string{"cartoony", "modern", "minimalist"})
	v.SetDefault("batch.top_n", 10)
	v.SetDefault("batch.verify_cache", true)

	v.SetDefault("tracker.token", "")
	v.SetDefault("tracker.owner", "")
	v.SetDefault("tracker.repo", "")
	v.SetDefault("tracker.branch", "main")
	v.SetDefault("tracker.labels", []string{"furniture-guide", "roblox"})
	v.SetDefault("tracker.assignees", []string{})
	v.SetDefault("tracker.pacing", time.Second)
	v.SetDefault("tracker.base_url", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "stylebatch.log")
}

// Load reads configuration from defaults, a config file and environment
// variables, in increasing order of precedence, and validates the result.
func Load(opts ...Option) (*Config, error) {
	o := loadOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	v := viper.New()
	setDefaults(v)

	if o.path != "" {
		v.SetConfigFile(o.path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "stylebatch"))
		}
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if o.path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, value := range o.overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("%w: validation failed: %w", ErrInvalidConfig, err)
	}
	return &cfg, nil
}
