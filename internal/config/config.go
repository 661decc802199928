package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFile is the file name searched in the working directory when
// --config is not given.
const DefaultConfigFile = "llm_coder_config.toml"

// Settings is the resolved application configuration: hardcoded defaults,
// then the TOML file, then LLM_CODER_* environment variables. CLI flags are
// applied on top by the command that owns them.
type Settings struct {
	Model                 string                       `mapstructure:"model"`
	Temperature           float64                      `mapstructure:"temperature"`
	MaxIterations         int                          `mapstructure:"max_iterations"`
	AllowedDirs           []string                     `mapstructure:"allowed_dirs"`
	RepositoryDescription string                       `mapstructure:"repository_description_prompt"`
	Output                string                       `mapstructure:"output"`
	ConversationHistory   string                       `mapstructure:"conversation_history"`
	RequestTimeout        int                          `mapstructure:"request_timeout"`
	CommandTimeout        int                          `mapstructure:"command_timeout"`
	LegacyImplicitFinish  bool                         `mapstructure:"legacy_implicit_finish"`
	BaseURL               string                       `mapstructure:"base_url"`
	APIKey                string                       `mapstructure:"api_key"`
	LintCommand           string                       `mapstructure:"lint_command"`
	FormatCommand         string                       `mapstructure:"format_command"`
	TestCommand           string                       `mapstructure:"test_command"`
	Directories           map[string]DirectorySettings `mapstructure:"directories"`
	Logging               LoggingSettings              `mapstructure:"logging"`
}

// DirectorySettings is one [directories.<name>] table: commands that run for
// writes under Path instead of the global ones.
type DirectorySettings struct {
	Path          string `mapstructure:"path"`
	LintCommand   string `mapstructure:"lint_command"`
	FormatCommand string `mapstructure:"format_command"`
	TestCommand   string `mapstructure:"test_command"`
}

// LoggingSettings controls logger behaviour.
type LoggingSettings struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // console or json
}

// Load reads configuration from the provided path, or from
// ./llm_coder_config.toml when path is empty. A missing default file falls
// back to pure defaults; a missing explicit file is an error. Environment
// variables override file values (prefix: LLM_CODER_, dots replaced with
// underscores); the API key additionally falls back to OPENAI_API_KEY.
func Load(path string) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("LLM_CODER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		v.SetConfigName("llm_coder_config")
		v.SetConfigType("toml")
		v.AddConfigPath(".")
	} else {
		v.SetConfigFile(path)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !(path == "" && errors.As(err, &notFound)) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Settings
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// setDefaults populates the hardcoded defaults for optional fields.
func setDefaults(v *viper.Viper) {
	v.SetDefault("model", "gpt-4.1-nano")
	v.SetDefault("temperature", 0.2)
	v.SetDefault("max_iterations", 10)
	v.SetDefault("allowed_dirs", []string{"."})
	v.SetDefault("request_timeout", 60)
	v.SetDefault("command_timeout", 60)
	v.SetDefault("legacy_implicit_finish", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// Validate performs basic sanity checks on configuration values.
func (s *Settings) Validate() error {
	if strings.TrimSpace(s.Model) == "" {
		return errors.New("model must not be empty")
	}

	if s.Temperature < 0 || s.Temperature > 2 {
		return errors.New("temperature must be within [0,2]")
	}

	if s.MaxIterations <= 0 {
		return errors.New("max_iterations must be > 0")
	}

	if len(s.AllowedDirs) == 0 {
		return errors.New("at least one allowed directory is required")
	}
	for _, dir := range s.AllowedDirs {
		if strings.TrimSpace(dir) == "" {
			return errors.New("allowed_dirs entries must not be empty")
		}
	}

	if s.RequestTimeout <= 0 {
		return errors.New("request_timeout must be > 0")
	}

	if s.CommandTimeout <= 0 {
		return errors.New("command_timeout must be > 0")
	}

	for name, d := range s.Directories {
		if strings.TrimSpace(d.Path) == "" {
			return fmt.Errorf("directories.%s must define path", name)
		}
	}

	return nil
}

// RequestTimeoutDuration is the per-request transport timeout.
func (s *Settings) RequestTimeoutDuration() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// CommandTimeoutDuration is the default wall-clock limit for executed commands.
func (s *Settings) CommandTimeoutDuration() time.Duration {
	return time.Duration(s.CommandTimeout) * time.Second
}
