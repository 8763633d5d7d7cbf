// Package auralis wires the session driver, transport, capture device, and
// presentation sink into one engine behind a yaml config file.
package auralis

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/auralis-ai/auralis/pkg/capture"
	"github.com/auralis-ai/auralis/pkg/configutil"
	"github.com/auralis-ai/auralis/pkg/session"
	"github.com/auralis-ai/auralis/pkg/vad"
)

type Config struct {
	Environment    string              `mapstructure:"environment"`
	LogLevel       string              `mapstructure:"log_level"`
	LogFormat      string              `mapstructure:"log_format"`
	Mode           string              `mapstructure:"mode"`
	Model          string              `mapstructure:"model"`
	BasePrompt     string              `mapstructure:"base_prompt"`
	TurnPrompt     string              `mapstructure:"turn_prompt"`
	Credential     string              `mapstructure:"credential"`
	CredentialFile string              `mapstructure:"credential_file"`
	PromptDelay    time.Duration       `mapstructure:"prompt_delay"`
	Watchdog       time.Duration       `mapstructure:"watchdog"`
	VAD            vad.Config          `mapstructure:"vad"`
	Capture        CaptureConfig       `mapstructure:"capture"`
	Transport      TransportConfig     `mapstructure:"transport"`
	Observability  ObservabilityConfig `mapstructure:"observability"`
}

type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type CaptureConfig struct {
	Provider string         `mapstructure:"provider"`
	Settings map[string]any `mapstructure:"settings"`
}

type ObservabilityConfig struct {
	MetricsFile string `mapstructure:"metrics_file"`
}

func LoadConfig(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("mode", "segmented")
	v.SetDefault("model", "models/gemini-2.0-flash-exp")
	v.SetDefault("turn_prompt", "Analyze the audio you just received and respond now.")
	v.SetDefault("prompt_delay", "100ms")
	v.SetDefault("watchdog", "30s")
	v.SetDefault("vad.speech_threshold", 0.015)
	v.SetDefault("vad.silence_threshold", 0.008)
	v.SetDefault("vad.speech_start_frames", 2)
	v.SetDefault("vad.silence_start_frames", 3)
	v.SetDefault("vad.min_speech", "300ms")
	v.SetDefault("vad.silence_flush", "1700ms")
	v.SetDefault("vad.max_utterance", "15s")
	v.SetDefault("capture.provider", "mic")
	v.SetDefault("transport.provider", "live")
	v.SetDefault("observability.metrics_file", "")

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal: %w", err)
	}

	expandEnvStrings(&cfg)
	cfg.Transport.Settings = expandSettings(cfg.Transport.Settings)
	cfg.Capture.Settings = expandSettings(cfg.Capture.Settings)

	if cfg.CredentialFile == "" {
		cfg.CredentialFile = session.DefaultCredentialPath()
	}
	if cfg.Credential == "" {
		// Fall back to the credential persisted by the last session.
		stored, err := session.NewCredentialStore(cfg.CredentialFile).Load()
		if err == nil {
			cfg.Credential = stored
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch session.Mode(c.Mode) {
	case session.ModeSegmented, session.ModeContinuous:
	default:
		return fmt.Errorf("mode must be %q or %q", session.ModeSegmented, session.ModeContinuous)
	}
	if strings.TrimSpace(c.Transport.Provider) == "" {
		return fmt.Errorf("transport.provider is required")
	}
	if strings.TrimSpace(c.Capture.Provider) == "" {
		return fmt.Errorf("capture.provider is required")
	}
	return nil
}

// CaptureSettings decodes the capture settings map into the typed config.
func (c *Config) CaptureSettings() (capture.Config, error) {
	var out capture.Config
	return out, configutil.DecodeSettings(c.Capture.Settings, &out)
}

func expandEnvStrings(cfg *Config) {
	expandValue(reflect.ValueOf(cfg))
}

func expandSettings(settings map[string]any) map[string]any {
	if settings == nil {
		return nil
	}
	for k, v := range settings {
		settings[k] = expandAny(v)
	}
	return settings
}

func expandAny(v any) any {
	switch val := v.(type) {
	case string:
		return os.ExpandEnv(val)
	case []any:
		for i := range val {
			val[i] = expandAny(val[i])
		}
		return val
	case map[string]any:
		for k, v := range val {
			val[k] = expandAny(v)
		}
		return val
	default:
		return v
	}
}

func expandValue(v reflect.Value) {
	if !v.IsValid() {
		return
	}
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return
		}
		expandValue(v.Elem())
		return
	}
	switch v.Kind() {
	case reflect.Struct:
		for i := 0; i < v.NumField(); i++ {
			expandValue(v.Field(i))
		}
	case reflect.String:
		if v.CanSet() {
			v.SetString(os.ExpandEnv(v.String()))
		}
	}
}
