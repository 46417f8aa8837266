package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/loqalabs/talkez/internal/language"
	"gopkg.in/yaml.v3"
)

type TelemetryConfig struct {
	LogLevel     string `yaml:"log_level"`
	LogFile      string `yaml:"log_file"`
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTLPInsecure bool   `yaml:"otlp_insecure"`
	TraceStdout  bool   `yaml:"trace_stdout"`
}

type HTTPConfig struct {
	Bind string `yaml:"bind"`
	Port int    `yaml:"port"`
}

type Config struct {
	RuntimeName string            `yaml:"runtime_name"`
	Environment string            `yaml:"environment"`
	HTTP        HTTPConfig        `yaml:"http"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
	Bus         BusConfig         `yaml:"bus"`
	Languages   LanguagesConfig   `yaml:"languages"`
	Translation TranslationConfig `yaml:"translation"`
	Translator  TranslatorConfig  `yaml:"translator"`
	STT         STTConfig         `yaml:"stt"`
	TTS         TTSConfig         `yaml:"tts"`
}

type BusConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Embedded       bool     `yaml:"embedded"`
	Port           int      `yaml:"port"`
	StoreDir       string   `yaml:"store_dir"`
	Servers        []string `yaml:"servers"`
	Username       string   `yaml:"username"`
	Password       string   `yaml:"password"`
	Token          string   `yaml:"token"`
	TLSInsecure    bool     `yaml:"tls_insecure"`
	ConnectTimeout int      `yaml:"connect_timeout_ms"`
}

// LanguagesConfig holds the initial source/target selection of the widget.
type LanguagesConfig struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
}

// TranslationConfig configures the widget's translation client.
type TranslationConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMS int    `yaml:"timeout_ms"`
}

// TranslatorConfig configures the translation service behind POST /translate.
type TranslatorConfig struct {
	Mode           string            `yaml:"mode"` // mock, ollama, openai, exec
	Endpoint       string            `yaml:"endpoint"`
	Model          string            `yaml:"model"`
	APIKey         string            `yaml:"api_key"`
	Command        string            `yaml:"command"`
	Temperature    float64           `yaml:"temperature"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	Dictionary     map[string]string `yaml:"dictionary"`
	ServeBus       bool              `yaml:"serve_bus"`
}

type STTConfig struct {
	Mode    string `yaml:"mode"` // mock, exec, bus, none
	Command string `yaml:"command"`
}

type VoiceConfig struct {
	Name string `yaml:"name"`
	Lang string `yaml:"lang"`
}

type TTSConfig struct {
	Mode          string        `yaml:"mode"` // mock, exec, bus, none
	Command       string        `yaml:"command"`
	SampleRate    int           `yaml:"sample_rate"`
	Channels      int           `yaml:"channels"`
	OutputDir     string        `yaml:"output_dir"`
	PlayerCommand string        `yaml:"player_command"`
	Voices        []VoiceConfig `yaml:"voices"`
}

func Default() Config {
	return Config{
		RuntimeName: "talkez",
		Environment: "development",
		HTTP: HTTPConfig{
			Bind: "127.0.0.1",
			Port: 8000,
		},
		Telemetry: TelemetryConfig{
			LogLevel:     "info",
			LogFile:      "talkez.log",
			OTLPInsecure: true,
		},
		Bus: BusConfig{
			Enabled:        false,
			Embedded:       true,
			Port:           4222,
			StoreDir:       "./data/nats",
			Servers:        []string{"nats://localhost:4222"},
			ConnectTimeout: 2000,
		},
		Languages: LanguagesConfig{
			Source: "fr-FR",
			Target: "en-US",
		},
		Translation: TranslationConfig{
			BaseURL: "http://127.0.0.1:8000",
		},
		Translator: TranslatorConfig{
			Mode:           "mock",
			Endpoint:       "http://localhost:11434",
			Model:          "llama3.2:latest",
			Temperature:    0.2,
			AllowedOrigins: []string{"http://localhost:8080"},
		},
		STT: STTConfig{
			Mode: "mock",
		},
		TTS: TTSConfig{
			Mode:       "mock",
			SampleRate: 22050,
			Channels:   1,
			OutputDir:  "./data/speech",
		},
	}
}

func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, fmt.Errorf("config file not found: %w", err)
			}
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SlogLevel maps telemetry.log_level onto a slog level, defaulting to info.
func (c TelemetryConfig) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

func applyEnvOverrides(cfg *Config) {
	overrideString(&cfg.RuntimeName, "TALKEZ_RUNTIME_NAME")
	overrideString(&cfg.Environment, "TALKEZ_RUNTIME_ENVIRONMENT")
	overrideString(&cfg.HTTP.Bind, "TALKEZ_HTTP_BIND")
	overrideInt(&cfg.HTTP.Port, "TALKEZ_HTTP_PORT")
	overrideString(&cfg.Telemetry.LogLevel, "TALKEZ_TELEMETRY_LOG_LEVEL")
	overrideString(&cfg.Telemetry.LogFile, "TALKEZ_TELEMETRY_LOG_FILE")
	overrideString(&cfg.Telemetry.OTLPEndpoint, "TALKEZ_TELEMETRY_OTLP_ENDPOINT")
	overrideBool(&cfg.Telemetry.OTLPInsecure, "TALKEZ_TELEMETRY_OTLP_INSECURE")
	overrideBool(&cfg.Telemetry.TraceStdout, "TALKEZ_TELEMETRY_TRACE_STDOUT")
	overrideBool(&cfg.Bus.Enabled, "TALKEZ_BUS_ENABLED")
	overrideBool(&cfg.Bus.Embedded, "TALKEZ_BUS_EMBEDDED")
	overrideInt(&cfg.Bus.Port, "TALKEZ_BUS_PORT")
	overrideString(&cfg.Bus.StoreDir, "TALKEZ_BUS_STORE_DIR")
	overrideStringSlice(&cfg.Bus.Servers, "TALKEZ_BUS_SERVERS")
	overrideString(&cfg.Bus.Username, "TALKEZ_BUS_USERNAME")
	overrideString(&cfg.Bus.Password, "TALKEZ_BUS_PASSWORD")
	overrideString(&cfg.Bus.Token, "TALKEZ_BUS_TOKEN")
	overrideBool(&cfg.Bus.TLSInsecure, "TALKEZ_BUS_TLS_INSECURE")
	overrideInt(&cfg.Bus.ConnectTimeout, "TALKEZ_BUS_CONNECT_TIMEOUT_MS")
	overrideString(&cfg.Languages.Source, "TALKEZ_LANGUAGES_SOURCE")
	overrideString(&cfg.Languages.Target, "TALKEZ_LANGUAGES_TARGET")
	overrideString(&cfg.Translation.BaseURL, "TALKEZ_TRANSLATION_BASE_URL")
	overrideInt(&cfg.Translation.TimeoutMS, "TALKEZ_TRANSLATION_TIMEOUT_MS")
	overrideString(&cfg.Translator.Mode, "TALKEZ_TRANSLATOR_MODE")
	overrideString(&cfg.Translator.Endpoint, "TALKEZ_TRANSLATOR_ENDPOINT")
	overrideString(&cfg.Translator.Model, "TALKEZ_TRANSLATOR_MODEL")
	overrideString(&cfg.Translator.APIKey, "TALKEZ_TRANSLATOR_API_KEY")
	overrideString(&cfg.Translator.Command, "TALKEZ_TRANSLATOR_COMMAND")
	overrideFloat(&cfg.Translator.Temperature, "TALKEZ_TRANSLATOR_TEMPERATURE")
	overrideStringSlice(&cfg.Translator.AllowedOrigins, "TALKEZ_TRANSLATOR_ALLOWED_ORIGINS")
	overrideBool(&cfg.Translator.ServeBus, "TALKEZ_TRANSLATOR_SERVE_BUS")
	overrideString(&cfg.STT.Mode, "TALKEZ_STT_MODE")
	overrideString(&cfg.STT.Command, "TALKEZ_STT_COMMAND")
	overrideString(&cfg.TTS.Mode, "TALKEZ_TTS_MODE")
	overrideString(&cfg.TTS.Command, "TALKEZ_TTS_COMMAND")
	overrideInt(&cfg.TTS.SampleRate, "TALKEZ_TTS_SAMPLE_RATE")
	overrideInt(&cfg.TTS.Channels, "TALKEZ_TTS_CHANNELS")
	overrideString(&cfg.TTS.OutputDir, "TALKEZ_TTS_OUTPUT_DIR")
	overrideString(&cfg.TTS.PlayerCommand, "TALKEZ_TTS_PLAYER_COMMAND")
}

func overrideString(target *string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok && strings.TrimSpace(value) != "" {
		*target = value
	}
}

func overrideInt(target *int, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.Atoi(value); err == nil {
			*target = parsed
		}
	}
}

func overrideBool(target *bool, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseBool(value); err == nil {
			*target = parsed
		}
	}
}

func overrideStringSlice(target *[]string, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		parts := strings.Split(value, ",")
		var trimmed []string
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				trimmed = append(trimmed, s)
			}
		}
		if len(trimmed) > 0 {
			*target = trimmed
		}
	}
}

func overrideFloat(target *float64, envKey string) {
	if value, ok := os.LookupEnv(envKey); ok {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			*target = parsed
		}
	}
}

func validate(cfg Config) error {
	if cfg.RuntimeName == "" {
		return errors.New("runtime_name must not be empty")
	}
	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		return errors.New("http.port must be between 1 and 65535")
	}
	if cfg.Bus.Enabled {
		if cfg.Bus.Embedded {
			if cfg.Bus.Port <= 0 || cfg.Bus.Port > 65535 {
				return errors.New("bus.port must be between 1 and 65535 when embedded mode is enabled")
			}
		} else if len(cfg.Bus.Servers) == 0 {
			return errors.New("bus.servers must not be empty when embedded mode is disabled")
		}
	}
	if _, ok := language.Lookup(cfg.Languages.Source); !ok {
		return fmt.Errorf("languages.source %q is not a supported language", cfg.Languages.Source)
	}
	if _, ok := language.Lookup(cfg.Languages.Target); !ok {
		return fmt.Errorf("languages.target %q is not a supported language", cfg.Languages.Target)
	}
	if cfg.Translation.BaseURL == "" {
		return errors.New("translation.base_url must not be empty")
	}
	if cfg.Translation.TimeoutMS < 0 {
		return errors.New("translation.timeout_ms must be >= 0")
	}
	switch cfg.Translator.Mode {
	case "mock", "exec":
	case "ollama", "openai":
		if cfg.Translator.Model == "" {
			return fmt.Errorf("translator.model must be set when mode=%s", cfg.Translator.Mode)
		}
	default:
		return errors.New("translator.mode must be one of mock|ollama|openai|exec")
	}
	if cfg.Translator.Mode == "ollama" && cfg.Translator.Endpoint == "" {
		return errors.New("translator.endpoint must be set when mode=ollama")
	}
	if cfg.Translator.Mode == "exec" && cfg.Translator.Command == "" {
		return errors.New("translator.command must be set when mode=exec")
	}
	if cfg.Translator.ServeBus && !cfg.Bus.Enabled {
		return errors.New("translator.serve_bus requires bus.enabled")
	}
	switch cfg.STT.Mode {
	case "mock", "none":
	case "exec":
		if cfg.STT.Command == "" {
			return errors.New("stt.command must be set when mode=exec")
		}
	case "bus":
		if !cfg.Bus.Enabled {
			return errors.New("stt.mode=bus requires bus.enabled")
		}
	default:
		return errors.New("stt.mode must be one of mock|exec|bus|none")
	}
	switch cfg.TTS.Mode {
	case "mock", "none":
	case "exec":
		if cfg.TTS.Command == "" {
			return errors.New("tts.command must be set when mode=exec")
		}
		if cfg.TTS.SampleRate <= 0 {
			return errors.New("tts.sample_rate must be positive")
		}
		if cfg.TTS.Channels <= 0 {
			return errors.New("tts.channels must be positive")
		}
		if cfg.TTS.OutputDir == "" {
			return errors.New("tts.output_dir must not be empty when mode=exec")
		}
	case "bus":
		if !cfg.Bus.Enabled {
			return errors.New("tts.mode=bus requires bus.enabled")
		}
	default:
		return errors.New("tts.mode must be one of mock|exec|bus|none")
	}
	return nil
}
