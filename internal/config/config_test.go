package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Languages.Source != "fr-FR" || cfg.Languages.Target != "en-US" {
		t.Fatalf("unexpected default languages: %+v", cfg.Languages)
	}
	if cfg.Translation.BaseURL != "http://127.0.0.1:8000" {
		t.Fatalf("expected default translation endpoint, got %q", cfg.Translation.BaseURL)
	}
	if cfg.Translation.TimeoutMS != 0 {
		t.Fatalf("expected no translation timeout by default, got %d", cfg.Translation.TimeoutMS)
	}
	if cfg.Translator.AllowedOrigins[0] != "http://localhost:8080" {
		t.Fatalf("expected default CORS origin, got %v", cfg.Translator.AllowedOrigins)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "talkez.yaml")
	data := []byte(`
languages:
  source: es-ES
  target: de-DE
translator:
  mode: ollama
  model: qwen2.5:7b
tts:
  mode: exec
  command: "piper --json"
  voices:
    - name: thorsten
      lang: de-DE
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Languages.Source != "es-ES" || cfg.Languages.Target != "de-DE" {
		t.Fatalf("languages not loaded: %+v", cfg.Languages)
	}
	if cfg.Translator.Mode != "ollama" || cfg.Translator.Model != "qwen2.5:7b" {
		t.Fatalf("translator not loaded: %+v", cfg.Translator)
	}
	if len(cfg.TTS.Voices) != 1 || cfg.TTS.Voices[0].Lang != "de-DE" {
		t.Fatalf("voices not loaded: %+v", cfg.TTS.Voices)
	}
	// untouched sections keep defaults
	if cfg.TTS.SampleRate != 22050 {
		t.Fatalf("expected default sample rate, got %d", cfg.TTS.SampleRate)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TALKEZ_BUS_ENABLED", "true")
	t.Setenv("TALKEZ_BUS_EMBEDDED", "false")
	t.Setenv("TALKEZ_BUS_SERVERS", "nats://one:4222, nats://two:4222")
	t.Setenv("TALKEZ_BUS_USERNAME", "alice")
	t.Setenv("TALKEZ_BUS_PASSWORD", "secret")
	t.Setenv("TALKEZ_BUS_CONNECT_TIMEOUT_MS", "5000")
	t.Setenv("TALKEZ_LANGUAGES_SOURCE", "ja-JP")
	t.Setenv("TALKEZ_TRANSLATION_BASE_URL", "http://translate.internal:9000")
	t.Setenv("TALKEZ_TRANSLATION_TIMEOUT_MS", "1500")
	t.Setenv("TALKEZ_TRANSLATOR_TEMPERATURE", "0.5")
	t.Setenv("TALKEZ_STT_MODE", "bus")
	t.Setenv("TALKEZ_TTS_MODE", "none")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(cfg.Bus.Servers) != 2 {
		t.Fatalf("expected 2 servers, got %v", cfg.Bus.Servers)
	}
	if cfg.Bus.Username != "alice" || cfg.Bus.Password != "secret" {
		t.Fatalf("expected credentials override")
	}
	if cfg.Bus.ConnectTimeout != 5000 {
		t.Fatalf("expected timeout 5000, got %d", cfg.Bus.ConnectTimeout)
	}
	if cfg.Languages.Source != "ja-JP" {
		t.Fatalf("expected source override, got %q", cfg.Languages.Source)
	}
	if cfg.Translation.BaseURL != "http://translate.internal:9000" || cfg.Translation.TimeoutMS != 1500 {
		t.Fatalf("expected translation override, got %+v", cfg.Translation)
	}
	if cfg.Translator.Temperature != 0.5 {
		t.Fatalf("expected temperature override, got %v", cfg.Translator.Temperature)
	}
	if cfg.STT.Mode != "bus" || cfg.TTS.Mode != "none" {
		t.Fatalf("expected capability mode overrides, got stt=%q tts=%q", cfg.STT.Mode, cfg.TTS.Mode)
	}
}

func TestValidateRejectsUnknownLanguage(t *testing.T) {
	t.Setenv("TALKEZ_LANGUAGES_TARGET", "xx-XX")
	if _, err := Load(""); err == nil {
		t.Fatal("expected unsupported target language to fail validation")
	}
}

func TestValidateBusModesRequireBus(t *testing.T) {
	t.Setenv("TALKEZ_STT_MODE", "bus")
	if _, err := Load(""); err == nil {
		t.Fatal("expected stt.mode=bus without bus.enabled to fail")
	}
}

func TestValidateExecRequiresCommand(t *testing.T) {
	t.Setenv("TALKEZ_TRANSLATOR_MODE", "exec")
	if _, err := Load(""); err == nil {
		t.Fatal("expected translator exec mode without command to fail")
	}
}

func TestSlogLevel(t *testing.T) {
	if got := (TelemetryConfig{LogLevel: "debug"}).SlogLevel(); got != slog.LevelDebug {
		t.Fatalf("expected debug, got %v", got)
	}
	if got := (TelemetryConfig{LogLevel: "nonsense"}).SlogLevel(); got != slog.LevelInfo {
		t.Fatalf("expected info fallback, got %v", got)
	}
}
