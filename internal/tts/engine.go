package tts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/config"
)

const demoSpeechDuration = 1500 * time.Millisecond

// NewEngine builds the synthesis engine selected by cfg.Mode. Mode "none"
// yields a nil engine, which the output adapter reports as unsupported.
func NewEngine(cfg config.TTSConfig, busClient *bus.Client, logger *slog.Logger) (Engine, error) {
	switch cfg.Mode {
	case "", "mock":
		voices := DemoVoices()
		if len(cfg.Voices) > 0 {
			voices = make([]Voice, 0, len(cfg.Voices))
			for _, v := range cfg.Voices {
				voices = append(voices, Voice{Name: v.Name, Lang: v.Lang})
			}
		}
		return NewMockEngine(voices, demoSpeechDuration), nil
	case "exec":
		engine, err := NewExecEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	case "bus":
		if busClient == nil {
			return nil, fmt.Errorf("tts mode bus requires bus.enabled")
		}
		return NewBusEngine(busClient, logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported tts mode %q", cfg.Mode)
	}
}
