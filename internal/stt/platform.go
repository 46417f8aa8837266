package stt

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/config"
)

const demoDelay = 600 * time.Millisecond

// NewPlatform builds the recognition platform selected by cfg.Mode. Mode
// "none" yields a nil platform, which the input adapter reports as
// unsupported.
func NewPlatform(cfg config.STTConfig, busClient *bus.Client, logger *slog.Logger) (Platform, error) {
	switch cfg.Mode {
	case "", "mock":
		return NewMockPlatform(DemoPhrases, demoDelay), nil
	case "exec":
		platform, err := NewExecPlatform(cfg.Command, logger)
		if err != nil {
			return nil, err
		}
		return platform, nil
	case "bus":
		if busClient == nil {
			return nil, fmt.Errorf("stt mode bus requires bus.enabled")
		}
		return NewBusPlatform(busClient, logger), nil
	case "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported stt mode %q", cfg.Mode)
	}
}
