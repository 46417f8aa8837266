// Package bustest starts an in-process NATS server for package tests.
package bustest

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/loqalabs/talkez/internal/bus"
	"github.com/loqalabs/talkez/internal/config"
	"github.com/loqalabs/talkez/internal/natsserver"
)

// Logger returns a logger that discards everything below error.
func Logger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// Connect starts an embedded server on a random port and returns a client
// connected to it. Both are torn down with the test.
func Connect(t testing.TB) *bus.Client {
	t.Helper()

	cfg := config.BusConfig{
		Enabled:        true,
		Embedded:       true,
		Port:           -1,
		StoreDir:       t.TempDir(),
		ConnectTimeout: 2000,
	}
	srv, err := natsserver.Start(cfg, Logger())
	if err != nil {
		t.Fatalf("start embedded nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)

	cfg.Servers = []string{srv.ClientURL()}
	client, err := bus.Connect(context.Background(), cfg, Logger())
	if err != nil {
		t.Fatalf("connect nats: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}
