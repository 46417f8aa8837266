package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/loqalabs/talkez/internal/notify"
)

// Toasts buffers notices for the shell. Notify never blocks; when the
// buffer is full the notice is dropped.
type Toasts struct {
	ch chan notify.Notice
}

func NewToasts(size int) *Toasts {
	return &Toasts{ch: make(chan notify.Notice, size)}
}

func (t *Toasts) Notify(n notify.Notice) {
	select {
	case t.ch <- n:
	default:
	}
}

// C returns the channel the shell reads from.
func (t *Toasts) C() <-chan notify.Notice {
	return t.ch
}

// Run drives the shell until the user quits or ctx is cancelled.
func Run(ctx context.Context, m Model, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	_, err := tea.NewProgram(m, opts...).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
