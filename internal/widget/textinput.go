// Package widget holds the text submission input model.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	ErrBlank    = errors.New("text is blank")
	ErrDisabled = errors.New("input is disabled")
	ErrLoading  = errors.New("submission in progress")
)

// Field is the controlled state behind the input.
type Field interface {
	Text() string
	SetText(ctx context.Context, text string)
	SubmitUtterance(ctx context.Context, text string) error
	SpeakLoading() bool
}

// Affordance is what the input shows in place of the submit button.
type Affordance string

const (
	AffordanceButton  Affordance = "button"
	AffordanceSpinner Affordance = "spinner"
)

// Command asks the input to submit Text on behalf of a non-UI caller.
// Done, when set, receives the submission result and needs room for one
// value.
type Command struct {
	Text string
	Done chan<- error
}

// TextInput normalizes button clicks, Enter presses and external commands
// into one submit action.
type TextInput struct {
	field  Field
	logger zerolog.Logger

	mu       sync.Mutex
	disabled bool
}

func NewTextInput(field Field, logger zerolog.Logger) *TextInput {
	return &TextInput{field: field, logger: logger}
}

func (w *TextInput) SetDisabled(disabled bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.disabled = disabled
}

func (w *TextInput) Disabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disabled
}

func (w *TextInput) Value() string {
	return w.field.Text()
}

// SetValue handles a change event from the field.
func (w *TextInput) SetValue(ctx context.Context, value string) {
	if w.Disabled() {
		return
	}
	w.field.SetText(ctx, value)
}

func (w *TextInput) Affordance() Affordance {
	if w.field.SpeakLoading() {
		return AffordanceSpinner
	}
	return AffordanceButton
}

// Click submits the current value. The button is replaced by a spinner while
// loading, so clicks are dropped then.
func (w *TextInput) Click(ctx context.Context) error {
	if w.Affordance() == AffordanceSpinner {
		return ErrLoading
	}
	return w.submit(ctx, w.field.Text())
}

// KeyDown submits on Enter and ignores every other key.
func (w *TextInput) KeyDown(ctx context.Context, key string) error {
	if key != "Enter" {
		return nil
	}
	return w.submit(ctx, w.field.Text())
}

// Submit runs an external command: the command text is placed in the field
// and submitted.
func (w *TextInput) Submit(ctx context.Context, cmd Command) error {
	err := w.submitCommand(ctx, cmd)
	if cmd.Done != nil {
		cmd.Done <- err
	}
	return err
}

func (w *TextInput) submitCommand(ctx context.Context, cmd Command) error {
	if w.Disabled() {
		return ErrDisabled
	}
	if strings.TrimSpace(cmd.Text) == "" {
		w.logger.Warn().Str("trigger", "command").Msg("ignoring blank submission")
		return ErrBlank
	}
	w.field.SetText(ctx, cmd.Text)
	return w.submit(ctx, cmd.Text)
}

// Serve submits commands until ctx is done or cmds is closed.
func (w *TextInput) Serve(ctx context.Context, cmds <-chan Command) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd, ok := <-cmds:
			if !ok {
				return
			}
			if err := w.Submit(ctx, cmd); err != nil {
				w.logger.Debug().Err(err).Msg("command submission failed")
			}
		}
	}
}

func (w *TextInput) submit(ctx context.Context, text string) error {
	if w.Disabled() {
		return ErrDisabled
	}
	if strings.TrimSpace(text) == "" {
		w.logger.Warn().Msg("ignoring blank submission")
		return ErrBlank
	}
	return w.field.SubmitUtterance(ctx, text)
}
