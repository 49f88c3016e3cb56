// Package publish delivers display states to the outside world.
package publish

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/jwulff/linkup-go/internal/render"
)

// Sink receives every display state the monitor produces.
type Sink interface {
	Publish(ctx context.Context, d render.DisplayState) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d render.DisplayState) error

// Publish implements Sink.
func (f SinkFunc) Publish(ctx context.Context, d render.DisplayState) error {
	return f(ctx, d)
}

// Discard drops display states.
var Discard Sink = SinkFunc(func(context.Context, render.DisplayState) error { return nil })

// Multi publishes to every sink and joins their errors.
type Multi []Sink

// Publish implements Sink.
func (m Multi) Publish(ctx context.Context, d render.DisplayState) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Publish(ctx, d); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Console prints one status line per display state, e.g.
// "[15:04:05] 95.0 mg/dL →".
type Console struct {
	w   io.Writer
	now func() time.Time
}

// NewConsole creates a sink writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w, now: time.Now}
}

// Publish implements Sink.
func (c *Console) Publish(_ context.Context, d render.DisplayState) error {
	line := fmt.Sprintf("[%s] %s", c.now().Format("15:04:05"), d.String())
	if d.Warning != "" {
		line += "  " + d.Warning
	}
	_, err := fmt.Fprintln(c.w, line)
	return err
}
