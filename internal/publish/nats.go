package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/jwulff/linkup-go/internal/notify"
	"github.com/jwulff/linkup-go/internal/render"
)

// NoticeSuffix is appended to the display subject for notices.
const NoticeSuffix = ".notice"

// Publisher is the subset of *nats.Conn used here.
type Publisher interface {
	Publish(subject string, data []byte) error
}

var _ Publisher = (*nats.Conn)(nil)

// Connect dials the NATS server at url and logs connection changes.
func Connect(url string, logger zerolog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("linkup"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return conn, nil
}

// NATS publishes display states as JSON on Subject and notices on
// Subject+NoticeSuffix.
type NATS struct {
	conn    Publisher
	subject string
	logger  zerolog.Logger
}

// NewNATS creates a NATS sink.
func NewNATS(conn Publisher, subject string, logger zerolog.Logger) *NATS {
	return &NATS{conn: conn, subject: subject, logger: logger}
}

// Publish implements Sink.
func (n *NATS) Publish(_ context.Context, d render.DisplayState) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to encode display: %w", err)
	}
	if err := n.conn.Publish(n.subject, data); err != nil {
		return fmt.Errorf("failed to publish display: %w", err)
	}
	return nil
}

// Notify implements notify.Notifier. Publish errors are logged.
func (n *NATS) Notify(notice notify.Notice) {
	data, err := json.Marshal(notice)
	if err != nil {
		n.logger.Error().Err(err).Msg("Failed to encode notice")
		return
	}
	if err := n.conn.Publish(n.subject+NoticeSuffix, data); err != nil {
		n.logger.Warn().Err(err).Str("key", notice.Key).Msg("Failed to publish notice")
	}
}
