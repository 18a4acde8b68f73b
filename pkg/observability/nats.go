package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher is the subset of *nats.Conn used by NATSObserver.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSObserver publishes each event as JSON on "<prefix>.<event type>".
// Events below the minimum level are skipped. Publish errors are logged
// and never reach the workflow.
type NATSObserver struct {
	pub      Publisher
	prefix   string
	minLevel Level
	logger   *slog.Logger
}

// NewNATSObserver creates an observer publishing through pub.
func NewNATSObserver(pub Publisher, prefix string, minLevel Level, logger *slog.Logger) *NATSObserver {
	return &NATSObserver{
		pub:      pub,
		prefix:   prefix,
		minLevel: minLevel,
		logger:   logger.With("observer", "nats"),
	}
}

func (o *NATSObserver) OnEvent(ctx context.Context, event Event) {
	if event.Level < o.minLevel {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		o.logger.WarnContext(ctx, "event encode failed", "type", event.Type, "error", err)
		return
	}

	subject := o.prefix + "." + string(event.Type)
	if err := o.pub.Publish(subject, data); err != nil {
		o.logger.WarnContext(ctx, "event publish failed", "subject", subject, "error", err)
	}
}

// ConnectNATS dials the configured server with bounded reconnects.
func ConnectNATS(cfg *NATSConfig, logger *slog.Logger) (*nats.Conn, error) {
	log := logger.With("system", "nats")

	conn, err := nats.Connect(
		cfg.URL,
		nats.Name(cfg.ClientName),
		nats.MaxReconnects(cfg.MaxReconnects),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	return conn, nil
}
