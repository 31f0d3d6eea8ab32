// Package broker publishes arena events to NATS so other services (the chat
// relay, stats collectors) can follow duel sessions.
package broker

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/ernie/trinity-arena/internal/domain"
)

// Publisher sends events on <prefix>.<server id>.<event type>
type Publisher struct {
	conn   *nats.Conn
	prefix string
	log    zerolog.Logger
}

// Connect dials NATS. The connection reconnects forever; publishes made while
// disconnected are buffered by the client.
func Connect(url, prefix string, logger zerolog.Logger) (*Publisher, error) {
	log := logger.With().Str("component", "broker").Logger()
	conn, err := nats.Connect(url,
		nats.Name("trinity-arena"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn().Err(err).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info().Str("url", c.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", url, err)
	}
	return &Publisher{conn: conn, prefix: prefix, log: log}, nil
}

// Subject returns the subject an event is published on
func (p *Publisher) Subject(e domain.Event) string {
	return fmt.Sprintf("%s.%d.%s", p.prefix, e.ServerID, e.Type)
}

// Publish encodes the event as JSON and publishes it
func (p *Publisher) Publish(e domain.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", e.Type, err)
	}
	if err := p.conn.Publish(p.Subject(e), data); err != nil {
		return fmt.Errorf("publishing %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending messages and closes the connection
func (p *Publisher) Close() error {
	return p.conn.Drain()
}

// StartEmbedded runs an in-process NATS server. Pass port -1 for a random port.
func StartEmbedded(host string, port int) (*server.Server, error) {
	ns, err := server.NewServer(&server.Options{
		Host:   host,
		Port:   port,
		NoLog:  true,
		NoSigs: true,
	})
	if err != nil {
		return nil, fmt.Errorf("creating nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(5 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server on %s:%d not ready", host, port)
	}
	return ns, nil
}
