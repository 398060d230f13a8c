package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NATSBridge subscribes to session events and pushes them into the Hub.
type NATSBridge struct {
	conn     *nats.Conn
	hub      *Hub
	tenantID string
	logger   zerolog.Logger
}

func NewNATSBridge(natsURL, tenantID string, hub *Hub, logger zerolog.Logger) (*NATSBridge, error) {
	nc, err := nats.Connect(natsURL, nats.Name("studio-realtime"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return &NATSBridge{conn: nc, hub: hub, tenantID: tenantID, logger: logger}, nil
}

// Subscribe listens on tenant.<tenantID>.session.*.event
func (b *NATSBridge) Subscribe() error {
	subject := SessionSubject(b.tenantID, "*")
	_, err := b.conn.Subscribe(subject, b.handle)
	if err != nil {
		return fmt.Errorf("nats subscribe %q: %w", subject, err)
	}

	b.logger.Info().Str("subject", subject).Msg("NATS bridge subscribed")
	return nil
}

func (b *NATSBridge) handle(msg *nats.Msg) {
	sessionID, err := parseSessionIDFromSubject(msg.Subject)
	if err != nil {
		b.logger.Warn().Err(err).Str("subject", msg.Subject).Msg("nats: bad subject")
		return
	}
	var event Event
	if err := json.Unmarshal(msg.Data, &event); err != nil || event.Type == "" {
		b.logger.Warn().Str("subject", msg.Subject).Msg("nats: dropping message that is not a session event")
		return
	}
	b.hub.Broadcast(sessionID, msg.Data)
}

// Close drains the NATS connection.
func (b *NATSBridge) Close() {
	if err := b.conn.Drain(); err != nil {
		b.logger.Error().Err(err).Msg("nats drain")
	}
}
