package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Publisher sends session events to NATS for the realtime service to fan out.
type Publisher struct {
	conn     *nats.Conn
	tenantID string
}

func NewPublisher(conn *nats.Conn, tenantID string) *Publisher {
	return &Publisher{conn: conn, tenantID: tenantID}
}

func (p *Publisher) Publish(sessionID, eventType string, payload any) error {
	data, err := encodeEvent(sessionID, eventType, payload)
	if err != nil {
		return err
	}
	subject := SessionSubject(p.tenantID, sessionID)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("nats publish %q: %w", subject, err)
	}
	return nil
}

func encodeEvent(sessionID, eventType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return json.Marshal(Event{
		Type:      eventType,
		SessionID: sessionID,
		Payload:   raw,
		At:        time.Now().UTC(),
	})
}
