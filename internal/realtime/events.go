package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

const (
	EventParametersUpdated = "parameters.updated"
	EventDocumentReplaced  = "document.replaced"
	EventSessionSaved      = "session.saved"
)

// Event is the envelope published for every session change and forwarded
// unchanged to websocket subscribers.
type Event struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId"`
	Payload   json.RawMessage `json:"payload"`
	At        time.Time       `json:"at"`
}

// SessionSubject is the NATS subject carrying the events of one session.
func SessionSubject(tenantID, sessionID string) string {
	return fmt.Sprintf("tenant.%s.session.%s.event", tenantID, sessionID)
}

// parseSessionIDFromSubject extracts sessionID from "tenant.<tid>.session.<sessionID>.event"
func parseSessionIDFromSubject(subject string) (string, error) {
	parts := strings.Split(subject, ".")
	if len(parts) != 5 || parts[0] != "tenant" || parts[2] != "session" || parts[4] != "event" {
		return "", fmt.Errorf("unexpected subject layout")
	}
	if parts[3] == "" {
		return "", fmt.Errorf("empty session id")
	}
	return parts[3], nil
}
