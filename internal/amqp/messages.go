package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"paytrack/internal/core"
)

// LedgerChangedMessage summarises the ledger after a change. Consumers that
// need the entries read them from the store.
type LedgerChangedMessage struct {
	ID            string    `json:"id"`
	Kind          string    `json:"kind"`
	Entries       int       `json:"entries"`
	TotalHours    string    `json:"totalHours"`
	TotalEarnings string    `json:"totalEarnings"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewLedgerChangedMessage(kind string, l core.Ledger) *LedgerChangedMessage {
	t := l.Totals()
	return &LedgerChangedMessage{
		ID:            uuid.NewString(),
		Kind:          kind,
		Entries:       l.Len(),
		TotalHours:    core.FormatAmount(t.TotalHours),
		TotalEarnings: core.FormatAmount(t.TotalEarnings),
		Timestamp:     time.Now().UTC(),
	}
}

func (m *LedgerChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LedgerChangedMessageFromJSON(data []byte) (*LedgerChangedMessage, error) {
	var msg LedgerChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
