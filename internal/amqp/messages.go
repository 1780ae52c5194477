package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// SyncAction tells the worker what to mirror for a record.
type SyncAction string

const (
	ActionUpsert SyncAction = "upsert"
	ActionDelete SyncAction = "delete"
)

// RecordSyncMessage is a lightweight message for mirroring an absence record
// to Google Sheets. The worker loads the record itself from the database.
type RecordSyncMessage struct {
	ID        string     `json:"id"`
	Action    SyncAction `json:"action"`
	Timestamp time.Time  `json:"timestamp"`
}

func NewRecordSyncMessage(id string, action SyncAction) *RecordSyncMessage {
	return &RecordSyncMessage{
		ID:        id,
		Action:    action,
		Timestamp: time.Now(),
	}
}

func (m *RecordSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func (m *RecordSyncMessage) Validate() error {
	if m.ID == "" {
		return errors.New("message without record id")
	}
	switch m.Action {
	case ActionUpsert, ActionDelete:
		return nil
	default:
		return fmt.Errorf("unknown sync action %q", m.Action)
	}
}

// RecordSyncMessageFromJSON decodes and validates a message body. A missing
// action is read as an upsert.
func RecordSyncMessageFromJSON(data []byte) (*RecordSyncMessage, error) {
	var msg RecordSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Action == "" {
		msg.Action = ActionUpsert
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
