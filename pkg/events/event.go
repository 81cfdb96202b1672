package events

import (
	"time"

	"github.com/google/uuid"
)

// Type names a file lifecycle event.
type Type string

const (
	TypeFileUploaded    Type = "file.uploaded"
	TypeFileInfected    Type = "file.infected"
	TypeFileDeleted     Type = "file.deleted"
	TypeFileQuarantined Type = "file.quarantined"
	TypeQuotaAlert      Type = "quota.alert"
)

// Event is one outbound notification.
type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	TenantID   string         `json:"tenant_id"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with a fresh id and timestamp.
func NewEvent(t Type, tenantID string, data map[string]any) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       t,
		TenantID:   tenantID,
		OccurredAt: time.Now(),
		Data:       data,
	}
}
