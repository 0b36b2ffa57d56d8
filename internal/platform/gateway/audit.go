package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/polystore/polystore-console/internal/shared"
)

// AuditSink forwards audit entries to the platform API when the console runs
// without its own Postgres.
type AuditSink struct {
	client *Client
}

// NewAuditSink returns an AuditSink backed by the given client.
func NewAuditSink(client *Client) *AuditSink {
	return &AuditSink{client: client}
}

type auditEntryDTO struct {
	ID         string         `json:"id"`
	ActorID    int64          `json:"actorId"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entityId"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Record submits the log entry upstream.
func (s *AuditSink) Record(ctx context.Context, log shared.AuditLog) error {
	if s == nil {
		return errors.New("audit sink not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action/entity/entity_id")
	}
	if log.At.IsZero() {
		log.At = time.Now()
	}
	entry := auditEntryDTO{
		ID:         uuid.NewString(),
		ActorID:    log.ActorID,
		Action:     log.Action,
		Entity:     log.Entity,
		EntityID:   log.EntityID,
		Meta:       log.Meta,
		OccurredAt: log.At,
	}
	return s.client.Post(ctx, "/api/audit-logs", entry, nil)
}
