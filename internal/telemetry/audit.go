// Package telemetry records user-initiated commands for the audit service.
package telemetry

import (
	"context"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

const schemaVersion = 1

type Level string

const (
	LevelInfo Level = "INFO"
	LevelWarn Level = "WARN"
)

// Publisher is the broker side of the audit trail.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

// Record is one audited command. UserID is nil for anonymous calls.
type Record struct {
	Level     Level
	Text      string
	RequestID string
	UserID    *string
	Fields    map[string]string
}

// AuditEnvelope is the wire shape consumed by the audit service.
type AuditEnvelope struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	OccurredAt    string       `json:"occurred_at"`
	Service       string       `json:"service"`
	Environment   string       `json:"environment"`
	RequestID     string       `json:"request_id"`
	UserID        *string      `json:"user_id,omitempty"`
	Payload       AuditPayload `json:"payload"`
}

type AuditPayload struct {
	Level  Level             `json:"level"`
	Text   string            `json:"text"`
	Fields map[string]string `json:"fields,omitempty"`
}

// AuditEmitter stamps records with the service identity and hands them to the broker.
type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

func NewAuditEmitter(publisher Publisher, routingKey, service, environment string) *AuditEmitter {
	return &AuditEmitter{
		publisher:   publisher,
		routingKey:  routingKey,
		service:     service,
		environment: environment,
		now:         time.Now,
	}
}

// Emit publishes rec. A nil emitter is a no-op, and publish failures are only logged.
func (e *AuditEmitter) Emit(ctx context.Context, rec Record) {
	if e == nil || e.publisher == nil {
		return
	}
	if rec.Level == "" {
		rec.Level = LevelInfo
	}

	jww.DEBUG.Printf("audit %s request_id=%s text=%q", rec.Level, rec.RequestID, rec.Text)
	if err := e.publisher.Publish(ctx, e.routingKey, e.envelope(rec)); err != nil {
		jww.WARN.Printf("audit publish failed request_id=%s: %v", rec.RequestID, err)
	}
}

func (e *AuditEmitter) envelope(rec Record) AuditEnvelope {
	return AuditEnvelope{
		SchemaVersion: schemaVersion,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     rec.RequestID,
		UserID:        rec.UserID,
		Payload:       AuditPayload{Level: rec.Level, Text: rec.Text, Fields: rec.Fields},
	}
}
