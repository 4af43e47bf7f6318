// Package telemetry emits audit records for store writes.
package telemetry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chat-client/internal/logger"
)

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
}

type AuditEmitter struct {
	publisher   Publisher
	routingKey  string
	service     string
	environment string
	now         func() time.Time
}

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
	Level    string `json:"level"`
	Text     string `json:"text"`
	Resource string `json:"resource,omitempty"`
	ID       string `json:"id,omitempty"`
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

// Emit publishes a free-form audit line.
func (e *AuditEmitter) Emit(ctx context.Context, level, text, requestID string, userID *string) {
	e.emit(ctx, requestID, userID, AuditPayload{Level: level, Text: text})
}

// Write records a mutation of resource/id, e.g. "messages" "m1" "deleted".
func (e *AuditEmitter) Write(ctx context.Context, resource, id, action, requestID string, userID *string) {
	e.emit(ctx, requestID, userID, AuditPayload{Level: "INFO", Text: resource + " " + action, Resource: resource, ID: id})
}

func (e *AuditEmitter) emit(ctx context.Context, requestID string, userID *string, payload AuditPayload) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := AuditEnvelope{
		SchemaVersion: 1,
		EventType:     "audit_log",
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     requestID,
		UserID:        userID,
		Payload:       payload,
	}
	logger.Debug("audit emit", zap.String("request_id", requestID), zap.String("text", payload.Text))

	if err := e.publisher.Publish(ctx, e.routingKey, envelope); err != nil {
		logger.Warn("audit publish failed", zap.Error(err))
	}
}
