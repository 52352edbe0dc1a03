// Package audit writes structured audit records to the dedicated audit
// store. Audit is fail-closed: services run the write inside their
// mutation's transaction hook, so an audit failure aborts the mutation.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gilliankerr/KoNote-sub000/internal/model"
	"github.com/gilliankerr/KoNote-sub000/internal/repository"
	"github.com/gilliankerr/KoNote-sub000/pkg/logger"
	"github.com/gilliankerr/KoNote-sub000/pkg/metrics"
)

// RequestIDKey is the context key the request-id middleware populates.
type requestIDKey struct{}

func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Entry is one auditable action. Metadata is marshalled to JSON; it
// must never contain decrypted field values.
type Entry struct {
	Actor        *model.User
	Action       string
	ResourceType string
	ResourceID   uuid.UUID
	Metadata     map[string]interface{}
}

type Service struct {
	repo    repository.AuditRepository
	logger  *logger.Logger
	metrics *metrics.Metrics
}

func NewService(repo repository.AuditRepository, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{repo: repo, logger: log, metrics: m}
}

// Record writes one audit record. The caller decides what a failure
// means; for state transitions it means rolling the transition back.
func (s *Service) Record(ctx context.Context, entry Entry) error {
	var metadata json.RawMessage
	if entry.Metadata != nil {
		raw, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		metadata = raw
	}

	record := &model.AuditRecord{
		ID:               uuid.New(),
		ActorID:          entry.Actor.ID,
		ActorDisplayName: entry.Actor.DisplayName,
		Action:           entry.Action,
		ResourceType:     entry.ResourceType,
		ResourceID:       entry.ResourceID,
		Metadata:         metadata,
		RequestID:        requestIDFrom(ctx),
		CreatedAt:        time.Now().UTC(),
	}

	if err := s.repo.Create(ctx, record); err != nil {
		if s.metrics != nil {
			s.metrics.AuditWriteFailures.Inc()
		}
		s.logger.Error(err, "audit write failed",
			"action", entry.Action, "resource_type", entry.ResourceType)
		return fmt.Errorf("audit write: %w", err)
	}
	if s.metrics != nil {
		s.metrics.AuditRecordsWritten.Inc()
	}
	return nil
}

// Hook adapts Record into a repository.TxHook so it runs before the
// primary transaction commits.
func (s *Service) Hook(entry Entry) repository.TxHook {
	return func(ctx context.Context) error {
		return s.Record(ctx, entry)
	}
}

func (s *Service) List(ctx context.Context, filters map[string]interface{}) ([]*model.AuditRecord, error) {
	return s.repo.List(ctx, filters)
}
