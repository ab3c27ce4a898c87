package services

import (
	"context"
	"log"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/utils"
)

// TraceStore is the persistence port for decision traces
type TraceStore interface {
	Insert(ctx context.Context, trace *schema.DecisionTrace) error
	ListByProject(ctx context.Context, projectID string) ([]*schema.DecisionTrace, error)
	CountByUserSince(ctx context.Context, userID, kind string, since time.Time) (int, error)
}

// TraceService records decision traces: the append-only audit log of every
// schema transition. Writes are best-effort by contract - a failed trace
// write must never roll back or block an otherwise-successful change.
type TraceService struct {
	store TraceStore
}

// NewTraceService creates a new TraceService
func NewTraceService(store TraceStore) *TraceService {
	return &TraceService{store: store}
}

// Record appends a trace and returns its id. Failures are logged and
// swallowed; the returned id is empty when the write failed.
func (s *TraceService) Record(ctx context.Context, trace *schema.DecisionTrace) string {
	if trace.ID == "" {
		trace.ID = utils.GenerateID()
	}
	if trace.Kind == "" {
		trace.Kind = schema.TraceKindGeneration
	}
	if trace.Timestamp.IsZero() {
		trace.Timestamp = time.Now().UTC()
	}

	if err := s.store.Insert(ctx, trace); err != nil {
		log.Printf("⚠️  Failed to record decision trace for project %s: %v", trace.ProjectID, err)
		return ""
	}
	return trace.ID
}

// List returns a project's traces, newest first
func (s *TraceService) List(ctx context.Context, projectID string) ([]*schema.DecisionTrace, error) {
	return s.store.ListByProject(ctx, projectID)
}
