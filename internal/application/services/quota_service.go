package services

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	"github.com/promptcrm/backend/pkg/constants"
	apperrors "github.com/promptcrm/backend/pkg/errors"
)

// QuotaService enforces the daily generation quota per identity. The count
// comes from the decision trace table: every generation attempt (accepted or
// rejected) leaves a generation-kind trace, so that count for the current
// UTC day is the spend. Rollback traces carry a different kind and never
// consume generation budget.
type QuotaService struct {
	traces TraceStore
	limit  int
	now    func() time.Time
}

// NewQuotaService creates a QuotaService. DAILY_GENERATION_QUOTA overrides
// the default limit.
func NewQuotaService(traces TraceStore) *QuotaService {
	limit := constants.DefaultDailyGenerationQuota
	if v := os.Getenv("DAILY_GENERATION_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	return &QuotaService{traces: traces, limit: limit, now: time.Now}
}

// CheckDailyQuota fails with QuotaExceededError when the user has exhausted
// today's generation budget. Must run before any model call.
func (s *QuotaService) CheckDailyQuota(ctx context.Context, userID string) error {
	midnight := s.now().UTC().Truncate(24 * time.Hour)
	count, err := s.traces.CountByUserSince(ctx, userID, schema.TraceKindGeneration, midnight)
	if err != nil {
		return apperrors.NewInternalError("failed to check generation quota", err)
	}
	if count >= s.limit {
		return apperrors.NewQuotaExceededError(s.limit)
	}
	return nil
}
