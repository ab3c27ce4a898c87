package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/promptcrm/backend/internal/domain/schema"
	apperrors "github.com/promptcrm/backend/pkg/errors"
)

// GenerateOutcome is what a successful end-to-end pipeline run produces
type GenerateOutcome struct {
	Intent        Intent                      `json:"intent"`
	Version       *schema.SchemaVersionRecord `json:"version"`
	Reasoning     string                      `json:"reasoning"`
	TablesCreated []string                    `json:"tables_created"`
	ColumnsAdded  []string                    `json:"columns_added,omitempty"`
	TraceID       string                      `json:"trace_id,omitempty"`
}

// PipelineService orchestrates the prompt-to-schema flow. Stage order is
// fixed: quota, intent, generation, validation, lock, provisioning, trace,
// version activation. Generation spend happens only after quota and intent
// both pass; nothing downstream of validation ever sees an unvalidated
// schema.
type PipelineService struct {
	quota      *QuotaService
	classifier *IntentClassifier
	generator  *SchemaGenerator
	validator  *SchemaValidator
	locks      *LockService
	provision  SchemaProvisioner
	versions   *VersionService
	traces     *TraceService
}

// NewPipelineService creates a new PipelineService
func NewPipelineService(
	quota *QuotaService,
	classifier *IntentClassifier,
	generator *SchemaGenerator,
	validator *SchemaValidator,
	locks *LockService,
	provision SchemaProvisioner,
	versions *VersionService,
	traces *TraceService,
) *PipelineService {
	return &PipelineService{
		quota:      quota,
		classifier: classifier,
		generator:  generator,
		validator:  validator,
		locks:      locks,
		provision:  provision,
		versions:   versions,
		traces:     traces,
	}
}

// GenerateSchema runs one prompt through the whole pipeline for a project.
// Rejected attempts (bad intent, failed validation) are traced too, so the
// audit log explains absences, not just changes.
func (s *PipelineService) GenerateSchema(ctx context.Context, userID, projectID, promptText string) (*GenerateOutcome, error) {
	if err := s.quota.CheckDailyQuota(ctx, userID); err != nil {
		return nil, err
	}

	intent := s.classifier.Classify(promptText)
	if intent == IntentInvalid {
		s.recordRejection(ctx, projectID, userID, promptText, "Rejected: prompt classified as invalid intent", nil)
		return nil, apperrors.NewInvalidIntentError(promptText)
	}

	var existing *schema.Schema
	active, err := s.versions.GetActive(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if intent == IntentModify {
		if active == nil {
			// Nothing to modify; treat as a fresh design rather than failing
			intent = IntentCreate
		} else {
			existing = active.Schema
		}
	}

	result, err := s.generator.Generate(ctx, promptText, existing)
	if err != nil {
		return nil, err
	}

	validation := s.validator.Validate(result.Schema)
	if !validation.Passed {
		s.recordRejection(ctx, projectID, userID, promptText,
			fmt.Sprintf("Rejected: generated schema failed validation with %d violation(s)", len(validation.Errors)),
			existing)
		return nil, apperrors.NewSchemaValidationError(validation.Errors)
	}

	// Mutation is serialized per project from here on
	if _, err := s.locks.Acquire(ctx, projectID, userID, 0); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.locks.Release(ctx, projectID, userID); err != nil {
			log.Printf("⚠️  Failed to release schema lock for project %s: %v", projectID, err)
		}
	}()

	// A fresh design provisions everything; a modification is reconciled
	// additively against the live tables, so added columns become real
	// ALTERs instead of metadata-only drift.
	var provisioned *ProvisionResult
	if existing != nil {
		provisioned, err = s.provision.Reconcile(ctx, projectID, existing, result.Schema)
	} else {
		provisioned, err = s.provision.Provision(ctx, projectID, result.Schema)
	}
	if err != nil {
		return nil, err
	}

	rec, err := s.versions.ActivateNew(ctx, projectID, userID, result.Schema)
	if err != nil {
		return nil, err
	}

	trace := &schema.DecisionTrace{
		ProjectID: projectID,
		UserID:    userID,
		Kind:      schema.TraceKindGeneration,
		Intent:    promptText,
		Action: fmt.Sprintf("Activated schema version %s (%d table(s) provisioned, %d column(s) added)",
			rec.SchemaVersion, len(provisioned.TablesCreated), len(provisioned.ColumnsAdded)),
		Precedent:    result.Reasoning,
		Version:      rec.SchemaVersion,
		SchemaBefore: existing,
		SchemaAfter:  result.Schema,
	}
	traceID := s.traces.Record(ctx, trace)

	log.Printf("✅ Schema %s activated for project %s (%s intent)", rec.SchemaVersion, projectID, intent)
	return &GenerateOutcome{
		Intent:        intent,
		Version:       rec,
		Reasoning:     result.Reasoning,
		TablesCreated: provisioned.TablesCreated,
		ColumnsAdded:  provisioned.ColumnsAdded,
		TraceID:       traceID,
	}, nil
}

// recordRejection traces a refused attempt. Rejections count as generation
// spend: they represent an attempt against the daily quota even when no
// model call happened. Best-effort like all traces.
func (s *PipelineService) recordRejection(ctx context.Context, projectID, userID, promptText, action string, before *schema.Schema) {
	s.traces.Record(ctx, &schema.DecisionTrace{
		ProjectID:    projectID,
		UserID:       userID,
		Kind:         schema.TraceKindGeneration,
		Intent:       promptText,
		Action:       action,
		SchemaBefore: before,
		Timestamp:    time.Now().UTC(),
	})
}
