package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"

	"github.com/promptcrm/backend/internal/domain/schema"
	apperrors "github.com/promptcrm/backend/pkg/errors"
	"github.com/promptcrm/backend/pkg/utils"
)

// ModelClient is the external language model collaborator
type ModelClient interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// GenerationResult carries the candidate schema and the model's rationale.
// The schema is UNTRUSTED: callers must route it through the Validator
// before any other component may act on it.
type GenerationResult struct {
	Schema    *schema.Schema `json:"schema"`
	Reasoning string         `json:"reasoning"`
}

// SchemaGenerator owns prompt construction and response parsing. It performs
// no database or filesystem writes and delegates all correctness checking to
// the Validator.
type SchemaGenerator struct {
	model      ModelClient
	createTmpl *template.Template
	modifyTmpl *template.Template
}

// NewSchemaGenerator creates a new SchemaGenerator
func NewSchemaGenerator(model ModelClient) *SchemaGenerator {
	return &SchemaGenerator{
		model:      model,
		createTmpl: template.Must(template.New("create").Parse(createPromptTemplate)),
		modifyTmpl: template.Must(template.New("modify").Parse(modifyPromptTemplate)),
	}
}

// Generate produces a candidate schema from a prompt. When existing is
// non-nil it is the modification target: the model is instructed to preserve
// unrelated tables verbatim. Model failures and unparsable output surface as
// GenerationError, never as validation failure.
func (g *SchemaGenerator) Generate(ctx context.Context, promptText string, existing *schema.Schema) (*GenerationResult, error) {
	prompt, err := g.renderPrompt(promptText, existing)
	if err != nil {
		return nil, apperrors.NewGenerationError("failed to render prompt", err)
	}

	raw, err := g.model.Complete(ctx, prompt)
	if err != nil {
		return nil, apperrors.NewGenerationError("model call failed", err)
	}

	result, err := parseGenerationResponse(raw)
	if err != nil {
		return nil, apperrors.NewGenerationError("model returned unparsable output", err)
	}

	g.assignVersion(result.Schema, existing)
	deriveRelationships(result.Schema)

	return result, nil
}

// renderPrompt picks the create or modify template
func (g *SchemaGenerator) renderPrompt(promptText string, existing *schema.Schema) (string, error) {
	var sb strings.Builder
	if existing == nil {
		if err := g.createTmpl.Execute(&sb, map[string]any{"Prompt": promptText}); err != nil {
			return "", err
		}
		return sb.String(), nil
	}

	existingJSON, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return "", err
	}
	if err := g.modifyTmpl.Execute(&sb, map[string]any{
		"Prompt":         promptText,
		"ExistingSchema": string(existingJSON),
	}); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// assignVersion makes the version monotonic regardless of what the model
// echoed: fresh schemas start at 1.0.0, modifications bump the minor of the
// existing version unless the model already produced something higher.
func (g *SchemaGenerator) assignVersion(s *schema.Schema, existing *schema.Schema) {
	if existing == nil {
		if !utils.IsValidSemver(s.Version) {
			s.Version = "1.0.0"
		}
		return
	}

	bumped, err := utils.BumpMinor(existing.Version)
	if err != nil {
		bumped = "1.0.0"
	}
	if !utils.IsValidSemver(s.Version) || utils.CompareSemver(s.Version, existing.Version) <= 0 {
		s.Version = bumped
	}
}

// parseGenerationResponse extracts the JSON object from the model response.
// Models wrap JSON in prose or code fences; everything outside the outermost
// braces is discarded before unmarshaling.
func parseGenerationResponse(raw string) (*GenerationResult, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object found in response")
	}

	var result GenerationResult
	if err := json.Unmarshal([]byte(raw[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON in response: %w", err)
	}
	if result.Schema == nil || len(result.Schema.Tables) == 0 {
		return nil, fmt.Errorf("response contains no tables")
	}
	return &result, nil
}

// deriveRelationships rebuilds the descriptive relationship list from the
// actual column references so the metadata can never disagree with the
// foreign keys.
func deriveRelationships(s *schema.Schema) {
	var rels []schema.RelationshipDefinition
	for _, t := range s.Tables {
		for _, col := range t.Columns {
			if col.References == nil {
				continue
			}
			relType := "many-to-one"
			if col.Unique {
				relType = "one-to-one"
			}
			rels = append(rels, schema.RelationshipDefinition{
				FromTable:  t.Name,
				FromColumn: col.Name,
				ToTable:    col.References.Table,
				ToColumn:   col.References.Column,
				Type:       relType,
			})
		}
	}
	s.Relationships = rels
}

const createPromptTemplate = `You are a database architect for a CRM platform. Design a relational schema for the application described below.

Request: {{.Prompt}}

Rules:
- 1 to 15 tables, each with 1 to 50 columns.
- Table and column names must be snake_case, start with a letter, and must not be SQL reserved words.
- Every table MUST include these columns: user_id (UUID, not null), created_at (TIMESTAMPTZ, not null), updated_at (TIMESTAMPTZ, not null).
- Column types must be one of: UUID, TEXT, VARCHAR, INTEGER, BIGINT, BOOLEAN, TIMESTAMP, TIMESTAMPTZ, DATE, NUMERIC, JSONB, TEXT[], UUID[], INTEGER[].
- Foreign keys use a "references" object: {"table": "...", "column": "...", "on_delete": "CASCADE|SET NULL|RESTRICT"}. Referenced tables must exist in this schema. No circular references between tables.

Respond with ONLY a JSON object in this exact shape:
{"schema": {"version": "1.0.0", "tables": [{"name": "...", "columns": [{"name": "...", "type": "...", "nullable": false}]}]}, "reasoning": "short explanation of the design"}`

const modifyPromptTemplate = `You are a database architect for a CRM platform. Modify the existing schema below according to the request. Preserve every table and column the request does not touch, verbatim.

Existing schema:
{{.ExistingSchema}}

Request: {{.Prompt}}

Rules:
- 1 to 15 tables, each with 1 to 50 columns.
- Table and column names must be snake_case, start with a letter, and must not be SQL reserved words.
- Every table MUST include user_id (UUID), created_at (TIMESTAMPTZ) and updated_at (TIMESTAMPTZ).
- Column types must be one of: UUID, TEXT, VARCHAR, INTEGER, BIGINT, BOOLEAN, TIMESTAMP, TIMESTAMPTZ, DATE, NUMERIC, JSONB, TEXT[], UUID[], INTEGER[].
- Never drop tables or columns unless the request explicitly asks for it.

Respond with ONLY a JSON object in this exact shape:
{"schema": {"version": "x.y.z", "tables": [...]}, "reasoning": "short explanation of the changes"}`
