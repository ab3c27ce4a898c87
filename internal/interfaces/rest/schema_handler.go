package rest

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/internal/application/services"
	"github.com/promptcrm/backend/pkg/errors"
)

type SchemaHandler struct {
	svcMgr *services.ServiceManager
}

func NewSchemaHandler(svcMgr *services.ServiceManager) *SchemaHandler {
	return &SchemaHandler{svcMgr: svcMgr}
}

// GenerateRequest represents schema generation request body
type GenerateRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Generate handles POST /api/projects/:projectId/schema/generate
func (h *SchemaHandler) Generate(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	var req GenerateRequest
	if !BindJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		RespondAppError(c, errors.NewValidationError("prompt", "prompt must not be empty"))
		return
	}

	project, err := h.svcMgr.ProjectService.RequireOwned(c.Request.Context(), c.Param("projectId"), user.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	outcome, err := h.svcMgr.PipelineService.GenerateSchema(c.Request.Context(), user.ID, project.ID, req.Prompt)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"intent":         outcome.Intent,
		"version":        outcome.Version,
		"reasoning":      outcome.Reasoning,
		"tables_created": outcome.TablesCreated,
		"columns_added":  outcome.ColumnsAdded,
		"trace_id":       outcome.TraceID,
	})
}

// GetActive handles GET /api/projects/:projectId/schema
func (h *SchemaHandler) GetActive(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	project, err := h.svcMgr.ProjectService.RequireOwned(c.Request.Context(), c.Param("projectId"), user.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	HandleGetEnvelope(c, "schema", func() (interface{}, error) {
		active, err := h.svcMgr.VersionService.GetActive(c.Request.Context(), project.ID)
		if err != nil {
			return nil, err
		}
		if active == nil {
			return nil, errors.NewNotFoundError("Active schema", project.ID)
		}
		return active, nil
	})
}
