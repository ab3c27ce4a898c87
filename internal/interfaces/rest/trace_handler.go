package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/internal/application/services"
)

type TraceHandler struct {
	svcMgr *services.ServiceManager
}

func NewTraceHandler(svcMgr *services.ServiceManager) *TraceHandler {
	return &TraceHandler{svcMgr: svcMgr}
}

// List handles GET /api/projects/:projectId/schema/traces
func (h *TraceHandler) List(c *gin.Context) {
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

	HandleGetEnvelope(c, "traces", func() (interface{}, error) {
		return h.svcMgr.TraceService.List(c.Request.Context(), project.ID)
	})
}
