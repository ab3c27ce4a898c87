package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/internal/application/services"
)

type VersionHandler struct {
	svcMgr *services.ServiceManager
}

func NewVersionHandler(svcMgr *services.ServiceManager) *VersionHandler {
	return &VersionHandler{svcMgr: svcMgr}
}

// RollbackRequest represents rollback request body
type RollbackRequest struct {
	TargetVersion string `json:"target_version" binding:"required"`
	Reason        string `json:"reason"`
}

// List handles GET /api/projects/:projectId/schema/versions
func (h *VersionHandler) List(c *gin.Context) {
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

	HandleGetEnvelope(c, "versions", func() (interface{}, error) {
		return h.svcMgr.VersionService.History(c.Request.Context(), project.ID)
	})
}

// Rollback handles POST /api/projects/:projectId/schema/rollback
func (h *VersionHandler) Rollback(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	var req RollbackRequest
	if !BindJSON(c, &req) {
		return
	}

	project, err := h.svcMgr.ProjectService.RequireOwned(c.Request.Context(), c.Param("projectId"), user.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	// Rollback is a mutation: it runs under the project lock like generation
	if _, err := h.svcMgr.LockService.Acquire(c.Request.Context(), project.ID, user.ID, 0); err != nil {
		RespondAppError(c, err)
		return
	}
	defer func() {
		_ = h.svcMgr.LockService.Release(c.Request.Context(), project.ID, user.ID)
	}()

	rec, err := h.svcMgr.VersionService.Rollback(c.Request.Context(), project.ID, user.ID, req.TargetVersion, req.Reason)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"version": rec})
}
