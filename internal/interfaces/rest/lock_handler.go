package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/internal/application/services"
)

type LockHandler struct {
	svcMgr *services.ServiceManager
}

func NewLockHandler(svcMgr *services.ServiceManager) *LockHandler {
	return &LockHandler{svcMgr: svcMgr}
}

// AcquireLockRequest represents lock acquire request body. Duration of zero
// uses the default TTL.
type AcquireLockRequest struct {
	DurationMinutes int `json:"duration_minutes"`
}

// Acquire handles POST /api/projects/:projectId/schema/lock
func (h *LockHandler) Acquire(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	var req AcquireLockRequest
	if c.Request.ContentLength > 0 && !BindJSON(c, &req) {
		return
	}

	project, err := h.svcMgr.ProjectService.RequireOwned(c.Request.Context(), c.Param("projectId"), user.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}

	result, err := h.svcMgr.LockService.Acquire(c.Request.Context(), project.ID, user.ID, req.DurationMinutes)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Release handles DELETE /api/projects/:projectId/schema/lock
func (h *LockHandler) Release(c *gin.Context) {
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

	HandleDeleteEnvelope(c, "Lock released", func() error {
		return h.svcMgr.LockService.Release(c.Request.Context(), project.ID, user.ID)
	})
}

// Status handles GET /api/projects/:projectId/schema/lock
func (h *LockHandler) Status(c *gin.Context) {
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

	status, err := h.svcMgr.LockService.Status(c.Request.Context(), project.ID)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}
