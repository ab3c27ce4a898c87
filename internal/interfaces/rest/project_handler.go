package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/internal/application/services"
)

type ProjectHandler struct {
	svcMgr *services.ServiceManager
}

func NewProjectHandler(svcMgr *services.ServiceManager) *ProjectHandler {
	return &ProjectHandler{svcMgr: svcMgr}
}

// CreateProjectRequest represents create project request body
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// Create handles POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	var req CreateProjectRequest
	if !BindJSON(c, &req) {
		return
	}

	project, err := h.svcMgr.ProjectService.Create(c.Request.Context(), user.ID, req.Name)
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"project": project})
}

// List handles GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	HandleGetEnvelope(c, "projects", func() (interface{}, error) {
		return h.svcMgr.ProjectService.List(c.Request.Context(), user.ID)
	})
}

// Get handles GET /api/projects/:projectId
func (h *ProjectHandler) Get(c *gin.Context) {
	user := GetUserFromContext(c)
	if user == nil {
		RespondError(c, http.StatusUnauthorized, "User not found")
		return
	}

	HandleGetEnvelope(c, "project", func() (interface{}, error) {
		return h.svcMgr.ProjectService.RequireOwned(c.Request.Context(), c.Param("projectId"), user.ID)
	})
}
