package rest

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/promptcrm/backend/pkg/auth"
	"github.com/promptcrm/backend/pkg/constants"
	"github.com/promptcrm/backend/pkg/errors"
)

// GetUserFromContext extracts the authenticated user from gin.Context
func GetUserFromContext(c *gin.Context) *auth.UserSession {
	userInterface, exists := c.Get(constants.ContextKeyUser)
	if !exists {
		return nil
	}
	user := userInterface.(auth.UserSession)
	return &user
}

// RespondAppError sends a standardised JSON error response using pkg/errors
func RespondAppError(c *gin.Context, err error) {
	status := errors.GetHTTPStatus(err)
	if status >= 500 {
		log.Printf("❌ ERROR [%d] %s %s: %v", status, c.Request.Method, c.Request.URL.Path, err)
	}
	c.JSON(status, gin.H{"error": errors.ToResponse(err)})
}

// RespondError sends a plain error response with an explicit status
func RespondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": gin.H{"code": http.StatusText(status), "message": message}})
}

// BindJSON binds JSON and returns true if successful. If failed, it sends bad request error.
func BindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		RespondAppError(c, errors.NewValidationError("body", err.Error()))
		return false
	}
	return true
}

// HandleGetEnvelope executes a read action and returns the result wrapped in a JSON key
// Response: { [key]: result }
func HandleGetEnvelope(c *gin.Context, key string, action func() (interface{}, error)) {
	result, err := action()
	if err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{key: result})
}

// HandleDeleteEnvelope executes a delete action and returns a success message
// Response: { "message": successMsg }
func HandleDeleteEnvelope(c *gin.Context, successMsg string, action func() error) {
	if err := action(); err != nil {
		RespondAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": successMsg})
}
