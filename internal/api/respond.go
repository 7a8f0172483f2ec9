package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ammar1510/clientdesk/internal/apperr"
	"github.com/ammar1510/clientdesk/internal/logger"
)

var log = logger.New("api")

func respond(c *gin.Context, status int, data interface{}) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func respondMessage(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// respondError maps err onto the error body. Internal details are logged and
// never sent.
func respondError(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	if status == http.StatusInternalServerError {
		log.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	respondMessage(c, status, apperr.PublicMessage(err))
}
