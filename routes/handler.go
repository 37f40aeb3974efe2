package routes

import (
	"net/http"
	"strings"

	"finco/settlement/common"
	"finco/settlement/errors"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequireOrganization rejects requests without an organization header and
// exposes the id to handlers under common.OrganizationIDKey.
func RequireOrganization() gin.HandlerFunc {
	return func(c *gin.Context) {
		orgID := strings.TrimSpace(c.Request.Header.Get(common.OrganizationHeader))
		if orgID == "" {
			log.WithField("path", c.FullPath()).Warn(errors.ClientOrgIdError)
			common.SendErrorResponse(c, common.Exception{
				Code:      http.StatusBadRequest,
				ErrorType: string(errors.CodeInvalidParameter),
				Message:   errors.ClientOrgIdError,
			})
			return
		}
		c.Set(common.OrganizationIDKey, orgID)
		c.Next()
	}
}

// Validate a request
func HandlerWrap(f func(c *gin.Context)) gin.HandlerFunc {

	return func(c *gin.Context) {
		f(c)
	}
}
