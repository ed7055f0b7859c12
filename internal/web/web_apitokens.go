package web

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/i18n"
)

const APIAuthHeader = "X-API"

// AdminAuthRequired accepts either an API token in the X-API header or HTTP basic
// credentials of an admin user.
func (s *WebServer) AdminAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := strings.TrimSpace(c.GetHeader(APIAuthHeader)); token != "" {
			apiToken, err := s.DB.ValidateAPIToken(token)
			if err == nil {
				// Update usage statistics (non-blocking)
				id := apiToken.ID
				if !s.goBackground(func() {
					if err := s.DB.UpdateTokenUsage(id); err != nil {
						s.logger.Warn("failed to update token usage", zap.Int("token", id), zap.Error(err))
					}
				}) {
					s.logger.Debug("shutting down, token usage not recorded", zap.Int("token", id))
				}
				c.Set("api_token", apiToken)
				c.Next()
				return
			}
			s.logger.Info("rejected api token", zap.String("ip", c.ClientIP()), zap.Error(err))
		} else if username, password, ok := c.Request.BasicAuth(); ok {
			user, err := s.DB.VerifyAdminPassword(username, password)
			if err == nil {
				c.Set("admin_user", user)
				c.Next()
				return
			}
			s.logger.Info("rejected admin login", zap.String("user", username), zap.String("ip", c.ClientIP()), zap.Error(err))
		}

		c.Header("WWW-Authenticate", `Basic realm="dailyprophet"`)
		c.String(http.StatusUnauthorized, i18n.Text(c.GetHeader("Accept-Language"), i18n.MsgUnauthorized))
		c.Abort()
	}
}
