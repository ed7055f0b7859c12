package web

import (
	"errors"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/i18n"
	"github.com/go-while/go-dailyprophet/internal/sitemap"
)

// getPostRoutes returns the bare list of post paths. Query errors yield [].
func (s *WebServer) getPostRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, s.mapper.PostRoutes(c.Request.Context()))
}

// getPublicPostRoutes returns {"data": [...]}. Query errors yield {"data": []}.
func (s *WebServer) getPublicPostRoutes(c *gin.Context) {
	c.JSON(http.StatusOK, s.mapper.PublicPostRoutes(c.Request.Context()))
}

// generateSitemap rewrites sitemap.xml in the public dir.
// A failed query still answers 200 with the failure text; only a failed write is a 500.
func (s *WebServer) generateSitemap(c *gin.Context) {
	lang := c.GetHeader("Accept-Language")
	res, err := s.sitemap.Generate(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		status := http.StatusOK
		if errors.Is(err, sitemap.ErrWrite) {
			status = http.StatusInternalServerError
		}
		c.String(status, i18n.Text(lang, i18n.MsgSitemapFailed))
		return
	}
	if s.DB != nil {
		if err := s.DB.RecordSitemap(res.GeneratedAt, res.URLCount); err != nil {
			s.logger.Warn("failed to record sitemap status", zap.Error(err))
		}
	}
	c.String(http.StatusOK, i18n.Text(lang, i18n.MsgSitemapGenerated))
}

func (s *WebServer) getSitemapStatus(c *gin.Context) {
	status, err := s.DB.LastSitemap()
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read sitemap status"})
		return
	}
	if status == nil {
		c.JSON(http.StatusOK, gin.H{"generated": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"generated":    true,
		"generated_at": status.GeneratedAt,
		"url_count":    status.URLCount,
	})
}

func (s *WebServer) getPlugins(c *gin.Context) {
	c.JSON(http.StatusOK, s.plugins.Manifest())
}

// serveSitemap serves the last written sitemap.xml, 404 until one exists
func (s *WebServer) serveSitemap(c *gin.Context) {
	path := s.sitemap.Path()
	if st, err := os.Stat(path); err != nil || st.IsDir() {
		c.Status(http.StatusNotFound)
		return
	}
	c.Header("Content-Type", "application/xml; charset=utf-8")
	c.File(path)
}

func (s *WebServer) serveRobots(c *gin.Context) {
	if s.robotsTxtPath != "" {
		c.File(s.robotsTxtPath)
		return
	}
	c.String(http.StatusOK, sitemap.Robots(s.SiteBase))
}
