// Package web provides the HTTP server of go-dailyprophet
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/database"
	"github.com/go-while/go-dailyprophet/internal/logging"
	"github.com/go-while/go-dailyprophet/internal/plugins"
	"github.com/go-while/go-dailyprophet/internal/posts"
	"github.com/go-while/go-dailyprophet/internal/sitemap"
)

// Deps are the collaborators the handlers need. DB may be nil when the
// generate endpoint is not protected.
type Deps struct {
	Config  *config.MainConfig
	DB      *database.Database
	Mapper  *posts.Mapper
	Sitemap *sitemap.Writer
	Plugins *plugins.Registry
	Logger  *zap.Logger
}

// WebServer represents the web server
type WebServer struct {
	DB        *database.Database
	Router    *gin.Engine
	Config    *config.WebConfig
	SiteBase  string
	StartTime time.Time

	mapper  *posts.Mapper
	sitemap *sitemap.Writer
	plugins *plugins.Registry
	logger  *zap.Logger

	robotsTxtPath string // physical robots.txt in the public dir, if any

	mux          sync.Mutex
	httpServer   *http.Server
	shuttingDown bool
	bg           sync.WaitGroup // token usage updates, Add only under mux
}

// NewServer creates a new web server instance
func NewServer(deps Deps) (*WebServer, error) {
	if deps.Config == nil || deps.Config.Server.WEB == nil {
		return nil, errors.New("web: missing config")
	}
	if deps.Mapper == nil || deps.Sitemap == nil || deps.Plugins == nil {
		return nil, errors.New("web: mapper, sitemap writer and plugin registry are required")
	}
	webconfig := deps.Config.Server.WEB
	if webconfig.ProtectGenerate && deps.DB == nil {
		return nil, errors.New("web: protect_generate needs the database for credentials")
	}

	if webconfig.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger := logging.OrNop(deps.Logger).Named("web")
	if webconfig.Debug {
		files, err := ListEmbeddedFiles()
		if err != nil {
			logger.Warn("failed to list embedded files", zap.Error(err))
		}
		logger.Debug("embedded static files", zap.Strings("files", files))
	}

	router := gin.New()
	router.Use(ZapLogger(logger), gin.Recovery())

	if err := router.SetTrustedProxies(webconfig.TrustedProxies); err != nil {
		return nil, fmt.Errorf("web: trusted proxies: %w", err)
	}

	// Configure security headers based on SSL setup
	secureConfig := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	// Only add SSL-specific headers if SSL is enabled on the application itself
	// (not when running behind a reverse proxy with SSL)
	if webconfig.SSL {
		secureConfig.SSLRedirect = true
		secureConfig.STSSeconds = 31536000
		secureConfig.STSIncludeSubdomains = true
	}
	router.Use(secure.New(secureConfig))

	server := &WebServer{
		DB:       deps.DB,
		Router:   router,
		Config:   webconfig,
		SiteBase: deps.Config.SiteBase(),
		mapper:   deps.Mapper,
		sitemap:  deps.Sitemap,
		plugins:  deps.Plugins,
		logger:   logger,
	}

	robotsPath := filepath.Join(webconfig.PublicDir, "robots.txt")
	if _, err := os.Stat(robotsPath); err == nil {
		server.robotsTxtPath = robotsPath
		logger.Info("found robots.txt", zap.String("path", robotsPath))
	}

	if err := server.setupRoutes(); err != nil {
		return nil, err
	}
	return server, nil
}

// setupRoutes configures all HTTP routes
func (s *WebServer) setupRoutes() error {
	files, err := staticFS(s.Config.StaticDir)
	if err != nil {
		return fmt.Errorf("web: static files: %w", err)
	}
	static := StaticHandler("/static", files)
	s.Router.GET("/static/*filepath", static)
	s.Router.HEAD("/static/*filepath", static)

	s.Router.GET("/sitemap.xml", s.serveSitemap)
	s.Router.GET("/robots.txt", s.serveRobots)
	s.Router.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "pong")
	})

	api := s.Router.Group("/api")
	{
		api.GET("/post-routes", s.getPostRoutes)
		api.GET("/plugins", s.getPlugins)

		generate := api.Group("/generate-sitemap")
		if s.Config.ProtectGenerate {
			generate.Use(s.AdminAuthRequired())
		}
		generate.GET("", s.generateSitemap)
		generate.POST("", s.generateSitemap)
	}

	v1 := s.Router.Group("/api/v1")
	{
		v1.GET("/post-routes", s.getPublicPostRoutes)
		if s.DB != nil {
			v1.GET("/sitemap/status", s.getSitemapStatus)
		}
	}
	return nil
}

// Start starts the web server with SSL support if configured. It blocks until Shutdown.
func (s *WebServer) Start() error {
	addr := ":" + strconv.Itoa(s.Config.ListenPort)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mux.Lock()
	if s.httpServer != nil {
		s.mux.Unlock()
		return errors.New("web: server already started")
	}
	s.httpServer = srv
	s.StartTime = time.Now()
	s.mux.Unlock()

	if s.Config.SSL {
		if s.Config.CertFile == "" || s.Config.KeyFile == "" {
			return errors.New("SSL enabled but cert_file or key_file not specified in config")
		}
		s.logger.Info("starting HTTPS server", zap.String("addr", addr))
		return srv.ListenAndServeTLS(s.Config.CertFile, s.Config.KeyFile)
	}
	s.logger.Info("starting HTTP server", zap.String("addr", addr))
	return srv.ListenAndServe()
}

// Shutdown stops accepting requests, waits for running ones and background work.
func (s *WebServer) Shutdown(ctx context.Context) error {
	s.mux.Lock()
	srv := s.httpServer
	s.shuttingDown = true
	s.mux.Unlock()

	var err error
	if srv != nil {
		err = srv.Shutdown(ctx)
	}
	s.bg.Wait()
	return err
}

// goBackground runs fn in a goroutine that Shutdown waits for.
// It returns false and drops fn once Shutdown has started.
func (s *WebServer) goBackground(fn func()) bool {
	s.mux.Lock()
	defer s.mux.Unlock()
	if s.shuttingDown {
		return false
	}
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		fn()
	}()
	return true
}

// ZapLogger logs one line per request
func ZapLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("size", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("request", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("request", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
