// Web server for go-dailyprophet: post route lists, sitemap generation and the plugin manifest
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	prof "github.com/go-while/go-cpu-mem-profiler"
	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/database"
	"github.com/go-while/go-dailyprophet/internal/logging"
	"github.com/go-while/go-dailyprophet/internal/plugins"
	"github.com/go-while/go-dailyprophet/internal/posts"
	"github.com/go-while/go-dailyprophet/internal/sitemap"
	"github.com/go-while/go-dailyprophet/internal/web"
)

var (
	// command-line flags
	configFile     string
	webport        int
	webssl         bool
	webcertFile    string
	webkeyFile     string
	publicDir      string
	backend        string
	sitemapOnStart bool
	sitemapEvery   time.Duration
	seedDemo       int
	pprofAddr      string
	debug          bool

	Prof *prof.Profiler
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion

	flag.StringVar(&configFile, "config", "", "YAML config file (default: built-in defaults)")
	flag.IntVar(&webport, "webport", 0, "Web server port (default: 11980 (no ssl) or 19443 (webssl))")
	flag.BoolVar(&webssl, "webssl", false, "Enable SSL")
	flag.StringVar(&webcertFile, "websslcert", "", "SSL certificate file (/path/to/fullchain.pem)")
	flag.StringVar(&webkeyFile, "websslkey", "", "SSL key file (/path/to/privkey.pem)")
	flag.StringVar(&publicDir, "publicdir", "", "directory sitemap.xml is written to (default: public)")
	flag.StringVar(&backend, "backend", "", "posts backend: sqlite, postgres or supabase (default: from config/env)")
	flag.BoolVar(&sitemapOnStart, "sitemap-on-start", false, "write sitemap.xml once during startup")
	flag.DurationVar(&sitemapEvery, "sitemap-every", 0, "rewrite sitemap.xml periodically, e.g. 1h (default: off)")
	flag.IntVar(&seedDemo, "seed-demo", 0, "insert N demo posts into the local sqlite posts table")
	flag.StringVar(&pprofAddr, "pprof", "", "serve pprof on this address, e.g. :51111 (default: off)")
	flag.BoolVar(&debug, "debug", false, "gin debug mode and debug logging")
	flag.Parse()

	logger, err := logging.New(debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()
	undo := zap.ReplaceGlobals(logger)
	defer undo()

	log := logger.Named("main")
	log.Info("starting go-dailyprophet web server", zap.String("version", appVersion))

	mainConfig, err := loadConfig(os.Getenv)
	if err != nil {
		log.Fatal("invalid configuration", zap.Error(err))
	}
	webConfig := mainConfig.Server.WEB
	log.Info("using web configuration",
		zap.Int("port", webConfig.ListenPort),
		zap.Bool("ssl", webConfig.SSL),
		zap.String("public_dir", webConfig.PublicDir),
		zap.String("backend", mainConfig.Database.Backend),
		zap.String("site", mainConfig.SiteBase()))

	if pprofAddr != "" {
		Prof = prof.NewProf()
		go Prof.PprofWeb(pprofAddr)
		Prof.StartMemProfile(5*time.Minute, 30*time.Second)
		log.Info("pprof enabled", zap.String("addr", pprofAddr))
	}

	dbConfig := database.DefaultDBConfig()
	dbConfig.DataDir = mainConfig.Database.DataDir
	db, err := database.OpenDatabase(dbConfig, logger)
	if err != nil {
		log.Fatal("failed to initialize database", zap.Error(err))
	}

	if seedDemo > 0 {
		ids, err := db.SeedDemoPosts(seedDemo)
		if err != nil {
			log.Fatal("failed to seed demo posts", zap.Error(err))
		}
		log.Info("seeded demo posts", zap.Int("count", len(ids)))
	}
	logLocalPosts(db, mainConfig.Database.Backend, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	source, err := posts.OpenSource(ctx, mainConfig, db.GetMainDB())
	if err != nil {
		log.Fatal("failed to open posts backend", zap.Error(err))
	}

	mapper := posts.NewMapper(source, logger.Named("posts"))
	if routes, err := mapper.Discover(ctx); err != nil {
		// the server still starts; the handlers answer with empty lists until the backend recovers
		log.Warn("post route discovery failed", zap.String("source", source.Name()), zap.Error(err))
	} else {
		log.Info("discovered post routes", zap.String("source", source.Name()), zap.Int("routes", len(routes)))
	}

	writer := sitemap.NewWriter(source, mainConfig.SiteBase(), webConfig.PublicDir, logger.Named("sitemap"))
	if webConfig.SitemapOnStart {
		if err := generateAndRecord(ctx, writer, db); err != nil {
			log.Warn("startup sitemap failed", zap.Error(err))
		}
	}

	registry := plugins.NewRegistry(mainConfig.Site.CSS, logger.Named("plugins"))
	if err := plugins.RegisterDefaults(registry, mainConfig.Plugins); err != nil {
		log.Fatal("failed to register plugins", zap.Error(err))
	}

	server, err := web.NewServer(web.Deps{
		Config:  mainConfig,
		DB:      db,
		Mapper:  mapper,
		Sitemap: writer,
		Plugins: registry,
		Logger:  logger,
	})
	if err != nil {
		log.Fatal("failed to create web server", zap.Error(err))
	}

	webServerErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			webServerErrChan <- err
		}
	}()
	log.Info("server started, press Ctrl+C to gracefully shutdown")

	if sitemapEvery > 0 {
		go startSitemapRefresher(ctx, writer, db, sitemapEvery)
	}
	updateFileChan := make(chan bool, 1)
	go monitorUpdateFile(ctx, updateFileChan)

	var exitCode int
	select {
	case <-ctx.Done():
		log.Info("received shutdown signal, initiating graceful shutdown")
	case err := <-webServerErrChan:
		log.Error("web server failed", zap.Error(err))
		exitCode = 1
	case <-updateFileChan:
		log.Info("update file detected, initiating graceful shutdown for update")
	}
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("web server shutdown", zap.Error(err))
	}
	if err := source.Close(); err != nil {
		log.Warn("failed to close posts backend", zap.Error(err))
	}
	if err := db.Shutdown(); err != nil {
		log.Error("failed to shutdown database", zap.Error(err))
		exitCode = 1
	}
	log.Info("graceful shutdown completed")
	if exitCode != 0 {
		_ = logger.Sync()
		os.Exit(exitCode)
	}
}

// loadConfig layers defaults, the config file, the environment and the flags
func loadConfig(getenv func(string) string) (*config.MainConfig, error) {
	mainConfig, err := config.LoadConfigFile(configFile)
	if err != nil {
		return nil, err
	}
	if err := mainConfig.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	applyFlags(mainConfig)
	if err := mainConfig.Validate(); err != nil {
		return nil, err
	}
	return mainConfig, nil
}

func applyFlags(mainConfig *config.MainConfig) {
	webConfig := mainConfig.Server.WEB
	if webssl {
		webConfig.SSL = true
		if webport == 0 && webConfig.ListenPort == config.DefaultWebPort {
			webConfig.ListenPort = config.DefaultSSLWebPort
		}
	}
	if webport > 0 {
		webConfig.ListenPort = webport
	}
	if webcertFile != "" {
		webConfig.CertFile = webcertFile
	}
	if webkeyFile != "" {
		webConfig.KeyFile = webkeyFile
	}
	if publicDir != "" {
		webConfig.PublicDir = publicDir
	}
	if sitemapOnStart {
		webConfig.SitemapOnStart = true
	}
	if debug {
		webConfig.Debug = true
	}
	if backend != "" {
		mainConfig.Database.Backend = backend
	}
}
