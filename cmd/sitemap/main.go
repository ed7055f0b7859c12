// Writes sitemap.xml once and exits, for deploy hooks and cron
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/database"
	"github.com/go-while/go-dailyprophet/internal/i18n"
	"github.com/go-while/go-dailyprophet/internal/logging"
	"github.com/go-while/go-dailyprophet/internal/posts"
	"github.com/go-while/go-dailyprophet/internal/sitemap"
)

var appVersion = "-unset-"

func main() {
	config.AppVersion = appVersion
	var (
		configFile = flag.String("config", "", "YAML config file (default: built-in defaults)")
		publicDir  = flag.String("publicdir", "", "output directory (overrides config)")
		backend    = flag.String("backend", "", "posts backend: sqlite, postgres or supabase")
		timeout    = flag.Duration("timeout", time.Minute, "give up after this long")
		debug      = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	logger, err := logging.New(*debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	undo := zap.ReplaceGlobals(logger)

	code := run(logger, *configFile, *publicDir, *backend, *timeout)
	undo()
	_ = logger.Sync()
	os.Exit(code)
}

func run(logger *zap.Logger, configFile, publicDir, backend string, timeout time.Duration) int {
	mainConfig, err := config.LoadConfigFile(configFile)
	if err != nil {
		logger.Error("failed to load config", zap.Error(err))
		return 2
	}
	if err := mainConfig.ApplyEnv(os.Getenv); err != nil {
		logger.Error("invalid environment", zap.Error(err))
		return 2
	}
	if publicDir != "" {
		mainConfig.Server.WEB.PublicDir = publicDir
	}
	if backend != "" {
		mainConfig.Database.Backend = backend
	}
	if err := mainConfig.Validate(); err != nil {
		logger.Error("invalid configuration", zap.Error(err))
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	dbConfig := database.DefaultDBConfig()
	dbConfig.DataDir = mainConfig.Database.DataDir
	db, err := database.OpenDatabase(dbConfig, logger)
	if err != nil {
		logger.Error("failed to initialize database", zap.Error(err))
		return 1
	}
	defer db.Shutdown()

	source, err := posts.OpenSource(ctx, mainConfig, db.GetMainDB())
	if err != nil {
		logger.Error("failed to open posts backend", zap.Error(err))
		fmt.Println(i18n.Text(envLanguage(), i18n.MsgSitemapFailed))
		return 1
	}
	defer source.Close()

	writer := sitemap.NewWriter(source, mainConfig.SiteBase(), mainConfig.Server.WEB.PublicDir, logger.Named("sitemap"))
	res, err := writer.Generate(ctx)
	if err != nil {
		fmt.Println(i18n.Text(envLanguage(), i18n.MsgSitemapFailed))
		return 1
	}
	if err := db.RecordSitemap(res.GeneratedAt, res.URLCount); err != nil {
		logger.Warn("failed to record sitemap status", zap.Error(err))
	}

	lang := envLanguage()
	fmt.Println(i18n.Text(lang, i18n.MsgSitemapGenerated))
	fmt.Println(i18n.Text(lang, i18n.MsgSitemapSummary, res.URLCount, res.Path))
	return 0
}

// envLanguage turns a POSIX locale like en_US.UTF-8 into a BCP 47 tag
func envLanguage() string {
	lang := os.Getenv("LC_ALL")
	if lang == "" {
		lang = os.Getenv("LANG")
	}
	if i := strings.IndexAny(lang, ".@"); i >= 0 {
		lang = lang[:i]
	}
	if lang == "C" || lang == "POSIX" {
		return ""
	}
	return strings.ReplaceAll(lang, "_", "-")
}
