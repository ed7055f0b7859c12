package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gopkg.in/yaml.v3"

	"github.com/go-while/go-dailyprophet/internal/config"
	"github.com/go-while/go-dailyprophet/internal/database"
)

func writeConfig(t *testing.T, cfg *config.MainConfig) string {
	t.Helper()
	data, err := yaml.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "dailyprophet.yaml")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestRunWritesSitemapFromLocalPosts(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	dataDir := t.TempDir()

	dbConfig := database.DefaultDBConfig()
	dbConfig.DataDir = dataDir
	db, err := database.OpenDatabase(dbConfig, nil)
	require.NoError(t, err)
	require.NoError(t, db.InsertPost("7", "Seven"))
	require.NoError(t, db.Shutdown())

	cfg := config.NewDefaultConfig()
	cfg.Database.DataDir = dataDir
	cfg.Site.Domain = "https://prophet.example"
	path := writeConfig(t, cfg)

	out := filepath.Join(t.TempDir(), "public")
	code := run(zaptest.NewLogger(t), path, out, "", 10*time.Second)
	require.Equal(t, 0, code)

	data, err := os.ReadFile(filepath.Join(out, "sitemap.xml"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "<url><loc>https://prophet.example/post/7</loc></url>")
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("DATABASE_URL", "")
	code := run(zaptest.NewLogger(t), "", t.TempDir(), "mongo", time.Second)
	assert.Equal(t, 2, code)
}

func TestEnvLanguage(t *testing.T) {
	t.Setenv("LC_ALL", "")
	t.Setenv("LANG", "en_US.UTF-8")
	assert.Equal(t, "en-US", envLanguage())

	t.Setenv("LC_ALL", "zh_TW.UTF-8")
	assert.Equal(t, "zh-TW", envLanguage())

	t.Setenv("LC_ALL", "C")
	assert.Equal(t, "", envLanguage())
}
