package database

import (
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	BcryptCost = bcrypt.MinCost
	cfg := DefaultDBConfig()
	cfg.DataDir = t.TempDir()
	db, err := OpenDatabase(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Shutdown() })
	return db
}

func TestOpenDatabaseAppliesMigrationsOnce(t *testing.T) {
	db := openTestDB(t)
	require.FileExists(t, db.Path())

	var applied int
	require.NoError(t, db.GetMainDB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	migrations, err := getMigrationFiles(EmbeddedMigrationsFS)
	require.NoError(t, err)
	assert.Equal(t, len(migrations), applied)

	require.NoError(t, db.Migrate())
	require.NoError(t, db.GetMainDB().QueryRow(`SELECT COUNT(*) FROM schema_migrations`).Scan(&applied))
	assert.Equal(t, len(migrations), applied)
}

func TestShutdownTwice(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Shutdown())
	require.NoError(t, db.Shutdown())
}

func TestParseMigrationFileName(t *testing.T) {
	m, err := parseMigrationFileName("0003_main_api_tokens.sql")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Version)
	assert.Equal(t, MigrationTypeMain, m.Type)
	assert.Equal(t, "api_tokens", m.Description)
	assert.Equal(t, "migrations/0003_main_api_tokens.sql", m.FilePath)

	for _, bad := range []string{"0001_main.sql", "x_main_a.sql", "0001_group_a.sql", "0001_main_a.txt"} {
		_, err := parseMigrationFileName(bad)
		assert.Error(t, err, bad)
	}
}

func TestGetMigrationFilesSortsByVersion(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/0010_main_later.sql": {Data: []byte("SELECT 1;")},
		"migrations/0002_main_first.sql": {Data: []byte("SELECT 1;")},
		"migrations/README":              {Data: []byte("ignored")},
	}
	migrations, err := getMigrationFiles(fsys)
	require.NoError(t, err)
	require.Len(t, migrations, 2)
	assert.Equal(t, 2, migrations[0].Version)
	assert.Equal(t, 10, migrations[1].Version)
}

func TestConfigValuesAndSitemapStatus(t *testing.T) {
	db := openTestDB(t)

	v, err := db.GetConfigValue("missing")
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, db.SetConfigValue("k", "v1"))
	require.NoError(t, db.SetConfigValue("k", "v2"))
	v, err = db.GetConfigValue("k")
	require.NoError(t, err)
	assert.Equal(t, "v2", v)

	status, err := db.LastSitemap()
	require.NoError(t, err)
	assert.Nil(t, status)

	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, db.RecordSitemap(at, 5))
	status, err = db.LastSitemap()
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.True(t, at.Equal(status.GeneratedAt))
	assert.Equal(t, 5, status.URLCount)
}

func TestAPITokenLifecycle(t *testing.T) {
	db := openTestDB(t)

	token, plain, err := db.CreateAPIToken("deploy-hook", nil)
	require.NoError(t, err)
	assert.Len(t, plain, 64)
	assert.Equal(t, HashToken(plain), token.APIToken)

	got, err := db.ValidateAPIToken(plain)
	require.NoError(t, err)
	assert.Equal(t, "deploy-hook", got.OwnerName)

	require.NoError(t, db.UpdateTokenUsage(got.ID))
	tokens, err := db.ListAPITokens()
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.Equal(t, 1, tokens[0].UsageCount)
	assert.NotNil(t, tokens[0].LastUsedAt)

	_, err = db.ValidateAPIToken("wrong")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	_, err = db.ValidateAPIToken("")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	require.NoError(t, db.DisableAPIToken(got.ID))
	_, err = db.ValidateAPIToken(plain)
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Error(t, db.DisableAPIToken(9999))
}

func TestAPITokenExpired(t *testing.T) {
	db := openTestDB(t)
	past := time.Now().Add(-time.Hour)
	_, plain, err := db.CreateAPIToken("old", &past)
	require.NoError(t, err)
	_, err = db.ValidateAPIToken(plain)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, _, err = db.CreateAPIToken("", nil)
	assert.Error(t, err)
}

func TestAdminUsers(t *testing.T) {
	db := openTestDB(t)

	_, err := db.CreateAdminUser("editor", "short")
	assert.Error(t, err)

	u, err := db.CreateAdminUser("editor", "s3cret-pass")
	require.NoError(t, err)
	assert.Equal(t, "editor", u.Username)
	assert.NotEqual(t, "s3cret-pass", u.PasswordHash)

	_, err = db.CreateAdminUser("editor", "another-pass")
	assert.ErrorIs(t, err, ErrUserExists)

	_, err = db.VerifyAdminPassword("editor", "s3cret-pass")
	require.NoError(t, err)
	_, err = db.VerifyAdminPassword("editor", "wrong-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = db.VerifyAdminPassword("nobody", "s3cret-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, db.UpdateAdminPassword("editor", "new-password"))
	_, err = db.VerifyAdminPassword("editor", "new-password")
	require.NoError(t, err)
	assert.ErrorIs(t, db.UpdateAdminPassword("nobody", "new-password"), ErrUserNotFound)

	users, err := db.ListAdminUsers()
	require.NoError(t, err)
	require.Len(t, users, 1)

	require.NoError(t, db.DeleteAdminUser("editor"))
	assert.ErrorIs(t, db.DeleteAdminUser("editor"), ErrUserNotFound)
}

func TestLocalPosts(t *testing.T) {
	db := openTestDB(t)

	n, err := db.CountPosts()
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, db.InsertPost("hello-world", "Hello"))
	assert.Error(t, db.InsertPost("hello-world", "duplicate"))

	ids, err := db.SeedDemoPosts(3)
	require.NoError(t, err)
	assert.Len(t, ids, 3)

	n, err = db.CountPosts()
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	ids, err = db.SeedDemoPosts(0)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
