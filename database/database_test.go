package database

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	for _, key := range []string{
		"DB_HOST", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_SSLMODE",
		"REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB", "JWT_SECRET", "GENERATOR_URL",
		"GENERATOR_TIMEOUT", "ALLOWED_ORIGINS", "LISTEN_ADDR",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadConfig_FileAndDefaults(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{
		"db_host": "db",
		"db_user": "story",
		"db_name": "stories",
		"jwt_secret": "s3cret",
		"generator_url": "http://gen/generate"
	}`)

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "db", config.DBHost)
	assert.Equal(t, "disable", config.DBSSLMode)
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 60, config.GeneratorTimeout)
	assert.Equal(t, ":8080", config.ListenAddr)
	assert.Equal(t, "host=db user=story dbname=stories password= sslmode=disable", DSN(config))
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `{"db_host": "db", "redis_db": 2, "jwt_secret": "file"}`)
	t.Setenv("DB_HOST", "env-db")
	t.Setenv("REDIS_DB", "5")
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("GENERATOR_URL", "http://gen")
	t.Setenv("GENERATOR_TIMEOUT", "not-a-number")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, http://b.example,")

	config, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "env-db", config.DBHost)
	assert.Equal(t, 5, config.RedisDB)
	assert.Equal(t, "env-secret", config.JWTSecret)
	assert.Equal(t, 60, config.GeneratorTimeout)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, config.AllowedOrigins)
}

func TestLoadConfig_MissingFileUsesEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_SECRET", "env-secret")
	t.Setenv("GENERATOR_URL", "http://gen")

	config, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))
	require.NoError(t, err)
	assert.Equal(t, "env-secret", config.JWTSecret)
}

func TestLoadConfig_RequiresSecrets(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(writeConfig(t, `{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "GENERATOR_URL")

	_, err = LoadConfig(writeConfig(t, `{not json`))
	assert.Error(t, err)
}
