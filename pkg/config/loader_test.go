package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestLoadConfig_MergesEnvOverBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  host: localhost
  port: 5432
reminders:
  scan_interval_seconds: 30
  days_before: [30, 7, 1]
`)
	writeFile(t, dir, "production.yaml", `
db:
  host: db.internal
reminders:
  days_before: [14]
`)

	cfg, err := LoadConfig("production", dir)
	require.NoError(t, err)

	db := cfg["db"].(map[string]interface{})
	assert.Equal(t, "db.internal", db["host"])
	assert.Equal(t, 5432, db["port"])

	reminders := cfg["reminders"].(map[string]interface{})
	assert.Equal(t, 30, reminders["scan_interval_seconds"])
	assert.Equal(t, []interface{}{14}, reminders["days_before"])
}

func TestLoadConfig_MissingEnvFileFallsBackToBase(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "server:\n  port: \"8080\"\n")

	cfg, err := LoadConfig("staging", dir)
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg["server"].(map[string]interface{})["port"])
}

func TestLoadConfig_MissingBase(t *testing.T) {
	_, err := LoadConfig("local", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base.yaml")
}

func TestLoadConfig_SubstitutesSecrets(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
db:
  password: ${DB_PASSWORD}
jwt:
  secret: "prefix-${JWT_SECRET}"
`)
	writeFile(t, dir, "secrets.env", "# local secrets\nDB_PASSWORD=\"s3cret\"\nJWT_SECRET=abc\n")

	cfg, err := LoadConfig("local", dir)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", cfg["db"].(map[string]interface{})["password"])
	assert.Equal(t, "prefix-abc", cfg["jwt"].(map[string]interface{})["secret"])
}

func TestDecode_KeepsPrefilledDefaults(t *testing.T) {
	type target struct {
		Server ServerConfig `yaml:"server"`
		DB     DBConfig     `yaml:"db"`
	}
	out := target{Server: ServerConfig{Port: "9000"}, DB: DBConfig{Port: 5432}}

	err := Decode(map[string]interface{}{
		"db": map[string]interface{}{"host": "pg"},
	}, &out)
	require.NoError(t, err)
	assert.Equal(t, "9000", out.Server.Port)
	assert.Equal(t, "pg", out.DB.Host)
	assert.Equal(t, 5432, out.DB.Port)
}

func TestOverrideDBFromEnv(t *testing.T) {
	t.Setenv("DB_HOST", "envhost")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("DB_PORT_IGNORED", "x")

	cfg := DBConfig{Host: "file", Port: 5432, Name: "docnest"}
	OverrideDBFromEnv(&cfg)
	assert.Equal(t, "envhost", cfg.Host)
	assert.Equal(t, 6543, cfg.Port)
	assert.Equal(t, "docnest", cfg.Name)
}
