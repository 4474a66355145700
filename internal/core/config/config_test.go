package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoadAppliesDefaults(t *testing.T) {
	p := writeYAML(t, `
jwt:
  secret: 0123456789abcdef0123456789abcdef
db:
  driver: sqlite
  dsn: file::memory:
`)
	c, err := Load(p)
	require.NoError(t, err)

	assert.Equal(t, 8080, c.App.HTTP.Port)
	assert.Equal(t, 8081, c.App.Admin.Port)
	assert.True(t, c.Accounts.EmailCaseInsensitive)
	assert.Equal(t, 10, c.Accounts.BcryptCost)
	assert.Equal(t, 10, c.Accounts.DefaultPageSize)
	assert.Equal(t, 100, c.Accounts.MaxPageSize)
	assert.Equal(t, 1440, c.JWT.AccessTokenTTLMin)
	assert.Equal(t, "accounts", c.JWT.Issuer)
	assert.EqualValues(t, 1<<20, c.Limits.MaxBodyBytes)
}

func TestLoadEnvOverride(t *testing.T) {
	p := writeYAML(t, `
jwt:
  secret: short
db:
  driver: sqlite
  dsn: file::memory:
`)
	t.Setenv("APP_JWT_SECRET", "ffffffffffffffffffffffffffffffffff")
	c, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, "ffffffffffffffffffffffffffffffffff", c.JWT.Secret)
}

func TestLoadValidation(t *testing.T) {
	p := writeYAML(t, `
jwt:
  secret: short
db:
  driver: oracle
accounts:
  bcryptCost: 99
`)
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt.secret")
	assert.Contains(t, err.Error(), "db.driver")
	assert.Contains(t, err.Error(), "db.dsn")
	assert.Contains(t, err.Error(), "bcryptCost")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSampleConfigLoads(t *testing.T) {
	c, err := Load("../../../configs/config.local.yaml")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", c.DB.Driver)
	assert.Equal(t, []string{"http://localhost:3000"}, c.CORS.AllowedOrigins)
}
