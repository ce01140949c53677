// AngelaMos | 2026
// config_test.go

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/accountd")
	t.Setenv("SECRET_KEY", "test-secret")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "HS256", cfg.Auth.Algorithm)
	assert.Equal(t, 15*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.RefreshTTL())
	assert.False(t, cfg.Auth.RevokeFamilyOnReuse)
	assert.Equal(t, "refresh_token", cfg.Cookie.Name)
	assert.Equal(t, "/", cfg.Cookie.Path)
	assert.Equal(t, "lax", cfg.Cookie.SameSite)
	assert.Equal(t, []string{SinkLog}, cfg.Events.Sinks)
	assert.False(t, cfg.Redis.Enabled())
	assert.False(t, cfg.Admin.Enabled())
	assert.Equal(t, "0.0.0.0:8000", cfg.Server.Address())
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALGORITHM", "HS512")
	t.Setenv("ACCESS_TOKEN_EXPIRE_MINUTES", "5")
	t.Setenv("REFRESH_TOKEN_EXPIRE_MINUTES", "60")
	t.Setenv("ADMIN_NAME", "root")
	t.Setenv("ADMIN_PASSWORD", "changeme")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "HS512", cfg.Auth.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.Auth.AccessTTL())
	assert.Equal(t, time.Hour, cfg.Auth.RefreshTTL())
	assert.True(t, cfg.Admin.Enabled())
	assert.Equal(t, "root", cfg.Admin.Name)
}

func TestLoadFromFile(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
auth:
  revoke_family_on_reuse: true
cookie:
  name: rt
log:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.Auth.RevokeFamilyOnReuse)
	assert.Equal(t, "rt", cfg.Cookie.Name)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoadIsNotCached(t *testing.T) {
	setRequiredEnv(t)

	first, err := Load("")
	require.NoError(t, err)

	t.Setenv("ALGORITHM", "HS384")
	second, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "HS256", first.Auth.Algorithm)
	assert.Equal(t, "HS384", second.Auth.Algorithm)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{
			name:    "missing secret",
			env:     map[string]string{"SECRET_KEY": ""},
			wantErr: "SECRET_KEY is required",
		},
		{
			name:    "unsupported algorithm",
			env:     map[string]string{"ALGORITHM": "RS256"},
			wantErr: "not supported",
		},
		{
			name:    "non-positive access ttl",
			env:     map[string]string{"ACCESS_TOKEN_EXPIRE_MINUTES": "0"},
			wantErr: "ACCESS_TOKEN_EXPIRE_MINUTES",
		},
		{
			name: "refresh shorter than access",
			env: map[string]string{
				"ACCESS_TOKEN_EXPIRE_MINUTES":  "30",
				"REFRESH_TOKEN_EXPIRE_MINUTES": "10",
			},
			wantErr: "REFRESH_TOKEN_EXPIRE_MINUTES",
		},
		{
			name:    "production needs secure cookie",
			env:     map[string]string{"ENVIRONMENT": "production"},
			wantErr: "COOKIE_SECURE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequiredEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load("")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEventSinkRequiresBackend(t *testing.T) {
	setRequiredEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("events:\n  sinks: [log, nats]\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NATS_URL")

	t.Setenv("NATS_URL", "nats://localhost:4222")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.True(t, cfg.Events.Has(SinkNATS))
	assert.False(t, cfg.Events.Has(SinkRedis))
}

func TestEnvironmentFlags(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())

	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("COOKIE_SECURE", "true")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.False(t, cfg.IsDevelopment())
	assert.True(t, cfg.IsProduction())
}
