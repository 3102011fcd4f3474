package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfig(t *testing.T) {
	want := Server{
		API: Api{HTTPAddr: "0.0.0.0:8002", RateLimit: 600},
		Vendor: Vendor{
			APIDomain:    "acme.wufoo.com",
			AssetBaseURL: "https://wufoo.com",
			Timeout:      15 * time.Second,
		},
		Store: Store{
			Driver:            DriverSQLite,
			DSN:               "/var/lib/formproxy/pictures.db",
			DeleteConcurrency: 4,
		},
	}

	got, err := Parse("config.yml")

	assert.NoError(t, got.Validate())
	assert.Equal(t, nil, err)
	assert.Equal(t, want, got)
}

func TestParseConfig_EmptyPathReturnsDefaults(t *testing.T) {
	got, err := Parse("")

	require.NoError(t, err)
	assert.Equal(t, Default(), got)
	assert.NoError(t, got.Validate())
}

func TestParseConfig_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.yml")
	require.NoError(t, os.WriteFile(path, []byte("vendor:\n  api_domain: forms.example.com\n"), 0o600))

	got, err := Parse(path)

	require.NoError(t, err)
	assert.Equal(t, "forms.example.com", got.Vendor.APIDomain)
	assert.Equal(t, Default().API, got.API)
	assert.Equal(t, Default().Store, got.Store)
	assert.Equal(t, 30*time.Second, got.Vendor.Timeout)
}

func TestParseConfig_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{EnvAPIKey: "secret", EnvAPIDomain: ""}

	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	})

	assert.Equal(t, "secret", cfg.Vendor.APIKey)
	assert.Empty(t, cfg.Vendor.APIDomain)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Server)
	}{
		{"empty address", func(s *Server) { s.API.HTTPAddr = "" }},
		{"negative rate limit", func(s *Server) { s.API.RateLimit = -1 }},
		{"relative base url", func(s *Server) { s.Vendor.AssetBaseURL = "/assets" }},
		{"negative timeout", func(s *Server) { s.Vendor.Timeout = -time.Second }},
		{"unknown driver", func(s *Server) { s.Store.Driver = "mongo" }},
		{"sqlite without dsn", func(s *Server) { s.Store.Driver = DriverSQLite }},
		{"zero concurrency", func(s *Server) { s.Store.DeleteConcurrency = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
