package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetListSplitsAndTrims(t *testing.T) {
	t.Setenv("ALLOWED_ORIGINS", "https://app.example.org, https://admin.example.org ,")

	cfg := Load()
	assert.Equal(t,
		[]string{"https://app.example.org", "https://admin.example.org"},
		cfg.Server.AllowedOrigins)
}

func TestAllowedOriginsDefaultIsExplicit(t *testing.T) {
	// Never a wildcard: the session cookie needs credentialed CORS.
	cfg := Load()
	assert.NotEmpty(t, cfg.Server.AllowedOrigins)
	assert.NotContains(t, cfg.Server.AllowedOrigins, "*")
}
