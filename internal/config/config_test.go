package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "storefront", cfg.App.Name)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 5*time.Second, cfg.Database.ConnectTimeout)
	assert.Equal(t, "usd", cfg.Stripe.Currency)
	assert.Equal(t, 15*time.Second, cfg.Stripe.Timeout)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Empty(t, cfg.Server.CORSAllowOrigins)
	assert.False(t, cfg.IsProduction())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DATABASE_MAX_OPEN_CONNS", "40")
	t.Setenv("STRIPE_TIMEOUT", "3s")
	t.Setenv("SERVER_CORS_ALLOW_ORIGINS", "https://shop.example.com, https://admin.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
	assert.Equal(t, 3*time.Second, cfg.Stripe.Timeout)
	assert.Equal(t, []string{"https://shop.example.com", "https://admin.example.com"}, cfg.Server.CORSAllowOrigins)
}

func TestLoadRejectsPlaceholdersInProduction(t *testing.T) {
	t.Setenv("APP_ENV", "production")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be set in production")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			App:      AppConfig{Env: "production"},
			Database: DatabaseConfig{URL: "postgres://db"},
			Auth:     AuthConfig{JWTSecret: "real-secret"},
			Session:  SessionConfig{Secret: "0123456789abcdef0123456789abcdef"},
			Stripe: StripeConfig{
				SecretKey:     "sk_live_abc",
				WebhookSecret: "whsec_abc",
				Currency:      "usd",
				Timeout:       time.Second,
			},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid production config", mutate: func(*Config) {}},
		{name: "missing database url", mutate: func(c *Config) { c.Database.URL = "" }, wantErr: "database.url"},
		{name: "short session secret", mutate: func(c *Config) { c.Session.Secret = "short" }, wantErr: "session.secret"},
		{name: "zero stripe timeout", mutate: func(c *Config) { c.Stripe.Timeout = 0 }, wantErr: "stripe.timeout"},
		{name: "missing currency", mutate: func(c *Config) { c.Stripe.Currency = "" }, wantErr: "stripe.currency"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
