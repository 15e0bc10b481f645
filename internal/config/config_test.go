package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validBase() *Config {
	return &Config{
		Port:             "8460",
		JWTSecret:        "secure-secret-at-least-32-chars-long",
		DBPassword:       "secure-password",
		DBSSLMode:        "require",
		Env:              "development",
		HeartbeatSeconds: 30,
		FeedMaxLimit:     100,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"valid development config", func(c *Config) {}, false},
		{"missing port", func(c *Config) { c.Port = "" }, true},
		{"missing JWT secret", func(c *Config) { c.JWTSecret = "" }, true},
		{"negative heartbeat", func(c *Config) { c.HeartbeatSeconds = -5 }, true},
		{"zero feed limit", func(c *Config) { c.FeedMaxLimit = 0 }, true},
		{"negative feed limit", func(c *Config) { c.FeedMaxLimit = -1 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validBase()
			tt.mutate(c)

			err := c.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_ValidateProduction(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError bool
	}{
		{"strong production config", func(c *Config) {}, false},
		{"default JWT secret", func(c *Config) { c.JWTSecret = "your-secret-key-change-in-production" }, true},
		{"short JWT secret", func(c *Config) { c.JWTSecret = "tooshort" }, true},
		{"default DB password", func(c *Config) { c.DBPassword = "password" }, true},
		{"empty DB password", func(c *Config) { c.DBPassword = "" }, true},
	}

	for _, env := range []string{"production", "prod"} {
		for _, tt := range tests {
			t.Run(env+"/"+tt.name, func(t *testing.T) {
				c := validBase()
				c.Env = env
				tt.mutate(c)

				err := c.Validate()
				if tt.expectError {
					assert.Error(t, err)
				} else {
					assert.NoError(t, err)
				}
			})
		}
	}
}

func TestConfig_HeartbeatInterval(t *testing.T) {
	c := &Config{HeartbeatSeconds: 15}
	assert.Equal(t, 15*time.Second, c.HeartbeatInterval())

	c.HeartbeatSeconds = 0
	assert.Equal(t, 30*time.Second, c.HeartbeatInterval(), "unset interval falls back to the default")
}
