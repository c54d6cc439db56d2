package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("RequiresSecret", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "0.0.0.0:5000", cfg.HTTPAddr())
		assert.Equal(t, "sqlite", cfg.DBDriver)
		assert.Equal(t, 60*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, 2048, cfg.RSAKeyBits)
		assert.Equal(t, 64*1024, cfg.Argon2Memory)
		assert.Contains(t, cfg.DatabaseURL, "postgres://")
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("HTTP_PORT", "8080")
		t.Setenv("DB_DRIVER", "Postgres")
		t.Setenv("HEARTBEAT_INTERVAL", "15")
		t.Setenv("CORS_ORIGINS", "http://a.test, http://b.test")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres", cfg.DBDriver)
		assert.Equal(t, 15*time.Second, cfg.HeartbeatInterval)
		assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORSOrigins)
	})

	t.Run("RejectsUnknownDriver", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("DB_DRIVER", "mysql")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("RejectsWeakKeys", func(t *testing.T) {
		t.Setenv("JWT_SECRET", "s3cret")
		t.Setenv("RSA_KEY_BITS", "1024")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("RejectsBadArgon2Cost", func(t *testing.T) {
		for _, key := range []string{"ARGON2_MEMORY_KIB", "ARGON2_TIME", "ARGON2_THREADS"} {
			for _, val := range []string{"0", "-1"} {
				t.Run(key+"="+val, func(t *testing.T) {
					t.Setenv("JWT_SECRET", "s3cret")
					t.Setenv(key, val)
					_, err := Load()
					assert.ErrorContains(t, err, key)
				})
			}
		}
	})
}

func TestGetEnvAsDuration(t *testing.T) {
	t.Setenv("D1", "1m30s")
	t.Setenv("D2", "bogus")
	assert.Equal(t, 90*time.Second, getEnvAsDuration("D1", 0))
	assert.Equal(t, time.Second, getEnvAsDuration("D2", time.Second))
	assert.Equal(t, time.Second, getEnvAsDuration("D3_UNSET", time.Second))
}
