package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var managedKeys = []string{
	"APP_ENV", "PORT", "LOG_LEVEL", "DATABASE_URL", "MONGO_URI", "S3_BUCKET_NAME", "AWS_REGION",
	"REKOGNITION_REGION", "S3_ENDPOINT", "FACE_BACKEND", "FACE_SERVICE_URL",
	"UPSTREAM_TIMEOUT", "REDIS_ADDR", "RATE_LIMIT_PER_MIN", "RATE_LIMIT_BACKEND",
	"ADMIN_JWT_SIGNING_KEY", "JWT_ISSUER", "ADMIN_TOKEN_TTL",
}

// clearEnv unsets every key Parse reads and restores them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		if prev, ok := os.LookupEnv(key); ok {
			require.NoError(t, os.Unsetenv(key))
			t.Cleanup(func() { _ = os.Setenv(key, prev) })
		}
	}
}

func setRequired(t *testing.T) {
	t.Helper()
	clearEnv(t)
	t.Setenv("DATABASE_URL", "memory://")
	t.Setenv("S3_BUCKET_NAME", "attendance-photos")
}

func TestParseDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "5000", cfg.HTTPPort)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "rekognition", cfg.FaceBackend)
	assert.Equal(t, 15*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 120, cfg.RateLimitPerMin)
	assert.Equal(t, "memory", cfg.RateLimitBackend)
	assert.Equal(t, 12*time.Hour, cfg.AdminTokenTTL)
	assert.Equal(t, cfg.AWSRegion, cfg.RekognitionRegion)
	assert.False(t, cfg.Production())
	assert.False(t, cfg.AdminAuthEnabled())
}

func TestParseOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("PORT", "8080")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("AWS_REGION", "eu-west-1")
	t.Setenv("REKOGNITION_REGION", "us-east-1")
	t.Setenv("FACE_BACKEND", "skip")
	t.Setenv("UPSTREAM_TIMEOUT", "3s")
	t.Setenv("ADMIN_JWT_SIGNING_KEY", "secret")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.True(t, cfg.AdminAuthEnabled())
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "eu-west-1", cfg.AWSRegion)
	assert.Equal(t, "us-east-1", cfg.RekognitionRegion)
	assert.Equal(t, "skip", cfg.FaceBackend)
	assert.Equal(t, 3*time.Second, cfg.UpstreamTimeout)
}

func TestParseMongoURIFallback(t *testing.T) {
	clearEnv(t)
	t.Setenv("S3_BUCKET_NAME", "attendance-photos")
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/attendance")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017/attendance", cfg.DatabaseURL)

	t.Setenv("DATABASE_URL", "sqlite://data/app.db")
	cfg, err = Parse()
	require.NoError(t, err)
	assert.Equal(t, "sqlite://data/app.db", cfg.DatabaseURL)
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database", env: map[string]string{"DATABASE_URL": "", "MONGO_URI": ""}},
		{name: "missing bucket", env: map[string]string{"S3_BUCKET_NAME": ""}},
		{name: "log level", env: map[string]string{"LOG_LEVEL": "verbose"}},
		{name: "face backend", env: map[string]string{"FACE_BACKEND": "opencv"}},
		{name: "rate limit backend", env: map[string]string{"RATE_LIMIT_BACKEND": "etcd"}},
		{name: "redis limiter without addr", env: map[string]string{"RATE_LIMIT_BACKEND": "redis"}},
		{name: "negative rate", env: map[string]string{"RATE_LIMIT_PER_MIN": "-1"}},
		{name: "bad duration", env: map[string]string{"UPSTREAM_TIMEOUT": "soon"}},
		{name: "port", env: map[string]string{"PORT": "http"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			assert.Error(t, err)
		})
	}
}

func TestParseDatabaseIgnoresServerSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("MONGO_URI", "mongodb://localhost:27017/attendance")
	t.Setenv("FACE_BACKEND", "opencv")

	db, err := ParseDatabase()
	require.NoError(t, err)
	assert.Equal(t, "mongodb://localhost:27017/attendance", db.DatabaseURL)

	clearEnv(t)
	_, err = ParseDatabase()
	assert.Error(t, err)
}

func TestParseAdminTokenWithoutDatabase(t *testing.T) {
	clearEnv(t)
	t.Setenv("ADMIN_JWT_SIGNING_KEY", "secret")
	t.Setenv("ADMIN_TOKEN_TTL", "30m")

	tok, err := ParseAdminToken()
	require.NoError(t, err)
	assert.True(t, tok.AdminAuthEnabled())
	assert.Equal(t, "faceattend", tok.JWTIssuer)
	assert.Equal(t, 30*time.Minute, tok.AdminTokenTTL)

	t.Setenv("ADMIN_TOKEN_TTL", "0s")
	_, err = ParseAdminToken()
	assert.Error(t, err)
}
