package apikey

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	"github.com/adrian-1-cardona/DocPulse/pkg/config"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

func TestHashKey(t *testing.T) {
	h := HashKey("secret")
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashKey("secret"))
	assert.NotEqual(t, h, HashKey("secret2"))
}

func TestGenerateRawKeyIsUnique(t *testing.T) {
	a, err := generateRawKey()
	require.NoError(t, err)
	b, err := generateRawKey()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(a, "dp_"))
	assert.Len(t, a, 3+64)
	assert.NotEqual(t, a, b)
}

func skipIfNoPostgres(t *testing.T) *postgres.Client {
	t.Helper()
	port, _ := strconv.Atoi(envOrDefault("TEST_POSTGRES_PORT", "5432"))
	db, err := postgres.New(config.PostgresConfig{
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            port,
		Database:        envOrDefault("TEST_POSTGRES_DB", "docpulse_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "docpulse"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func TestKeyLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	ctx := context.Background()
	v := NewValidator(db)
	require.NoError(t, v.Migrate(ctx))
	_, err := db.DB.ExecContext(ctx, `TRUNCATE api_keys`)
	require.NoError(t, err)

	created, err := v.CreateKey(ctx, NewKey{Name: "ci", Role: access.RoleEditor, RateLimit: 10})
	require.NoError(t, err)

	info, err := v.Validate(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, info.ID)
	assert.Equal(t, access.RoleEditor, info.Role)

	keys, err := v.ListKeys(ctx)
	require.NoError(t, err)
	require.Len(t, keys, 1)

	require.NoError(t, v.RevokeKey(ctx, created.ID))
	_, err = v.Validate(ctx, created.Key)
	assert.ErrorIs(t, err, ErrInvalidKey)
	assert.ErrorIs(t, v.RevokeKey(ctx, created.ID), ErrInvalidKey)

	past := time.Now().Add(-time.Hour)
	expired, err := v.CreateKey(ctx, NewKey{Name: "old", Role: access.RoleViewer, RateLimit: 1, ExpiresAt: &past})
	require.NoError(t, err)
	_, err = v.Validate(ctx, expired.Key)
	assert.ErrorIs(t, err, ErrExpiredKey)
}

func TestCreateKeyRejectsBadInput(t *testing.T) {
	v := NewValidator(nil)
	_, err := v.CreateKey(context.Background(), NewKey{Name: "x", Role: "root", RateLimit: 1})
	assert.Error(t, err)
	_, err = v.CreateKey(context.Background(), NewKey{Name: "x", Role: access.RoleViewer})
	assert.Error(t, err)
}
