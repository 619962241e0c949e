// Package apikey manages the gateway's API keys in PostgreSQL. Raw keys are
// generated with crypto/rand and only their SHA-256 digest is stored; each
// key carries a role and a per-window request limit.
package apikey

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adrian-1-cardona/DocPulse/internal/access"
	"github.com/adrian-1-cardona/DocPulse/pkg/postgres"
)

var (
	ErrInvalidKey = errors.New("invalid api key")
	ErrExpiredKey = errors.New("api key expired")
)

// Schema is applied by Migrate.
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS api_keys (
		id         TEXT PRIMARY KEY,
		key_hash   TEXT NOT NULL UNIQUE,
		name       TEXT NOT NULL,
		role       TEXT NOT NULL DEFAULT 'viewer',
		rate_limit INTEGER NOT NULL,
		is_active  BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		expires_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS api_keys_active_idx ON api_keys (is_active, created_at DESC)`,
}

// KeyInfo describes a key without its secret.
type KeyInfo struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Role      access.Role `json:"role"`
	RateLimit int         `json:"rate_limit"`
	IsActive  bool        `json:"is_active"`
	CreatedAt time.Time   `json:"created_at"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
}

// NewKey is what CreateKey needs.
type NewKey struct {
	Name      string
	Role      access.Role
	RateLimit int
	ExpiresAt *time.Time
}

// Created is returned once, at creation; the raw key cannot be read back.
type Created struct {
	KeyInfo
	Key string `json:"key"`
}

type Validator struct {
	db     *postgres.Client
	now    func() time.Time
	logger *slog.Logger
}

func NewValidator(db *postgres.Client) *Validator {
	return &Validator{
		db:     db,
		now:    time.Now,
		logger: slog.Default().With("component", "apikey-validator"),
	}
}

// Migrate creates the api_keys table.
func (v *Validator) Migrate(ctx context.Context) error {
	if err := v.db.Migrate(ctx, Schema); err != nil {
		return fmt.Errorf("migrating api keys: %w", err)
	}
	return nil
}

// Validate resolves a raw key to its KeyInfo. Unknown or revoked keys give
// ErrInvalidKey; keys past their expiry give ErrExpiredKey.
func (v *Validator) Validate(ctx context.Context, rawKey string) (*KeyInfo, error) {
	row := v.db.DB.QueryRowContext(ctx,
		`SELECT id, name, role, rate_limit, is_active, created_at, expires_at
		 FROM api_keys
		 WHERE key_hash = $1 AND is_active = true`,
		HashKey(rawKey),
	)
	info, err := scanKey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidKey
	}
	if err != nil {
		return nil, fmt.Errorf("querying api key: %w", err)
	}
	if info.ExpiresAt != nil && info.ExpiresAt.Before(v.now()) {
		return nil, ErrExpiredKey
	}
	return info, nil
}

// CreateKey stores a new key and returns it with its raw secret.
func (v *Validator) CreateKey(ctx context.Context, nk NewKey) (*Created, error) {
	if _, err := access.ParseRole(string(nk.Role)); err != nil {
		return nil, err
	}
	if nk.RateLimit <= 0 {
		return nil, fmt.Errorf("rate limit must be positive, got %d", nk.RateLimit)
	}
	rawKey, err := generateRawKey()
	if err != nil {
		return nil, err
	}

	var expiry sql.NullTime
	if nk.ExpiresAt != nil {
		expiry = sql.NullTime{Time: *nk.ExpiresAt, Valid: true}
	}
	info := KeyInfo{
		ID:        uuid.NewString(),
		Name:      nk.Name,
		Role:      nk.Role,
		RateLimit: nk.RateLimit,
		IsActive:  true,
		CreatedAt: v.now().UTC(),
		ExpiresAt: nk.ExpiresAt,
	}
	_, err = v.db.DB.ExecContext(ctx,
		`INSERT INTO api_keys (id, key_hash, name, role, rate_limit, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		info.ID, HashKey(rawKey), info.Name, string(info.Role), info.RateLimit, info.CreatedAt, expiry,
	)
	if err != nil {
		return nil, fmt.Errorf("creating api key: %w", err)
	}

	v.logger.Info("api key created", "id", info.ID, "name", info.Name, "role", info.Role, "rate_limit", info.RateLimit)
	return &Created{KeyInfo: info, Key: rawKey}, nil
}

// RevokeKey deactivates the key with the given ID.
func (v *Validator) RevokeKey(ctx context.Context, id string) error {
	result, err := v.db.DB.ExecContext(ctx,
		`UPDATE api_keys SET is_active = false WHERE id = $1 AND is_active = true`, id)
	if err != nil {
		return fmt.Errorf("revoking api key: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrInvalidKey
	}
	v.logger.Info("api key revoked", "id", id)
	return nil
}

// ListKeys returns active keys, newest first.
func (v *Validator) ListKeys(ctx context.Context) ([]KeyInfo, error) {
	rows, err := v.db.DB.QueryContext(ctx,
		`SELECT id, name, role, rate_limit, is_active, created_at, expires_at
		 FROM api_keys WHERE is_active = true ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("listing api keys: %w", err)
	}
	defer rows.Close()

	keys := []KeyInfo{}
	for rows.Next() {
		k, err := scanKey(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api key row: %w", err)
		}
		keys = append(keys, *k)
	}
	return keys, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKey(s scanner) (*KeyInfo, error) {
	var k KeyInfo
	var role string
	var expiresAt sql.NullTime
	if err := s.Scan(&k.ID, &k.Name, &role, &k.RateLimit, &k.IsActive, &k.CreatedAt, &expiresAt); err != nil {
		return nil, err
	}
	k.Role = access.Role(role)
	if expiresAt.Valid {
		t := expiresAt.Time
		k.ExpiresAt = &t
	}
	return &k, nil
}

// HashKey returns the SHA-256 hex digest of a raw API key.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

func generateRawKey() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating api key: %w", err)
	}
	return "dp_" + hex.EncodeToString(b), nil
}
