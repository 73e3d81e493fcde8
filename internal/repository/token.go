package repository

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tripsplit/internal/domain"
)

// AccessTokenRepository resolves bearer tokens to members. Tokens are
// stored as sha256 hex of the plain value.
type AccessTokenRepository struct {
	db *sql.DB
}

func NewAccessTokenRepository(db *sql.DB) *AccessTokenRepository {
	return &AccessTokenRepository{db: db}
}

func (r *AccessTokenRepository) FindByPlainToken(ctx context.Context, plainToken string) (*domain.AccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	sum := sha256.Sum256([]byte(plainToken))
	hash := fmt.Sprintf("%x", sum)

	var tok domain.AccessToken
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, member_id, token, expires_at
		 FROM access_tokens
		 WHERE token = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		hash, time.Now(),
	).Scan(&tok.ID, &tok.MemberID, &tok.TokenHash, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, errors.New("token not found")
	}
	if err != nil {
		return nil, fmt.Errorf("find token: %w", err)
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		tok.ExpiresAt = &t
	}
	return &tok, nil
}
