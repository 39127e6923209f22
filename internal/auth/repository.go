package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Repository implements Store on Postgres.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := r.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, password_hash, external_id, created_at, updated_at
		FROM users
		WHERE email = $1
	`, email).Scan(
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &user.ExternalID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("query user by email: %w", err)
	}

	return user, nil
}

func (r *Repository) CreateUser(ctx context.Context, user User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, external_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.FirstName, user.LastName, user.Email,
		user.PasswordHash, user.ExternalID, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

func (r *Repository) SaveRefreshToken(ctx context.Context, rec RefreshTokenRecord) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	return nil
}

// RotateRefreshToken locks the presented token row, re-checks its validity
// under the lock, revokes it and inserts the replacement for the same user.
// Everything happens in one transaction, so at most one of two concurrent
// redemptions can commit; the loser sees the row already revoked.
func (r *Repository) RotateRefreshToken(ctx context.Context, presentedHash string, replacement RefreshTokenRecord) (User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin refresh rotation tx: %w", err)
	}
	defer tx.Rollback()

	var (
		rec  RefreshTokenRecord
		user User
	)
	err = tx.QueryRowContext(ctx, `
		SELECT t.id, t.user_id, t.expires_at, t.revoked_at,
		       u.id, u.first_name, u.last_name, u.email, u.password_hash, u.external_id, u.created_at, u.updated_at
		FROM refresh_tokens t
		JOIN users u ON u.id = t.user_id
		WHERE t.token_hash = $1
		FOR UPDATE OF t
	`, presentedHash).Scan(
		&rec.ID, &rec.UserID, &rec.ExpiresAt, &rec.RevokedAt,
		&user.ID, &user.FirstName, &user.LastName, &user.Email,
		&user.PasswordHash, &user.ExternalID, &user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrInvalidRefreshToken
		}
		return User{}, fmt.Errorf("read refresh token: %w", err)
	}

	now := time.Now().UTC()
	if !rec.Usable(now) {
		return User{}, ErrInvalidRefreshToken
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`, rec.ID, now); err != nil {
		return User{}, fmt.Errorf("revoke refresh token: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, replacement.ID, rec.UserID, replacement.TokenHash, replacement.ExpiresAt, replacement.CreatedAt); err != nil {
		return User{}, fmt.Errorf("insert rotated refresh token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit refresh rotation tx: %w", err)
	}

	return user, nil
}

func (r *Repository) RevokeRefreshToken(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE refresh_tokens
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE token_hash = $1
	`, tokenHash, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}

	return nil
}

// DeleteTokensBefore removes tokens that expired or were revoked before the
// cutoff. Active tokens are never touched.
func (r *Repository) DeleteTokensBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM refresh_tokens
		WHERE expires_at < $1 OR (revoked_at IS NOT NULL AND revoked_at < $1)
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete stale refresh tokens: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("stale refresh tokens rows affected: %w", err)
	}

	return affected, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
