package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// requireAffected turns a zero-row update or delete into sql.ErrNoRows.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const userColumns = `id, display_name, email, password_hash, COALESCE(google_sub, ''), avatar_url,
	is_email_verified, COALESCE(verification_token, ''), verification_expires_at, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var user User
	var verificationExpires sql.NullTime
	err := row.Scan(&user.ID, &user.DisplayName, &user.Email, &user.PasswordHash, &user.GoogleSub, &user.AvatarURL,
		&user.IsEmailVerified, &user.VerificationToken, &verificationExpires, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return User{}, err
	}
	if verificationExpires.Valid {
		t := verificationExpires.Time
		user.VerificationExpiresAt = &t
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	var googleSub any
	if user.GoogleSub != "" {
		googleSub = user.GoogleSub
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, google_sub, avatar_url, is_email_verified, verification_token)
		VALUES ($1, $2, LOWER($3), $4, $5, $6, $7, NULLIF($8, ''))
	`, user.ID, user.DisplayName, user.Email, user.PasswordHash, googleSub, user.AvatarURL, user.IsEmailVerified, user.VerificationToken)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=LOWER($1)`, strings.TrimSpace(email)))
}

func (s *PostgresStore) GetUserByGoogleSub(ctx context.Context, sub string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE google_sub=$1`, sub))
}

// LinkGoogleIdentity attaches a Google subject to an existing account and
// marks its email verified, since Google vouched for it. With dropPassword the
// account's password and any outstanding reset tokens are discarded, so a
// password set by whoever registered the unverified address stops working.
func (s *PostgresStore) LinkGoogleIdentity(ctx context.Context, userID, sub, avatarURL string, dropPassword bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE users
			SET google_sub=$2,
				avatar_url=CASE WHEN $3 <> '' THEN $3 ELSE avatar_url END,
				password_hash=CASE WHEN $4 THEN '' ELSE password_hash END,
				is_email_verified=TRUE,
				verification_token=NULL,
				verification_expires_at=NULL,
				updated_at=NOW()
			WHERE id=$1
		`, userID, sub, avatarURL, dropPassword)
		if err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicate
			}
			return fmt.Errorf("link google identity: %w", err)
		}
		if err := requireAffected(res); err != nil {
			return err
		}
		if !dropPassword {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM password_resets WHERE user_id=$1`, userID); err != nil {
			return fmt.Errorf("drop password resets: %w", err)
		}
		return nil
	})
}

func (s *PostgresStore) UpdateUserDisplayName(ctx context.Context, userID, displayName string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET display_name=$2, updated_at=NOW() WHERE id=$1`, userID, displayName)
	if err != nil {
		return fmt.Errorf("update display name: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) UpdateUserVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET verification_token=$2, verification_expires_at=$3, updated_at=NOW() WHERE id=$1
	`, userID, token, expiresAt)
	if err != nil {
		return fmt.Errorf("update verification token: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) VerifyUserEmail(ctx context.Context, token string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET is_email_verified=TRUE, verification_token=NULL, verification_expires_at=NULL, updated_at=NOW()
		WHERE verification_token=$1 AND verification_expires_at > NOW()
	`, token)
	if err != nil {
		return fmt.Errorf("verify email: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return requireAffected(res)
}

func (s *PostgresStore) CreatePasswordReset(ctx context.Context, userID, token string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO password_resets (token, user_id, expires_at) VALUES ($1, $2, $3)
	`, token, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("create password reset: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPasswordReset(ctx context.Context, token string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id FROM password_resets WHERE token=$1 AND used_at IS NULL AND expires_at > NOW()
	`, token).Scan(&userID)
	if err != nil {
		return "", err
	}
	return userID, nil
}

func (s *PostgresStore) MarkPasswordResetUsed(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE password_resets SET used_at=NOW() WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("mark password reset used: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

// ConsumeRefreshSession revokes a live refresh session and returns its owner
// in one statement, so a token can be exchanged only once.
func (s *PostgresStore) ConsumeRefreshSession(ctx context.Context, tokenHash string) (User, error) {
	return scanUser(s.db.QueryRowContext(ctx, `
		WITH consumed AS (
			UPDATE refresh_sessions
			SET revoked_at = NOW()
			WHERE token_hash = $1
				AND revoked_at IS NULL
				AND expires_at > NOW()
			RETURNING user_id
		)
		SELECT `+userColumns+`
		FROM users
		WHERE id = (SELECT user_id FROM consumed)
	`, tokenHash))
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, exp time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, exp)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}

// PurgeExpired drops revoked tokens and sessions past their expiry.
func (s *PostgresStore) PurgeExpired(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM revoked_access_tokens WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("purge revoked tokens: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM refresh_sessions WHERE expires_at < NOW()`); err != nil {
		return fmt.Errorf("purge refresh sessions: %w", err)
	}
	return nil
}

type ScopeKind string

const (
	ScopeBoard      ScopeKind = "board"
	ScopePhase      ScopeKind = "phase"
	ScopeColumn     ScopeKind = "column"
	ScopeBlock      ScopeKind = "block"
	ScopeComment    ScopeKind = "comment"
	ScopeTag        ScopeKind = "tag"
	ScopeAttachment ScopeKind = "attachment"
)

var scopeQueries = map[ScopeKind]string{
	ScopeBoard:      `SELECT project_id, id FROM boards WHERE id=$1`,
	ScopePhase:      `SELECT b.project_id, b.id FROM phases p JOIN boards b ON b.id = p.board_id WHERE p.id=$1`,
	ScopeColumn:     `SELECT b.project_id, b.id FROM board_columns c JOIN boards b ON b.id = c.board_id WHERE c.id=$1`,
	ScopeBlock:      `SELECT b.project_id, b.id FROM blocks k JOIN boards b ON b.id = k.board_id WHERE k.id=$1`,
	ScopeComment:    `SELECT b.project_id, b.id FROM comments c JOIN boards b ON b.id = c.board_id WHERE c.id=$1`,
	ScopeTag:        `SELECT b.project_id, b.id FROM tags t JOIN boards b ON b.id = t.board_id WHERE t.id=$1`,
	ScopeAttachment: `SELECT b.project_id, b.id FROM attachments a JOIN boards b ON b.id = a.board_id WHERE a.id=$1`,
}

// ResolveScope finds the project and board an entity lives in.
func (s *PostgresStore) ResolveScope(ctx context.Context, kind ScopeKind, id string) (Scope, error) {
	query, ok := scopeQueries[kind]
	if !ok {
		return Scope{}, fmt.Errorf("unknown scope kind %q", kind)
	}
	var scope Scope
	if err := s.db.QueryRowContext(ctx, query, id).Scan(&scope.ProjectID, &scope.BoardID); err != nil {
		return Scope{}, err
	}
	return scope, nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
