package repositories

import (
	"context"
	"database/sql"
	"time"

	"github.com/desertthunder/tidx/internal/models"
)

// CredentialRepository implements [models.TokenStore] with one row per local user.
type CredentialRepository struct {
	q dbtx
}

// NewCredentialRepository creates a new CredentialRepository with the given database connection
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{q: db}
}

// GetCredential retrieves the user's stored credential
func (r *CredentialRepository) GetCredential(ctx context.Context, userID int64) (*models.Credential, error) {
	query := `
		SELECT user_id, token_type, access_token, refresh_token, expires_at, created_at, updated_at
		FROM credentials
		WHERE user_id = ?
	`
	var (
		c      models.Credential
		expiry sql.NullTime
	)
	err := r.q.QueryRowContext(ctx, query, userID).Scan(
		&c.UserID, &c.TokenType, &c.AccessToken, &c.RefreshToken, &expiry, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, notFound(err, "credential for user", userID)
	}
	if expiry.Valid {
		c.Expiry = expiry.Time
	}
	return &c, nil
}

// SaveCredential inserts or replaces the user's credential
func (r *CredentialRepository) SaveCredential(ctx context.Context, cred models.Credential) error {
	var expiry any
	if !cred.Expiry.IsZero() {
		expiry = cred.Expiry.UTC()
	}

	tokenType := cred.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	now := time.Now().UTC()
	query := `
		INSERT INTO credentials (user_id, token_type, access_token, refresh_token, expires_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			token_type = excluded.token_type,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at
	`
	_, err := r.q.ExecContext(ctx, query,
		cred.UserID, tokenType, cred.AccessToken, cred.RefreshToken, expiry, now, now)
	if err != nil {
		return writeFailed("save credential", err)
	}
	return nil
}

// DeleteCredential removes the user's credential; deleting a missing credential is not an error
func (r *CredentialRepository) DeleteCredential(ctx context.Context, userID int64) error {
	if _, err := r.q.ExecContext(ctx, `DELETE FROM credentials WHERE user_id = ?`, userID); err != nil {
		return writeFailed("delete credential", err)
	}
	return nil
}

var _ models.TokenStore = (*CredentialRepository)(nil)
