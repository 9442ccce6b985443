package persistence

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/FanzCEO/GirlFanz-sub003/domain/model"
	"github.com/FanzCEO/GirlFanz-sub003/domain/repository"
)

var ErrTokenNotFound = repository.ErrTokenNotFound

type OAuthTokenRepository struct{ db *sql.DB }

func NewOAuthTokenRepository(db *sql.DB) repository.IOAuthToken { return &OAuthTokenRepository{db: db} }

func (r *OAuthTokenRepository) UpsertToken(ctx context.Context, t *model.OAuthToken) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	q := `INSERT INTO oauth_tokens (creator_id, platform, access_token, refresh_token, access_token_secret, expires_at, scopes, external_user_id, created_at, updated_at)
		  VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		  ON CONFLICT (creator_id, platform) DO UPDATE SET
			access_token=EXCLUDED.access_token,
			refresh_token=CASE WHEN EXCLUDED.refresh_token = '' THEN oauth_tokens.refresh_token ELSE EXCLUDED.refresh_token END,
			access_token_secret=EXCLUDED.access_token_secret,
			expires_at=EXCLUDED.expires_at,
			scopes=EXCLUDED.scopes,
			external_user_id=COALESCE(EXCLUDED.external_user_id, oauth_tokens.external_user_id),
			updated_at=EXCLUDED.updated_at`
	_, err := r.db.ExecContext(ctx, q, t.CreatorID, t.Platform, t.AccessToken, t.RefreshToken, t.AccessTokenSecret, t.ExpiresAt, t.Scopes, t.ExternalUserID, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *OAuthTokenRepository) GetToken(ctx context.Context, creatorID, platform string) (*model.OAuthToken, error) {
	row := r.db.QueryRowContext(ctx, `SELECT id, creator_id, platform, access_token, refresh_token, access_token_secret, expires_at, scopes, external_user_id, created_at, updated_at FROM oauth_tokens WHERE creator_id=$1 AND platform=$2`, creatorID, platform)
	tok := &model.OAuthToken{}
	var exp sql.NullTime
	var externalID sql.NullString
	if err := row.Scan(&tok.ID, &tok.CreatorID, &tok.Platform, &tok.AccessToken, &tok.RefreshToken, &tok.AccessTokenSecret, &exp, &tok.Scopes, &externalID, &tok.CreatedAt, &tok.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}
	if exp.Valid {
		tok.ExpiresAt = &exp.Time
	}
	if externalID.Valid {
		v := externalID.String
		tok.ExternalUserID = &v
	}
	return tok, nil
}

func (r *OAuthTokenRepository) DeleteToken(ctx context.Context, creatorID, platform string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE creator_id=$1 AND platform=$2`, creatorID, platform)
	return err
}
