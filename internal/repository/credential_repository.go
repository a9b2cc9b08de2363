package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/pkg/utils"
)

// CredentialRepository is the credential store: one record per (user, platform).
// Field values are encrypted before they reach the database.
type CredentialRepository interface {
	Get(ctx context.Context, userID int64, platform string) (*models.CredentialSet, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.CredentialSet, error)
	Set(ctx context.Context, userID int64, platform string, fields map[string]string, updatedAt time.Time) error
	Clear(ctx context.Context, userID int64, platform string) error
	Seed(ctx context.Context, tx *sql.Tx, userID int64, platforms []string, at time.Time) error
}

type credentialRepository struct {
	db     *sql.DB
	cipher *utils.Cipher
}

func NewCredentialRepository(db *sql.DB, cipher *utils.Cipher) CredentialRepository {
	return &credentialRepository{db: db, cipher: cipher}
}

func (r *credentialRepository) Get(ctx context.Context, userID int64, platform string) (*models.CredentialSet, error) {
	query := `SELECT fields, last_updated FROM social_configs WHERE user_id = $1 AND platform = $2`

	var raw []byte
	var lastUpdated sql.NullTime
	err := r.db.QueryRowContext(ctx, query, userID, platform).Scan(&raw, &lastUpdated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.CredentialSet{UserID: userID, Platform: platform, Fields: map[string]string{}}, nil
		}
		slog.Info(err.Error())
		return nil, err
	}

	return r.decode(userID, platform, raw, lastUpdated)
}

func (r *credentialRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.CredentialSet, error) {
	query := `SELECT platform, fields, last_updated FROM social_configs WHERE user_id = $1 ORDER BY platform`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var sets []*models.CredentialSet
	for rows.Next() {
		var platform string
		var raw []byte
		var lastUpdated sql.NullTime
		if err := rows.Scan(&platform, &raw, &lastUpdated); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		set, err := r.decode(userID, platform, raw, lastUpdated)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return sets, nil
}

func (r *credentialRepository) Set(ctx context.Context, userID int64, platform string, fields map[string]string, updatedAt time.Time) error {
	sealed, err := r.cipher.EncryptFields(fields)
	if err != nil {
		return fmt.Errorf("encrypt %s credentials: %w", platform, err)
	}
	raw, err := json.Marshal(sealed)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO social_configs (user_id, platform, fields, last_updated)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, platform)
		DO UPDATE SET fields = EXCLUDED.fields, last_updated = EXCLUDED.last_updated
	`
	if _, err := r.db.ExecContext(ctx, query, userID, platform, raw, updatedAt); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialRepository) Clear(ctx context.Context, userID int64, platform string) error {
	query := `
		UPDATE social_configs
		SET fields = '{}'::jsonb,
			last_updated = NULL
		WHERE user_id = $1 AND platform = $2
	`
	if _, err := r.db.ExecContext(ctx, query, userID, platform); err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *credentialRepository) Seed(ctx context.Context, tx *sql.Tx, userID int64, platforms []string, at time.Time) error {
	query := `
		INSERT INTO social_configs (user_id, platform, fields, last_updated)
		VALUES ($1, $2, '{}'::jsonb, $3)
		ON CONFLICT (user_id, platform) DO NOTHING
	`
	for _, platform := range platforms {
		var err error
		if tx != nil {
			_, err = tx.ExecContext(ctx, query, userID, platform, at)
		} else {
			_, err = r.db.ExecContext(ctx, query, userID, platform, at)
		}
		if err != nil {
			slog.Info(err.Error())
			return err
		}
	}
	return nil
}

func (r *credentialRepository) decode(userID int64, platform string, raw []byte, lastUpdated sql.NullTime) (*models.CredentialSet, error) {
	sealed := map[string]string{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &sealed); err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("decode %s credentials: %w", platform, err)
		}
	}

	fields, err := r.cipher.DecryptFields(sealed)
	if err != nil {
		return nil, fmt.Errorf("decrypt %s credentials: %w", platform, err)
	}

	set := &models.CredentialSet{UserID: userID, Platform: platform, Fields: fields}
	if lastUpdated.Valid {
		t := lastUpdated.Time
		set.LastUpdated = &t
	}
	return set, nil
}
