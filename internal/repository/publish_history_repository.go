package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/lib/pq"
	"github.com/maheshrc27/postify/internal/models"
)

type PublishHistoryRepository interface {
	Create(ctx context.Context, rec *models.PublishRecord) (int64, error)
	ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishRecord, error)
}

type publishHistoryRepository struct {
	db *sql.DB
}

func NewPublishHistoryRepository(db *sql.DB) PublishHistoryRepository {
	return &publishHistoryRepository{db: db}
}

func (r *publishHistoryRepository) Create(ctx context.Context, rec *models.PublishRecord) (int64, error) {
	query := `
		INSERT INTO publish_history (user_id, platforms, content, has_image, status, error_message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		rec.UserID,
		pq.Array(rec.Platforms),
		rec.Content,
		rec.HasImage,
		rec.Status,
		rec.ErrorMessage,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *publishHistoryRepository) ListByUserID(ctx context.Context, userID int64, limit int) ([]*models.PublishRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, platforms, content, has_image, status, error_message, created_at
		FROM publish_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var records []*models.PublishRecord
	for rows.Next() {
		var rec models.PublishRecord
		err := rows.Scan(&rec.ID, &rec.UserID, pq.Array(&rec.Platforms), &rec.Content,
			&rec.HasImage, &rec.Status, &rec.ErrorMessage, &rec.CreatedAt)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return records, nil
}
