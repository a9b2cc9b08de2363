package service

import (
	"context"

	"github.com/maheshrc27/postify/internal/models"
	"github.com/maheshrc27/postify/internal/repository"
)

const maxHistoryLimit = 200

type HistoryService interface {
	List(ctx context.Context, userID int64, limit int) ([]*models.PublishRecord, error)
}

type historyService struct {
	h repository.PublishHistoryRepository
}

func NewHistoryService(h repository.PublishHistoryRepository) HistoryService {
	return &historyService{h: h}
}

func (s *historyService) List(ctx context.Context, userID int64, limit int) ([]*models.PublishRecord, error) {
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	records, err := s.h.ListByUserID(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []*models.PublishRecord{}
	}
	return records, nil
}
