package repository

import (
	"context"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// PostbackLogRepositoryImpl implements PostbackLogRepository
type PostbackLogRepositoryImpl struct {
	*BaseRepository[models.PostbackLog, struct{}]
}

func NewPostbackLogRepository(db *gorm.DB) PostbackLogRepository {
	return &PostbackLogRepositoryImpl{BaseRepository: NewBaseRepository[models.PostbackLog, struct{}](db)}
}

func (r *PostbackLogRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.PostbackLog, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.PostbackLog{})
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.PostbackLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *PostbackLogRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.PostbackLog{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *PostbackLogRepositoryImpl) Exists(ctx context.Context, filter struct{}) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
