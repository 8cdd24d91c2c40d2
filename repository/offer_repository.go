package repository

import (
	"context"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// OfferRepositoryImpl implements OfferRepository
type OfferRepositoryImpl struct {
	*BaseRepository[models.Offer, struct{}]
}

func NewOfferRepository(db *gorm.DB) OfferRepository {
	return &OfferRepositoryImpl{BaseRepository: NewBaseRepository[models.Offer, struct{}](db)}
}

// ByFilter: offers have no filter struct, return with order/limit/offset only
func (r *OfferRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.Offer, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Offer{})
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Offer
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *OfferRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.Offer{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *OfferRepositoryImpl) Exists(ctx context.Context, filter struct{}) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}
