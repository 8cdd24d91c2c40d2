package repository

import (
	"context"
	"fmt"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// AffiliateRepositoryImpl implements AffiliateRepository
type AffiliateRepositoryImpl struct {
	*BaseRepository[models.Affiliate, struct{}]
}

func NewAffiliateRepository(db *gorm.DB) AffiliateRepository {
	return &AffiliateRepositoryImpl{BaseRepository: NewBaseRepository[models.Affiliate, struct{}](db)}
}

func (r *AffiliateRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.Affiliate, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Affiliate{})
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Affiliate
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AffiliateRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.Affiliate{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AffiliateRepositoryImpl) Exists(ctx context.Context, filter struct{}) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// IncrementTotalClicks bumps the aggregate click counter with a single
// UPDATE so concurrent clicks on the same affiliate never lose increments.
func (r *AffiliateRepositoryImpl) IncrementTotalClicks(ctx context.Context, affiliateID uint) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Affiliate{}).
		Where("id = ?", affiliateID).
		UpdateColumn("total_clicks", gorm.Expr("total_clicks + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("failed to increment affiliate clicks: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
