package repository

import (
	"context"
	"fmt"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// AdvertiserRepositoryImpl implements AdvertiserRepository
type AdvertiserRepositoryImpl struct {
	*BaseRepository[models.Advertiser, struct{}]
}

func NewAdvertiserRepository(db *gorm.DB) AdvertiserRepository {
	return &AdvertiserRepositoryImpl{BaseRepository: NewBaseRepository[models.Advertiser, struct{}](db)}
}

func (r *AdvertiserRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.Advertiser, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Advertiser{})
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Advertiser
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *AdvertiserRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.Advertiser{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AdvertiserRepositoryImpl) Exists(ctx context.Context, filter struct{}) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// ActiveWhitelist lists the active IP allow-list entries for an advertiser.
// An empty result means the advertiser accepts postbacks from any IP.
func (r *AdvertiserRepositoryImpl) ActiveWhitelist(ctx context.Context, advertiserID uint) ([]*models.AdvertiserIPWhitelist, error) {
	db := r.getDB(ctx)
	var rows []*models.AdvertiserIPWhitelist
	err := db.Model(&models.AdvertiserIPWhitelist{}).
		Where("advertiser_id = ? AND active = ?", advertiserID, true).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list advertiser ip whitelist: %w", err)
	}
	return rows, nil
}

func (r *AdvertiserRepositoryImpl) SaveWhitelistEntry(ctx context.Context, entry *models.AdvertiserIPWhitelist) error {
	db := r.getDB(ctx)
	if err := db.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to save whitelist entry: %w", err)
	}
	return nil
}
