package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// IPBlacklistRepositoryImpl implements IPBlacklistRepository
type IPBlacklistRepositoryImpl struct {
	*BaseRepository[models.IPBlacklistEntry, struct{}]
}

func NewIPBlacklistRepository(db *gorm.DB) IPBlacklistRepository {
	return &IPBlacklistRepositoryImpl{BaseRepository: NewBaseRepository[models.IPBlacklistEntry, struct{}](db)}
}

func (r *IPBlacklistRepositoryImpl) ByFilter(ctx context.Context, _ struct{}, orderBy string, limit, offset int) ([]*models.IPBlacklistEntry, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.IPBlacklistEntry{})
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.IPBlacklistEntry
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IPBlacklistRepositoryImpl) Count(ctx context.Context, _ struct{}) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	if err := db.Model(&models.IPBlacklistEntry{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *IPBlacklistRepositoryImpl) Exists(ctx context.Context, filter struct{}) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// IsBlacklisted reports whether ip has a permanent entry or one whose
// expiry is still in the future at the given instant.
func (r *IPBlacklistRepositoryImpl) IsBlacklisted(ctx context.Context, ip string, at time.Time) (bool, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.IPBlacklistEntry{}).
		Where("ip_address = ?", ip).
		Where("permanent = ? OR expires_at > ?", true, at).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check ip blacklist: %w", err)
	}
	return count > 0, nil
}
