package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// ClickRepositoryImpl implements ClickRepository
type ClickRepositoryImpl struct {
	*BaseRepository[models.Click, models.ClickFilter]
}

func NewClickRepository(db *gorm.DB) ClickRepository {
	return &ClickRepositoryImpl{BaseRepository: NewBaseRepository[models.Click, models.ClickFilter](db)}
}

func (r *ClickRepositoryImpl) ByClickID(ctx context.Context, clickID string) (*models.Click, error) {
	db := r.getDB(ctx)
	var row models.Click
	if err := db.Where("click_id = ?", clickID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ClickRepositoryImpl) applyFilter(db *gorm.DB, f models.ClickFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ClickID != nil {
		db = db.Where("click_id = ?", *f.ClickID)
	}
	if f.OfferID != nil {
		db = db.Where("offer_id = ?", *f.OfferID)
	}
	if f.AffiliateID != nil {
		db = db.Where("affiliate_id = ?", *f.AffiliateID)
	}
	if f.SessionID != nil {
		db = db.Where("session_id = ?", *f.SessionID)
	}
	if f.IP != nil {
		db = db.Where("ip = ?", *f.IP)
	}
	if f.UAHash != nil {
		db = db.Where("ua_hash = ?", *f.UAHash)
	}
	if f.Converted != nil {
		db = db.Where("converted = ?", *f.Converted)
	}
	if f.CreatedAfter != nil {
		db = db.Where("created_at >= ?", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		db = db.Where("created_at < ?", *f.CreatedBefore)
	}
	return db
}

func (r *ClickRepositoryImpl) ByFilter(ctx context.Context, filter models.ClickFilter, orderBy string, limit, offset int) ([]*models.Click, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Click{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Click
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ClickRepositoryImpl) Count(ctx context.Context, filter models.ClickFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Click{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ClickRepositoryImpl) Exists(ctx context.Context, filter models.ClickFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// CountByUAHashAndIP counts clicks sharing a device fingerprint within [since, until)
func (r *ClickRepositoryImpl) CountByUAHashAndIP(ctx context.Context, uaHash, ip string, since, until time.Time) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Click{}).
		Where("ua_hash = ? AND ip = ?", uaHash, ip).
		Where("created_at >= ? AND created_at < ?", since, until).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks by fingerprint: %w", err)
	}
	return count, nil
}

// CountByIP counts clicks from one IP within [since, until)
func (r *ClickRepositoryImpl) CountByIP(ctx context.Context, ip string, since, until time.Time) (int64, error) {
	db := r.getDB(ctx)
	var count int64
	err := db.Model(&models.Click{}).
		Where("ip = ?", ip).
		Where("created_at >= ? AND created_at < ?", since, until).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count clicks by ip: %w", err)
	}
	return count, nil
}

// ByFingerprint lists all clicks sharing a session or user-agent hash,
// ordered oldest first. This is the attribution path source.
func (r *ClickRepositoryImpl) ByFingerprint(ctx context.Context, sessionID, uaHash string) ([]*models.Click, error) {
	db := r.getDB(ctx)
	var rows []*models.Click
	err := db.Model(&models.Click{}).
		Where("session_id = ? OR ua_hash = ?", sessionID, uaHash).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list clicks by fingerprint: %w", err)
	}
	return rows, nil
}

// MarkConverted sets the conversion flag and back-reference on a click.
// The converted flag is monotonic, the update never clears it.
func (r *ClickRepositoryImpl) MarkConverted(ctx context.Context, clickID string, conversionID uint) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Click{}).
		Where("click_id = ?", clickID).
		Updates(map[string]any{"converted": true, "conversion_id": conversionID})
	if res.Error != nil {
		return fmt.Errorf("failed to mark click converted: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
