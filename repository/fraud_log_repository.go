package repository

import (
	"context"
	"fmt"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// FraudLogRepositoryImpl implements FraudLogRepository
type FraudLogRepositoryImpl struct {
	*BaseRepository[models.FraudLog, models.FraudLogFilter]
}

func NewFraudLogRepository(db *gorm.DB) FraudLogRepository {
	return &FraudLogRepositoryImpl{BaseRepository: NewBaseRepository[models.FraudLog, models.FraudLogFilter](db)}
}

func (r *FraudLogRepositoryImpl) applyFilter(db *gorm.DB, f models.FraudLogFilter) *gorm.DB {
	if f.ClickID != nil {
		db = db.Where("click_id = ?", *f.ClickID)
	}
	if f.OfferID != nil {
		db = db.Where("offer_id = ?", *f.OfferID)
	}
	if f.AffiliateID != nil {
		db = db.Where("affiliate_id = ?", *f.AffiliateID)
	}
	if f.FraudType != nil {
		db = db.Where("fraud_type = ?", *f.FraudType)
	}
	if f.Severity != nil {
		db = db.Where("severity = ?", *f.Severity)
	}
	if f.Reviewed != nil {
		db = db.Where("reviewed = ?", *f.Reviewed)
	}
	return db
}

func (r *FraudLogRepositoryImpl) ByFilter(ctx context.Context, filter models.FraudLogFilter, orderBy string, limit, offset int) ([]*models.FraudLog, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.FraudLog{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.FraudLog
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *FraudLogRepositoryImpl) Count(ctx context.Context, filter models.FraudLogFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.FraudLog{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *FraudLogRepositoryImpl) Exists(ctx context.Context, filter models.FraudLogFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

func (r *FraudLogRepositoryImpl) ByClickID(ctx context.Context, clickID string) ([]*models.FraudLog, error) {
	rows, err := r.ByFilter(ctx, models.FraudLogFilter{ClickID: &clickID}, "created_at ASC", 0, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to list fraud logs by click: %w", err)
	}
	return rows, nil
}
