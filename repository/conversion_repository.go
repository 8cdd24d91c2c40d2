package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/clickforge/affiliate-tracker/models"
	"gorm.io/gorm"
)

// ConversionRepositoryImpl implements ConversionRepository
type ConversionRepositoryImpl struct {
	*BaseRepository[models.Conversion, models.ConversionFilter]
}

func NewConversionRepository(db *gorm.DB) ConversionRepository {
	return &ConversionRepositoryImpl{BaseRepository: NewBaseRepository[models.Conversion, models.ConversionFilter](db)}
}

// ByClickAndTransaction resolves a conversion by its idempotency key
func (r *ConversionRepositoryImpl) ByClickAndTransaction(ctx context.Context, clickID, transactionID string) (*models.Conversion, error) {
	db := r.getDB(ctx)
	var row models.Conversion
	err := db.Where("click_id = ? AND transaction_id = ?", clickID, transactionID).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// UpdateStatus moves a persisted conversion to a new lifecycle status
func (r *ConversionRepositoryImpl) UpdateStatus(ctx context.Context, id uint, status string) error {
	db := r.getDB(ctx)
	res := db.Model(&models.Conversion{}).
		Where("id = ?", id).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("failed to update conversion status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ConversionRepositoryImpl) applyFilter(db *gorm.DB, f models.ConversionFilter) *gorm.DB {
	if f.ID != nil {
		db = db.Where("id = ?", *f.ID)
	}
	if f.ClickID != nil {
		db = db.Where("click_id = ?", *f.ClickID)
	}
	if f.TransactionID != nil {
		db = db.Where("transaction_id = ?", *f.TransactionID)
	}
	if f.OfferID != nil {
		db = db.Where("offer_id = ?", *f.OfferID)
	}
	if f.AffiliateID != nil {
		db = db.Where("affiliate_id = ?", *f.AffiliateID)
	}
	if f.AdvertiserID != nil {
		db = db.Where("advertiser_id = ?", *f.AdvertiserID)
	}
	if f.Status != nil {
		db = db.Where("status = ?", *f.Status)
	}
	return db
}

func (r *ConversionRepositoryImpl) ByFilter(ctx context.Context, filter models.ConversionFilter, orderBy string, limit, offset int) ([]*models.Conversion, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Conversion{}), filter)
	if orderBy != "" {
		query = query.Order(orderBy)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var rows []*models.Conversion
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ConversionRepositoryImpl) Count(ctx context.Context, filter models.ConversionFilter) (int64, error) {
	db := r.getDB(ctx)
	query := r.applyFilter(db.Model(&models.Conversion{}), filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *ConversionRepositoryImpl) Exists(ctx context.Context, filter models.ConversionFilter) (bool, error) {
	c, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return c > 0, nil
}

// IsDuplicateKey reports whether err is the unique-index violation raised by
// concurrent postbacks racing past the logical duplicate check. Callers treat
// it as the duplicate path, not a failure.
func IsDuplicateKey(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
