// Package repository provides data access layer implementations and interfaces for database operations
package repository

import (
	"context"
	"time"

	"github.com/clickforge/affiliate-tracker/models"
)

// RepositoryContext key for transaction in context
type contextKey string

const TxContextKey contextKey = "tx"

type Repository[T any, F any] interface {
	ByID(ctx context.Context, id uint) (*T, error)
	ByFilter(ctx context.Context, filter F, orderBy string, limit, offset int) ([]*T, error)
	Save(ctx context.Context, entity *T) error
	Count(ctx context.Context, filter F) (int64, error)
	Exists(ctx context.Context, filter F) (bool, error)
}

// ClickRepository defines operations for tracked clicks. The window-count
// queries back the fraud engine's rate rules; callers anchor the window at
// the event's creation time, not at evaluation time.
type ClickRepository interface {
	Repository[models.Click, models.ClickFilter]
	ByClickID(ctx context.Context, clickID string) (*models.Click, error)
	CountByUAHashAndIP(ctx context.Context, uaHash, ip string, since, until time.Time) (int64, error)
	CountByIP(ctx context.Context, ip string, since, until time.Time) (int64, error)
	ByFingerprint(ctx context.Context, sessionID, uaHash string) ([]*models.Click, error)
	MarkConverted(ctx context.Context, clickID string, conversionID uint) error
}

// ConversionRepository defines operations for conversions
type ConversionRepository interface {
	Repository[models.Conversion, models.ConversionFilter]
	ByClickAndTransaction(ctx context.Context, clickID, transactionID string) (*models.Conversion, error)
	UpdateStatus(ctx context.Context, id uint, status string) error
}

// OfferRepository defines operations for offers
type OfferRepository interface {
	Repository[models.Offer, struct{}]
}

// AffiliateRepository defines operations for affiliates
type AffiliateRepository interface {
	Repository[models.Affiliate, struct{}]
	IncrementTotalClicks(ctx context.Context, affiliateID uint) error
}

// AdvertiserRepository defines operations for advertisers and their IP whitelist
type AdvertiserRepository interface {
	Repository[models.Advertiser, struct{}]
	ActiveWhitelist(ctx context.Context, advertiserID uint) ([]*models.AdvertiserIPWhitelist, error)
	SaveWhitelistEntry(ctx context.Context, entry *models.AdvertiserIPWhitelist) error
}

// FraudLogRepository defines operations for fraud logs
type FraudLogRepository interface {
	Repository[models.FraudLog, models.FraudLogFilter]
	ByClickID(ctx context.Context, clickID string) ([]*models.FraudLog, error)
}

// PostbackLogRepository defines operations for postback audit logs
type PostbackLogRepository interface {
	Repository[models.PostbackLog, struct{}]
}

// IPBlacklistRepository defines operations for the IP blacklist
type IPBlacklistRepository interface {
	Repository[models.IPBlacklistEntry, struct{}]
	IsBlacklisted(ctx context.Context, ip string, at time.Time) (bool, error)
}
