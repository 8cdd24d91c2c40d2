// Package testing provides test utilities and database setup for testing the tracking pipelines
package testing

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/utils"
)

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestAdvertiser creates an advertiser with a known signing secret
func (tf *TestFixtures) CreateTestAdvertiser(secret string) (*models.Advertiser, error) {
	advertiser := &models.Advertiser{
		Name:           fmt.Sprintf("Test Advertiser %d", rand.Intn(100000)),
		APISecret:      secret,
		PostbackMethod: "post",
	}
	if err := tf.DB.DB.Create(advertiser).Error; err != nil {
		return nil, fmt.Errorf("failed to create test advertiser: %w", err)
	}
	return advertiser, nil
}

// CreateTestAffiliate creates an affiliate with a known signing secret
func (tf *TestFixtures) CreateTestAffiliate(secret string) (*models.Affiliate, error) {
	affiliate := &models.Affiliate{
		Name:      fmt.Sprintf("Test Affiliate %d", rand.Intn(100000)),
		APISecret: secret,
		Active:    true,
	}
	if err := tf.DB.DB.Create(affiliate).Error; err != nil {
		return nil, fmt.Errorf("failed to create test affiliate: %w", err)
	}
	return affiliate, nil
}

// CreateTestOffer creates an offer owned by the advertiser. allowedCountries
// is the raw comma-separated list, empty for untargeted offers.
func (tf *TestFixtures) CreateTestOffer(advertiserID uint, allowedCountries string) (*models.Offer, error) {
	offer := &models.Offer{
		Name:             fmt.Sprintf("Test Offer %d", rand.Intn(100000)),
		AdvertiserID:     advertiserID,
		LandingPageURL:   "https://example.com/landing",
		AllowedCountries: allowedCountries,
		Active:           true,
	}
	if err := tf.DB.DB.Create(offer).Error; err != nil {
		return nil, fmt.Errorf("failed to create test offer: %w", err)
	}
	return offer, nil
}

// CreateTestClick creates a click with sensible defaults. createdAt controls
// window placement for the fraud rule tests.
func (tf *TestFixtures) CreateTestClick(offerID, affiliateID uint, ip string, createdAt time.Time) (*models.Click, error) {
	userAgent := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
	click := &models.Click{
		ClickID:     utils.GenerateClickID(),
		OfferID:     offerID,
		AffiliateID: affiliateID,
		SessionID:   utils.GenerateSessionID(),
		IP:          ip,
		Device:      "desktop",
		OS:          "linux",
		Browser:     "chrome",
		Country:     "US",
		UserAgent:   userAgent,
		UAHash:      utils.HashUserAgent(userAgent),
		CreatedAt:   createdAt,
	}
	if err := tf.DB.DB.Create(click).Error; err != nil {
		return nil, fmt.Errorf("failed to create test click: %w", err)
	}
	return click, nil
}

// CreateTestWhitelistEntry creates a single-IP whitelist entry
func (tf *TestFixtures) CreateTestWhitelistEntry(advertiserID uint, ip string) (*models.AdvertiserIPWhitelist, error) {
	entry := &models.AdvertiserIPWhitelist{
		AdvertiserID: advertiserID,
		IPAddress:    utils.ToPtr(ip),
		Active:       true,
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test whitelist entry: %w", err)
	}
	return entry, nil
}

// CreateTestWhitelistRange creates an inclusive IP range whitelist entry
func (tf *TestFixtures) CreateTestWhitelistRange(advertiserID uint, start, end string) (*models.AdvertiserIPWhitelist, error) {
	entry := &models.AdvertiserIPWhitelist{
		AdvertiserID: advertiserID,
		IPRangeStart: utils.ToPtr(start),
		IPRangeEnd:   utils.ToPtr(end),
		Active:       true,
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test whitelist range: %w", err)
	}
	return entry, nil
}

// CreateTestBlacklistEntry blacklists an IP, permanently or with an expiry
func (tf *TestFixtures) CreateTestBlacklistEntry(ip string, permanent bool, expiresAt *time.Time) (*models.IPBlacklistEntry, error) {
	entry := &models.IPBlacklistEntry{
		IPAddress: ip,
		Permanent: permanent,
		ExpiresAt: expiresAt,
		Reason:    utils.ToPtr("test entry"),
	}
	if err := tf.DB.DB.Create(entry).Error; err != nil {
		return nil, fmt.Errorf("failed to create test blacklist entry: %w", err)
	}
	return entry, nil
}

// CreateTestConversion creates a conversion attached to the click
func (tf *TestFixtures) CreateTestConversion(click *models.Click, advertiserID uint, transactionID string) (*models.Conversion, error) {
	conversion := &models.Conversion{
		ClickID:       click.ClickID,
		OfferID:       click.OfferID,
		AffiliateID:   click.AffiliateID,
		AdvertiserID:  advertiserID,
		TransactionID: transactionID,
		Payout:        1.50,
		Revenue:       3.00,
		Status:        models.ConversionStatusPending,
		Source:        "postback",
	}
	if err := tf.DB.DB.Create(conversion).Error; err != nil {
		return nil, fmt.Errorf("failed to create test conversion: %w", err)
	}
	return conversion, nil
}
