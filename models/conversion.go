package models

import "time"

// Conversion status transitions: pending -> confirmed | rejected.
// Rows are never deleted.
const (
	ConversionStatusPending   = "pending"
	ConversionStatusConfirmed = "confirmed"
	ConversionStatusRejected  = "rejected"
)

// Conversion is the result of a successful advertiser postback.
// The (ClickID, TransactionID) pair is the idempotency key: the composite
// unique index is what closes the concurrent-postback race, a constraint
// violation on insert is treated as the duplicate path.
type Conversion struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	ClickID         string    `gorm:"size:64;uniqueIndex:idx_conversions_click_tx,priority:1;not null" json:"click_id"`
	OfferID         uint      `gorm:"index:idx_conversions_offer_id;not null" json:"offer_id"`
	AffiliateID     uint      `gorm:"index:idx_conversions_affiliate_id;not null" json:"affiliate_id"`
	AdvertiserID    uint      `gorm:"index:idx_conversions_advertiser_id;not null" json:"advertiser_id"`
	AdvertiserRefID *string   `gorm:"size:255" json:"advertiser_ref_id,omitempty"`
	TransactionID   string    `gorm:"size:255;uniqueIndex:idx_conversions_click_tx,priority:2;not null" json:"transaction_id"`
	Payout          float64   `gorm:"type:decimal(12,2);not null;default:0" json:"payout"`
	Revenue         float64   `gorm:"type:decimal(12,2);not null;default:0" json:"revenue"`
	AdvertiserLoad  string    `gorm:"type:text;column:advertiser_payload" json:"advertiser_payload"`
	Status          string    `gorm:"size:16;not null;default:'pending'" json:"status"`
	Source          string    `gorm:"size:32;not null;default:'postback'" json:"source"`
	Duplicate       bool      `gorm:"not null;default:false;column:duplicate_detected" json:"duplicate_detected"`
	CreatedAt       time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_conversions_created_at" json:"created_at"`
}

// TableName returns the table name for Conversion
func (Conversion) TableName() string { return "conversions" }

// ConversionFilter defines the filterable fields for conversion queries
type ConversionFilter struct {
	ID            *uint   `json:"id,omitempty"`
	ClickID       *string `json:"click_id,omitempty"`
	TransactionID *string `json:"transaction_id,omitempty"`
	OfferID       *uint   `json:"offer_id,omitempty"`
	AffiliateID   *uint   `json:"affiliate_id,omitempty"`
	AdvertiserID  *uint   `json:"advertiser_id,omitempty"`
	Status        *string `json:"status,omitempty"`
}
