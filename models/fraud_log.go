package models

import "time"

// Fraud classification types, in rule evaluation order
const (
	FraudTypeDuplicateClick    = "duplicate_click"
	FraudTypeFastClicks        = "fast_clicks"
	FraudTypeBotTraffic        = "bot_traffic"
	FraudTypeBlacklistedIP     = "blacklisted_ip"
	FraudTypeTargetingMismatch = "targeting_mismatch"
)

// Fraud severity levels, ordinal
const (
	FraudSeverityLow      = "low"
	FraudSeverityMedium   = "medium"
	FraudSeverityHigh     = "high"
	FraudSeverityCritical = "critical"
)

// FraudLog is an advisory record of a matched fraud rule. A row never blocks
// click or conversion creation, it is evidence for the review workflow.
type FraudLog struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ClickID     string    `gorm:"size:64;index:idx_fraud_logs_click_id;not null" json:"click_id"`
	OfferID     uint      `gorm:"index:idx_fraud_logs_offer_id" json:"offer_id"`
	AffiliateID uint      `gorm:"index:idx_fraud_logs_affiliate_id" json:"affiliate_id"`
	FraudType   string    `gorm:"size:32;index:idx_fraud_logs_fraud_type;not null" json:"fraud_type"`
	Severity    string    `gorm:"size:16;not null" json:"severity"`
	Description string    `gorm:"type:text" json:"description"`
	Data        string    `gorm:"type:text" json:"data"`
	IP          string    `gorm:"size:64" json:"ip"`
	UAHash      string    `gorm:"size:64;column:user_agent_hash" json:"user_agent_hash"`
	Blacklisted bool      `gorm:"not null;default:false" json:"blacklisted"`
	Reviewed    bool      `gorm:"not null;default:false" json:"reviewed"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_fraud_logs_created_at" json:"created_at"`
}

// TableName returns the table name for FraudLog
func (FraudLog) TableName() string { return "fraud_logs" }

// FraudLogFilter defines the filterable fields for fraud log queries
type FraudLogFilter struct {
	ClickID     *string `json:"click_id,omitempty"`
	OfferID     *uint   `json:"offer_id,omitempty"`
	AffiliateID *uint   `json:"affiliate_id,omitempty"`
	FraudType   *string `json:"fraud_type,omitempty"`
	Severity    *string `json:"severity,omitempty"`
	Reviewed    *bool   `json:"reviewed,omitempty"`
}
