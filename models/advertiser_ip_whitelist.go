package models

import "time"

// AdvertiserIPWhitelist scopes inbound postbacks to known advertiser IPs.
// An entry is either a single IPAddress or an inclusive IPRangeStart/End
// pair. An advertiser with zero active entries accepts postbacks from any
// IP (fail-open, preserved as explicit policy in config).
type AdvertiserIPWhitelist struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	AdvertiserID uint      `gorm:"index:idx_advertiser_ip_whitelist_advertiser_id;not null" json:"advertiser_id"`
	IPAddress    *string   `gorm:"size:64" json:"ip_address,omitempty"`
	IPRangeStart *string   `gorm:"size:64" json:"ip_range_start,omitempty"`
	IPRangeEnd   *string   `gorm:"size:64" json:"ip_range_end,omitempty"`
	Active       bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for AdvertiserIPWhitelist
func (AdvertiserIPWhitelist) TableName() string { return "advertiser_ip_whitelist" }
