package models

import "time"

// IPBlacklistEntry marks an IP as fraudulent, either permanently or until
// ExpiresAt. A non-permanent entry with a past expiry no longer matches.
type IPBlacklistEntry struct {
	ID        uint       `gorm:"primaryKey" json:"id"`
	IPAddress string     `gorm:"size:64;index:idx_ip_blacklist_ip_address;not null" json:"ip_address"`
	Permanent bool       `gorm:"not null;default:false" json:"permanent"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Reason    *string    `gorm:"type:text" json:"reason,omitempty"`
	CreatedAt time.Time  `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for IPBlacklistEntry
func (IPBlacklistEntry) TableName() string { return "ip_blacklist" }
