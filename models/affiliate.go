package models

import "time"

// Affiliate is a traffic partner. APISecret keys the opt-in click signature;
// an affiliate without a secret cannot use signed links. TotalClicks is an
// aggregate counter bumped with an atomic UPDATE, never read-modify-write.
type Affiliate struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Name        string    `gorm:"size:255;not null" json:"name"`
	APISecret   string    `gorm:"size:128;column:api_secret" json:"-"`
	TotalClicks int64     `gorm:"not null;default:0" json:"total_clicks"`
	Active      bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt   time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for Affiliate
func (Affiliate) TableName() string { return "affiliates" }
