package models

import "time"

// Advertiser owns offers and reports conversions via postbacks.
// APISecret keys the postback signature. PostbackURL, when set, receives a
// signed confirmation after each created conversion.
type Advertiser struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Name           string    `gorm:"size:255;not null" json:"name"`
	APISecret      string    `gorm:"size:128;column:api_secret" json:"-"`
	PostbackURL    *string   `gorm:"type:text" json:"postback_url,omitempty"`
	PostbackMethod string    `gorm:"size:8;not null;default:'post'" json:"postback_method"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for Advertiser
func (Advertiser) TableName() string { return "advertisers" }
