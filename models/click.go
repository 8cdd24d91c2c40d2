package models

import "time"

// Click is the immutable record of one tracked visit through an affiliate link.
// ClickID is the opaque token exchanged with affiliates and advertisers; the
// numeric ID stays internal. Converted is only ever flipped to true, never back.
type Click struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	ClickID     string  `gorm:"size:64;uniqueIndex:idx_clicks_click_id;not null" json:"click_id"`
	OfferID     uint    `gorm:"index:idx_clicks_offer_id;not null" json:"offer_id"`
	AffiliateID uint    `gorm:"index:idx_clicks_affiliate_id;not null" json:"affiliate_id"`
	SmartlinkID *uint   `json:"smartlink_id,omitempty"`
	RuleID      *uint   `json:"rule_id,omitempty"`
	SessionID   string  `gorm:"size:64;index:idx_clicks_session_id" json:"session_id"`
	IP          string  `gorm:"size:64;index:idx_clicks_ip_created_at,priority:1" json:"ip"`
	Device      string  `gorm:"size:64" json:"device"`
	OS          string  `gorm:"size:64" json:"os"`
	OSVersion   *string `gorm:"size:64" json:"os_version,omitempty"`
	Browser     string  `gorm:"size:64" json:"browser"`
	BrowserVer  *string `gorm:"size:64;column:browser_version" json:"browser_version,omitempty"`
	Country     string  `gorm:"size:8" json:"country"`
	UserAgent   string  `gorm:"type:text" json:"user_agent"`
	UAHash      string  `gorm:"size:64;index:idx_clicks_ua_hash_ip,priority:1;column:ua_hash" json:"ua_hash"`
	Sub1        *string `gorm:"size:255" json:"sub1,omitempty"`
	Sub2        *string `gorm:"size:255" json:"sub2,omitempty"`
	Sub3        *string `gorm:"size:255" json:"sub3,omitempty"`
	Sub4        *string `gorm:"size:255" json:"sub4,omitempty"`
	Sub5        *string `gorm:"size:255" json:"sub5,omitempty"`
	Source      *string `gorm:"size:255" json:"source,omitempty"`
	Domain      *string `gorm:"size:255" json:"domain,omitempty"`
	Channel     *string `gorm:"size:255" json:"channel,omitempty"`
	Placement   *string `gorm:"size:255" json:"placement,omitempty"`
	CreativeID  *string `gorm:"size:255" json:"creative_id,omitempty"`
	CampaignID  *string `gorm:"size:255" json:"campaign_id,omitempty"`
	Deeplink    *string `gorm:"type:text" json:"deeplink,omitempty"`
	ForceGeo    *string `gorm:"size:64" json:"force_geo,omitempty"`
	ForceDevice *string `gorm:"size:64" json:"force_device,omitempty"`
	ForceOS     *string `gorm:"size:64" json:"force_os,omitempty"`
	Referrer    *string `gorm:"type:text" json:"referrer,omitempty"`
	Sig         *string `gorm:"size:128" json:"sig,omitempty"`

	Converted    bool      `gorm:"not null;default:false" json:"converted"`
	ConversionID *uint     `json:"conversion_id,omitempty"`
	CreatedAt    time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_clicks_ua_hash_ip,priority:2;index:idx_clicks_ip_created_at,priority:2" json:"created_at"`
}

// TableName returns the table name for Click
func (Click) TableName() string { return "clicks" }

// ClickFilter defines the filterable fields for click queries
type ClickFilter struct {
	ID            *uint      `json:"id,omitempty"`
	ClickID       *string    `json:"click_id,omitempty"`
	OfferID       *uint      `json:"offer_id,omitempty"`
	AffiliateID   *uint      `json:"affiliate_id,omitempty"`
	SessionID     *string    `json:"session_id,omitempty"`
	IP            *string    `json:"ip,omitempty"`
	UAHash        *string    `json:"ua_hash,omitempty"`
	Converted     *bool      `json:"converted,omitempty"`
	CreatedAfter  *time.Time `json:"created_after,omitempty"`
	CreatedBefore *time.Time `json:"created_before,omitempty"`
}
