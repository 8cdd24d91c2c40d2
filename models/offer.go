package models

import (
	"strings"
	"time"
)

// Offer is an advertiser campaign affiliates drive traffic to.
// AllowedCountries is a comma-separated ISO country list; empty means the
// offer has no geo targeting.
type Offer struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	Name             string    `gorm:"size:255;not null" json:"name"`
	AdvertiserID     uint      `gorm:"index:idx_offers_advertiser_id;not null" json:"advertiser_id"`
	LandingPageURL   string    `gorm:"type:text;not null" json:"landing_page_url"`
	AllowedCountries string    `gorm:"type:text" json:"allowed_countries"`
	Active           bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt        time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC')" json:"created_at"`
}

// TableName returns the table name for Offer
func (Offer) TableName() string { return "offers" }

// CountryList returns the allowed countries as a slice, nil when untargeted
func (o *Offer) CountryList() []string {
	if strings.TrimSpace(o.AllowedCountries) == "" {
		return nil
	}
	parts := strings.Split(o.AllowedCountries, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if c := strings.TrimSpace(p); c != "" {
			out = append(out, strings.ToUpper(c))
		}
	}
	return out
}

// AllowsCountry reports whether country passes the offer targeting.
// An untargeted offer allows everything.
func (o *Offer) AllowsCountry(country string) bool {
	countries := o.CountryList()
	if len(countries) == 0 {
		return true
	}
	country = strings.ToUpper(strings.TrimSpace(country))
	for _, c := range countries {
		if c == country {
			return true
		}
	}
	return false
}
