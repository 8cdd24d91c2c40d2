package models

import "time"

// Postback attempt outcomes
const (
	PostbackStatusSuccess   = "success"
	PostbackStatusDuplicate = "duplicate"
	PostbackStatusRejected  = "rejected"
	PostbackStatusFailed    = "failed"
)

// PostbackLog captures every inbound postback attempt, successful or not,
// with the raw request parameters for audit and replay diagnosis.
type PostbackLog struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	ConversionID   *uint     `gorm:"index:idx_postback_logs_conversion_id" json:"conversion_id,omitempty"`
	AdvertiserID   *uint     `gorm:"index:idx_postback_logs_advertiser_id" json:"advertiser_id,omitempty"`
	ClickID        string    `gorm:"size:64;index:idx_postback_logs_click_id" json:"click_id"`
	TransactionID  string    `gorm:"size:255" json:"transaction_id"`
	RequestParams  string    `gorm:"type:text" json:"request_params"`
	ResponseStatus int       `gorm:"not null" json:"response_status"`
	ResponseBody   *string   `gorm:"type:text" json:"response_body,omitempty"`
	IPAddress      string    `gorm:"size:64" json:"ip_address"`
	Status         string    `gorm:"size:16;index:idx_postback_logs_status;not null" json:"status"`
	ErrorMessage   *string   `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt      time.Time `gorm:"default:(CURRENT_TIMESTAMP AT TIME ZONE 'UTC');index:idx_postback_logs_created_at" json:"created_at"`
}

// TableName returns the table name for PostbackLog
func (PostbackLog) TableName() string { return "postback_logs" }
