// Package businessflow contains the business logic for the application.
package businessflow

import (
	"encoding/json"
	"log"
	"os"
)

// fraudAudit is the distinct audit channel for fraud-relevant events:
// signature mismatches, rejected postbacks, and rule matches. Regular
// operational logging stays on the default logger.
var fraudAudit = log.New(os.Stdout, "[fraud-audit] ", log.LstdFlags|log.LUTC)

// ClientMetadata holds request-side information the flows attach to audit
// log lines
type ClientMetadata struct {
	IPAddress string `json:"ip_address"`
	UserAgent string `json:"user_agent"`
	Referrer  string `json:"referrer,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance with basic information
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	return &ClientMetadata{
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
}

// SetReferrer sets the referrer header value
func (cm *ClientMetadata) SetReferrer(referrer string) {
	cm.Referrer = referrer
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// encodeDetails serializes a structured detail payload for storage
func encodeDetails(details map[string]any) string {
	if len(details) == 0 {
		return "{}"
	}
	b, err := json.Marshal(details)
	if err != nil {
		return "{}"
	}
	return string(b)
}
