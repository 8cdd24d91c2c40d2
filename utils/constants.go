package utils

import (
	"time"
)

// ContextKey is the type used for request-scoped context values
type ContextKey string

// Request context keys set by handlers and read by flows for audit logging
const (
	RequestIDKey ContextKey = "request_id"
	UserAgentKey ContextKey = "user_agent"
	IPAddressKey ContextKey = "ip_address"
	EndpointKey  ContextKey = "endpoint"
)

// Fraud detection window constants
const (
	// DuplicateClickWindow is the trailing window for duplicate click detection (1 hour)
	DuplicateClickWindow = time.Hour

	// FastClickWindow is the trailing window for fast click detection (1 minute)
	FastClickWindow = time.Minute

	// DefaultDuplicateThreshold is the default duplicate click count threshold
	DefaultDuplicateThreshold = 3

	// FastClickThreshold is the max clicks per IP within FastClickWindow before flagging
	FastClickThreshold = 5
)

// Queue constants
const (
	// JobQueueKey is the redis list holding ready jobs
	JobQueueKey = "affiliate:jobs"

	// DelayedQueueKey is the redis sorted set holding delayed jobs
	DelayedQueueKey = "affiliate:jobs:delayed"

	// JobFraudCheck re-runs fraud evaluation for a click out of band
	JobFraudCheck = "FraudCheckJob"

	// JobPostbackConfirm notifies the advertiser about a created conversion
	JobPostbackConfirm = "PostbackConfirmJob"
)
