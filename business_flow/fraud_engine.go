package businessflow

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
	"github.com/clickforge/affiliate-tracker/utils"
)

// ClickEvent is the fraud engine's view of a click. CreatedAt anchors the
// window-count rules so the synchronous pass and the asynchronous re-check
// evaluate the same windows.
type ClickEvent struct {
	ClickID     string
	OfferID     uint
	AffiliateID uint
	IP          string
	UserAgent   string
	UAHash      string
	Country     string
	CreatedAt   time.Time
}

// FraudResult carries exactly one classification. Rules run in fixed order
// and the first match wins; changing the order changes which type/severity
// gets recorded for events matching several rules.
type FraudResult struct {
	IsFraud  bool
	Type     string
	Severity string
	Reason   string
	Details  map[string]any
}

// FraudEngine evaluates the ordered fraud rule set against a click event.
// Evaluation is advisory: a match records evidence, it never blocks the
// click or a later conversion.
type FraudEngine interface {
	Evaluate(ctx context.Context, event ClickEvent) (FraudResult, error)
}

// Bot user agent signatures, matched case-insensitively. "java" is handled
// separately so "javascript" stays clean.
var botPatterns = []*regexp.Regexp{
	regexp.MustCompile(`bot`),
	regexp.MustCompile(`crawler`),
	regexp.MustCompile(`spider`),
	regexp.MustCompile(`scraper`),
	regexp.MustCompile(`curl`),
	regexp.MustCompile(`wget`),
	regexp.MustCompile(`python`),
	regexp.MustCompile(`ruby`),
	regexp.MustCompile(`php`),
	regexp.MustCompile(`go-http-client`),
	regexp.MustCompile(`httpunit`),
	regexp.MustCompile(`nutch`),
	regexp.MustCompile(`jyxobot`),
	regexp.MustCompile(`libwww`),
	regexp.MustCompile(`ezooms`),
	regexp.MustCompile(`googlebot`),
	regexp.MustCompile(`bingbot`),
	regexp.MustCompile(`yandexbot`),
	regexp.MustCompile(`baiduspider`),
	regexp.MustCompile(`facebookexternalhit`),
	regexp.MustCompile(`twitterbot`),
}

// IsBotUserAgent reports whether the user agent matches a known bot signature
func IsBotUserAgent(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	if hasJavaToken(ua) {
		return true
	}
	for _, p := range botPatterns {
		if p.MatchString(ua) {
			return true
		}
	}
	return false
}

// hasJavaToken reports whether ua contains "java" anywhere except as the
// prefix of "javascript". "javascript" is a capability token, every other
// occurrence marks an HTTP library.
func hasJavaToken(ua string) bool {
	for idx := 0; ; {
		j := strings.Index(ua[idx:], "java")
		if j < 0 {
			return false
		}
		j += idx
		if !strings.HasPrefix(ua[j+4:], "script") {
			return true
		}
		idx = j + 4
	}
}

type FraudEngineImpl struct {
	clickRepo     repository.ClickRepository
	blacklistRepo repository.IPBlacklistRepository
	offerRepo     repository.OfferRepository

	duplicateThreshold int64
}

func NewFraudEngine(
	clickRepo repository.ClickRepository,
	blacklistRepo repository.IPBlacklistRepository,
	offerRepo repository.OfferRepository,
	duplicateThreshold int,
) FraudEngine {
	if duplicateThreshold <= 0 {
		duplicateThreshold = utils.DefaultDuplicateThreshold
	}
	return &FraudEngineImpl{
		clickRepo:          clickRepo,
		blacklistRepo:      blacklistRepo,
		offerRepo:          offerRepo,
		duplicateThreshold: int64(duplicateThreshold),
	}
}

// Evaluate runs the rules in fixed order against the event and returns the
// first match. Window counts read shared history without locking: two
// simultaneous clicks may both pass, and the async re-check picks the miss
// up later against the updated window.
func (e *FraudEngineImpl) Evaluate(ctx context.Context, event ClickEvent) (FraudResult, error) {
	anchor := utils.TimeToUTC(event.CreatedAt)

	// Rule 1: duplicate clicks from the same fingerprint within 1 hour
	dupCount, err := e.clickRepo.CountByUAHashAndIP(ctx, event.UAHash, event.IP, anchor.Add(-utils.DuplicateClickWindow), anchor)
	if err != nil {
		return FraudResult{}, NewBusinessError("FRAUD_WINDOW_QUERY_FAILED", "Failed to count duplicate clicks", err)
	}
	if dupCount >= e.duplicateThreshold {
		return FraudResult{
			IsFraud:  true,
			Type:     models.FraudTypeDuplicateClick,
			Severity: models.FraudSeverityMedium,
			Reason:   "Duplicate click detected",
			Details:  map[string]any{"duplicate_count": dupCount, "window_seconds": int(utils.DuplicateClickWindow.Seconds())},
		}, nil
	}

	// Rule 2: burst of clicks from one IP within 1 minute. The window query
	// counts prior clicks only, so the event itself is added before the
	// comparison: the 6th click in a minute is the first one flagged.
	fastCount, err := e.clickRepo.CountByIP(ctx, event.IP, anchor.Add(-utils.FastClickWindow), anchor)
	if err != nil {
		return FraudResult{}, NewBusinessError("FRAUD_WINDOW_QUERY_FAILED", "Failed to count fast clicks", err)
	}
	if burst := fastCount + 1; burst > utils.FastClickThreshold {
		return FraudResult{
			IsFraud:  true,
			Type:     models.FraudTypeFastClicks,
			Severity: models.FraudSeverityHigh,
			Reason:   "Multiple clicks from same IP in short time",
			Details:  map[string]any{"click_count": burst, "window_seconds": int(utils.FastClickWindow.Seconds())},
		}, nil
	}

	// Rule 3: bot user agent
	if IsBotUserAgent(event.UserAgent) {
		return FraudResult{
			IsFraud:  true,
			Type:     models.FraudTypeBotTraffic,
			Severity: models.FraudSeverityHigh,
			Reason:   "Bot user agent detected",
			Details:  map[string]any{"user_agent": event.UserAgent},
		}, nil
	}

	// Rule 4: blacklisted IP, permanent or unexpired
	blacklisted, err := e.blacklistRepo.IsBlacklisted(ctx, event.IP, anchor)
	if err != nil {
		return FraudResult{}, NewBusinessError("FRAUD_BLACKLIST_QUERY_FAILED", "Failed to check ip blacklist", err)
	}
	if blacklisted {
		return FraudResult{
			IsFraud:  true,
			Type:     models.FraudTypeBlacklistedIP,
			Severity: models.FraudSeverityCritical,
			Reason:   "IP address is blacklisted",
			Details:  map[string]any{"ip": event.IP},
		}, nil
	}

	// Rule 5: country outside the offer's targeting list
	mismatch, err := e.hasTargetingMismatch(ctx, event)
	if err != nil {
		// A missing offer row is not fraud evidence, skip the rule
		fraudAudit.Printf("targeting lookup failed for click_id=%s offer_id=%d: %v", event.ClickID, event.OfferID, err)
	} else if mismatch {
		return FraudResult{
			IsFraud:  true,
			Type:     models.FraudTypeTargetingMismatch,
			Severity: models.FraudSeverityLow,
			Reason:   "Traffic does not match offer targeting",
			Details:  map[string]any{"country": event.Country, "offer_id": event.OfferID},
		}, nil
	}

	return FraudResult{IsFraud: false, Severity: models.FraudSeverityLow}, nil
}

func (e *FraudEngineImpl) hasTargetingMismatch(ctx context.Context, event ClickEvent) (bool, error) {
	offer, err := e.offerRepo.ByID(ctx, event.OfferID)
	if err != nil {
		return false, fmt.Errorf("failed to load offer %d: %w", event.OfferID, err)
	}
	if offer == nil {
		return false, nil
	}
	return !offer.AllowsCountry(event.Country), nil
}

// BuildFraudLog turns an evaluation result into the persisted advisory row.
// Bot and blacklist matches also raise the blacklist review flag.
func BuildFraudLog(event ClickEvent, result FraudResult) *models.FraudLog {
	return &models.FraudLog{
		ClickID:     event.ClickID,
		OfferID:     event.OfferID,
		AffiliateID: event.AffiliateID,
		FraudType:   result.Type,
		Severity:    result.Severity,
		Description: result.Reason,
		Data:        encodeDetails(result.Details),
		IP:          event.IP,
		UAHash:      event.UAHash,
		Blacklisted: result.Type == models.FraudTypeBotTraffic || result.Type == models.FraudTypeBlacklistedIP,
	}
}
