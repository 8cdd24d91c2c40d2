package businessflow

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/clickforge/affiliate-tracker/app/dto"
	"github.com/clickforge/affiliate-tracker/app/services"
	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
	"github.com/clickforge/affiliate-tracker/utils"
)

// PostbackResult is the resolved outcome of one postback attempt. Every
// attempt, accepted or not, leaves a PostbackLog row behind.
type PostbackResult struct {
	Status       string
	Message      string
	ConversionID *uint
	Duplicate    bool
	HTTPStatus   int
}

// PostbackFlow processes advertiser conversion notifications: IP
// allow-listing, signature verification, duplicate suppression, conversion
// creation, and confirmation scheduling.
type PostbackFlow interface {
	Handle(ctx context.Context, req *dto.PostbackRequest, metadata *ClientMetadata) (*PostbackResult, error)
}

// PostbackFlowConfig holds the flow's tunables
type PostbackFlowConfig struct {
	// IPFailOpen preserves the historical allow-all default for advertisers
	// without whitelist entries. Flipping it to false rejects postbacks from
	// advertisers that never configured a whitelist.
	IPFailOpen bool
}

type PostbackFlowImpl struct {
	clickRepo       repository.ClickRepository
	offerRepo       repository.OfferRepository
	advertiserRepo  repository.AdvertiserRepository
	conversionRepo  repository.ConversionRepository
	postbackLogRepo repository.PostbackLogRepository

	signer services.Signer
	queue  services.QueueService

	cfg PostbackFlowConfig
}

func NewPostbackFlow(
	clickRepo repository.ClickRepository,
	offerRepo repository.OfferRepository,
	advertiserRepo repository.AdvertiserRepository,
	conversionRepo repository.ConversionRepository,
	postbackLogRepo repository.PostbackLogRepository,
	signer services.Signer,
	queue services.QueueService,
	cfg PostbackFlowConfig,
) PostbackFlow {
	return &PostbackFlowImpl{
		clickRepo:       clickRepo,
		offerRepo:       offerRepo,
		advertiserRepo:  advertiserRepo,
		conversionRepo:  conversionRepo,
		postbackLogRepo: postbackLogRepo,
		signer:          signer,
		queue:           queue,
		cfg:             cfg,
	}
}

func (f *PostbackFlowImpl) Handle(ctx context.Context, req *dto.PostbackRequest, metadata *ClientMetadata) (*PostbackResult, error) {
	click, err := f.clickRepo.ByClickID(ctx, req.ClickID)
	if err != nil {
		return nil, NewBusinessError("CLICK_LOOKUP_FAILED", "Failed to lookup click", err)
	}
	if click == nil {
		log.Printf("postback: click not found click_id=%s ip=%s", req.ClickID, metadata.IPAddress)
		return f.reject(ctx, req, metadata, nil, models.PostbackStatusFailed, "Click not found", http.StatusBadRequest), ErrClickNotFound
	}

	offer, err := f.offerRepo.ByID(ctx, click.OfferID)
	if err != nil {
		return nil, NewBusinessError("OFFER_LOOKUP_FAILED", "Failed to lookup offer", err)
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}
	advertiser, err := f.advertiserRepo.ByID(ctx, offer.AdvertiserID)
	if err != nil {
		return nil, NewBusinessError("ADVERTISER_LOOKUP_FAILED", "Failed to lookup advertiser", err)
	}
	if advertiser == nil {
		return nil, ErrAdvertiserNotFound
	}

	allowed, err := f.isIPWhitelisted(ctx, advertiser.ID, metadata.IPAddress)
	if err != nil {
		return nil, NewBusinessError("WHITELIST_QUERY_FAILED", "Failed to check ip whitelist", err)
	}
	if !allowed {
		fraudAudit.Printf("postback from non-whitelisted ip advertiser_id=%d ip=%s click_id=%s",
			advertiser.ID, metadata.IPAddress, req.ClickID)
		return f.reject(ctx, req, metadata, &advertiser.ID, models.PostbackStatusRejected, "IP not whitelisted", http.StatusForbidden), ErrIPNotWhitelisted
	}

	if !f.verifyPostbackSignature(advertiser, req) {
		fraudAudit.Printf("invalid postback signature advertiser_id=%d click_id=%s", advertiser.ID, req.ClickID)
		return f.reject(ctx, req, metadata, &advertiser.ID, models.PostbackStatusRejected, "Invalid signature", http.StatusForbidden), ErrInvalidSignature
	}

	// Logical duplicate check first; the unique index on
	// (click_id, transaction_id) catches the race two identical postbacks
	// can win past it
	existing, err := f.conversionRepo.ByClickAndTransaction(ctx, req.ClickID, req.TransactionID)
	if err != nil {
		return nil, NewBusinessError("CONVERSION_LOOKUP_FAILED", "Failed to lookup conversion", err)
	}
	if existing != nil {
		return f.duplicate(ctx, req, metadata, advertiser.ID, existing.ID), nil
	}

	conversion := &models.Conversion{
		ClickID:         req.ClickID,
		OfferID:         click.OfferID,
		AffiliateID:     click.AffiliateID,
		AdvertiserID:    advertiser.ID,
		AdvertiserRefID: utils.PtrOrNil(req.AdvertiserRefID),
		TransactionID:   req.TransactionID,
		Payout:          req.Payout,
		Revenue:         req.Revenue,
		AdvertiserLoad:  encodePayload(req),
		Status:          models.ConversionStatusPending,
		Source:          "postback",
	}
	if err := f.conversionRepo.Save(ctx, conversion); err != nil {
		if repository.IsDuplicateKey(err) {
			existing, lookupErr := f.conversionRepo.ByClickAndTransaction(ctx, req.ClickID, req.TransactionID)
			if lookupErr == nil && existing != nil {
				return f.duplicate(ctx, req, metadata, advertiser.ID, existing.ID), nil
			}
			return f.duplicate(ctx, req, metadata, advertiser.ID, 0), nil
		}
		// A lost conversion is a correctness incident, propagate as fatal
		return nil, NewBusinessError("CONVERSION_PERSIST_FAILED", "Failed to persist conversion", err)
	}

	if err := f.clickRepo.MarkConverted(ctx, req.ClickID, conversion.ID); err != nil {
		log.Printf("failed to mark click converted click_id=%s conversion_id=%d: %v", req.ClickID, conversion.ID, err)
	}

	if advertiser.PostbackURL != nil && *advertiser.PostbackURL != "" {
		data := map[string]string{"conversion_id": fmt.Sprintf("%d", conversion.ID)}
		if err := f.queue.Push(ctx, utils.JobPostbackConfirm, data, 0); err != nil {
			log.Printf("failed to enqueue postback confirmation conversion_id=%d: %v", conversion.ID, err)
		}
	}

	log.Printf("postback processed click_id=%s conversion_id=%d payout=%.2f",
		req.ClickID, conversion.ID, req.Payout)

	result := &PostbackResult{
		Status:       models.PostbackStatusSuccess,
		Message:      "Conversion created",
		ConversionID: &conversion.ID,
		HTTPStatus:   http.StatusOK,
	}
	f.logAttempt(ctx, req, metadata, result, &advertiser.ID)
	return result, nil
}

// isIPWhitelisted enumerates the advertiser's active entries. No entries
// means allow when fail-open policy is on. Range matches are inclusive at
// both endpoints.
func (f *PostbackFlowImpl) isIPWhitelisted(ctx context.Context, advertiserID uint, ip string) (bool, error) {
	entries, err := f.advertiserRepo.ActiveWhitelist(ctx, advertiserID)
	if err != nil {
		return false, err
	}
	if len(entries) == 0 {
		return f.cfg.IPFailOpen, nil
	}

	for _, entry := range entries {
		if entry.IPAddress != nil && *entry.IPAddress == ip {
			return true, nil
		}
		if entry.IPRangeStart != nil && entry.IPRangeEnd != nil {
			if ipInRange(ip, *entry.IPRangeStart, *entry.IPRangeEnd) {
				return true, nil
			}
		}
	}
	return false, nil
}

// ipInRange reports whether ip falls within [start, end] numerically.
// IPv4 only, mirroring the range columns.
func ipInRange(ip, start, end string) bool {
	ipN, ok1 := ipv4ToUint32(ip)
	startN, ok2 := ipv4ToUint32(start)
	endN, ok3 := ipv4ToUint32(end)
	if !ok1 || !ok2 || !ok3 {
		return false
	}
	return ipN >= startN && ipN <= endN
}

func ipv4ToUint32(s string) (uint32, bool) {
	ip := net.ParseIP(s)
	if ip == nil {
		return 0, false
	}
	v4 := ip.To4()
	if v4 == nil {
		return 0, false
	}
	return binary.BigEndian.Uint32(v4), true
}

func (f *PostbackFlowImpl) verifyPostbackSignature(advertiser *models.Advertiser, req *dto.PostbackRequest) bool {
	if advertiser.APISecret == "" {
		return false
	}
	fields := map[string]string{
		"click_id":       req.ClickID,
		"transaction_id": req.TransactionID,
	}
	return f.signer.Verify(fields, req.Sig, advertiser.APISecret)
}

func (f *PostbackFlowImpl) duplicate(ctx context.Context, req *dto.PostbackRequest, metadata *ClientMetadata, advertiserID, conversionID uint) *PostbackResult {
	log.Printf("duplicate conversion detected click_id=%s transaction_id=%s", req.ClickID, req.TransactionID)
	result := &PostbackResult{
		Status:     models.PostbackStatusDuplicate,
		Message:    "Duplicate conversion",
		Duplicate:  true,
		HTTPStatus: http.StatusOK,
	}
	if conversionID > 0 {
		result.ConversionID = &conversionID
	}
	f.logAttempt(ctx, req, metadata, result, &advertiserID)
	return result
}

func (f *PostbackFlowImpl) reject(ctx context.Context, req *dto.PostbackRequest, metadata *ClientMetadata, advertiserID *uint, status, message string, httpStatus int) *PostbackResult {
	result := &PostbackResult{
		Status:     status,
		Message:    message,
		HTTPStatus: httpStatus,
	}
	f.logAttempt(ctx, req, metadata, result, advertiserID)
	return result
}

// logAttempt records the attempt for audit and replay diagnosis. Audit rows
// are best-effort, a failed insert never changes the response.
func (f *PostbackFlowImpl) logAttempt(ctx context.Context, req *dto.PostbackRequest, metadata *ClientMetadata, result *PostbackResult, advertiserID *uint) {
	entry := &models.PostbackLog{
		ConversionID:   result.ConversionID,
		AdvertiserID:   advertiserID,
		ClickID:        req.ClickID,
		TransactionID:  req.TransactionID,
		RequestParams:  encodePayload(req),
		ResponseStatus: result.HTTPStatus,
		IPAddress:      metadata.IPAddress,
		Status:         result.Status,
		ErrorMessage:   utils.PtrOrNil(result.Message),
	}
	if err := f.postbackLogRepo.Save(ctx, entry); err != nil {
		log.Printf("failed to persist postback log click_id=%s: %v", req.ClickID, err)
	}
}

// encodePayload serializes the raw request, extras included, for storage
func encodePayload(req *dto.PostbackRequest) string {
	payload := map[string]string{
		"click_id":       req.ClickID,
		"transaction_id": req.TransactionID,
		"payout":         fmt.Sprintf("%g", req.Payout),
		"revenue":        fmt.Sprintf("%g", req.Revenue),
	}
	if req.Sig != "" {
		payload["sig"] = req.Sig
	}
	if req.AdvertiserRefID != "" {
		payload["advertiser_ref_id"] = req.AdvertiserRefID
	}
	for k, v := range req.Extras {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "{}"
	}
	return string(b)
}
