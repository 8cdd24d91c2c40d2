package businessflow

import (
	"context"
	"fmt"
	"log"

	"github.com/clickforge/affiliate-tracker/app/dto"
	"github.com/clickforge/affiliate-tracker/app/services"
	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
	"github.com/clickforge/affiliate-tracker/utils"
)

// ClickFlow validates a tracking link hit, scores it for fraud, persists the
// click, and schedules the asynchronous fraud re-check. Fraud evaluation is
// advisory: a flagged click is still tracked and still redirects.
type ClickFlow interface {
	Track(ctx context.Context, req *dto.TrackClickRequest, metadata *ClientMetadata) (*dto.TrackClickResult, error)
}

// ClickFlowConfig holds the flow's tunables
type ClickFlowConfig struct {
	// FraudEnabled gates the async re-check enqueue, not the sync pass
	FraudEnabled bool
	// RecheckDelaySeconds delays the re-check so the window counts include
	// neighbouring clicks from the same burst
	RecheckDelaySeconds int
}

type ClickFlowImpl struct {
	offerRepo     repository.OfferRepository
	affiliateRepo repository.AffiliateRepository
	clickRepo     repository.ClickRepository
	fraudLogRepo  repository.FraudLogRepository

	fraudEngine FraudEngine
	signer      services.Signer
	geoIP       services.GeoIPService
	queue       services.QueueService
	fraudEvents services.FraudEventPublisher

	cfg ClickFlowConfig
}

func NewClickFlow(
	offerRepo repository.OfferRepository,
	affiliateRepo repository.AffiliateRepository,
	clickRepo repository.ClickRepository,
	fraudLogRepo repository.FraudLogRepository,
	fraudEngine FraudEngine,
	signer services.Signer,
	geoIP services.GeoIPService,
	queue services.QueueService,
	fraudEvents services.FraudEventPublisher,
	cfg ClickFlowConfig,
) ClickFlow {
	return &ClickFlowImpl{
		offerRepo:     offerRepo,
		affiliateRepo: affiliateRepo,
		clickRepo:     clickRepo,
		fraudLogRepo:  fraudLogRepo,
		fraudEngine:   fraudEngine,
		signer:        signer,
		geoIP:         geoIP,
		queue:         queue,
		fraudEvents:   fraudEvents,
		cfg:           cfg,
	}
}

func (f *ClickFlowImpl) Track(ctx context.Context, req *dto.TrackClickRequest, metadata *ClientMetadata) (*dto.TrackClickResult, error) {
	offer, err := f.offerRepo.ByID(ctx, req.OfferID)
	if err != nil {
		return nil, NewBusinessError("OFFER_LOOKUP_FAILED", "Failed to lookup offer", err)
	}
	if offer == nil {
		return nil, ErrOfferNotFound
	}

	affiliate, err := f.affiliateRepo.ByID(ctx, req.AffiliateID)
	if err != nil {
		return nil, NewBusinessError("AFFILIATE_LOOKUP_FAILED", "Failed to lookup affiliate", err)
	}
	if affiliate == nil {
		return nil, ErrAffiliateNotFound
	}

	clickID := utils.DefaultString(req.ClickID, utils.GenerateClickID())

	// Signing is opt-in per affiliate: a missing sig is accepted, a present
	// one must verify against exactly the click parameter set
	if req.Sig != "" && !f.verifyClickSignature(clickID, req, affiliate) {
		fraudAudit.Printf("invalid click signature click_id=%s offer_id=%d affiliate_id=%d ip=%s",
			clickID, req.OfferID, req.AffiliateID, metadata.IPAddress)
		return nil, ErrInvalidSignature
	}

	event := ClickEvent{
		ClickID:     clickID,
		OfferID:     req.OfferID,
		AffiliateID: req.AffiliateID,
		IP:          metadata.IPAddress,
		UserAgent:   metadata.UserAgent,
		UAHash:      utils.HashUserAgent(metadata.UserAgent),
		Country:     f.geoIP.CountryByIP(metadata.IPAddress),
		CreatedAt:   utils.UTCNow(),
	}

	fraudResult, err := f.fraudEngine.Evaluate(ctx, event)
	if err != nil {
		// Advisory pass: losing the sync evaluation must not lose the click,
		// the queued re-check covers it
		log.Printf("sync fraud evaluation failed click_id=%s: %v", clickID, err)
		fraudResult = FraudResult{}
	}
	if fraudResult.IsFraud {
		f.recordFraud(ctx, event, fraudResult)
	}

	click := f.buildClick(clickID, req, event, metadata)
	if err := f.clickRepo.Save(ctx, click); err != nil {
		// A lost click is a correctness incident, propagate as fatal
		return nil, NewBusinessError("CLICK_PERSIST_FAILED", "Failed to persist click", err)
	}

	if err := f.affiliateRepo.IncrementTotalClicks(ctx, affiliate.ID); err != nil {
		log.Printf("failed to increment click counter affiliate_id=%d: %v", affiliate.ID, err)
	}

	if f.cfg.FraudEnabled {
		err := f.queue.Push(ctx, utils.JobFraudCheck, map[string]string{"click_id": clickID}, f.cfg.RecheckDelaySeconds)
		if err != nil {
			log.Printf("failed to enqueue fraud recheck click_id=%s: %v", clickID, err)
		}
	}

	log.Printf("click tracked click_id=%s offer_id=%d affiliate_id=%d ip=%s fraud=%t",
		clickID, req.OfferID, req.AffiliateID, metadata.IPAddress, fraudResult.IsFraud)

	return &dto.TrackClickResult{
		ClickID:       clickID,
		Pixel:         req.Pixel,
		RedirectURL:   offer.LandingPageURL,
		FraudFlag:     fraudResult.IsFraud,
		FraudType:     fraudResult.Type,
		FraudSeverity: fraudResult.Severity,
	}, nil
}

func (f *ClickFlowImpl) verifyClickSignature(clickID string, req *dto.TrackClickRequest, affiliate *models.Affiliate) bool {
	if affiliate.APISecret == "" {
		return false
	}
	fields := map[string]string{
		"click_id":     clickID,
		"offer_id":     fmt.Sprintf("%d", req.OfferID),
		"affiliate_id": fmt.Sprintf("%d", req.AffiliateID),
	}
	return f.signer.Verify(fields, req.Sig, affiliate.APISecret)
}

func (f *ClickFlowImpl) recordFraud(ctx context.Context, event ClickEvent, result FraudResult) {
	fraudAudit.Printf("fraud detected click_id=%s type=%s severity=%s reason=%q",
		event.ClickID, result.Type, result.Severity, result.Reason)

	fraudLog := BuildFraudLog(event, result)
	if err := f.fraudLogRepo.Save(ctx, fraudLog); err != nil {
		log.Printf("failed to persist fraud log click_id=%s: %v", event.ClickID, err)
		return
	}
	if err := f.fraudEvents.Publish(ctx, fraudLog); err != nil {
		log.Printf("failed to publish fraud event click_id=%s: %v", event.ClickID, err)
	}
}

func (f *ClickFlowImpl) buildClick(clickID string, req *dto.TrackClickRequest, event ClickEvent, metadata *ClientMetadata) *models.Click {
	var smartlinkID, ruleID *uint
	if req.SmartlinkID > 0 {
		smartlinkID = utils.ToPtr(req.SmartlinkID)
	}
	if req.RuleID > 0 {
		ruleID = utils.ToPtr(req.RuleID)
	}

	return &models.Click{
		ClickID:     clickID,
		OfferID:     req.OfferID,
		AffiliateID: req.AffiliateID,
		SmartlinkID: smartlinkID,
		RuleID:      ruleID,
		SessionID:   utils.DefaultString(req.SessionID, utils.GenerateSessionID()),
		IP:          metadata.IPAddress,
		Device:      utils.DefaultString(req.Device, "unknown"),
		OS:          utils.DefaultString(req.OS, "unknown"),
		OSVersion:   utils.PtrOrNil(req.OSVersion),
		Browser:     utils.DefaultString(req.Browser, "unknown"),
		BrowserVer:  utils.PtrOrNil(req.BrowserVer),
		Country:     event.Country,
		UserAgent:   metadata.UserAgent,
		UAHash:      event.UAHash,
		Sub1:        utils.PtrOrNil(req.Sub1),
		Sub2:        utils.PtrOrNil(req.Sub2),
		Sub3:        utils.PtrOrNil(req.Sub3),
		Sub4:        utils.PtrOrNil(req.Sub4),
		Sub5:        utils.PtrOrNil(req.Sub5),
		Source:      utils.PtrOrNil(req.Source),
		Domain:      utils.PtrOrNil(req.Domain),
		Channel:     utils.PtrOrNil(req.Channel),
		Placement:   utils.PtrOrNil(req.Placement),
		CreativeID:  utils.PtrOrNil(req.CreativeID),
		CampaignID:  utils.PtrOrNil(req.CampaignID),
		Deeplink:    utils.PtrOrNil(req.Deeplink),
		ForceGeo:    utils.PtrOrNil(req.ForceGeo),
		ForceDevice: utils.PtrOrNil(req.ForceDevice),
		ForceOS:     utils.PtrOrNil(req.ForceOS),
		Referrer:    utils.PtrOrNil(metadata.Referrer),
		Sig:         utils.PtrOrNil(req.Sig),
		CreatedAt:   event.CreatedAt,
	}
}
