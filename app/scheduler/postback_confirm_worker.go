package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/clickforge/affiliate-tracker/app/services"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
)

// PostbackConfirmHandler fires the signed outbound confirmation to the
// advertiser's postback URL and promotes the conversion to confirmed once
// the advertiser acknowledges it with a 2xx.
type PostbackConfirmHandler struct {
	conversionRepo repository.ConversionRepository
	advertiserRepo repository.AdvertiserRepository
	signer         services.Signer
	client         services.PostbackClient
	attribution    businessflow.AttributionFlow
	logger         *log.Logger
}

func NewPostbackConfirmHandler(
	conversionRepo repository.ConversionRepository,
	advertiserRepo repository.AdvertiserRepository,
	signer services.Signer,
	client services.PostbackClient,
	attribution businessflow.AttributionFlow,
) *PostbackConfirmHandler {
	return &PostbackConfirmHandler{
		conversionRepo: conversionRepo,
		advertiserRepo: advertiserRepo,
		signer:         signer,
		client:         client,
		attribution:    attribution,
		logger:         log.New(os.Stdout, "postback-worker ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
	}
}

func (h *PostbackConfirmHandler) Handle(ctx context.Context, job *services.Job) error {
	raw := job.Data["conversion_id"]
	conversionID, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.logger.Printf("postback confirm job with bad conversion_id %q, dropping", raw)
		return nil
	}

	conversion, err := h.conversionRepo.ByID(ctx, uint(conversionID))
	if err != nil {
		return fmt.Errorf("failed to load conversion %d: %w", conversionID, err)
	}
	if conversion == nil {
		h.logger.Printf("conversion %d not found, skipping confirmation", conversionID)
		return nil
	}
	if conversion.Status != models.ConversionStatusPending {
		return nil
	}

	advertiser, err := h.advertiserRepo.ByID(ctx, conversion.AdvertiserID)
	if err != nil {
		return fmt.Errorf("failed to load advertiser %d: %w", conversion.AdvertiserID, err)
	}
	if advertiser == nil || advertiser.PostbackURL == nil || *advertiser.PostbackURL == "" {
		h.logger.Printf("advertiser for conversion %d has no postback url, skipping", conversionID)
		return nil
	}

	params := map[string]string{
		"click_id":       conversion.ClickID,
		"transaction_id": conversion.TransactionID,
		"payout":         strconv.FormatFloat(conversion.Payout, 'f', 2, 64),
		"revenue":        strconv.FormatFloat(conversion.Revenue, 'f', 2, 64),
		"status":         conversion.Status,
	}
	params["sig"] = h.signer.Sign(params, advertiser.APISecret)

	status, err := h.client.Send(ctx, *advertiser.PostbackURL, advertiser.PostbackMethod, params)
	if err != nil {
		return fmt.Errorf("postback confirmation for conversion %d failed: %w", conversionID, err)
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("postback confirmation for conversion %d got status %d", conversionID, status)
	}

	if err := h.conversionRepo.UpdateStatus(ctx, conversion.ID, models.ConversionStatusConfirmed); err != nil {
		return fmt.Errorf("failed to confirm conversion %d: %w", conversionID, err)
	}
	conversion.Status = models.ConversionStatusConfirmed
	h.logger.Printf("conversion %d confirmed via advertiser postback", conversionID)

	// Warm the attribution cache so the first report read is a hit
	if h.attribution != nil {
		if _, err := h.attribution.Credit(ctx, conversion.ID, ""); err != nil {
			h.logger.Printf("attribution precompute failed for conversion %d: %v", conversionID, err)
		}
	}
	return nil
}
