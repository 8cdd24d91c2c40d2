package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/clickforge/affiliate-tracker/app/services"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
	"github.com/clickforge/affiliate-tracker/repository"
)

// FraudCheckHandler re-runs the fraud rules for a click shortly after it was
// tracked. The second pass sees clicks that landed concurrently with the
// synchronous check, so bursts that slipped through the first window count
// get flagged here.
type FraudCheckHandler struct {
	clickRepo    repository.ClickRepository
	fraudLogRepo repository.FraudLogRepository
	engine       businessflow.FraudEngine
	events       services.FraudEventPublisher
	logger       *log.Logger
}

func NewFraudCheckHandler(
	clickRepo repository.ClickRepository,
	fraudLogRepo repository.FraudLogRepository,
	engine businessflow.FraudEngine,
	events services.FraudEventPublisher,
) *FraudCheckHandler {
	return &FraudCheckHandler{
		clickRepo:    clickRepo,
		fraudLogRepo: fraudLogRepo,
		engine:       engine,
		events:       events,
		logger:       log.New(os.Stdout, "fraud-worker ", log.LstdFlags|log.Lmicroseconds|log.LUTC),
	}
}

func (h *FraudCheckHandler) Handle(ctx context.Context, job *services.Job) error {
	clickID := job.Data["click_id"]
	if clickID == "" {
		h.logger.Printf("fraud check job missing click_id, dropping")
		return nil
	}

	click, err := h.clickRepo.ByClickID(ctx, clickID)
	if err != nil {
		return fmt.Errorf("failed to load click %s: %w", clickID, err)
	}
	if click == nil {
		// The click may have been purged; not a retryable condition
		h.logger.Printf("click %s not found, skipping recheck", clickID)
		return nil
	}

	// Windows anchor at the stored creation time so the recheck evaluates
	// the same time range the synchronous pass did, plus concurrent arrivals
	event := businessflow.ClickEvent{
		ClickID:     click.ClickID,
		OfferID:     click.OfferID,
		AffiliateID: click.AffiliateID,
		IP:          click.IP,
		UserAgent:   click.UserAgent,
		UAHash:      click.UAHash,
		Country:     click.Country,
		CreatedAt:   click.CreatedAt,
	}

	result, err := h.engine.Evaluate(ctx, event)
	if err != nil {
		return fmt.Errorf("fraud evaluation failed for click %s: %w", clickID, err)
	}
	if !result.IsFraud {
		return nil
	}

	// Avoid double-flagging when the synchronous pass already recorded the
	// same classification
	existing, err := h.fraudLogRepo.ByClickID(ctx, clickID)
	if err != nil {
		return fmt.Errorf("failed to load fraud logs for click %s: %w", clickID, err)
	}
	for _, fl := range existing {
		if fl.FraudType == result.Type {
			return nil
		}
	}

	entry := businessflow.BuildFraudLog(event, result)
	if err := h.fraudLogRepo.Save(ctx, entry); err != nil {
		return fmt.Errorf("failed to persist fraud log for click %s: %w", clickID, err)
	}
	h.logger.Printf("flagged click %s on recheck type=%s severity=%s", clickID, result.Type, result.Severity)

	if h.events != nil {
		if err := h.events.Publish(ctx, entry); err != nil {
			h.logger.Printf("failed to publish fraud event for click %s: %v", clickID, err)
		}
	}
	return nil
}
