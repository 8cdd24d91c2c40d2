package handlers

import (
	"encoding/base64"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/clickforge/affiliate-tracker/app/dto"
	"github.com/clickforge/affiliate-tracker/app/middleware"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
)

// pixelGIF is a 1x1 transparent gif served when the tracking link is embedded
// as an image instead of a redirect
var pixelGIF = func() []byte {
	b, err := base64.StdEncoding.DecodeString("R0lGODlhAQABAIAAAAAAAP///yH5BAEAAAAALAAAAAABAAEAAAIBRAA7")
	if err != nil {
		panic(err)
	}
	return b
}()

// ClickHandlerInterface defines the contract for click tracking handlers
type ClickHandlerInterface interface {
	Track(c fiber.Ctx) error
}

// ClickHandler handles tracking link hits
type ClickHandler struct {
	clickFlow businessflow.ClickFlow
	validator *validator.Validate
}

func NewClickHandler(clickFlow businessflow.ClickFlow) *ClickHandler {
	return &ClickHandler{
		clickFlow: clickFlow,
		validator: validator.New(),
	}
}

// Track handles GET /click. A tracked click answers with a 302 to the
// offer's landing page, or the 1x1 gif when pixel=1. Fraud flags never
// change the response.
func (h *ClickHandler) Track(c fiber.Ctx) error {
	var req dto.TrackClickRequest
	if err := c.Bind().Query(&req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	ctx, cancel := createRequestContext(c, "/click")
	defer cancel()

	result, err := h.clickFlow.Track(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsOfferNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Offer not found", "OFFER_NOT_FOUND", nil)
		}
		if businessflow.IsAffiliateNotFound(err) {
			return errorResponse(c, fiber.StatusNotFound, "Affiliate not found", "AFFILIATE_NOT_FOUND", nil)
		}
		if businessflow.IsInvalidSignature(err) {
			return errorResponse(c, fiber.StatusForbidden, "Invalid signature", "INVALID_SIGNATURE", nil)
		}

		log.Println("Click tracking failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Click tracking failed", "TRACKING_FAILED", nil)
	}

	middleware.RecordClickTracked()
	if result.FraudFlag {
		middleware.RecordFraudFlag(result.FraudType, result.FraudSeverity)
	}

	if result.Pixel {
		c.Set(fiber.HeaderContentType, "image/gif")
		c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
		return c.Status(fiber.StatusOK).Send(pixelGIF)
	}
	if result.RedirectURL != "" {
		return c.Redirect().Status(fiber.StatusFound).To(result.RedirectURL)
	}
	return successResponse(c, fiber.StatusOK, "Click tracked", fiber.Map{
		"click_id": result.ClickID,
	})
}
