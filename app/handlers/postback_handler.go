package handlers

import (
	"log"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"

	"github.com/clickforge/affiliate-tracker/app/dto"
	"github.com/clickforge/affiliate-tracker/app/middleware"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
)

// knownPostbackParams are the parameters consumed by the pipeline itself;
// everything else on the query string is an advertiser extra
var knownPostbackParams = map[string]struct{}{
	"click_id":          {},
	"transaction_id":    {},
	"payout":            {},
	"revenue":           {},
	"sig":               {},
	"advertiser_ref_id": {},
}

// PostbackHandlerInterface defines the contract for postback handlers
type PostbackHandlerInterface interface {
	Postback(c fiber.Ctx) error
}

// PostbackHandler handles advertiser conversion notifications
type PostbackHandler struct {
	postbackFlow businessflow.PostbackFlow
	validator    *validator.Validate
}

func NewPostbackHandler(postbackFlow businessflow.PostbackFlow) *PostbackHandler {
	return &PostbackHandler{
		postbackFlow: postbackFlow,
		validator:    validator.New(),
	}
}

// Postback handles GET and POST /postback. GET carries everything on the
// query string; POST accepts a JSON body with query parameters still
// honored for extras.
func (h *PostbackHandler) Postback(c fiber.Ctx) error {
	var req dto.PostbackRequest
	if c.Method() == fiber.MethodPost && strings.Contains(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		if err := c.Bind().JSON(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
		}
	} else {
		if err := c.Bind().Query(&req); err != nil {
			return errorResponse(c, fiber.StatusBadRequest, "Invalid query parameters", "INVALID_REQUEST", err.Error())
		}
	}
	req.Extras = extractExtras(c)

	if err := h.validator.Struct(&req); err != nil {
		var validationErrors []string
		for _, err := range err.(validator.ValidationErrors) {
			validationErrors = append(validationErrors, getValidationErrorMessage(err))
		}
		return errorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
	}

	ctx, cancel := createRequestContext(c, "/postback")
	defer cancel()

	result, err := h.postbackFlow.Handle(ctx, &req, clientMetadata(c))
	if err != nil {
		if businessflow.IsClickNotFound(err) {
			middleware.RecordPostbackRejection("click_not_found")
			return respondPostback(c, result)
		}
		if businessflow.IsIPNotWhitelisted(err) {
			middleware.RecordPostbackRejection("ip_not_whitelisted")
			return respondPostback(c, result)
		}
		if businessflow.IsInvalidSignature(err) {
			middleware.RecordPostbackRejection("invalid_signature")
			return respondPostback(c, result)
		}

		log.Println("Postback processing failed", err)
		return errorResponse(c, fiber.StatusInternalServerError, "Postback processing failed", "POSTBACK_FAILED", nil)
	}

	if !result.Duplicate {
		middleware.RecordConversionCreated()
	}
	return respondPostback(c, result)
}

func respondPostback(c fiber.Ctx, result *businessflow.PostbackResult) error {
	success := result.HTTPStatus >= 200 && result.HTTPStatus < 300
	return c.Status(result.HTTPStatus).JSON(dto.PostbackResponse{
		Success:      success,
		Message:      result.Message,
		ConversionID: result.ConversionID,
		Duplicate:    result.Duplicate,
	})
}

func extractExtras(c fiber.Ctx) map[string]string {
	queries := c.Queries()
	if len(queries) == 0 {
		return nil
	}
	extras := make(map[string]string)
	for key, value := range queries {
		if _, known := knownPostbackParams[key]; known {
			continue
		}
		extras[key] = value
	}
	if len(extras) == 0 {
		return nil
	}
	return extras
}
