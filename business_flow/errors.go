// Package businessflow contains the core business logic for click tracking, fraud scoring, and conversion attribution
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Click tracking errors
	ErrOfferNotFound     = errors.New("offer not found")
	ErrAffiliateNotFound = errors.New("affiliate not found")
	ErrInvalidSignature  = errors.New("invalid signature")

	// Postback errors
	ErrClickNotFound        = errors.New("click not found")
	ErrAdvertiserNotFound   = errors.New("advertiser not found")
	ErrIPNotWhitelisted     = errors.New("ip not whitelisted")
	ErrDuplicateConversion  = errors.New("duplicate conversion")
	ErrMissingClickID       = errors.New("click_id is required")
	ErrMissingTransactionID = errors.New("transaction_id is required")

	// Attribution errors
	ErrConversionNotFound    = errors.New("conversion not found")
	ErrUnknownAttributionMdl = errors.New("unknown attribution model")
	ErrEmptyAttributionPath  = errors.New("attribution path is empty")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func IsOfferNotFound(err error) bool {
	return errors.Is(err, ErrOfferNotFound)
}

func IsAffiliateNotFound(err error) bool {
	return errors.Is(err, ErrAffiliateNotFound)
}

func IsInvalidSignature(err error) bool {
	return errors.Is(err, ErrInvalidSignature)
}

func IsClickNotFound(err error) bool {
	return errors.Is(err, ErrClickNotFound)
}

func IsAdvertiserNotFound(err error) bool {
	return errors.Is(err, ErrAdvertiserNotFound)
}

func IsIPNotWhitelisted(err error) bool {
	return errors.Is(err, ErrIPNotWhitelisted)
}

func IsDuplicateConversion(err error) bool {
	return errors.Is(err, ErrDuplicateConversion)
}

func IsConversionNotFound(err error) bool {
	return errors.Is(err, ErrConversionNotFound)
}
