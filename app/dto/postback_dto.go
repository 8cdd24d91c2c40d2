package dto

// PostbackRequest carries an advertiser conversion notification. Extra
// advertiser-defined fields are captured verbatim into Extras and stored
// with the conversion payload.
type PostbackRequest struct {
	ClickID         string  `query:"click_id" json:"click_id" validate:"required,max=64"`
	TransactionID   string  `query:"transaction_id" json:"transaction_id" validate:"required,max=255"`
	Payout          float64 `query:"payout" json:"payout" validate:"omitempty,gte=0"`
	Revenue         float64 `query:"revenue" json:"revenue" validate:"omitempty,gte=0"`
	Sig             string  `query:"sig" json:"sig" validate:"omitempty,len=64,hexadecimal"`
	AdvertiserRefID string  `query:"advertiser_ref_id" json:"advertiser_ref_id" validate:"omitempty,max=255"`

	Extras map[string]string `query:"-" json:"-"`
}

// PostbackResponse is the JSON body returned for every postback attempt
type PostbackResponse struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	ConversionID *uint  `json:"conversion_id"`
	Duplicate    bool   `json:"duplicate"`
}
