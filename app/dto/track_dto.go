package dto

// TrackClickRequest carries the query parameters of a tracking link hit.
// Unknown query parameters are rejected at the handler; the record structs
// below are the only way fields reach storage.
type TrackClickRequest struct {
	OfferID     uint   `query:"offer_id" validate:"required,gt=0"`
	AffiliateID uint   `query:"aff_id" validate:"required,gt=0"`
	ClickID     string `query:"click_id" validate:"omitempty,max=64"`
	Sig         string `query:"sig" validate:"omitempty,len=64,hexadecimal"`
	SmartlinkID uint   `query:"slid" validate:"omitempty"`
	RuleID      uint   `query:"rule_id" validate:"omitempty"`
	SessionID   string `query:"session_id" validate:"omitempty,max=64"`

	Device     string `query:"device" validate:"omitempty,max=64"`
	OS         string `query:"os" validate:"omitempty,max=64"`
	OSVersion  string `query:"os_version" validate:"omitempty,max=64"`
	Browser    string `query:"browser" validate:"omitempty,max=64"`
	BrowserVer string `query:"browser_version" validate:"omitempty,max=64"`

	Sub1 string `query:"sub1" validate:"omitempty,max=255"`
	Sub2 string `query:"sub2" validate:"omitempty,max=255"`
	Sub3 string `query:"sub3" validate:"omitempty,max=255"`
	Sub4 string `query:"sub4" validate:"omitempty,max=255"`
	Sub5 string `query:"sub5" validate:"omitempty,max=255"`

	Source     string `query:"source" validate:"omitempty,max=255"`
	Domain     string `query:"domain" validate:"omitempty,max=255"`
	Channel    string `query:"channel" validate:"omitempty,max=255"`
	Placement  string `query:"placement" validate:"omitempty,max=255"`
	CreativeID string `query:"creative_id" validate:"omitempty,max=255"`
	CampaignID string `query:"campaign_id" validate:"omitempty,max=255"`
	Deeplink   string `query:"deeplink" validate:"omitempty,max=2048"`

	ForceGeo    string `query:"force_geo" validate:"omitempty,max=64"`
	ForceDevice string `query:"force_device" validate:"omitempty,max=64"`
	ForceOS     string `query:"force_os" validate:"omitempty,max=64"`

	// Pixel selects the 1x1 gif response instead of the landing page redirect
	Pixel bool `query:"pixel"`
}

// TrackClickResult tells the handler how to answer a tracked click
type TrackClickResult struct {
	ClickID       string `json:"click_id"`
	Pixel         bool   `json:"pixel"`
	RedirectURL   string `json:"redirect_url,omitempty"`
	FraudFlag     bool   `json:"fraud_flag"`
	FraudType     string `json:"fraud_type,omitempty"`
	FraudSeverity string `json:"fraud_severity,omitempty"`
}
