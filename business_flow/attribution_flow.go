package businessflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/samber/lo"

	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
)

// Attribution models
const (
	AttributionFirstClick = "first_click"
	AttributionLastClick  = "last_click"
	AttributionLinear     = "linear"
	AttributionTimeDecay  = "time_decay"
)

// Touchpoint is one click on the path to a conversion with its assigned
// credit share. Weights across a path always sum to 1.
type Touchpoint struct {
	ClickID     string    `json:"click_id"`
	AffiliateID uint      `json:"affiliate_id"`
	Weight      float64   `json:"weight"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// AttributionResult is the computed credit assignment for one conversion
// under one model. CreditedClickID is set only for single-winner models;
// fractional models leave it empty and the full split lives in Touchpoints.
type AttributionResult struct {
	ConversionID    uint         `json:"conversion_id"`
	Model           string       `json:"model"`
	Touchpoints     []Touchpoint `json:"touchpoints"`
	CreditedClickID string       `json:"credited_click_id,omitempty"`
}

// AttributionFlow assigns conversion credit across the clicks that share the
// converting click's fingerprint (session id or user-agent hash).
type AttributionFlow interface {
	// ComputePath returns the weighted touchpoint path for a conversion
	ComputePath(ctx context.Context, conversionID uint, model string) (*AttributionResult, error)
	// Credit resolves the single credited click id. Fractional models have
	// no single winner and return empty. Unknown models fall back to
	// last_click.
	Credit(ctx context.Context, conversionID uint, model string) (string, error)
}

// AttributionFlowConfig holds the flow's tunables
type AttributionFlowConfig struct {
	// CacheTTL of zero disables result caching even with a live client.
	CacheTTL time.Duration
	// HalfLife controls time_decay: a click this much older than the
	// conversion carries half the weight of one at conversion time.
	HalfLife time.Duration
}

type AttributionFlowImpl struct {
	conversionRepo repository.ConversionRepository
	clickRepo      repository.ClickRepository
	cache          *redis.Client
	cfg            AttributionFlowConfig
}

func NewAttributionFlow(
	conversionRepo repository.ConversionRepository,
	clickRepo repository.ClickRepository,
	cache *redis.Client,
	cfg AttributionFlowConfig,
) AttributionFlow {
	if cfg.HalfLife <= 0 {
		cfg.HalfLife = 7 * 24 * time.Hour
	}
	return &AttributionFlowImpl{
		conversionRepo: conversionRepo,
		clickRepo:      clickRepo,
		cache:          cache,
		cfg:            cfg,
	}
}

func (f *AttributionFlowImpl) ComputePath(ctx context.Context, conversionID uint, model string) (*AttributionResult, error) {
	switch model {
	case AttributionFirstClick, AttributionLastClick, AttributionLinear, AttributionTimeDecay:
	case "":
		model = AttributionLastClick
	default:
		return nil, NewBusinessError("UNKNOWN_ATTRIBUTION_MODEL",
			fmt.Sprintf("Unknown attribution model: %s", model), ErrUnknownAttributionMdl)
	}

	if cached := f.cachedResult(ctx, conversionID, model); cached != nil {
		return cached, nil
	}

	conversion, err := f.conversionRepo.ByID(ctx, conversionID)
	if err != nil {
		return nil, NewBusinessError("CONVERSION_LOOKUP_FAILED", "Failed to lookup conversion", err)
	}
	if conversion == nil {
		return nil, ErrConversionNotFound
	}

	converting, err := f.clickRepo.ByClickID(ctx, conversion.ClickID)
	if err != nil {
		return nil, NewBusinessError("CLICK_LOOKUP_FAILED", "Failed to lookup converting click", err)
	}
	if converting == nil {
		return nil, ErrClickNotFound
	}

	path, err := f.clickRepo.ByFingerprint(ctx, converting.SessionID, converting.UAHash)
	if err != nil {
		return nil, NewBusinessError("PATH_QUERY_FAILED", "Failed to load attribution path", err)
	}
	// Clicks after the conversion cannot have caused it
	path = lo.Filter(path, func(c *models.Click, _ int) bool {
		return !c.CreatedAt.After(conversion.CreatedAt)
	})
	if len(path) == 0 {
		return nil, ErrEmptyAttributionPath
	}

	result := &AttributionResult{
		ConversionID: conversionID,
		Model:        model,
		Touchpoints:  f.weigh(path, model, conversion.CreatedAt),
	}
	switch model {
	case AttributionFirstClick:
		result.CreditedClickID = path[0].ClickID
	case AttributionLastClick:
		result.CreditedClickID = path[len(path)-1].ClickID
	}

	f.cacheResult(ctx, result)
	return result, nil
}

func (f *AttributionFlowImpl) Credit(ctx context.Context, conversionID uint, model string) (string, error) {
	switch model {
	case AttributionLinear, AttributionTimeDecay:
		return "", nil
	case AttributionFirstClick:
	default:
		model = AttributionLastClick
	}

	result, err := f.ComputePath(ctx, conversionID, model)
	if err != nil {
		return "", err
	}
	return result.CreditedClickID, nil
}

// weigh distributes a unit of credit over the ordered path
func (f *AttributionFlowImpl) weigh(path []*models.Click, model string, convertedAt time.Time) []Touchpoint {
	raw := make([]float64, len(path))
	switch model {
	case AttributionFirstClick:
		raw[0] = 1
	case AttributionLastClick:
		raw[len(raw)-1] = 1
	case AttributionLinear:
		for i := range raw {
			raw[i] = 1
		}
	case AttributionTimeDecay:
		for i, c := range path {
			age := convertedAt.Sub(c.CreatedAt)
			raw[i] = math.Pow(0.5, age.Seconds()/f.cfg.HalfLife.Seconds())
		}
	}
	total := lo.Sum(raw)
	if total == 0 {
		total = 1
	}

	return lo.Map(path, func(c *models.Click, i int) Touchpoint {
		return Touchpoint{
			ClickID:     c.ClickID,
			AffiliateID: c.AffiliateID,
			Weight:      raw[i] / total,
			OccurredAt:  c.CreatedAt,
		}
	})
}

func attributionCacheKey(conversionID uint, model string) string {
	return fmt.Sprintf("affiliate:attribution:%d:%s", conversionID, model)
}

func (f *AttributionFlowImpl) cachedResult(ctx context.Context, conversionID uint, model string) *AttributionResult {
	if f.cache == nil || f.cfg.CacheTTL <= 0 {
		return nil
	}
	raw, err := f.cache.Get(ctx, attributionCacheKey(conversionID, model)).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("attribution cache read failed conversion_id=%d: %v", conversionID, err)
		}
		return nil
	}
	var result AttributionResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Printf("attribution cache entry corrupt conversion_id=%d: %v", conversionID, err)
		return nil
	}
	return &result
}

// cacheResult is best-effort: a cache write failure never fails the request
func (f *AttributionFlowImpl) cacheResult(ctx context.Context, result *AttributionResult) {
	if f.cache == nil || f.cfg.CacheTTL <= 0 {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return
	}
	key := attributionCacheKey(result.ConversionID, result.Model)
	if err := f.cache.Set(ctx, key, raw, f.cfg.CacheTTL).Err(); err != nil {
		log.Printf("attribution cache write failed conversion_id=%d: %v", result.ConversionID, err)
	}
}
