package tests

import (
	"fmt"
	"testing"

	"github.com/clickforge/affiliate-tracker/app/dto"
	"github.com/clickforge/affiliate-tracker/app/services"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
	testingutil "github.com/clickforge/affiliate-tracker/testing"
	"github.com/clickforge/affiliate-tracker/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackClick(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		offerRepo := repository.NewOfferRepository(testDB.DB)
		affiliateRepo := repository.NewAffiliateRepository(testDB.DB)
		clickRepo := repository.NewClickRepository(testDB.DB)
		fraudLogRepo := repository.NewFraudLogRepository(testDB.DB)
		blacklistRepo := repository.NewIPBlacklistRepository(testDB.DB)

		signer := services.NewSigner()
		geoIP := services.NewMockGeoIPService("US")
		queue := services.NewInMemoryQueueService()
		fraudEvents := services.NewNoopFraudEventPublisher()
		engine := businessflow.NewFraudEngine(clickRepo, blacklistRepo, offerRepo, 3)

		clickFlow := businessflow.NewClickFlow(
			offerRepo,
			affiliateRepo,
			clickRepo,
			fraudLogRepo,
			engine,
			signer,
			geoIP,
			queue,
			fraudEvents,
			businessflow.ClickFlowConfig{FraudEnabled: true, RecheckDelaySeconds: 60},
		)

		advertiser, err := fixtures.CreateTestAdvertiser("adv-secret")
		require.NoError(t, err)
		offer, err := fixtures.CreateTestOffer(advertiser.ID, "")
		require.NoError(t, err)
		affiliate, err := fixtures.CreateTestAffiliate("aff-secret")
		require.NoError(t, err)

		browserUA := "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

		t.Run("SuccessfulTrack", func(t *testing.T) {
			queue.Jobs = nil
			metadata := businessflow.NewClientMetadata("172.16.0.1", browserUA)
			metadata.SetReferrer("https://publisher.example.com/page")

			result, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: affiliate.ID,
				Sub1:        "campaign-a",
			}, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.NotEmpty(t, result.ClickID)
			assert.Equal(t, offer.LandingPageURL, result.RedirectURL)
			assert.False(t, result.FraudFlag)

			// Click persisted with the request attributes
			click, err := clickRepo.ByClickID(ctx, result.ClickID)
			require.NoError(t, err)
			require.NotNil(t, click)
			assert.Equal(t, offer.ID, click.OfferID)
			assert.Equal(t, affiliate.ID, click.AffiliateID)
			assert.Equal(t, "172.16.0.1", click.IP)
			assert.Equal(t, "US", click.Country)
			require.NotNil(t, click.Sub1)
			assert.Equal(t, "campaign-a", *click.Sub1)
			require.NotNil(t, click.Referrer)
			assert.Equal(t, "https://publisher.example.com/page", *click.Referrer)
			assert.NotEmpty(t, click.SessionID)

			// Counter bumped and recheck scheduled
			updated, err := affiliateRepo.ByID(ctx, affiliate.ID)
			require.NoError(t, err)
			assert.Equal(t, int64(1), updated.TotalClicks)

			require.Len(t, queue.Jobs, 1)
			assert.Equal(t, utils.JobFraudCheck, queue.Jobs[0].Name)
			assert.Equal(t, result.ClickID, queue.Jobs[0].Data["click_id"])
		})

		t.Run("ClientSuppliedClickIDKept", func(t *testing.T) {
			metadata := businessflow.NewClientMetadata("172.16.0.2", browserUA)

			result, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: affiliate.ID,
				ClickID:     "partner-click-001",
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, "partner-click-001", result.ClickID)
		})

		t.Run("OfferNotFound", func(t *testing.T) {
			metadata := businessflow.NewClientMetadata("172.16.0.3", browserUA)

			_, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     99999,
				AffiliateID: affiliate.ID,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsOfferNotFound(err))
		})

		t.Run("AffiliateNotFound", func(t *testing.T) {
			metadata := businessflow.NewClientMetadata("172.16.0.4", browserUA)

			_, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: 99999,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsAffiliateNotFound(err))
		})

		t.Run("ValidSignatureAccepted", func(t *testing.T) {
			metadata := businessflow.NewClientMetadata("172.16.0.5", browserUA)
			clickID := "signed-click-001"
			sig := signer.Sign(map[string]string{
				"click_id":     clickID,
				"offer_id":     fmt.Sprintf("%d", offer.ID),
				"affiliate_id": fmt.Sprintf("%d", affiliate.ID),
			}, affiliate.APISecret)

			result, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: affiliate.ID,
				ClickID:     clickID,
				Sig:         sig,
			}, metadata)
			require.NoError(t, err)
			assert.Equal(t, clickID, result.ClickID)
		})

		t.Run("InvalidSignatureRejected", func(t *testing.T) {
			metadata := businessflow.NewClientMetadata("172.16.0.6", browserUA)
			wrongSig := signer.Sign(map[string]string{
				"click_id":     "signed-click-002",
				"offer_id":     fmt.Sprintf("%d", offer.ID),
				"affiliate_id": fmt.Sprintf("%d", affiliate.ID),
			}, "not-the-affiliate-secret")

			_, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: affiliate.ID,
				ClickID:     "signed-click-002",
				Sig:         wrongSig,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidSignature(err))

			// Rejected clicks never reach storage
			click, err := clickRepo.ByClickID(ctx, "signed-click-002")
			require.NoError(t, err)
			assert.Nil(t, click)
		})

		t.Run("SignatureRequiresAffiliateSecret", func(t *testing.T) {
			noSecret, err := fixtures.CreateTestAffiliate("")
			require.NoError(t, err)

			metadata := businessflow.NewClientMetadata("172.16.0.7", browserUA)
			sig := signer.Sign(map[string]string{
				"click_id":     "signed-click-003",
				"offer_id":     fmt.Sprintf("%d", offer.ID),
				"affiliate_id": fmt.Sprintf("%d", noSecret.ID),
			}, "")

			_, err = clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: noSecret.ID,
				ClickID:     "signed-click-003",
				Sig:         sig,
			}, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidSignature(err))
		})

		t.Run("FlaggedClickStillTracked", func(t *testing.T) {
			queue.Jobs = nil
			metadata := businessflow.NewClientMetadata("172.16.0.8", "curl/7.88.1")

			result, err := clickFlow.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: affiliate.ID,
			}, metadata)
			require.NoError(t, err)
			assert.True(t, result.FraudFlag)
			assert.Equal(t, models.FraudTypeBotTraffic, result.FraudType)
			assert.Equal(t, models.FraudSeverityHigh, result.FraudSeverity)
			assert.Equal(t, offer.LandingPageURL, result.RedirectURL)

			click, err := clickRepo.ByClickID(ctx, result.ClickID)
			require.NoError(t, err)
			require.NotNil(t, click)

			logs, err := fraudLogRepo.ByClickID(ctx, result.ClickID)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, models.FraudTypeBotTraffic, logs[0].FraudType)

			require.Len(t, queue.Jobs, 1)
		})

		t.Run("RecheckDisabledSkipsEnqueue", func(t *testing.T) {
			quiet := businessflow.NewClickFlow(
				offerRepo,
				affiliateRepo,
				clickRepo,
				fraudLogRepo,
				engine,
				signer,
				geoIP,
				queue,
				fraudEvents,
				businessflow.ClickFlowConfig{FraudEnabled: false},
			)

			queue.Jobs = nil
			metadata := businessflow.NewClientMetadata("172.16.0.9", browserUA)

			_, err := quiet.Track(ctx, &dto.TrackClickRequest{
				OfferID:     offer.ID,
				AffiliateID: affiliate.ID,
			}, metadata)
			require.NoError(t, err)
			assert.Empty(t, queue.Jobs)
		})

		return nil
	})
	require.NoError(t, err)
}
