package tests

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/clickforge/affiliate-tracker/app/scheduler"
	"github.com/clickforge/affiliate-tracker/app/services"
	businessflow "github.com/clickforge/affiliate-tracker/business_flow"
	"github.com/clickforge/affiliate-tracker/models"
	"github.com/clickforge/affiliate-tracker/repository"
	testingutil "github.com/clickforge/affiliate-tracker/testing"
	"github.com/clickforge/affiliate-tracker/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFraudCheckHandler(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		clickRepo := repository.NewClickRepository(testDB.DB)
		fraudLogRepo := repository.NewFraudLogRepository(testDB.DB)
		blacklistRepo := repository.NewIPBlacklistRepository(testDB.DB)
		offerRepo := repository.NewOfferRepository(testDB.DB)
		engine := businessflow.NewFraudEngine(clickRepo, blacklistRepo, offerRepo, 3)
		handler := scheduler.NewFraudCheckHandler(clickRepo, fraudLogRepo, engine, services.NewNoopFraudEventPublisher())

		advertiser, err := fixtures.CreateTestAdvertiser("adv-secret")
		require.NoError(t, err)
		offer, err := fixtures.CreateTestOffer(advertiser.ID, "")
		require.NoError(t, err)
		affiliate, err := fixtures.CreateTestAffiliate("aff-secret")
		require.NoError(t, err)

		t.Run("FlagsBurstMissedBySyncPass", func(t *testing.T) {
			// Six clicks from one IP inside a minute, distinct fingerprints.
			// The recheck of the newest click sees the full burst.
			anchor := utils.UTCNow().Truncate(time.Second)
			ip := "172.20.0.1"
			var newest *models.Click
			for i := 0; i < 6; i++ {
				ua := fmt.Sprintf("RecheckAgent/%d", i)
				click := &models.Click{
					ClickID:     utils.GenerateClickID(),
					OfferID:     offer.ID,
					AffiliateID: affiliate.ID,
					SessionID:   utils.GenerateSessionID(),
					IP:          ip,
					UserAgent:   ua,
					UAHash:      utils.HashUserAgent(ua),
					CreatedAt:   anchor.Add(time.Duration(i-5) * time.Second),
				}
				require.NoError(t, testDB.DB.Create(click).Error)
				newest = click
			}

			job := &services.Job{Name: utils.JobFraudCheck, Data: map[string]string{"click_id": newest.ClickID}}
			require.NoError(t, handler.Handle(ctx, job))

			logs, err := fraudLogRepo.ByClickID(ctx, newest.ClickID)
			require.NoError(t, err)
			require.Len(t, logs, 1)
			assert.Equal(t, models.FraudTypeFastClicks, logs[0].FraudType)

			// Re-running the job must not double-flag
			require.NoError(t, handler.Handle(ctx, job))
			logs, err = fraudLogRepo.ByClickID(ctx, newest.ClickID)
			require.NoError(t, err)
			assert.Len(t, logs, 1)
		})

		t.Run("CleanClickLeavesNoLog", func(t *testing.T) {
			click, err := fixtures.CreateTestClick(offer.ID, affiliate.ID, "172.20.0.2", utils.UTCNow())
			require.NoError(t, err)

			job := &services.Job{Name: utils.JobFraudCheck, Data: map[string]string{"click_id": click.ClickID}}
			require.NoError(t, handler.Handle(ctx, job))

			logs, err := fraudLogRepo.ByClickID(ctx, click.ClickID)
			require.NoError(t, err)
			assert.Empty(t, logs)
		})

		t.Run("MissingClickDropped", func(t *testing.T) {
			job := &services.Job{Name: utils.JobFraudCheck, Data: map[string]string{"click_id": "purged-click"}}
			assert.NoError(t, handler.Handle(ctx, job))
		})

		t.Run("MissingClickIDDropped", func(t *testing.T) {
			job := &services.Job{Name: utils.JobFraudCheck, Data: map[string]string{}}
			assert.NoError(t, handler.Handle(ctx, job))
		})

		return nil
	})
	require.NoError(t, err)
}

func TestPostbackConfirmHandler(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)
		ctx := testingutil.CreateTestContext()

		conversionRepo := repository.NewConversionRepository(testDB.DB)
		advertiserRepo := repository.NewAdvertiserRepository(testDB.DB)
		clickRepo := repository.NewClickRepository(testDB.DB)
		signer := services.NewSigner()
		attribution := businessflow.NewAttributionFlow(conversionRepo, clickRepo, nil,
			businessflow.AttributionFlowConfig{})

		setup := func(postbackURL string) (*models.Advertiser, *models.Conversion) {
			advertiser, err := fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			if postbackURL != "" {
				advertiser.PostbackURL = utils.ToPtr(postbackURL)
				require.NoError(t, testDB.DB.Save(advertiser).Error)
			}
			offer, err := fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			click, err := fixtures.CreateTestClick(offer.ID, affiliate.ID, "172.21.0.1", utils.UTCNow())
			require.NoError(t, err)
			conversion, err := fixtures.CreateTestConversion(click, advertiser.ID, utils.GenerateClickID())
			require.NoError(t, err)
			return advertiser, conversion
		}

		t.Run("ConfirmsOnAcknowledgement", func(t *testing.T) {
			client := services.NewMockPostbackClient()
			handler := scheduler.NewPostbackConfirmHandler(conversionRepo, advertiserRepo, signer, client, attribution)
			advertiser, conversion := setup("https://advertiser.example.com/confirm")

			job := &services.Job{
				Name: utils.JobPostbackConfirm,
				Data: map[string]string{"conversion_id": fmt.Sprintf("%d", conversion.ID)},
			}
			require.NoError(t, handler.Handle(ctx, job))

			require.Len(t, client.Sent, 1)
			assert.Equal(t, "https://advertiser.example.com/confirm", client.URLs[0])

			params := client.Sent[0]
			assert.Equal(t, conversion.ClickID, params["click_id"])
			assert.Equal(t, conversion.TransactionID, params["transaction_id"])
			assert.Equal(t, "1.50", params["payout"])
			assert.Equal(t, "3.00", params["revenue"])
			assert.Equal(t, models.ConversionStatusPending, params["status"])

			// The signature covers every parameter sent alongside it
			sig := params["sig"]
			fields := map[string]string{}
			for k, v := range params {
				if k != "sig" {
					fields[k] = v
				}
			}
			assert.True(t, signer.Verify(fields, sig, advertiser.APISecret))

			updated, err := conversionRepo.ByID(ctx, conversion.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversionStatusConfirmed, updated.Status)

			// A redelivered job finds the conversion confirmed and sends nothing
			require.NoError(t, handler.Handle(ctx, job))
			assert.Len(t, client.Sent, 1)
		})

		t.Run("ErrorStatusLeavesPending", func(t *testing.T) {
			client := services.NewMockPostbackClient()
			client.StatusCode = http.StatusInternalServerError
			handler := scheduler.NewPostbackConfirmHandler(conversionRepo, advertiserRepo, signer, client, attribution)
			_, conversion := setup("https://advertiser.example.com/confirm")

			job := &services.Job{
				Name: utils.JobPostbackConfirm,
				Data: map[string]string{"conversion_id": fmt.Sprintf("%d", conversion.ID)},
			}
			require.Error(t, handler.Handle(ctx, job))

			updated, err := conversionRepo.ByID(ctx, conversion.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversionStatusPending, updated.Status)
		})

		t.Run("NoPostbackURLSkips", func(t *testing.T) {
			client := services.NewMockPostbackClient()
			handler := scheduler.NewPostbackConfirmHandler(conversionRepo, advertiserRepo, signer, client, attribution)
			_, conversion := setup("")

			job := &services.Job{
				Name: utils.JobPostbackConfirm,
				Data: map[string]string{"conversion_id": fmt.Sprintf("%d", conversion.ID)},
			}
			require.NoError(t, handler.Handle(ctx, job))

			assert.Empty(t, client.Sent)
			updated, err := conversionRepo.ByID(ctx, conversion.ID)
			require.NoError(t, err)
			assert.Equal(t, models.ConversionStatusPending, updated.Status)
		})

		t.Run("AlreadyConfirmedSkips", func(t *testing.T) {
			client := services.NewMockPostbackClient()
			handler := scheduler.NewPostbackConfirmHandler(conversionRepo, advertiserRepo, signer, client, attribution)
			_, conversion := setup("https://advertiser.example.com/confirm")

			require.NoError(t, conversionRepo.UpdateStatus(ctx, conversion.ID, models.ConversionStatusConfirmed))

			job := &services.Job{
				Name: utils.JobPostbackConfirm,
				Data: map[string]string{"conversion_id": fmt.Sprintf("%d", conversion.ID)},
			}
			require.NoError(t, handler.Handle(ctx, job))
			assert.Empty(t, client.Sent)
		})

		t.Run("BadConversionIDDropped", func(t *testing.T) {
			client := services.NewMockPostbackClient()
			handler := scheduler.NewPostbackConfirmHandler(conversionRepo, advertiserRepo, signer, client, attribution)

			job := &services.Job{
				Name: utils.JobPostbackConfirm,
				Data: map[string]string{"conversion_id": "not-a-number"},
			}
			assert.NoError(t, handler.Handle(ctx, job))
			assert.Empty(t, client.Sent)
		})

		return nil
	})
	require.NoError(t, err)
}
