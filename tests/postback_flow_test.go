package tests

import (
	"fmt"
	"net/http"
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

// postbackTestEnv wires a postback flow against real repositories
type postbackTestEnv struct {
	flow            businessflow.PostbackFlow
	signer          services.Signer
	queue           *services.InMemoryQueueService
	clickRepo       repository.ClickRepository
	conversionRepo  repository.ConversionRepository
	postbackLogRepo repository.PostbackLogRepository
	fixtures        *testingutil.TestFixtures
}

func newPostbackTestEnv(testDB *testingutil.TestDB, failOpen bool) *postbackTestEnv {
	env := &postbackTestEnv{
		signer:          services.NewSigner(),
		queue:           services.NewInMemoryQueueService(),
		clickRepo:       repository.NewClickRepository(testDB.DB),
		conversionRepo:  repository.NewConversionRepository(testDB.DB),
		postbackLogRepo: repository.NewPostbackLogRepository(testDB.DB),
		fixtures:        testingutil.NewTestFixtures(testDB),
	}
	env.flow = businessflow.NewPostbackFlow(
		env.clickRepo,
		repository.NewOfferRepository(testDB.DB),
		repository.NewAdvertiserRepository(testDB.DB),
		env.conversionRepo,
		env.postbackLogRepo,
		env.signer,
		env.queue,
		businessflow.PostbackFlowConfig{IPFailOpen: failOpen},
	)
	return env
}

// signedRequest builds a postback request carrying a valid signature
func (env *postbackTestEnv) signedRequest(clickID, transactionID, secret string) *dto.PostbackRequest {
	return &dto.PostbackRequest{
		ClickID:       clickID,
		TransactionID: transactionID,
		Payout:        1.25,
		Revenue:       4.00,
		Sig: env.signer.Sign(map[string]string{
			"click_id":       clickID,
			"transaction_id": transactionID,
		}, secret),
	}
}

func TestHandlePostback(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		env := newPostbackTestEnv(testDB, true)
		ctx := testingutil.CreateTestContext()

		advertiser, err := env.fixtures.CreateTestAdvertiser("adv-secret")
		require.NoError(t, err)
		advertiser.PostbackURL = utils.ToPtr("https://advertiser.example.com/confirm")
		require.NoError(t, testDB.DB.Save(advertiser).Error)

		offer, err := env.fixtures.CreateTestOffer(advertiser.ID, "")
		require.NoError(t, err)
		affiliate, err := env.fixtures.CreateTestAffiliate("aff-secret")
		require.NoError(t, err)

		t.Run("SuccessfulConversion", func(t *testing.T) {
			env.queue.Jobs = nil
			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.0.1", utils.UTCNow())
			require.NoError(t, err)

			req := env.signedRequest(click.ClickID, "tx-ok-1", advertiser.APISecret)
			req.AdvertiserRefID = "order-555"
			metadata := businessflow.NewClientMetadata("198.18.0.100", "AdvertiserServer/1.0")

			result, err := env.flow.Handle(ctx, req, metadata)
			require.NoError(t, err)
			require.NotNil(t, result)
			assert.Equal(t, models.PostbackStatusSuccess, result.Status)
			assert.Equal(t, http.StatusOK, result.HTTPStatus)
			assert.False(t, result.Duplicate)
			require.NotNil(t, result.ConversionID)

			conversion, err := env.conversionRepo.ByID(ctx, *result.ConversionID)
			require.NoError(t, err)
			require.NotNil(t, conversion)
			assert.Equal(t, click.ClickID, conversion.ClickID)
			assert.Equal(t, "tx-ok-1", conversion.TransactionID)
			assert.Equal(t, models.ConversionStatusPending, conversion.Status)
			assert.InDelta(t, 1.25, conversion.Payout, 0.001)
			assert.InDelta(t, 4.00, conversion.Revenue, 0.001)
			require.NotNil(t, conversion.AdvertiserRefID)
			assert.Equal(t, "order-555", *conversion.AdvertiserRefID)

			// Click flipped to converted
			updated, err := env.clickRepo.ByClickID(ctx, click.ClickID)
			require.NoError(t, err)
			assert.True(t, updated.Converted)
			require.NotNil(t, updated.ConversionID)
			assert.Equal(t, conversion.ID, *updated.ConversionID)

			// Outbound confirmation scheduled because the advertiser has a
			// postback URL
			require.Len(t, env.queue.Jobs, 1)
			assert.Equal(t, utils.JobPostbackConfirm, env.queue.Jobs[0].Name)

			// Audit row written
			var logs []models.PostbackLog
			require.NoError(t, testDB.DB.Where("click_id = ?", click.ClickID).Find(&logs).Error)
			require.Len(t, logs, 1)
			assert.Equal(t, models.PostbackStatusSuccess, logs[0].Status)
			assert.Equal(t, http.StatusOK, logs[0].ResponseStatus)
		})

		t.Run("DuplicateTransaction", func(t *testing.T) {
			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.0.2", utils.UTCNow())
			require.NoError(t, err)

			req := env.signedRequest(click.ClickID, "tx-dup-1", advertiser.APISecret)
			metadata := businessflow.NewClientMetadata("198.18.0.100", "AdvertiserServer/1.0")

			first, err := env.flow.Handle(ctx, req, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.PostbackStatusSuccess, first.Status)

			second, err := env.flow.Handle(ctx, req, metadata)
			require.NoError(t, err)
			assert.Equal(t, models.PostbackStatusDuplicate, second.Status)
			assert.True(t, second.Duplicate)
			assert.Equal(t, http.StatusOK, second.HTTPStatus)
			require.NotNil(t, second.ConversionID)
			assert.Equal(t, *first.ConversionID, *second.ConversionID)

			// Still exactly one conversion row
			var count int64
			require.NoError(t, testDB.DB.Model(&models.Conversion{}).
				Where("click_id = ? AND transaction_id = ?", click.ClickID, "tx-dup-1").
				Count(&count).Error)
			assert.Equal(t, int64(1), count)
		})

		t.Run("SameClickNewTransactionAccepted", func(t *testing.T) {
			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.0.3", utils.UTCNow())
			require.NoError(t, err)
			metadata := businessflow.NewClientMetadata("198.18.0.100", "AdvertiserServer/1.0")

			first, err := env.flow.Handle(ctx, env.signedRequest(click.ClickID, "tx-a", advertiser.APISecret), metadata)
			require.NoError(t, err)
			assert.Equal(t, models.PostbackStatusSuccess, first.Status)

			second, err := env.flow.Handle(ctx, env.signedRequest(click.ClickID, "tx-b", advertiser.APISecret), metadata)
			require.NoError(t, err)
			assert.Equal(t, models.PostbackStatusSuccess, second.Status)
			assert.False(t, second.Duplicate)
		})

		t.Run("UnknownClickRejected", func(t *testing.T) {
			metadata := businessflow.NewClientMetadata("198.18.0.100", "AdvertiserServer/1.0")
			req := env.signedRequest("no-such-click", "tx-missing-1", advertiser.APISecret)

			result, err := env.flow.Handle(ctx, req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsClickNotFound(err))
			require.NotNil(t, result)
			assert.Equal(t, models.PostbackStatusFailed, result.Status)
			assert.Equal(t, http.StatusBadRequest, result.HTTPStatus)

			// The failed attempt is still audited
			var logs []models.PostbackLog
			require.NoError(t, testDB.DB.Where("click_id = ?", "no-such-click").Find(&logs).Error)
			require.Len(t, logs, 1)
			assert.Equal(t, models.PostbackStatusFailed, logs[0].Status)
		})

		t.Run("InvalidSignatureRejected", func(t *testing.T) {
			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.0.4", utils.UTCNow())
			require.NoError(t, err)

			req := env.signedRequest(click.ClickID, "tx-badsig-1", "wrong-secret")
			metadata := businessflow.NewClientMetadata("198.18.0.100", "AdvertiserServer/1.0")

			result, err := env.flow.Handle(ctx, req, metadata)
			require.Error(t, err)
			assert.True(t, businessflow.IsInvalidSignature(err))
			require.NotNil(t, result)
			assert.Equal(t, models.PostbackStatusRejected, result.Status)
			assert.Equal(t, http.StatusForbidden, result.HTTPStatus)

			// No conversion was created
			conversion, err := env.conversionRepo.ByClickAndTransaction(ctx, click.ClickID, "tx-badsig-1")
			require.NoError(t, err)
			assert.Nil(t, conversion)
		})

		return nil
	})
	require.NoError(t, err)
}

func TestPostbackIPWhitelist(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		ctx := testingutil.CreateTestContext()

		t.Run("ExactEntryMatch", func(t *testing.T) {
			env := newPostbackTestEnv(testDB, true)
			advertiser, err := env.fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			offer, err := env.fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := env.fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestWhitelistEntry(advertiser.ID, "10.0.0.1")
			require.NoError(t, err)

			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.1.1", utils.UTCNow())
			require.NoError(t, err)

			result, err := env.flow.Handle(ctx,
				env.signedRequest(click.ClickID, "tx-wl-1", advertiser.APISecret),
				businessflow.NewClientMetadata("10.0.0.1", "AdvertiserServer/1.0"))
			require.NoError(t, err)
			assert.Equal(t, models.PostbackStatusSuccess, result.Status)

			click2, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.1.2", utils.UTCNow())
			require.NoError(t, err)

			result, err = env.flow.Handle(ctx,
				env.signedRequest(click2.ClickID, "tx-wl-2", advertiser.APISecret),
				businessflow.NewClientMetadata("10.0.0.2", "AdvertiserServer/1.0"))
			require.Error(t, err)
			assert.True(t, businessflow.IsIPNotWhitelisted(err))
			require.NotNil(t, result)
			assert.Equal(t, models.PostbackStatusRejected, result.Status)
			assert.Equal(t, http.StatusForbidden, result.HTTPStatus)

			// Rejection audited, no conversion
			var logs []models.PostbackLog
			require.NoError(t, testDB.DB.Where("click_id = ?", click2.ClickID).Find(&logs).Error)
			require.Len(t, logs, 1)
			assert.Equal(t, models.PostbackStatusRejected, logs[0].Status)

			conversion, err := env.conversionRepo.ByClickAndTransaction(ctx, click2.ClickID, "tx-wl-2")
			require.NoError(t, err)
			assert.Nil(t, conversion)
		})

		t.Run("RangeEndpointsInclusive", func(t *testing.T) {
			env := newPostbackTestEnv(testDB, true)
			advertiser, err := env.fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			offer, err := env.fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := env.fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			_, err = env.fixtures.CreateTestWhitelistRange(advertiser.ID, "10.0.0.5", "10.0.0.10")
			require.NoError(t, err)

			for i, tc := range []struct {
				ip      string
				allowed bool
			}{
				{"10.0.0.5", true},
				{"10.0.0.7", true},
				{"10.0.0.10", true},
				{"10.0.0.4", false},
				{"10.0.0.11", false},
			} {
				click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.2.1", utils.UTCNow())
				require.NoError(t, err)

				req := env.signedRequest(click.ClickID, fmt.Sprintf("tx-range-%d", i), advertiser.APISecret)
				result, err := env.flow.Handle(ctx, req,
					businessflow.NewClientMetadata(tc.ip, "AdvertiserServer/1.0"))

				if tc.allowed {
					require.NoError(t, err, "ip %s", tc.ip)
					assert.Equal(t, models.PostbackStatusSuccess, result.Status, "ip %s", tc.ip)
				} else {
					require.Error(t, err, "ip %s", tc.ip)
					assert.True(t, businessflow.IsIPNotWhitelisted(err), "ip %s", tc.ip)
				}
			}
		})

		t.Run("NoEntriesFailOpen", func(t *testing.T) {
			env := newPostbackTestEnv(testDB, true)
			advertiser, err := env.fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			offer, err := env.fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := env.fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.3.1", utils.UTCNow())
			require.NoError(t, err)

			result, err := env.flow.Handle(ctx,
				env.signedRequest(click.ClickID, "tx-open-1", advertiser.APISecret),
				businessflow.NewClientMetadata("203.0.113.77", "AdvertiserServer/1.0"))
			require.NoError(t, err)
			assert.Equal(t, models.PostbackStatusSuccess, result.Status)
		})

		t.Run("NoEntriesFailClosed", func(t *testing.T) {
			env := newPostbackTestEnv(testDB, false)
			advertiser, err := env.fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			offer, err := env.fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := env.fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			click, err := env.fixtures.CreateTestClick(offer.ID, affiliate.ID, "198.18.3.2", utils.UTCNow())
			require.NoError(t, err)

			result, err := env.flow.Handle(ctx,
				env.signedRequest(click.ClickID, "tx-closed-1", advertiser.APISecret),
				businessflow.NewClientMetadata("203.0.113.78", "AdvertiserServer/1.0"))
			require.Error(t, err)
			assert.True(t, businessflow.IsIPNotWhitelisted(err))
			require.NotNil(t, result)
			assert.Equal(t, models.PostbackStatusRejected, result.Status)
		})

		return nil
	})
	require.NoError(t, err)
}
