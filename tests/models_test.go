// Package tests contains test cases for models and repository packages to avoid circular imports
package tests

import (
	"testing"

	"github.com/clickforge/affiliate-tracker/models"
	testingutil "github.com/clickforge/affiliate-tracker/testing"
	"github.com/clickforge/affiliate-tracker/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTableNames(t *testing.T) {
	assert.Equal(t, "advertisers", models.Advertiser{}.TableName())
	assert.Equal(t, "affiliates", models.Affiliate{}.TableName())
	assert.Equal(t, "offers", models.Offer{}.TableName())
	assert.Equal(t, "clicks", models.Click{}.TableName())
	assert.Equal(t, "conversions", models.Conversion{}.TableName())
	assert.Equal(t, "fraud_logs", models.FraudLog{}.TableName())
	assert.Equal(t, "postback_logs", models.PostbackLog{}.TableName())
	assert.Equal(t, "advertiser_ip_whitelist", models.AdvertiserIPWhitelist{}.TableName())
	assert.Equal(t, "ip_blacklist", models.IPBlacklistEntry{}.TableName())
}

func TestConversionStatusConstants(t *testing.T) {
	assert.Equal(t, "pending", models.ConversionStatusPending)
	assert.Equal(t, "confirmed", models.ConversionStatusConfirmed)
	assert.Equal(t, "rejected", models.ConversionStatusRejected)
}

func TestOfferTargeting(t *testing.T) {
	t.Run("UntargetedOfferAllowsEverything", func(t *testing.T) {
		offer := &models.Offer{AllowedCountries: ""}
		assert.Nil(t, offer.CountryList())
		assert.True(t, offer.AllowsCountry("US"))
		assert.True(t, offer.AllowsCountry(""))
	})

	t.Run("CountryListNormalized", func(t *testing.T) {
		offer := &models.Offer{AllowedCountries: " us, CA ,de,,"}
		assert.Equal(t, []string{"US", "CA", "DE"}, offer.CountryList())
	})

	t.Run("AllowsCountryCaseInsensitive", func(t *testing.T) {
		offer := &models.Offer{AllowedCountries: "US,CA"}
		assert.True(t, offer.AllowsCountry("us"))
		assert.True(t, offer.AllowsCountry(" CA "))
		assert.False(t, offer.AllowsCountry("DE"))
		assert.False(t, offer.AllowsCountry(""))
	})
}

func TestModelPersistence(t *testing.T) {
	err := testingutil.TestWithDB(func(testDB *testingutil.TestDB) error {
		fixtures := testingutil.NewTestFixtures(testDB)

		t.Run("CreateAdvertiserOfferAffiliate", func(t *testing.T) {
			advertiser, err := fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			assert.NotZero(t, advertiser.ID)
			assert.Equal(t, "post", advertiser.PostbackMethod)

			offer, err := fixtures.CreateTestOffer(advertiser.ID, "US,CA")
			require.NoError(t, err)
			assert.NotZero(t, offer.ID)
			assert.Equal(t, advertiser.ID, offer.AdvertiserID)
			assert.True(t, offer.Active)

			affiliate, err := fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			assert.NotZero(t, affiliate.ID)
			assert.Zero(t, affiliate.TotalClicks)
		})

		t.Run("CreateClickDefaults", func(t *testing.T) {
			advertiser, err := fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			offer, err := fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)

			click, err := fixtures.CreateTestClick(offer.ID, affiliate.ID, "203.0.113.10", utils.UTCNow())
			require.NoError(t, err)
			assert.NotZero(t, click.ID)
			assert.NotEmpty(t, click.ClickID)
			assert.NotEmpty(t, click.SessionID)
			assert.False(t, click.Converted)
			assert.Nil(t, click.ConversionID)
		})

		t.Run("UniqueClickTransactionPair", func(t *testing.T) {
			advertiser, err := fixtures.CreateTestAdvertiser("adv-secret")
			require.NoError(t, err)
			offer, err := fixtures.CreateTestOffer(advertiser.ID, "")
			require.NoError(t, err)
			affiliate, err := fixtures.CreateTestAffiliate("aff-secret")
			require.NoError(t, err)
			click, err := fixtures.CreateTestClick(offer.ID, affiliate.ID, "203.0.113.11", utils.UTCNow())
			require.NoError(t, err)

			_, err = fixtures.CreateTestConversion(click, advertiser.ID, "tx-unique-1")
			require.NoError(t, err)

			_, err = fixtures.CreateTestConversion(click, advertiser.ID, "tx-unique-1")
			assert.Error(t, err)

			// Same click, different transaction stays insertable
			_, err = fixtures.CreateTestConversion(click, advertiser.ID, "tx-unique-2")
			assert.NoError(t, err)
		})

		return nil
	})
	require.NoError(t, err)
}
