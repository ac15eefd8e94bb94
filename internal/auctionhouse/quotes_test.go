package auctionhouse

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func listCommodity(t *testing.T, env *testEnv, seller snowflake.ID, itemID int32, count int32, unitPrice int64) {
	t.Helper()
	env.ledger.Credit(seller, 1_000_000)
	result := env.house.SellCommodity(seller, []*ItemInstance{commodityStack(itemID, "Heavy Leather", count)}, unitPrice, 24*time.Hour, 0)
	require.Equal(t, ResultOk, result)
}

func TestCreateCommodityQuote(t *testing.T) {
	seller := snowflake.ID(1)
	buyer := snowflake.ID(2)

	t.Run("prices cheapest stock first", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 5, 100)
		listCommodity(t, env, seller, 4234, 5, 120)

		quote := env.house.CreateCommodityQuote(buyer, 4234, 7)
		require.NotNil(t, quote)
		assert.Equal(t, int64(5*100+2*120), quote.TotalPrice)
	})

	t.Run("insufficient stock", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 5, 100)
		assert.Nil(t, env.house.CreateCommodityQuote(buyer, 4234, 20))
	})

	t.Run("unknown item", func(t *testing.T) {
		env := newTestEnv()
		assert.Nil(t, env.house.CreateCommodityQuote(buyer, 9999, 1))
	})

	t.Run("new quote replaces previous", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 10, 100)

		first := env.house.CreateCommodityQuote(buyer, 4234, 2)
		require.NotNil(t, first)
		second := env.house.CreateCommodityQuote(buyer, 4234, 5)
		require.NotNil(t, second)
		assert.Equal(t, second, env.house.CommodityQuote(buyer))
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 10, 100)
		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 2))
		env.house.CancelCommodityQuote(buyer)
		env.house.CancelCommodityQuote(buyer)
		assert.Nil(t, env.house.CommodityQuote(buyer))
	})
}

func TestBuyCommodity(t *testing.T) {
	seller := snowflake.ID(1)
	buyer := snowflake.ID(2)

	t.Run("full purchase consumes posting", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 5, 100)

		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 5))
		env.ledger.Credit(buyer, 500)

		require.Equal(t, ResultOk, env.house.BuyCommodity(buyer, 4234, 5, 0))
		assert.Equal(t, int64(0), env.ledger.Balance(buyer))
		assert.Equal(t, 0, env.house.Index().Len())

		delivery := env.mailer.byType(MailCommodityDelivery)
		require.Len(t, delivery, 1)
		assert.Equal(t, buyer, delivery[0].Receiver)

		// Seller nets 500 less the 5% cut, plus the 150 deposit back.
		sold := env.mailer.byType(MailSold)
		require.Len(t, sold, 1)
		assert.Equal(t, seller, sold[0].Receiver)
		assert.Equal(t, int64(475+150), sold[0].Money)
	})

	t.Run("partial purchase splits stock", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 10, 100)

		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 4))
		env.ledger.Credit(buyer, 400)

		require.Equal(t, ResultOk, env.house.BuyCommodity(buyer, 4234, 4, 0))

		bucket := env.house.Index().Bucket(BucketKey{ItemID: 4234})
		require.NotNil(t, bucket)
		assert.Equal(t, int64(6), bucket.TotalQuantity())

		// Partial sales do not release the deposit.
		sold := env.mailer.byType(MailSold)
		require.Len(t, sold, 1)
		assert.Equal(t, int64(400-20), sold[0].Money)
	})

	t.Run("quote consumed by failed attempt", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 5, 100)

		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 5))
		// No funds: purchase fails after the quote is consumed.
		assert.Equal(t, ResultNotEnoughMoney, env.house.BuyCommodity(buyer, 4234, 5, 0))
		assert.Nil(t, env.house.CommodityQuote(buyer))
		assert.Equal(t, ResultCommodityPurchaseFailed, env.house.BuyCommodity(buyer, 4234, 5, 0))
	})

	t.Run("mismatched quantity fails", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 10, 100)
		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 4))
		assert.Equal(t, ResultCommodityPurchaseFailed, env.house.BuyCommodity(buyer, 4234, 5, 0))
	})

	t.Run("expired quote fails", func(t *testing.T) {
		env := newTestEnv()
		listCommodity(t, env, seller, 4234, 5, 100)
		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 5))
		env.ledger.Credit(buyer, 500)
		env.clock.advance(time.Minute)
		assert.Equal(t, ResultCommodityPurchaseFailed, env.house.BuyCommodity(buyer, 4234, 5, 0))
	})

	t.Run("price moved under the quote fails", func(t *testing.T) {
		env := newTestEnv()
		sellerB := snowflake.ID(3)
		listCommodity(t, env, seller, 4234, 5, 100)
		require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 5))
		env.ledger.Credit(buyer, 500)

		// Cheaper stock arrives between quote and purchase.
		listCommodity(t, env, sellerB, 4234, 5, 50)
		assert.Equal(t, ResultCommodityPurchaseFailed, env.house.BuyCommodity(buyer, 4234, 5, 0))
		// Buyer keeps their money.
		assert.Equal(t, int64(500), env.ledger.Balance(buyer))
	})

	t.Run("two buyers race the same stock", func(t *testing.T) {
		env := newTestEnv()
		buyerX := snowflake.ID(10)
		buyerY := snowflake.ID(11)
		listCommodity(t, env, seller, 4234, 5, 100)

		require.NotNil(t, env.house.CreateCommodityQuote(buyerX, 4234, 5))
		require.NotNil(t, env.house.CreateCommodityQuote(buyerY, 4234, 5))
		env.ledger.Credit(buyerX, 500)
		env.ledger.Credit(buyerY, 500)

		require.Equal(t, ResultOk, env.house.BuyCommodity(buyerX, 4234, 5, 0))
		// Y's quote no longer matches live stock; nothing is charged.
		assert.Equal(t, ResultCommodityPurchaseFailed, env.house.BuyCommodity(buyerY, 4234, 5, 0))
		assert.Equal(t, int64(500), env.ledger.Balance(buyerY))
	})
}

func TestSplitItems(t *testing.T) {
	p := &AuctionPosting{
		Items: []*ItemInstance{
			commodityStack(4234, "Heavy Leather", 10),
			commodityStack(4234, "Heavy Leather", 10),
		},
	}

	taken := p.splitItems(14)
	var takenCount int64
	for _, item := range taken {
		takenCount += int64(item.Count)
	}
	assert.Equal(t, int64(14), takenCount)
	assert.Equal(t, int64(6), p.TotalItemCount())
}
