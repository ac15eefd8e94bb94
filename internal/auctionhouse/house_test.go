package auctionhouse

import (
	"testing"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellItemValidation(t *testing.T) {
	seller := snowflake.ID(1)

	tests := []struct {
		name    string
		item    *ItemInstance
		minBid  int64
		buyout  int64
		runTime time.Duration
		balance int64
		result  AuctionResult
	}{
		{
			name:    "invalid duration",
			item:    uniqueItem(19019, "Thunderfury", 80),
			minBid:  100,
			runTime: 3 * time.Hour,
			balance: 10_000,
			result:  ResultAuctionHouseBusy,
		},
		{
			name:    "commodity through item path",
			item:    commodityStack(4234, "Heavy Leather", 10),
			minBid:  100,
			runTime: 24 * time.Hour,
			balance: 10_000,
			result:  ResultItemNotFound,
		},
		{
			name:    "no prices at all",
			item:    uniqueItem(19019, "Thunderfury", 80),
			runTime: 24 * time.Hour,
			balance: 10_000,
			result:  ResultBidIncrement,
		},
		{
			name:    "min bid above buyout",
			item:    uniqueItem(19019, "Thunderfury", 80),
			minBid:  6000,
			buyout:  5000,
			runTime: 24 * time.Hour,
			balance: 10_000,
			result:  ResultBidIncrement,
		},
		{
			name:    "cannot cover deposit",
			item:    uniqueItem(19019, "Thunderfury", 80),
			minBid:  1000,
			buyout:  5000,
			runTime: 24 * time.Hour,
			balance: 10,
			result:  ResultNotEnoughMoney,
		},
		{
			name:    "valid listing",
			item:    uniqueItem(19019, "Thunderfury", 80),
			minBid:  1000,
			buyout:  5000,
			runTime: 24 * time.Hour,
			balance: 10_000,
			result:  ResultOk,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			env.ledger.Credit(seller, tt.balance)
			result := env.house.SellItem(seller, tt.item, tt.minBid, tt.buyout, tt.runTime, 0)
			assert.Equal(t, tt.result, result)
		})
	}
}

func TestSellItemDeposit(t *testing.T) {
	tests := []struct {
		name    string
		minBid  int64
		buyout  int64
		runTime time.Duration
		want    int64
	}{
		{name: "12h uses base multiplier", buyout: 10_000, runTime: 12 * time.Hour, want: 1500},
		{name: "24h doubles", buyout: 10_000, runTime: 24 * time.Hour, want: 3000},
		{name: "48h quadruples", buyout: 10_000, runTime: 48 * time.Hour, want: 6000},
		{name: "basis falls back to min bid", minBid: 10_000, runTime: 12 * time.Hour, want: 1500},
		{name: "floor applies", buyout: 10, runTime: 12 * time.Hour, want: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv()
			seller := snowflake.ID(1)
			env.ledger.Credit(seller, 100_000)

			require.Equal(t, ResultOk,
				env.house.SellItem(seller, uniqueItem(19019, "Thunderfury", 80), tt.minBid, tt.buyout, tt.runTime, 0))
			assert.Equal(t, int64(100_000-tt.want), env.ledger.Balance(seller))
		})
	}
}

func TestSellCommodityValidation(t *testing.T) {
	env := newTestEnv()
	seller := snowflake.ID(1)
	env.ledger.Credit(seller, 100_000)

	t.Run("unique item through commodity path", func(t *testing.T) {
		result := env.house.SellCommodity(seller, []*ItemInstance{uniqueItem(19019, "Thunderfury", 80)}, 100, 24*time.Hour, 0)
		assert.Equal(t, ResultItemNotFound, result)
	})

	t.Run("mixed item ids rejected", func(t *testing.T) {
		stacks := []*ItemInstance{
			commodityStack(4234, "Heavy Leather", 10),
			commodityStack(2319, "Medium Leather", 10),
		}
		assert.Equal(t, ResultItemNotFound, env.house.SellCommodity(seller, stacks, 100, 24*time.Hour, 0))
	})

	t.Run("zero unit price rejected", func(t *testing.T) {
		stacks := []*ItemInstance{commodityStack(4234, "Heavy Leather", 10)}
		assert.Equal(t, ResultBidIncrement, env.house.SellCommodity(seller, stacks, 0, 24*time.Hour, 0))
	})

	t.Run("multiple stacks list as one posting", func(t *testing.T) {
		stacks := []*ItemInstance{
			commodityStack(4234, "Heavy Leather", 10),
			commodityStack(4234, "Heavy Leather", 7),
		}
		require.Equal(t, ResultOk, env.house.SellCommodity(seller, stacks, 100, 24*time.Hour, 0))
		bucket := env.house.Index().Bucket(BucketKey{ItemID: 4234})
		require.NotNil(t, bucket)
		assert.Equal(t, 1, bucket.PostingCount())
		assert.Equal(t, int64(17), bucket.TotalQuantity())
	})
}

func TestPendingEscrow(t *testing.T) {
	env := newTestEnv()
	seller := snowflake.ID(1)
	env.ledger.Credit(seller, 10_000)

	require.Equal(t, ResultOk,
		env.house.SellItem(seller, uniqueItem(19019, "Thunderfury", 80), 1000, 5000, 24*time.Hour, 0))

	// The synchronous settler has already confirmed the listing, so the
	// escrow record is completed and nothing is left pending.
	assert.Equal(t, int64(0), env.reg.Pendings().TotalPending(seller))
	assert.Equal(t, int64(10_000-1500), env.ledger.Balance(seller))
}

func TestExpiryWithoutBids(t *testing.T) {
	env := newTestEnv()
	seller := snowflake.ID(1)
	env.ledger.Credit(seller, 10_000)

	require.Equal(t, ResultOk,
		env.house.SellItem(seller, uniqueItem(19019, "Thunderfury", 80), 1000, 0, 12*time.Hour, 0))

	env.clock.advance(13 * time.Hour)
	env.reg.Update(env.clock.Now())

	assert.Equal(t, 0, env.house.Index().Len())

	// Items and deposit come back by mail.
	expired := env.mailer.byType(MailExpired)
	require.Len(t, expired, 1)
	assert.Equal(t, seller, expired[0].Receiver)
	assert.Len(t, expired[0].Items, 1)
	assert.Equal(t, int64(150), expired[0].Money)
}

func TestExpiryWithBidderSettlesSale(t *testing.T) {
	env := newTestEnv()
	seller := snowflake.ID(1)
	bidder := snowflake.ID(2)
	env.ledger.Credit(seller, 10_000)
	env.ledger.Credit(bidder, 5000)

	require.Equal(t, ResultOk,
		env.house.SellItem(seller, uniqueItem(19019, "Thunderfury", 80), 1000, 0, 12*time.Hour, 0))
	id := env.house.Index().BuildListOwnedItems(seller)[0].ID
	require.Equal(t, ResultOk, env.house.PlaceBid(bidder, id, 2000, 0))

	env.clock.advance(13 * time.Hour)
	env.reg.Update(env.clock.Now())

	assert.Equal(t, 0, env.house.Index().Len())

	won := env.mailer.byType(MailWon)
	require.Len(t, won, 1)
	assert.Equal(t, bidder, won[0].Receiver)

	// 2000 less the 5% cut plus the 150 deposit.
	sold := env.mailer.byType(MailSold)
	require.Len(t, sold, 1)
	assert.Equal(t, int64(2000-100+150), sold[0].Money)
}

func TestQuoteExpiryOnUpdate(t *testing.T) {
	env := newTestEnv()
	seller := snowflake.ID(1)
	buyer := snowflake.ID(2)
	listCommodity(t, env, seller, 4234, 10, 100)

	require.NotNil(t, env.house.CreateCommodityQuote(buyer, 4234, 5))
	env.clock.advance(time.Minute)
	env.house.Update(env.clock.Now())

	assert.Nil(t, env.house.CommodityQuote(buyer))
}

func TestFailedCommitReportsDatabaseError(t *testing.T) {
	env := newTestEnv()
	seller := snowflake.ID(1)
	bidder := snowflake.ID(2)
	env.ledger.Credit(seller, 10_000)
	env.ledger.Credit(bidder, 5000)

	require.Equal(t, ResultOk,
		env.house.SellItem(seller, uniqueItem(19019, "Thunderfury", 80), 1000, 0, 12*time.Hour, 0))
	id := env.house.Index().BuildListOwnedItems(seller)[0].ID

	env.settler.failNext = true
	require.Equal(t, ResultOk, env.house.PlaceBid(bidder, id, 2000, 0))

	last := env.packets.results[len(env.packets.results)-1]
	assert.Equal(t, bidder, last.player)
	assert.Equal(t, ResultDatabaseError, last.result)
	assert.Equal(t, int64(0), env.stats.get(bidder, StatBidsPlaced))
}
