package auctionhouse

import (
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// CalculateMinIncrement is the house rule for the next acceptable bid over a
// standing one: 5% of the current bid, at least one copper.
func CalculateMinIncrement(bid int64) int64 {
	inc := bid / 20
	if inc < 1 {
		inc = 1
	}
	return inc
}

// PlaceBid validates and applies a bid or buyout on a unique-item posting.
// Validation failures return immediately with no side effects; an accepted
// bid mutates the house optimistically and reports the final outcome through
// the settlement continuation.
func (h *AuctionHouseObject) PlaceBid(bidder snowflake.ID, auctionID AuctionID, amount int64, delay time.Duration) AuctionResult {
	now := h.clock()
	p := h.index.Posting(auctionID)
	if p == nil || !p.EndTime.After(now) {
		return ResultItemNotFound
	}
	if p.IsCommodity() {
		// Commodities trade through quotes, never bids.
		return ResultItemNotFound
	}
	if p.Owner == bidder {
		return ResultBidOwn
	}
	if p.OwnerAccount != 0 && h.directory.Account(bidder) == p.OwnerAccount {
		return ResultBidOwn
	}

	canBid := p.MinBid != 0
	canBuyout := p.BuyoutOrUnitPrice != 0
	if !canBid && amount != p.BuyoutOrUnitPrice {
		return ResultBidIncrement
	}

	isBuyout := canBuyout && amount == p.BuyoutOrUnitPrice
	if !isBuyout {
		minAcceptable := p.MinBid
		if p.BidAmount != 0 {
			minAcceptable = p.BidAmount + CalculateMinIncrement(p.BidAmount)
		}
		if amount < minAcceptable {
			return ResultHigherBid
		}
		if canBuyout && amount > p.BuyoutOrUnitPrice {
			return ResultBidIncrement
		}
	}

	// A bidder raising their own standing bid only pays the delta.
	priceToPay := amount
	if p.Bidder == bidder {
		priceToPay = amount - p.BidAmount
	}
	if h.ledger.Balance(bidder) < priceToPay {
		return ResultNotEnoughMoney
	}

	t := h.settler.Tx()

	previousBidder, previousAmount := p.Bidder, p.BidAmount
	if previousBidder != 0 && previousBidder != bidder {
		h.notifier.Outbid(t, p, previousBidder, previousAmount, amount)
	}

	if err := h.ledger.Debit(bidder, priceToPay); err != nil {
		return ResultNotEnoughMoney
	}

	p.Bidder = bidder
	p.BidAmount = amount
	p.recordBidder(bidder)
	h.index.SetBidder(p, previousBidder, bidder)

	if isBuyout {
		owner := p.Owner
		h.finalizeSale(t, p, bidder, amount)
		h.submit(t, bidder, auctionID, CommandPlaceBid, delay, func() {
			h.stats.Increment(bidder, StatAuctionsWon, 1)
			h.stats.Increment(bidder, StatGoldSpentOnAuctions, amount)
			h.stats.Increment(owner, StatAuctionsSold, 1)
		})
		return ResultOk
	}

	h.index.TouchPosting(p)
	h.stageBidUpdate(t, p)

	if _, online := h.directory.Session(p.Owner); online {
		h.packets.SendOwnerBidPlaced(p.Owner, p.ID, amount, bidder)
	}

	slog.Info("Bid placed",
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.String("bidder", bidder.String()),
		slog.Int64("amount", amount))

	h.submit(t, bidder, auctionID, CommandPlaceBid, delay, func() {
		h.stats.Increment(bidder, StatBidsPlaced, 1)
	})
	return ResultOk
}

// CancelAuction removes an owner's posting. Cancelling under a standing bid
// costs a fee and refunds the bidder in full; cancelling an unbid posting is
// free (the deposit is forfeited either way).
func (h *AuctionHouseObject) CancelAuction(requester snowflake.ID, auctionID AuctionID, delay time.Duration) AuctionResult {
	p := h.index.Posting(auctionID)
	if p == nil || p.Owner != requester {
		return ResultItemNotFound
	}

	t := h.settler.Tx()

	if p.HasBidder() {
		fee := percentOf(p.BidAmount, h.cfg.CancelFeePercent)
		if h.ledger.Balance(requester) < fee {
			return ResultNotEnoughMoney
		}
		if err := h.ledger.Debit(requester, fee); err != nil {
			return ResultNotEnoughMoney
		}
		h.notifier.CancellationRefund(t, p)
	}

	h.notifier.AuctionCancelled(t, p)
	h.removePosting(t, p)

	slog.Info("Auction cancelled",
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.String("owner", requester.String()),
		slog.Bool("had_bidder", p.HasBidder()))

	h.submit(t, requester, auctionID, CommandCancel, delay, nil)
	return ResultOk
}
