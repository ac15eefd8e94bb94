package auctionhouse

import (
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// commodityTake is one posting's contribution to a commodity purchase.
type commodityTake struct {
	posting *AuctionPosting
	count   int64
}

// selectCommodity walks the item's postings cheapest-first, oldest-first
// among equal prices, until the requested quantity is covered. Returns false
// when stock is insufficient or the item is not a commodity.
func (h *AuctionHouseObject) selectCommodity(itemID int32, quantity int64) ([]commodityTake, int64, bool) {
	if quantity <= 0 {
		return nil, 0, false
	}

	var takes []commodityTake
	var total int64
	remaining := quantity

	h.index.buckets.Ascend(&AuctionBucket{Key: BucketKey{ItemID: itemID}}, func(b *AuctionBucket) bool {
		if b.Key.ItemID != itemID {
			return false
		}
		if !b.IsCommodity() {
			return false
		}
		for _, p := range b.Postings() {
			if remaining == 0 {
				return false
			}
			take := p.TotalItemCount()
			if take > remaining {
				take = remaining
			}
			takes = append(takes, commodityTake{posting: p, count: take})
			total += take * p.BuyoutOrUnitPrice
			remaining -= take
		}
		return true
	})

	if remaining != 0 {
		return nil, 0, false
	}
	return takes, total, true
}

// CreateCommodityQuote reserves a price for a single buyer: the total cost of
// the requested quantity at the current stock, valid for the configured TTL.
// Any previous quote held by the buyer is replaced. Returns nil when stock is
// insufficient or the item does not trade as a commodity.
func (h *AuctionHouseObject) CreateCommodityQuote(buyer snowflake.ID, itemID int32, quantity int64) *CommodityQuote {
	_, total, ok := h.selectCommodity(itemID, quantity)
	if !ok {
		return nil
	}

	quote := &CommodityQuote{
		Buyer:      buyer,
		ItemID:     itemID,
		Quantity:   quantity,
		TotalPrice: total,
		ValidTo:    h.clock().Add(h.cfg.QuoteTTL()),
	}
	h.quotes[buyer] = quote

	slog.Debug("Commodity quote issued",
		slog.String("buyer", buyer.String()),
		slog.Int("item_id", int(itemID)),
		slog.Int64("quantity", quantity),
		slog.Int64("total_price", total))
	return quote
}

// CancelCommodityQuote releases the buyer's live quote. Idempotent.
func (h *AuctionHouseObject) CancelCommodityQuote(buyer snowflake.ID) {
	delete(h.quotes, buyer)
}

// CommodityQuote returns the buyer's live quote, if any.
func (h *AuctionHouseObject) CommodityQuote(buyer snowflake.ID) *CommodityQuote {
	return h.quotes[buyer]
}

// BuyCommodity consumes the buyer's quote and settles the purchase. The
// quote must exist, match the requested item and quantity, and be unexpired;
// the live stock must still produce the quoted total. Every failure leaves
// the house untouched. A successful purchase debits the buyer once, consumes
// postings oldest-first at each price step, pays each seller net of the house
// cut, and delivers the goods by mail.
func (h *AuctionHouseObject) BuyCommodity(buyer snowflake.ID, itemID int32, quantity int64, delay time.Duration) AuctionResult {
	now := h.clock()
	quote := h.quotes[buyer]
	if quote == nil || quote.ItemID != itemID || quote.Quantity != quantity || quote.Expired(now) {
		return ResultCommodityPurchaseFailed
	}
	// Consumed by exactly one purchase attempt, successful or not.
	delete(h.quotes, buyer)

	takes, total, ok := h.selectCommodity(itemID, quantity)
	if !ok || total != quote.TotalPrice {
		return ResultCommodityPurchaseFailed
	}
	if h.ledger.Balance(buyer) < total {
		return ResultNotEnoughMoney
	}
	if err := h.ledger.Debit(buyer, total); err != nil {
		return ResultNotEnoughMoney
	}

	t := h.settler.Tx()
	var delivered []*ItemInstance

	for _, take := range takes {
		p := take.posting
		gross := take.count * p.BuyoutOrUnitPrice
		proceeds := gross - percentOf(gross, h.cfg.HouseCutPercent)

		if take.count == p.TotalItemCount() {
			delivered = append(delivered, p.Items...)
			// Deposit rides home with the proceeds once the listing is gone.
			h.notifier.CommoditySold(t, p, take.count, proceeds+p.Deposit)
			h.removePosting(t, p)
		} else {
			delivered = append(delivered, p.splitItems(take.count)...)
			h.notifier.CommoditySold(t, p, take.count, proceeds)
			h.index.TouchPosting(p)
			h.stageQuantity(t, p)
		}
	}

	h.notifier.CommodityDelivery(t, buyer, itemID, quantity, delivered)

	slog.Info("Commodity purchased",
		slog.String("buyer", buyer.String()),
		slog.Int("item_id", int(itemID)),
		slog.Int64("quantity", quantity),
		slog.Int64("total_price", total))

	h.submit(t, buyer, 0, CommandConfirmCommodityPurchase, delay, func() {
		h.stats.Increment(buyer, StatGoldSpentOnAuctions, total)
	})
	return ResultOk
}

// splitItems carves count units off the posting's stacks, front to back, and
// returns them as new instances for delivery.
func (p *AuctionPosting) splitItems(count int64) []*ItemInstance {
	var out []*ItemInstance
	remaining := count
	for remaining > 0 && len(p.Items) > 0 {
		stack := p.Items[0]
		if int64(stack.Count) <= remaining {
			remaining -= int64(stack.Count)
			out = append(out, stack)
			p.Items = p.Items[1:]
			continue
		}
		taken := stack.Clone()
		taken.Count = int32(remaining)
		stack.Count -= int32(remaining)
		remaining = 0
		out = append(out, taken)
	}
	return out
}
