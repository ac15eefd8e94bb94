package auctionhouse

import (
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// AuctionID identifies one posting within a registry. IDs are allocated
// sequentially, so they double as a listing-age tie-breaker.
type AuctionID uint32

// AuctionHouseID is the persistent house identifier for one faction pool.
type AuctionHouseID uint8

const (
	AuctionHouseAlliance AuctionHouseID = 2
	AuctionHouseHorde    AuctionHouseID = 6
	AuctionHouseNeutral  AuctionHouseID = 7
)

// Faction template ids recognized by the registry partitioner. Anything else
// lands in the neutral house.
const (
	FactionAlliance uint32 = 469
	FactionHorde    uint32 = 67
)

// ItemInstance is the engine's view of an item stack under escrow. Bag
// placement, durability and the rest of the inventory subsystem stay outside.
type ItemInstance struct {
	ItemID             int32
	Name               string
	Count              int32
	MaxStackSize       int32
	Quality            uint8
	ItemLevel          uint16
	RequiredLevel      uint8
	ClassID            uint8
	SubClassID         uint8
	BattlePetSpeciesID uint16
	SuffixID           uint16
}

// IsCommodity reports whether the item trades at a fixed unit price instead
// of being bid on. Stackables are commodities.
func (i *ItemInstance) IsCommodity() bool {
	return i.MaxStackSize > 1
}

func (i *ItemInstance) Clone() *ItemInstance {
	c := *i
	return &c
}

// BucketKey groups postings that are interchangeable for browsing purposes.
type BucketKey struct {
	ItemID             int32
	ItemLevel          uint16
	BattlePetSpeciesID uint16
	SuffixID           uint16
}

// MakeBucketKey derives the search key for an item stack.
func MakeBucketKey(item *ItemInstance) BucketKey {
	return BucketKey{
		ItemID:             item.ItemID,
		ItemLevel:          item.ItemLevel,
		BattlePetSpeciesID: item.BattlePetSpeciesID,
		SuffixID:           item.SuffixID,
	}
}

func bucketKeyLess(a, b BucketKey) bool {
	if a.ItemID != b.ItemID {
		return a.ItemID < b.ItemID
	}
	if a.ItemLevel != b.ItemLevel {
		return a.ItemLevel < b.ItemLevel
	}
	if a.BattlePetSpeciesID != b.BattlePetSpeciesID {
		return a.BattlePetSpeciesID < b.BattlePetSpeciesID
	}
	return a.SuffixID < b.SuffixID
}

// PostingFlags carry server-only markers that never reach the client.
type PostingFlags uint8

const (
	// PostingFlagGMLogBuyer marks postings whose settlement must be written
	// to the GM trade log.
	PostingFlagGMLogBuyer PostingFlags = 1 << iota
)

// AuctionPosting is one active listing: a unique item auction or a commodity
// stack at a fixed unit price.
type AuctionPosting struct {
	ID           AuctionID
	Owner        snowflake.ID
	OwnerAccount snowflake.ID
	Key          BucketKey
	Items        []*ItemInstance

	// MinBid is 0 for buyout-only and commodity listings.
	MinBid int64
	// BuyoutOrUnitPrice is the buyout price for item auctions and the
	// per-unit price for commodities. 0 means no buyout.
	BuyoutOrUnitPrice int64

	BidAmount     int64
	Bidder        snowflake.ID
	BidderHistory []snowflake.ID

	Deposit   int64
	StartTime time.Time
	EndTime   time.Time
	Flags     PostingFlags

	changeNumber uint64
	bucket       *AuctionBucket
}

func (p *AuctionPosting) IsCommodity() bool {
	return len(p.Items) > 0 && p.Items[0].IsCommodity()
}

func (p *AuctionPosting) HasBidder() bool {
	return p.Bidder != 0
}

// TotalItemCount sums the escrowed stacks.
func (p *AuctionPosting) TotalItemCount() int64 {
	var total int64
	for _, item := range p.Items {
		total += int64(item.Count)
	}
	return total
}

func (p *AuctionPosting) TimeLeft(now time.Time) time.Duration {
	if left := p.EndTime.Sub(now); left > 0 {
		return left
	}
	return 0
}

// EffectivePrice is what the posting currently trades at: the standing bid if
// one exists, otherwise the minimum bid, otherwise the buyout.
func (p *AuctionPosting) EffectivePrice() int64 {
	if p.BidAmount != 0 {
		return p.BidAmount
	}
	if p.MinBid != 0 {
		return p.MinBid
	}
	return p.BuyoutOrUnitPrice
}

// recordBidder appends a bidder to the ordered history, once per bidder.
func (p *AuctionPosting) recordBidder(bidder snowflake.ID) {
	for _, b := range p.BidderHistory {
		if b == bidder {
			return
		}
	}
	p.BidderHistory = append(p.BidderHistory, bidder)
}

// AuctionBucket is a read-optimized grouping of postings sharing a key.
// Postings are kept ordered by unit price, then by auction id, so commodity
// consumption and item listing both walk the slice front to back.
type AuctionBucket struct {
	Key           BucketKey
	ItemName      string
	Quality       uint8
	ClassID       uint8
	SubClassID    uint8
	RequiredLevel uint8

	postings []*AuctionPosting
}

func (b *AuctionBucket) IsCommodity() bool {
	return len(b.postings) > 0 && b.postings[0].IsCommodity()
}

func (b *AuctionBucket) PostingCount() int {
	return len(b.postings)
}

// Postings returns the bucket contents in (unit price, auction id) order.
// The returned slice must not be mutated by callers.
func (b *AuctionBucket) Postings() []*AuctionPosting {
	return b.postings
}

// MinPrice is the cheapest effective price in the bucket, 0 when empty.
func (b *AuctionBucket) MinPrice() int64 {
	if len(b.postings) == 0 {
		return 0
	}
	return b.postings[0].EffectivePrice()
}

// TotalQuantity sums all escrowed items across the bucket.
func (b *AuctionBucket) TotalQuantity() int64 {
	var total int64
	for _, p := range b.postings {
		total += p.TotalItemCount()
	}
	return total
}

func (b *AuctionBucket) insert(p *AuctionPosting) {
	p.bucket = b
	at := len(b.postings)
	for i, other := range b.postings {
		if postingOrderLess(p, other) {
			at = i
			break
		}
	}
	b.postings = append(b.postings, nil)
	copy(b.postings[at+1:], b.postings[at:])
	b.postings[at] = p
}

func (b *AuctionBucket) remove(p *AuctionPosting) {
	for i, other := range b.postings {
		if other.ID == p.ID {
			b.postings = append(b.postings[:i], b.postings[i+1:]...)
			p.bucket = nil
			return
		}
	}
}

// postingOrderLess orders a bucket's postings: cheapest unit price first,
// oldest listing first among equals.
func postingOrderLess(a, b *AuctionPosting) bool {
	if a.BuyoutOrUnitPrice != b.BuyoutOrUnitPrice {
		return a.BuyoutOrUnitPrice < b.BuyoutOrUnitPrice
	}
	return a.ID < b.ID
}

// CommodityQuote is a single-buyer price reservation. It pins the total price
// at quote time so stock movement between quote and purchase cannot reprice
// the buyer silently.
type CommodityQuote struct {
	Buyer      snowflake.ID
	ItemID     int32
	Quantity   int64
	TotalPrice int64
	ValidTo    time.Time
}

func (q *CommodityQuote) Expired(now time.Time) bool {
	return now.After(q.ValidTo)
}
