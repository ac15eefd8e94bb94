package auctionhouse

import (
	"context"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stormhold/auctionhouse/internal/config"
	"github.com/stormhold/auctionhouse/internal/database/models"
	"github.com/stormhold/auctionhouse/internal/database/repositories"
	"github.com/uptrace/bun"
)

// ItemResolver looks up item templates when postings are reloaded from
// storage. The returned instance is a prototype; the engine clones it.
type ItemResolver interface {
	Template(itemID int32) (*ItemInstance, bool)
}

// Dependencies are the collaborators injected into a registry and shared by
// its houses.
type Dependencies struct {
	Ledger    Ledger
	Directory OnlineDirectory
	Packets   PacketSink
	Mailer    Mailer
	Stats     StatsSink
	Settler   Settler
	Repo      repositories.AuctionRepository
	Items     ItemResolver
	Clock     func() time.Time
}

// Listing durations accepted by the sell paths, with their deposit
// multipliers.
var listingDurations = map[time.Duration]int64{
	12 * time.Hour: 1,
	24 * time.Hour: 2,
	48 * time.Hour: 4,
}

// AuctionHouseObject is one faction's pool of listings. All methods must be
// called from the game-loop thread; the only asynchronous boundary is the
// settlement pipeline.
type AuctionHouseObject struct {
	houseID AuctionHouseID
	cfg     config.HouseConfig

	ledger    Ledger
	directory OnlineDirectory
	packets   PacketSink
	stats     StatsSink
	settler   Settler
	repo      repositories.AuctionRepository
	pendings  *PendingAuctions
	notifier  *Notifier
	clock     func() time.Time

	index  *BucketIndex
	quotes map[snowflake.ID]*CommodityQuote

	allocateID func() AuctionID
	lastSweep  time.Time
}

func newAuctionHouse(houseID AuctionHouseID, cfg config.HouseConfig, deps Dependencies, pendings *PendingAuctions, allocateID func() AuctionID) *AuctionHouseObject {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	h := &AuctionHouseObject{
		houseID:    houseID,
		cfg:        cfg,
		ledger:     deps.Ledger,
		directory:  deps.Directory,
		packets:    deps.Packets,
		stats:      deps.Stats,
		settler:    deps.Settler,
		repo:       deps.Repo,
		pendings:   pendings,
		clock:      clock,
		index:      NewBucketIndex(cfg.SearchCacheSize, uint64(clock().UnixNano())),
		quotes:     make(map[snowflake.ID]*CommodityQuote),
		allocateID: allocateID,
		lastSweep:  clock(),
	}
	h.notifier = NewNotifier(houseID, deps.Directory, deps.Packets, deps.Mailer)
	return h
}

func (h *AuctionHouseObject) HouseID() AuctionHouseID {
	return h.houseID
}

func (h *AuctionHouseObject) Index() *BucketIndex {
	return h.index
}

// SellItem lists a unique (non-stackable) item. The deposit is reserved
// through the pending-escrow before the listing transaction is built; the
// posting becomes browsable immediately and the confirmation arrives with the
// commit callback.
func (h *AuctionHouseObject) SellItem(seller snowflake.ID, item *ItemInstance, minBid, buyout int64, runTime time.Duration, delay time.Duration) AuctionResult {
	multiplier, ok := listingDurations[runTime]
	if !ok {
		return ResultAuctionHouseBusy
	}
	if item == nil || item.Count <= 0 {
		return ResultItemNotFound
	}
	if item.IsCommodity() {
		return ResultItemNotFound
	}
	if minBid == 0 && buyout == 0 {
		return ResultBidIncrement
	}
	if buyout != 0 && minBid > buyout {
		return ResultBidIncrement
	}

	now := h.clock()
	deposit := h.calculateDeposit(priceBasis(minBid, buyout), multiplier)
	id := h.allocateID()
	if !h.pendings.Add(seller, h.houseID, id, deposit) {
		return ResultNotEnoughMoney
	}

	posting := &AuctionPosting{
		ID:                id,
		Owner:             seller,
		OwnerAccount:      h.directory.Account(seller),
		Key:               MakeBucketKey(item),
		Items:             []*ItemInstance{item},
		MinBid:            minBid,
		BuyoutOrUnitPrice: buyout,
		Deposit:           deposit,
		StartTime:         now,
		EndTime:           now.Add(runTime),
	}
	h.index.AddPosting(posting)

	t := h.settler.Tx()
	h.stageInsert(t, posting)
	h.stagePendingDelete(t, seller, id)

	slog.Info("Item listed",
		slog.Uint64("auction_id", uint64(id)),
		slog.String("seller", seller.String()),
		slog.Int64("min_bid", minBid),
		slog.Int64("buyout", buyout))

	h.submit(t, seller, id, CommandSellItem, delay, func() {
		h.pendings.Complete(seller, id)
	})
	return ResultOk
}

// SellCommodity lists one or more stacks of the same stackable item at a
// fixed per-unit price.
func (h *AuctionHouseObject) SellCommodity(seller snowflake.ID, stacks []*ItemInstance, unitPrice int64, runTime time.Duration, delay time.Duration) AuctionResult {
	multiplier, ok := listingDurations[runTime]
	if !ok {
		return ResultAuctionHouseBusy
	}
	if len(stacks) == 0 || unitPrice <= 0 {
		return ResultBidIncrement
	}
	first := stacks[0]
	if !first.IsCommodity() {
		return ResultItemNotFound
	}
	var quantity int64
	for _, stack := range stacks {
		if stack.ItemID != first.ItemID || stack.Count <= 0 {
			return ResultItemNotFound
		}
		quantity += int64(stack.Count)
	}

	now := h.clock()
	deposit := h.calculateDeposit(unitPrice*quantity, multiplier)
	id := h.allocateID()
	if !h.pendings.Add(seller, h.houseID, id, deposit) {
		return ResultNotEnoughMoney
	}

	posting := &AuctionPosting{
		ID:                id,
		Owner:             seller,
		OwnerAccount:      h.directory.Account(seller),
		Key:               MakeBucketKey(first),
		Items:             stacks,
		BuyoutOrUnitPrice: unitPrice,
		Deposit:           deposit,
		StartTime:         now,
		EndTime:           now.Add(runTime),
	}
	h.index.AddPosting(posting)

	t := h.settler.Tx()
	h.stageInsert(t, posting)
	h.stagePendingDelete(t, seller, id)

	slog.Info("Commodity listed",
		slog.Uint64("auction_id", uint64(id)),
		slog.String("seller", seller.String()),
		slog.Int64("unit_price", unitPrice),
		slog.Int64("quantity", quantity))

	h.submit(t, seller, id, CommandSellCommodity, delay, func() {
		h.pendings.Complete(seller, id)
	})
	return ResultOk
}

// Update drives time-based work: quote expiry every tick and the posting
// expiry sweep on the configured interval.
func (h *AuctionHouseObject) Update(now time.Time) {
	for buyer, quote := range h.quotes {
		if quote.Expired(now) {
			delete(h.quotes, buyer)
		}
	}

	if now.Sub(h.lastSweep) < h.cfg.SweepInterval() {
		return
	}
	h.lastSweep = now

	var expired []*AuctionPosting
	for _, p := range h.index.byID {
		if !p.EndTime.After(now) {
			expired = append(expired, p)
		}
	}
	for _, p := range expired {
		h.expirePosting(p)
	}
}

// expirePosting settles a posting whose run time elapsed: the standing bidder
// wins it, or the items go back to the owner with the deposit refunded.
func (h *AuctionHouseObject) expirePosting(p *AuctionPosting) {
	t := h.settler.Tx()
	if p.HasBidder() {
		h.finalizeSale(t, p, p.Bidder, p.BidAmount)
		h.settler.Submit(t, 0, nil)
		return
	}

	h.notifier.AuctionExpired(t, p)
	h.removePosting(t, p)
	slog.Info("Auction expired without bids",
		slog.Uint64("auction_id", uint64(p.ID)),
		slog.String("owner", p.Owner.String()))
	h.settler.Submit(t, 0, nil)
}

// finalizeSale pays the owner, hands the items to the buyer and removes the
// posting. Used by buyouts, commodity-free item expiry with a bidder, and
// nothing else; commodity purchases settle per-take in BuyCommodity.
func (h *AuctionHouseObject) finalizeSale(t *AuctionTransaction, p *AuctionPosting, buyer snowflake.ID, price int64) {
	cut := percentOf(price, h.cfg.HouseCutPercent)
	proceeds := price - cut + p.Deposit

	// proceeds travel by mail, not by direct credit
	h.notifier.AuctionSold(t, p, proceeds)
	h.notifier.AuctionWon(t, p, buyer)
	h.removePosting(t, p)

	if p.Flags&PostingFlagGMLogBuyer != 0 {
		slog.Info("GM trade log: auction settled",
			slog.Uint64("auction_id", uint64(p.ID)),
			slog.String("buyer", buyer.String()),
			slog.Int64("price", price))
	}

	slog.Info("Auction sold",
		slog.Uint64("auction_id", uint64(p.ID)),
		slog.String("owner", p.Owner.String()),
		slog.String("buyer", buyer.String()),
		slog.Int64("price", price),
		slog.Int64("house_cut", cut))
}

// removePosting detaches the posting from the index and stages the delete and
// tombstone rows. A posting is removed exactly once; callers must hold the
// only path to it on this tick.
func (h *AuctionHouseObject) removePosting(t *AuctionTransaction, p *AuctionPosting) {
	h.index.RemovePosting(p)
	h.stageDelete(t, p)
}

func (h *AuctionHouseObject) calculateDeposit(basis int64, durationMultiplier int64) int64 {
	deposit := percentOf(basis, h.cfg.DepositPercent) * durationMultiplier
	if deposit < h.cfg.MinDeposit {
		deposit = h.cfg.MinDeposit
	}
	return deposit
}

// submit hands the staged transaction to the pipeline; the continuation sends
// the final command result and bumps statistics only after a confirmed
// commit.
func (h *AuctionHouseObject) submit(t *AuctionTransaction, actor snowflake.ID, auctionID AuctionID, command ThrottleCommand, delay time.Duration, onCommit func()) {
	h.settler.Submit(t, actor, func(committed bool) {
		if !committed {
			h.packets.SendCommandResult(actor, auctionID, command, ResultDatabaseError, delay)
			return
		}
		if onCommit != nil {
			onCommit()
		}
		h.packets.SendCommandResult(actor, auctionID, command, ResultOk, delay)
	})
}

func (h *AuctionHouseObject) stage(t *AuctionTransaction, op txOp) {
	if t == nil || h.repo == nil {
		return
	}
	t.Append(op)
}

func (h *AuctionHouseObject) stageInsert(t *AuctionTransaction, p *AuctionPosting) {
	row := h.postingRow(p)
	h.stage(t, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.InsertPosting(ctx, tx, row)
	})
}

func (h *AuctionHouseObject) stageBidUpdate(t *AuctionTransaction, p *AuctionPosting) {
	auctionID := int64(p.ID)
	bidder := int64(p.Bidder)
	amount := p.BidAmount
	h.stage(t, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.UpdatePostingBid(ctx, tx, auctionID, bidder, amount); err != nil {
			return err
		}
		return h.repo.InsertBidderHistory(ctx, tx, &models.BidderHistory{
			HouseID:   int16(h.houseID),
			AuctionID: auctionID,
			Bidder:    bidder,
			Amount:    amount,
		})
	})
}

func (h *AuctionHouseObject) stageQuantity(t *AuctionTransaction, p *AuctionPosting) {
	auctionID := int64(p.ID)
	quantity := int32(p.TotalItemCount())
	h.stage(t, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.UpdatePostingQuantity(ctx, tx, auctionID, quantity)
	})
}

func (h *AuctionHouseObject) stageDelete(t *AuctionTransaction, p *AuctionPosting) {
	auctionID := int64(p.ID)
	seq := int64(h.index.tombstoneSeq)
	h.stage(t, func(ctx context.Context, tx bun.Tx) error {
		if err := h.repo.DeletePosting(ctx, tx, auctionID); err != nil {
			return err
		}
		return h.repo.InsertTombstone(ctx, tx, &models.Tombstone{
			HouseID:   int16(h.houseID),
			Seq:       seq,
			AuctionID: auctionID,
		})
	})
}

func (h *AuctionHouseObject) stagePendingDelete(t *AuctionTransaction, player snowflake.ID, id AuctionID) {
	playerID := int64(player)
	auctionID := int64(id)
	h.stage(t, func(ctx context.Context, tx bun.Tx) error {
		return h.repo.DeletePending(ctx, tx, playerID, auctionID)
	})
}

func (h *AuctionHouseObject) postingRow(p *AuctionPosting) *models.Posting {
	return &models.Posting{
		ID:                int64(p.ID),
		HouseID:           int16(h.houseID),
		Owner:             int64(p.Owner),
		OwnerAccount:      int64(p.OwnerAccount),
		ItemID:            p.Key.ItemID,
		ItemLevel:         int16(p.Key.ItemLevel),
		SpeciesID:         int16(p.Key.BattlePetSpeciesID),
		SuffixID:          int16(p.Key.SuffixID),
		Quantity:          int32(p.TotalItemCount()),
		MinBid:            p.MinBid,
		BuyoutOrUnitPrice: p.BuyoutOrUnitPrice,
		BidAmount:         p.BidAmount,
		Bidder:            int64(p.Bidder),
		Deposit:           p.Deposit,
		StartTime:         p.StartTime,
		EndTime:           p.EndTime,
		Flags:             int16(p.Flags),
	}
}

func priceBasis(minBid, buyout int64) int64 {
	if buyout != 0 {
		return buyout
	}
	return minBid
}

func percentOf(amount, percent int64) int64 {
	return amount * percent / 100
}
