package auctionhouse

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stormhold/auctionhouse/internal/config"
)

// Registry owns one AuctionHouseObject per faction pool plus the shared
// throttle, deposit escrow and favorites service. It is constructed at
// server startup and driven by the game loop's Update tick.
type Registry struct {
	cfg  config.HouseConfig
	deps Dependencies

	houses    map[AuctionHouseID]*AuctionHouseObject
	throttle  *Throttle
	pendings  *PendingAuctions
	favorites *Favorites

	nextID    AuctionID
	clock     func() time.Time
	lastSweep time.Time

	// pipeline is set when the injected Settler is the production
	// SettlementPipeline, so Update and Shutdown can drive it.
	pipeline *SettlementPipeline
}

func NewRegistry(cfg config.HouseConfig, deps Dependencies) *Registry {
	if deps.Ledger == nil {
		panic("auction registry: ledger cannot be nil")
	}
	if deps.Directory == nil {
		panic("auction registry: online directory cannot be nil")
	}
	if deps.Settler == nil {
		panic("auction registry: settler cannot be nil")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
		deps.Clock = clock
	}

	r := &Registry{
		cfg:       cfg,
		deps:      deps,
		houses:    make(map[AuctionHouseID]*AuctionHouseObject),
		throttle:  NewThrottle(cfg.ThrottleDelay(), cfg.TaintedThrottleDelay(), clock),
		pendings:  NewPendingAuctions(deps.Ledger, deps.Repo, deps.Settler),
		favorites: NewFavorites(deps.Repo),
		nextID:    1,
		clock:     clock,
		lastSweep: clock(),
	}
	r.pipeline, _ = deps.Settler.(*SettlementPipeline)

	for _, houseID := range []AuctionHouseID{AuctionHouseAlliance, AuctionHouseHorde, AuctionHouseNeutral} {
		r.houses[houseID] = newAuctionHouse(houseID, cfg, deps, r.pendings, r.allocateID)
	}
	return r
}

func (r *Registry) allocateID() AuctionID {
	id := r.nextID
	r.nextID++
	return id
}

// GetAuctionsMap resolves the house for a faction. Unknown factions trade at
// the neutral house, so the lookup never fails.
func (r *Registry) GetAuctionsMap(factionID uint32) *AuctionHouseObject {
	switch factionID {
	case FactionAlliance:
		return r.houses[AuctionHouseAlliance]
	case FactionHorde:
		return r.houses[AuctionHouseHorde]
	default:
		return r.houses[AuctionHouseNeutral]
	}
}

// House returns a house by its persistent id, nil if unknown.
func (r *Registry) House(id AuctionHouseID) *AuctionHouseObject {
	return r.houses[id]
}

func (r *Registry) Favorites() *Favorites {
	return r.favorites
}

func (r *Registry) Pendings() *PendingAuctions {
	return r.pendings
}

// CheckThrottle gates a player's request before any house is consulted.
func (r *Registry) CheckThrottle(player snowflake.ID, tainted bool, command ThrottleCommand) (throttled bool, delay time.Duration) {
	return r.throttle.Check(player, tainted, command)
}

// Update is the game-loop tick: it delivers settlement completions, expires
// quotes and postings, and periodically drops idle throttle entries.
func (r *Registry) Update(now time.Time) {
	if r.pipeline != nil {
		r.pipeline.Update()
	}
	for _, house := range r.houses {
		house.Update(now)
	}
	if now.Sub(r.lastSweep) >= r.cfg.SweepInterval() {
		r.lastSweep = now
		r.throttle.Sweep(10 * time.Minute)
	}
}

// Recover reloads active postings from storage into the houses, typically at
// server startup. Postings whose item template no longer resolves are
// skipped and logged.
func (r *Registry) Recover(ctx context.Context) error {
	if r.deps.Repo == nil {
		return nil
	}
	if r.deps.Items == nil {
		return fmt.Errorf("cannot recover postings without an item resolver")
	}

	for houseID, house := range r.houses {
		rows, err := r.deps.Repo.ListActivePostings(ctx, int16(houseID))
		if err != nil {
			return fmt.Errorf("failed to recover house %d: %w", houseID, err)
		}
		for _, row := range rows {
			template, ok := r.deps.Items.Template(row.ItemID)
			if !ok {
				slog.Warn("Skipping posting with unknown item template",
					slog.Int64("auction_id", row.ID),
					slog.Int("item_id", int(row.ItemID)))
				continue
			}
			item := template.Clone()
			item.Count = row.Quantity
			item.ItemLevel = uint16(row.ItemLevel)
			item.BattlePetSpeciesID = uint16(row.SpeciesID)
			item.SuffixID = uint16(row.SuffixID)

			posting := &AuctionPosting{
				ID:                AuctionID(row.ID),
				Owner:             snowflake.ID(row.Owner),
				OwnerAccount:      snowflake.ID(row.OwnerAccount),
				Key:               MakeBucketKey(item),
				Items:             []*ItemInstance{item},
				MinBid:            row.MinBid,
				BuyoutOrUnitPrice: row.BuyoutOrUnitPrice,
				BidAmount:         row.BidAmount,
				Bidder:            snowflake.ID(row.Bidder),
				Deposit:           row.Deposit,
				StartTime:         row.StartTime,
				EndTime:           row.EndTime,
				Flags:             PostingFlags(row.Flags),
			}
			house.index.AddPosting(posting)
			if posting.Bidder != 0 {
				house.index.SetBidder(posting, 0, posting.Bidder)
			}
			if AuctionID(row.ID) >= r.nextID {
				r.nextID = AuctionID(row.ID) + 1
			}
		}
		slog.Info("Recovered auction house",
			slog.Int("house_id", int(houseID)),
			slog.Int("postings", len(rows)))
	}
	return nil
}

// Shutdown drains the settlement pipeline.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.pipeline == nil {
		return nil
	}
	if err := r.pipeline.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to drain settlement pipeline: %w", err)
	}
	return nil
}
