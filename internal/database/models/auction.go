package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Posting is the persisted form of one active listing. Identity columns hold
// snowflake ids cast to int64.
type Posting struct {
	bun.BaseModel `bun:"table:ah_postings,alias:ap"`

	ID           int64 `bun:"id,pk"`
	HouseID      int16 `bun:"house_id,notnull"`
	Owner        int64 `bun:"owner,notnull"`
	OwnerAccount int64 `bun:"owner_account,notnull"`

	ItemID    int32 `bun:"item_id,notnull"`
	ItemLevel int16 `bun:"item_level,notnull"`
	SpeciesID int16 `bun:"species_id,notnull"`
	SuffixID  int16 `bun:"suffix_id,notnull"`
	Quantity  int32 `bun:"quantity,notnull"`

	MinBid            int64 `bun:"min_bid,notnull"`
	BuyoutOrUnitPrice int64 `bun:"buyout_or_unit_price,notnull"`
	BidAmount         int64 `bun:"bid_amount,notnull"`
	Bidder            int64 `bun:"bidder"`
	Deposit           int64 `bun:"deposit,notnull"`

	StartTime time.Time `bun:"start_time,notnull"`
	EndTime   time.Time `bun:"end_time,notnull"`
	Flags     int16     `bun:"flags,notnull"`
}

// BidderHistory records every accepted bid for audit and dispute handling.
type BidderHistory struct {
	bun.BaseModel `bun:"table:ah_bidder_history,alias:abh"`

	ID        int64     `bun:"id,pk,autoincrement"`
	HouseID   int16     `bun:"house_id,notnull"`
	AuctionID int64     `bun:"auction_id,notnull"`
	Bidder    int64     `bun:"bidder,notnull"`
	Amount    int64     `bun:"amount,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// PendingAuction is the deposit escrow row: money has left the seller but the
// posting's insert has not been confirmed yet.
type PendingAuction struct {
	bun.BaseModel `bun:"table:ah_pending_auctions,alias:apa"`

	Player    int64     `bun:"player,pk"`
	AuctionID int64     `bun:"auction_id,pk"`
	HouseID   int16     `bun:"house_id,notnull"`
	Deposit   int64     `bun:"deposit,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

// Favorite is one saved search slot for a player.
type Favorite struct {
	bun.BaseModel `bun:"table:ah_favorites,alias:af"`

	Player int64 `bun:"player,pk"`
	Slot   int16 `bun:"slot,pk"`
	ItemID int32 `bun:"item_id,notnull"`
}

// Tombstone marks a removed posting for the replication protocol.
type Tombstone struct {
	bun.BaseModel `bun:"table:ah_tombstones,alias:at"`

	HouseID   int16     `bun:"house_id,pk"`
	Seq       int64     `bun:"seq,pk"`
	AuctionID int64     `bun:"auction_id,notnull"`
	RemovedAt time.Time `bun:"removed_at,notnull,default:current_timestamp"`
}
