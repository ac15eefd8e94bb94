package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/stormhold/auctionhouse/internal/database/models"
	"github.com/uptrace/bun"
)

// AuctionRepository is the prepared-statement façade the engine stages its
// settlement operations through. Mutating methods take a bun.IDB so they run
// either inside a settlement transaction or directly for synchronous paths.
type AuctionRepository interface {
	DB() *bun.DB
	InitializeTables(ctx context.Context) error

	InsertPosting(ctx context.Context, db bun.IDB, row *models.Posting) error
	UpdatePostingBid(ctx context.Context, db bun.IDB, auctionID int64, bidder int64, amount int64) error
	UpdatePostingQuantity(ctx context.Context, db bun.IDB, auctionID int64, quantity int32) error
	DeletePosting(ctx context.Context, db bun.IDB, auctionID int64) error
	InsertBidderHistory(ctx context.Context, db bun.IDB, row *models.BidderHistory) error
	InsertPending(ctx context.Context, db bun.IDB, row *models.PendingAuction) error
	DeletePending(ctx context.Context, db bun.IDB, player int64, auctionID int64) error
	InsertTombstone(ctx context.Context, db bun.IDB, row *models.Tombstone) error

	UpsertFavorite(ctx context.Context, player int64, slot int16, itemID int32) error
	DeleteFavorite(ctx context.Context, player int64, slot int16) error
	ListFavorites(ctx context.Context, player int64) ([]*models.Favorite, error)

	ListActivePostings(ctx context.Context, houseID int16) ([]*models.Posting, error)
}

type auctionRepository struct {
	db *bun.DB
}

func NewAuctionRepository(db *bun.DB) AuctionRepository {
	return &auctionRepository{db: db}
}

func (r *auctionRepository) DB() *bun.DB {
	return r.db
}

func (r *auctionRepository) InitializeTables(ctx context.Context) error {
	tables := []any{
		(*models.Posting)(nil),
		(*models.BidderHistory)(nil),
		(*models.PendingAuction)(nil),
		(*models.Favorite)(nil),
		(*models.Tombstone)(nil),
	}
	for _, model := range tables {
		if _, err := r.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("failed to create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		model  any
		name   string
		column string
	}{
		{(*models.Posting)(nil), "idx_ah_postings_house_id", "house_id"},
		{(*models.Posting)(nil), "idx_ah_postings_owner", "owner"},
		{(*models.BidderHistory)(nil), "idx_ah_bidder_history_auction_id", "auction_id"},
		{(*models.BidderHistory)(nil), "idx_ah_bidder_history_bidder", "bidder"},
	}
	for _, idx := range indexes {
		_, err := r.db.NewCreateIndex().
			Model(idx.model).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}
	return nil
}

func (r *auctionRepository) InsertPosting(ctx context.Context, db bun.IDB, row *models.Posting) error {
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert posting: %w", err)
	}
	return nil
}

func (r *auctionRepository) UpdatePostingBid(ctx context.Context, db bun.IDB, auctionID int64, bidder int64, amount int64) error {
	_, err := db.NewUpdate().
		Model((*models.Posting)(nil)).
		Set("bidder = ?", bidder).
		Set("bid_amount = ?", amount).
		Where("id = ?", auctionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update posting bid: %w", err)
	}
	return nil
}

func (r *auctionRepository) UpdatePostingQuantity(ctx context.Context, db bun.IDB, auctionID int64, quantity int32) error {
	_, err := db.NewUpdate().
		Model((*models.Posting)(nil)).
		Set("quantity = ?", quantity).
		Where("id = ?", auctionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update posting quantity: %w", err)
	}
	return nil
}

func (r *auctionRepository) DeletePosting(ctx context.Context, db bun.IDB, auctionID int64) error {
	_, err := db.NewDelete().
		Model((*models.Posting)(nil)).
		Where("id = ?", auctionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete posting: %w", err)
	}
	return nil
}

func (r *auctionRepository) InsertBidderHistory(ctx context.Context, db bun.IDB, row *models.BidderHistory) error {
	row.CreatedAt = time.Now()
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert bidder history: %w", err)
	}
	return nil
}

func (r *auctionRepository) InsertPending(ctx context.Context, db bun.IDB, row *models.PendingAuction) error {
	row.CreatedAt = time.Now()
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert pending auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) DeletePending(ctx context.Context, db bun.IDB, player int64, auctionID int64) error {
	_, err := db.NewDelete().
		Model((*models.PendingAuction)(nil)).
		Where("player = ? AND auction_id = ?", player, auctionID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete pending auction: %w", err)
	}
	return nil
}

func (r *auctionRepository) InsertTombstone(ctx context.Context, db bun.IDB, row *models.Tombstone) error {
	row.RemovedAt = time.Now()
	if _, err := db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to insert tombstone: %w", err)
	}
	return nil
}

func (r *auctionRepository) UpsertFavorite(ctx context.Context, player int64, slot int16, itemID int32) error {
	fav := &models.Favorite{Player: player, Slot: slot, ItemID: itemID}
	_, err := r.db.NewInsert().
		Model(fav).
		On("CONFLICT (player, slot) DO UPDATE").
		Set("item_id = EXCLUDED.item_id").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to upsert favorite: %w", err)
	}
	return nil
}

func (r *auctionRepository) DeleteFavorite(ctx context.Context, player int64, slot int16) error {
	_, err := r.db.NewDelete().
		Model((*models.Favorite)(nil)).
		Where("player = ? AND slot = ?", player, slot).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete favorite: %w", err)
	}
	return nil
}

func (r *auctionRepository) ListFavorites(ctx context.Context, player int64) ([]*models.Favorite, error) {
	var favorites []*models.Favorite
	err := r.db.NewSelect().
		Model(&favorites).
		Where("player = ?", player).
		Order("slot ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	return favorites, nil
}

func (r *auctionRepository) ListActivePostings(ctx context.Context, houseID int16) ([]*models.Posting, error) {
	var postings []*models.Posting
	err := r.db.NewSelect().
		Model(&postings).
		Where("house_id = ?", houseID).
		Order("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active postings: %w", err)
	}
	return postings, nil
}
