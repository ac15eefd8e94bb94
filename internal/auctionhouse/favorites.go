package auctionhouse

import (
	"context"
	"fmt"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stormhold/auctionhouse/internal/database/repositories"
)

const maxFavoriteSlots = 100

// FavoriteEntry is one saved search slot.
type FavoriteEntry struct {
	Slot   int16
	ItemID int32
}

// Favorites persists per-player saved searches. Slots are client-assigned;
// setting a slot overwrites it and clearing one deletes it. Writes go
// straight through to storage since favorites carry no money or items.
type Favorites struct {
	repo repositories.AuctionRepository
}

func NewFavorites(repo repositories.AuctionRepository) *Favorites {
	return &Favorites{repo: repo}
}

// Set stores or clears one favorite slot.
func (f *Favorites) Set(ctx context.Context, player snowflake.ID, slot int16, itemID int32, set bool) error {
	if slot < 0 || slot >= maxFavoriteSlots {
		return fmt.Errorf("favorite slot %d out of range", slot)
	}
	if f.repo == nil {
		return nil
	}
	if !set {
		if err := f.repo.DeleteFavorite(ctx, int64(player), slot); err != nil {
			return fmt.Errorf("failed to clear favorite: %w", err)
		}
		return nil
	}
	if err := f.repo.UpsertFavorite(ctx, int64(player), slot, itemID); err != nil {
		return fmt.Errorf("failed to set favorite: %w", err)
	}
	return nil
}

// List returns a player's favorites in slot order.
func (f *Favorites) List(ctx context.Context, player snowflake.ID) ([]FavoriteEntry, error) {
	if f.repo == nil {
		return nil, nil
	}
	rows, err := f.repo.ListFavorites(ctx, int64(player))
	if err != nil {
		return nil, fmt.Errorf("failed to list favorites: %w", err)
	}
	entries := make([]FavoriteEntry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, FavoriteEntry{Slot: row.Slot, ItemID: row.ItemID})
	}
	return entries, nil
}
