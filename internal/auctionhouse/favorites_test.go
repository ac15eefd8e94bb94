package auctionhouse

import (
	"context"
	"testing"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormhold/auctionhouse/internal/database/models"
)

type favoriteRepo struct {
	recoverRepo
	stored map[int16]int32
}

func (r *favoriteRepo) UpsertFavorite(ctx context.Context, player int64, slot int16, itemID int32) error {
	r.stored[slot] = itemID
	return nil
}

func (r *favoriteRepo) DeleteFavorite(ctx context.Context, player int64, slot int16) error {
	delete(r.stored, slot)
	return nil
}

func (r *favoriteRepo) ListFavorites(ctx context.Context, player int64) ([]*models.Favorite, error) {
	var out []*models.Favorite
	for slot, itemID := range r.stored {
		out = append(out, &models.Favorite{Player: player, Slot: slot, ItemID: itemID})
	}
	return out, nil
}

func TestFavorites(t *testing.T) {
	ctx := context.Background()
	player := snowflake.ID(1)
	repo := &favoriteRepo{stored: make(map[int16]int32)}
	favorites := NewFavorites(repo)

	require.NoError(t, favorites.Set(ctx, player, 0, 19019, true))
	require.NoError(t, favorites.Set(ctx, player, 1, 4234, true))

	entries, err := favorites.List(ctx, player)
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	// Overwriting a slot keeps one entry.
	require.NoError(t, favorites.Set(ctx, player, 0, 21134, true))
	assert.Equal(t, int32(21134), repo.stored[0])

	// Clearing deletes the row.
	require.NoError(t, favorites.Set(ctx, player, 0, 0, false))
	entries, err = favorites.List(ctx, player)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	assert.Error(t, favorites.Set(ctx, player, -1, 1, true))
	assert.Error(t, favorites.Set(ctx, player, maxFavoriteSlots, 1, true))
}
