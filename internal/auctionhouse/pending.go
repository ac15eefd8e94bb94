package auctionhouse

import (
	"context"
	"log/slog"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stormhold/auctionhouse/internal/database/models"
	"github.com/stormhold/auctionhouse/internal/database/repositories"
	"github.com/uptrace/bun"
)

// PendingAuction is a deposit escrow record: the deposit has been debited
// from the seller but the listing's commit callback has not fired yet. Its
// existence is what stops a player double-spending the same money across two
// concurrent sell attempts.
//
// A pending record has no independent timeout; it lives until the commit
// callback fires, matching the engine this was ported from.
type PendingAuction struct {
	Player    snowflake.ID
	HouseID   AuctionHouseID
	AuctionID AuctionID
	Deposit   int64
}

// PendingAuctions tracks deposit escrow per player. The escrow row is
// written synchronously so a crash between debit and listing commit is
// auditable.
type PendingAuctions struct {
	ledger   Ledger
	repo     repositories.AuctionRepository
	settler  Settler
	byPlayer map[snowflake.ID][]*PendingAuction
}

func NewPendingAuctions(ledger Ledger, repo repositories.AuctionRepository, settler Settler) *PendingAuctions {
	return &PendingAuctions{
		ledger:   ledger,
		repo:     repo,
		settler:  settler,
		byPlayer: make(map[snowflake.ID][]*PendingAuction),
	}
}

// Add re-verifies affordability and debits the deposit. It fails closed:
// when the player can no longer cover the deposit, or the escrow row cannot
// be written, nothing is charged and false is returned.
func (pa *PendingAuctions) Add(player snowflake.ID, houseID AuctionHouseID, auctionID AuctionID, deposit int64) bool {
	if pa.ledger.Balance(player) < deposit {
		return false
	}
	if err := pa.ledger.Debit(player, deposit); err != nil {
		return false
	}

	t := pa.settler.Tx()
	if pa.repo != nil {
		row := &models.PendingAuction{
			Player:    int64(player),
			AuctionID: int64(auctionID),
			HouseID:   int16(houseID),
			Deposit:   deposit,
		}
		t.Append(func(ctx context.Context, tx bun.Tx) error {
			return pa.repo.InsertPending(ctx, tx, row)
		})
	}
	if err := pa.settler.Commit(context.Background(), t); err != nil {
		slog.Error("Failed to write pending auction escrow",
			slog.String("player", player.String()),
			slog.Uint64("auction_id", uint64(auctionID)),
			slog.String("error", err.Error()))
		pa.ledger.Credit(player, deposit)
		return false
	}

	pa.byPlayer[player] = append(pa.byPlayer[player], &PendingAuction{
		Player:    player,
		HouseID:   houseID,
		AuctionID: auctionID,
		Deposit:   deposit,
	})
	return true
}

// Complete drops the escrow record once the listing's commit callback fires.
func (pa *PendingAuctions) Complete(player snowflake.ID, auctionID AuctionID) *PendingAuction {
	records := pa.byPlayer[player]
	for i, record := range records {
		if record.AuctionID == auctionID {
			pa.byPlayer[player] = append(records[:i], records[i+1:]...)
			if len(pa.byPlayer[player]) == 0 {
				delete(pa.byPlayer, player)
			}
			return record
		}
	}
	return nil
}

// TotalPending sums a player's escrowed deposits.
func (pa *PendingAuctions) TotalPending(player snowflake.ID) int64 {
	var total int64
	for _, record := range pa.byPlayer[player] {
		total += record.Deposit
	}
	return total
}
