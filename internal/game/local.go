package game

import (
	"log/slog"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stormhold/auctionhouse/internal/auctionhouse"
)

// Local adapters back the engine when it runs standalone, without a world
// server attached: an in-memory money ledger, an always-offline directory and
// log-only packet, mail and stats sinks. A real deployment swaps these for
// bridges into the game server.

// LocalLedger is an in-memory copper ledger.
type LocalLedger struct {
	balances map[snowflake.ID]int64
}

func NewLocalLedger() *LocalLedger {
	return &LocalLedger{balances: make(map[snowflake.ID]int64)}
}

func (l *LocalLedger) Balance(player snowflake.ID) int64 {
	return l.balances[player]
}

func (l *LocalLedger) Debit(player snowflake.ID, amount int64) error {
	if l.balances[player] < amount {
		return auctionhouse.ErrInsufficientFunds
	}
	l.balances[player] -= amount
	return nil
}

func (l *LocalLedger) Credit(player snowflake.ID, amount int64) {
	l.balances[player] += amount
}

// LocalDirectory tracks sessions registered by the embedding process.
type LocalDirectory struct {
	sessions map[snowflake.ID]uint64
	accounts map[snowflake.ID]snowflake.ID
}

func NewLocalDirectory() *LocalDirectory {
	return &LocalDirectory{
		sessions: make(map[snowflake.ID]uint64),
		accounts: make(map[snowflake.ID]snowflake.ID),
	}
}

func (d *LocalDirectory) Connect(player snowflake.ID, token uint64, account snowflake.ID) {
	d.sessions[player] = token
	d.accounts[player] = account
}

func (d *LocalDirectory) Disconnect(player snowflake.ID) {
	delete(d.sessions, player)
}

func (d *LocalDirectory) Session(player snowflake.ID) (uint64, bool) {
	token, online := d.sessions[player]
	return token, online
}

func (d *LocalDirectory) Account(player snowflake.ID) snowflake.ID {
	return d.accounts[player]
}

// LogPacketSink writes would-be client packets to the log.
type LogPacketSink struct{}

func (LogPacketSink) SendCommandResult(player snowflake.ID, auctionID auctionhouse.AuctionID, command auctionhouse.ThrottleCommand, result auctionhouse.AuctionResult, delay time.Duration) {
	slog.Debug("Packet: command result",
		slog.String("player", player.String()),
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.String("result", result.String()))
}

func (LogPacketSink) SendOutbid(player snowflake.ID, auctionID auctionhouse.AuctionID, itemID int32, newBid int64) {
	slog.Debug("Packet: outbid",
		slog.String("player", player.String()),
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.Int64("new_bid", newBid))
}

func (LogPacketSink) SendOwnerBidPlaced(owner snowflake.ID, auctionID auctionhouse.AuctionID, amount int64, bidder snowflake.ID) {
	slog.Debug("Packet: owner bid placed",
		slog.String("owner", owner.String()),
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.Int64("amount", amount))
}

func (LogPacketSink) SendClosed(player snowflake.ID, auctionID auctionhouse.AuctionID, sold bool) {
	slog.Debug("Packet: auction closed",
		slog.String("player", player.String()),
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.Bool("sold", sold))
}

func (LogPacketSink) SendWon(player snowflake.ID, auctionID auctionhouse.AuctionID, itemID int32) {
	slog.Debug("Packet: auction won",
		slog.String("player", player.String()),
		slog.Uint64("auction_id", uint64(auctionID)),
		slog.Int("item_id", int(itemID)))
}

// LogMailer logs staged mail instead of handing it to a mail subsystem.
type LogMailer struct{}

func (LogMailer) Stage(_ *auctionhouse.AuctionTransaction, draft auctionhouse.MailDraft) {
	slog.Info("Mail staged",
		slog.String("receiver", draft.Receiver.String()),
		slog.String("subject", draft.Subject),
		slog.Int64("money", draft.Money),
		slog.Int("items", len(draft.Items)))
}

// LogStats logs statistic increments.
type LogStats struct{}

func (LogStats) Increment(player snowflake.ID, stat auctionhouse.Stat, delta int64) {
	slog.Debug("Stat incremented",
		slog.String("player", player.String()),
		slog.Int("stat", int(stat)),
		slog.Int64("delta", delta))
}

// StaticItems is a map-backed item template resolver, populated by the
// embedding process.
type StaticItems struct {
	templates map[int32]*auctionhouse.ItemInstance
}

func NewStaticItems() *StaticItems {
	return &StaticItems{templates: make(map[int32]*auctionhouse.ItemInstance)}
}

func (s *StaticItems) Add(template *auctionhouse.ItemInstance) {
	s.templates[template.ItemID] = template
}

func (s *StaticItems) Template(itemID int32) (*auctionhouse.ItemInstance, bool) {
	template, ok := s.templates[itemID]
	return template, ok
}
