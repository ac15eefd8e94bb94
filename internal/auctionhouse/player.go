package auctionhouse

import (
	"errors"
	"time"

	"github.com/disgoorg/snowflake/v2"
)

// ErrInsufficientFunds is returned by Ledger.Debit when the player cannot
// cover the amount.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Ledger is the money side of the player collaborator. All amounts are
// copper. The engine always checks Balance before Debit, but Debit must still
// fail closed because time may have passed between the two calls.
type Ledger interface {
	Balance(player snowflake.ID) int64
	Debit(player snowflake.ID, amount int64) error
	Credit(player snowflake.ID, amount int64)
}

// OnlineDirectory resolves player identity and connection state. The session
// token changes whenever a player logs out or is replaced, which is what the
// settlement pipeline checks before running a completion continuation.
type OnlineDirectory interface {
	Session(player snowflake.ID) (token uint64, online bool)
	Account(player snowflake.ID) snowflake.ID
}

// PacketSink receives the synchronous, per-session notifications. A real
// server adapts this onto its opcode writer; tests record the calls.
type PacketSink interface {
	SendCommandResult(player snowflake.ID, auctionID AuctionID, command ThrottleCommand, result AuctionResult, delay time.Duration)
	SendOutbid(bidder snowflake.ID, auctionID AuctionID, itemID int32, newBid int64)
	SendOwnerBidPlaced(owner snowflake.ID, auctionID AuctionID, bid int64, bidder snowflake.ID)
	SendClosed(owner snowflake.ID, auctionID AuctionID, sold bool)
	SendWon(bidder snowflake.ID, auctionID AuctionID, itemID int32)
}

// MailType tags the settlement mail a draft represents; it is encoded into
// the subject line the house mail protocol expects.
type MailType int32

const (
	MailOutbid MailType = iota
	MailWon
	MailSold
	MailCancelled
	MailCancellationRefund
	MailExpired
	MailCommodityDelivery
)

// MailDraft is a settlement notice with optional money and item attachments.
type MailDraft struct {
	Receiver snowflake.ID
	Type     MailType
	Subject  string
	Body     string
	Money    int64
	Items    []*ItemInstance
	HouseID  AuctionHouseID
}

// Mailer persists a draft as part of a settlement transaction. Stage must
// only append operations to the transaction; delivery happens when the
// transaction commits.
type Mailer interface {
	Stage(t *AuctionTransaction, draft MailDraft)
}

// Stat identifies a per-player criteria/statistics counter bumped on
// confirmed commits.
type Stat uint8

const (
	StatBidsPlaced Stat = iota
	StatAuctionsWon
	StatAuctionsSold
	StatGoldSpentOnAuctions
	StatGoldEarnedFromAuctions
)

// StatsSink receives criteria/statistics increments.
type StatsSink interface {
	Increment(player snowflake.ID, stat Stat, value int64)
}
