package auctionhouse

import (
	"fmt"

	"github.com/disgoorg/snowflake/v2"
)

// Notifier turns lifecycle events into packets for online players and mail
// for everyone whose money or items move. Money and item attachments always
// travel by mail so the outcome survives the counterparty being offline.
type Notifier struct {
	houseID   AuctionHouseID
	directory OnlineDirectory
	packets   PacketSink
	mailer    Mailer
}

func NewNotifier(houseID AuctionHouseID, directory OnlineDirectory, packets PacketSink, mailer Mailer) *Notifier {
	return &Notifier{
		houseID:   houseID,
		directory: directory,
		packets:   packets,
		mailer:    mailer,
	}
}

// mailSubject encodes itemID:quantity:type, the format the house mail
// protocol expects on settlement notices.
func mailSubject(p *AuctionPosting, mailType MailType) string {
	return fmt.Sprintf("%d:%d:%d", p.Key.ItemID, p.TotalItemCount(), int32(mailType))
}

// Outbid refunds the displaced bidder by mail and pings them if online.
func (n *Notifier) Outbid(t *AuctionTransaction, p *AuctionPosting, outbid snowflake.ID, refund, newBid int64) {
	n.mailer.Stage(t, MailDraft{
		Receiver: outbid,
		Type:     MailOutbid,
		Subject:  mailSubject(p, MailOutbid),
		Money:    refund,
		HouseID:  n.houseID,
	})
	if _, online := n.directory.Session(outbid); online {
		n.packets.SendOutbid(outbid, p.ID, p.Key.ItemID, newBid)
	}
}

// AuctionSold mails the owner their proceeds and notifies them if online.
func (n *Notifier) AuctionSold(t *AuctionTransaction, p *AuctionPosting, proceeds int64) {
	n.mailer.Stage(t, MailDraft{
		Receiver: p.Owner,
		Type:     MailSold,
		Subject:  mailSubject(p, MailSold),
		Money:    proceeds,
		HouseID:  n.houseID,
	})
	if _, online := n.directory.Session(p.Owner); online {
		n.packets.SendClosed(p.Owner, p.ID, true)
	}
}

// AuctionWon mails the buyer the escrowed items and notifies them if online.
func (n *Notifier) AuctionWon(t *AuctionTransaction, p *AuctionPosting, buyer snowflake.ID) {
	n.mailer.Stage(t, MailDraft{
		Receiver: buyer,
		Type:     MailWon,
		Subject:  mailSubject(p, MailWon),
		Items:    p.Items,
		HouseID:  n.houseID,
	})
	if _, online := n.directory.Session(buyer); online {
		n.packets.SendWon(buyer, p.ID, p.Key.ItemID)
	}
}

// AuctionCancelled returns the items to the owner. The deposit is forfeited.
func (n *Notifier) AuctionCancelled(t *AuctionTransaction, p *AuctionPosting) {
	n.mailer.Stage(t, MailDraft{
		Receiver: p.Owner,
		Type:     MailCancelled,
		Subject:  mailSubject(p, MailCancelled),
		Items:    p.Items,
		HouseID:  n.houseID,
	})
}

// CancellationRefund pays the standing bidder back in full when the owner
// cancels out from under them.
func (n *Notifier) CancellationRefund(t *AuctionTransaction, p *AuctionPosting) {
	n.mailer.Stage(t, MailDraft{
		Receiver: p.Bidder,
		Type:     MailCancellationRefund,
		Subject:  mailSubject(p, MailCancellationRefund),
		Money:    p.BidAmount,
		HouseID:  n.houseID,
	})
}

// AuctionExpired returns an unsold posting to its owner with the deposit
// refunded.
func (n *Notifier) AuctionExpired(t *AuctionTransaction, p *AuctionPosting) {
	n.mailer.Stage(t, MailDraft{
		Receiver: p.Owner,
		Type:     MailExpired,
		Subject:  mailSubject(p, MailExpired),
		Money:    p.Deposit,
		Items:    p.Items,
		HouseID:  n.houseID,
	})
	if _, online := n.directory.Session(p.Owner); online {
		n.packets.SendClosed(p.Owner, p.ID, false)
	}
}

// CommoditySold mails one seller their share of a commodity purchase.
func (n *Notifier) CommoditySold(t *AuctionTransaction, p *AuctionPosting, quantity, proceeds int64) {
	n.mailer.Stage(t, MailDraft{
		Receiver: p.Owner,
		Type:     MailSold,
		Subject:  fmt.Sprintf("%d:%d:%d", p.Key.ItemID, quantity, int32(MailSold)),
		Money:    proceeds,
		HouseID:  n.houseID,
	})
	if _, online := n.directory.Session(p.Owner); online {
		n.packets.SendClosed(p.Owner, p.ID, true)
	}
}

// CommodityDelivery mails the purchased units to the buyer.
func (n *Notifier) CommodityDelivery(t *AuctionTransaction, buyer snowflake.ID, itemID int32, quantity int64, items []*ItemInstance) {
	n.mailer.Stage(t, MailDraft{
		Receiver: buyer,
		Type:     MailCommodityDelivery,
		Subject:  fmt.Sprintf("%d:%d:%d", itemID, quantity, int32(MailCommodityDelivery)),
		Items:    items,
		HouseID:  n.houseID,
	})
}
