package auctionhouse

// AuctionResult is the typed outcome attached to every mutating response.
// Validation failures are reported synchronously with one of these codes;
// persistence failures arrive later as ResultDatabaseError.
type AuctionResult int32

const (
	ResultOk AuctionResult = iota
	ResultItemNotFound
	ResultBidOwn
	ResultHigherBid
	ResultBidIncrement
	ResultNotEnoughMoney
	ResultCommodityPurchaseFailed
	ResultAuctionHouseBusy
	ResultDatabaseError
	ResultInventory
)

func (r AuctionResult) String() string {
	switch r {
	case ResultOk:
		return "ok"
	case ResultItemNotFound:
		return "item_not_found"
	case ResultBidOwn:
		return "bid_own"
	case ResultHigherBid:
		return "higher_bid"
	case ResultBidIncrement:
		return "bid_increment"
	case ResultNotEnoughMoney:
		return "not_enough_money"
	case ResultCommodityPurchaseFailed:
		return "commodity_purchase_failed"
	case ResultAuctionHouseBusy:
		return "auction_house_busy"
	case ResultDatabaseError:
		return "database_error"
	case ResultInventory:
		return "inventory"
	default:
		return "unknown"
	}
}

// InventoryResult is the sub-code wrapped by ResultInventory.
type InventoryResult int32

const (
	InventoryOk InventoryResult = iota
	InventoryTooMuchGold
	InventoryFull
	InventoryItemLocked
)

// ThrottleCommand is the per-command throttle category. Mutating commands
// each get their own window; browse traffic shares CommandNone, which is
// never delayed but still echoes the hint.
type ThrottleCommand int

const (
	CommandNone ThrottleCommand = iota
	CommandSellItem
	CommandSellCommodity
	CommandPlaceBid
	CommandCancel
	CommandGetCommodityQuote
	CommandConfirmCommodityPurchase
	CommandSetFavorite
	commandCount
)

func (c ThrottleCommand) String() string {
	switch c {
	case CommandNone:
		return "none"
	case CommandSellItem:
		return "sell_item"
	case CommandSellCommodity:
		return "sell_commodity"
	case CommandPlaceBid:
		return "place_bid"
	case CommandCancel:
		return "cancel"
	case CommandGetCommodityQuote:
		return "get_commodity_quote"
	case CommandConfirmCommodityPurchase:
		return "confirm_commodity_purchase"
	case CommandSetFavorite:
		return "set_favorite"
	default:
		return "unknown"
	}
}
