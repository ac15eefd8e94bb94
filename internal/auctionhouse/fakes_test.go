package auctionhouse

import (
	"context"
	"time"

	"github.com/disgoorg/snowflake/v2"
	"github.com/stormhold/auctionhouse/internal/config"
)

// Shared test doubles. The settler commits synchronously so continuations run
// before the operation under test returns.

type fakeLedger struct {
	balances map[snowflake.ID]int64
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{balances: make(map[snowflake.ID]int64)}
}

func (l *fakeLedger) Balance(player snowflake.ID) int64 {
	return l.balances[player]
}

func (l *fakeLedger) Debit(player snowflake.ID, amount int64) error {
	if l.balances[player] < amount {
		return ErrInsufficientFunds
	}
	l.balances[player] -= amount
	return nil
}

func (l *fakeLedger) Credit(player snowflake.ID, amount int64) {
	l.balances[player] += amount
}

type fakeDirectory struct {
	sessions map[snowflake.ID]uint64
	accounts map[snowflake.ID]snowflake.ID
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		sessions: make(map[snowflake.ID]uint64),
		accounts: make(map[snowflake.ID]snowflake.ID),
	}
}

func (d *fakeDirectory) connect(player snowflake.ID, token uint64) {
	d.sessions[player] = token
}

func (d *fakeDirectory) Session(player snowflake.ID) (uint64, bool) {
	token, online := d.sessions[player]
	return token, online
}

func (d *fakeDirectory) Account(player snowflake.ID) snowflake.ID {
	return d.accounts[player]
}

type sentResult struct {
	player    snowflake.ID
	auctionID AuctionID
	command   ThrottleCommand
	result    AuctionResult
}

type fakePackets struct {
	results   []sentResult
	outbids   []snowflake.ID
	ownerBids []snowflake.ID
	closed    []AuctionID
	won       []AuctionID
}

func (p *fakePackets) SendCommandResult(player snowflake.ID, auctionID AuctionID, command ThrottleCommand, result AuctionResult, delay time.Duration) {
	p.results = append(p.results, sentResult{player: player, auctionID: auctionID, command: command, result: result})
}

func (p *fakePackets) SendOutbid(bidder snowflake.ID, auctionID AuctionID, itemID int32, newBid int64) {
	p.outbids = append(p.outbids, bidder)
}

func (p *fakePackets) SendOwnerBidPlaced(owner snowflake.ID, auctionID AuctionID, bid int64, bidder snowflake.ID) {
	p.ownerBids = append(p.ownerBids, owner)
}

func (p *fakePackets) SendClosed(owner snowflake.ID, auctionID AuctionID, sold bool) {
	p.closed = append(p.closed, auctionID)
}

func (p *fakePackets) SendWon(bidder snowflake.ID, auctionID AuctionID, itemID int32) {
	p.won = append(p.won, auctionID)
}

type fakeMailer struct {
	drafts []MailDraft
}

func (m *fakeMailer) Stage(t *AuctionTransaction, draft MailDraft) {
	m.drafts = append(m.drafts, draft)
}

func (m *fakeMailer) byType(mt MailType) []MailDraft {
	var out []MailDraft
	for _, d := range m.drafts {
		if d.Type == mt {
			out = append(out, d)
		}
	}
	return out
}

type fakeStats struct {
	counts map[snowflake.ID]map[Stat]int64
}

func newFakeStats() *fakeStats {
	return &fakeStats{counts: make(map[snowflake.ID]map[Stat]int64)}
}

func (s *fakeStats) Increment(player snowflake.ID, stat Stat, value int64) {
	m, ok := s.counts[player]
	if !ok {
		m = make(map[Stat]int64)
		s.counts[player] = m
	}
	m[stat] += value
}

func (s *fakeStats) get(player snowflake.ID, stat Stat) int64 {
	return s.counts[player][stat]
}

// fakeSettler runs every submission synchronously and reports success.
type fakeSettler struct {
	submitted int
	failNext  bool
}

func (s *fakeSettler) Tx() *AuctionTransaction {
	return &AuctionTransaction{}
}

func (s *fakeSettler) Submit(t *AuctionTransaction, actor snowflake.ID, done func(committed bool)) {
	s.submitted++
	if done != nil {
		done(!s.failNext)
	}
	s.failNext = false
}

func (s *fakeSettler) Commit(ctx context.Context, t *AuctionTransaction) error {
	return nil
}

type fakeItems struct {
	templates map[int32]*ItemInstance
}

func (f *fakeItems) Template(itemID int32) (*ItemInstance, bool) {
	template, ok := f.templates[itemID]
	return template, ok
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time {
	return c.now
}

func (c *testClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

type testEnv struct {
	house   *AuctionHouseObject
	reg     *Registry
	ledger  *fakeLedger
	dir     *fakeDirectory
	packets *fakePackets
	mailer  *fakeMailer
	stats   *fakeStats
	settler *fakeSettler
	clock   *testClock
}

func newTestEnv() *testEnv {
	env := &testEnv{
		ledger:  newFakeLedger(),
		dir:     newFakeDirectory(),
		packets: &fakePackets{},
		mailer:  &fakeMailer{},
		stats:   newFakeStats(),
		settler: &fakeSettler{},
		clock:   &testClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)},
	}
	env.reg = NewRegistry(config.DefaultHouse(), Dependencies{
		Ledger:    env.ledger,
		Directory: env.dir,
		Packets:   env.packets,
		Mailer:    env.mailer,
		Stats:     env.stats,
		Settler:   env.settler,
		Clock:     env.clock.Now,
	})
	env.house = env.reg.House(AuctionHouseNeutral)
	return env
}

func uniqueItem(itemID int32, name string, level uint16) *ItemInstance {
	return &ItemInstance{
		ItemID:       itemID,
		Name:         name,
		Count:        1,
		MaxStackSize: 1,
		ItemLevel:    level,
	}
}

func commodityStack(itemID int32, name string, count int32) *ItemInstance {
	return &ItemInstance{
		ItemID:       itemID,
		Name:         name,
		Count:        count,
		MaxStackSize: 200,
	}
}
