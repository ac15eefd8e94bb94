package auctionhouse

import (
	"fmt"
	"sort"
	"strings"

	"github.com/disgoorg/snowflake/v2"
	lru "github.com/hashicorp/golang-lru"
	"github.com/sahilm/fuzzy"
	"github.com/tidwall/btree"
)

const (
	bucketPageSize = 50
	itemPageSize   = 50

	maxTombstones = 4096
)

// SubClassMaskAny is the "skip subclass filtering" sentinel for one class
// filter entry.
const SubClassMaskAny uint32 = 0xFFFFFFFF

// ClassFilter restricts browsing to one item class, optionally narrowed to a
// subclass bitmask.
type ClassFilter struct {
	ClassID      uint8
	SubClassMask uint32
}

// BrowseFilters are the caller-supplied search criteria for a bucket browse.
// A nil KnownPetSpecies set disables the known-pet filter.
type BrowseFilters struct {
	Name            string
	MinLevel        uint8
	MaxLevel        uint8
	KnownPetSpecies map[uint16]bool
	Classes         []ClassFilter
}

// SortOrder is one client sort key.
type SortOrder uint8

const (
	SortByPrice SortOrder = iota
	SortByName
	SortByLevel
	SortByTimeLeft
	SortByBid
	SortByQuantity
)

type Sort struct {
	Order SortOrder
	Desc  bool
}

// ListType classifies a posting page; commodities and unique items follow
// different purchase protocols afterwards.
type ListType uint8

const (
	ListTypeItems ListType = iota + 1
	ListTypeCommodities
)

type BucketPage struct {
	Buckets        []*AuctionBucket
	HasMoreResults bool
}

type ItemPage struct {
	ListType       ListType
	Postings       []*AuctionPosting
	TotalCount     int
	HasMoreResults bool
}

type replicationTombstone struct {
	Seq uint64
	ID  AuctionID
}

// ReplicateResult is one incremental slice of the house for addon mirrors.
// Callers feed Generation, NextCursor and TombstoneSeq back on the next poll.
type ReplicateResult struct {
	Generation   uint64
	NextCursor   uint64
	TombstoneSeq uint64
	Postings     []*AuctionPosting
	Removed      []AuctionID
	HasMore      bool
}

// BucketIndex is the search structure over one house's postings. Buckets are
// kept in a btree ordered by key; materialized browse pages are cached in an
// LRU that is purged on any mutation.
type BucketIndex struct {
	buckets *btree.BTreeG[*AuctionBucket]
	byID    map[AuctionID]*AuctionPosting
	owned   map[snowflake.ID]map[AuctionID]*AuctionPosting
	bidded  map[snowflake.ID]map[AuctionID]*AuctionPosting

	pages *lru.Cache

	generation   uint64
	changeNumber uint64
	tombstoneSeq uint64
	tombstones   []replicationTombstone
}

func NewBucketIndex(cacheSize int, generation uint64) *BucketIndex {
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, _ := lru.New(cacheSize)
	return &BucketIndex{
		buckets: btree.NewBTreeG(func(a, b *AuctionBucket) bool {
			return bucketKeyLess(a.Key, b.Key)
		}),
		byID:       make(map[AuctionID]*AuctionPosting),
		owned:      make(map[snowflake.ID]map[AuctionID]*AuctionPosting),
		bidded:     make(map[snowflake.ID]map[AuctionID]*AuctionPosting),
		pages:      cache,
		generation: generation,
	}
}

func (idx *BucketIndex) Len() int {
	return len(idx.byID)
}

func (idx *BucketIndex) Posting(id AuctionID) *AuctionPosting {
	return idx.byID[id]
}

func (idx *BucketIndex) Bucket(key BucketKey) *AuctionBucket {
	b, ok := idx.buckets.Get(&AuctionBucket{Key: key})
	if !ok {
		return nil
	}
	return b
}

// AddPosting inserts a posting, creating its bucket on first use.
func (idx *BucketIndex) AddPosting(p *AuctionPosting) {
	bucket := idx.Bucket(p.Key)
	if bucket == nil {
		item := p.Items[0]
		bucket = &AuctionBucket{
			Key:           p.Key,
			ItemName:      item.Name,
			Quality:       item.Quality,
			ClassID:       item.ClassID,
			SubClassID:    item.SubClassID,
			RequiredLevel: item.RequiredLevel,
		}
		idx.buckets.Set(bucket)
	}
	bucket.insert(p)

	idx.byID[p.ID] = p
	addToView(idx.owned, p.Owner, p)

	idx.changeNumber++
	p.changeNumber = idx.changeNumber
	idx.pages.Purge()
}

// RemovePosting detaches a posting from its bucket, dropping the bucket when
// it empties, and records a tombstone for replication.
func (idx *BucketIndex) RemovePosting(p *AuctionPosting) {
	if bucket := p.bucket; bucket != nil {
		bucket.remove(p)
		if bucket.PostingCount() == 0 {
			idx.buckets.Delete(bucket)
		}
	}

	delete(idx.byID, p.ID)
	removeFromView(idx.owned, p.Owner, p.ID)
	if p.Bidder != 0 {
		removeFromView(idx.bidded, p.Bidder, p.ID)
	}

	idx.tombstoneSeq++
	idx.tombstones = append(idx.tombstones, replicationTombstone{Seq: idx.tombstoneSeq, ID: p.ID})
	if len(idx.tombstones) > maxTombstones {
		idx.tombstones = idx.tombstones[len(idx.tombstones)-maxTombstones:]
	}
	idx.pages.Purge()
}

// TouchPosting bumps the replication counter after an in-place mutation.
func (idx *BucketIndex) TouchPosting(p *AuctionPosting) {
	idx.changeNumber++
	p.changeNumber = idx.changeNumber
	idx.pages.Purge()
}

// SetBidder maintains the player-scoped bid view across bidder changes.
func (idx *BucketIndex) SetBidder(p *AuctionPosting, previous, current snowflake.ID) {
	if previous != 0 && previous != current {
		removeFromView(idx.bidded, previous, p.ID)
	}
	if current != 0 {
		addToView(idx.bidded, current, p)
	}
}

func addToView(view map[snowflake.ID]map[AuctionID]*AuctionPosting, player snowflake.ID, p *AuctionPosting) {
	m, ok := view[player]
	if !ok {
		m = make(map[AuctionID]*AuctionPosting)
		view[player] = m
	}
	m[p.ID] = p
}

func removeFromView(view map[snowflake.ID]map[AuctionID]*AuctionPosting, player snowflake.ID, id AuctionID) {
	if m, ok := view[player]; ok {
		delete(m, id)
		if len(m) == 0 {
			delete(view, player)
		}
	}
}

// bucketNameSource adapts a candidate set to fuzzy matching.
type bucketNameSource []*AuctionBucket

func (s bucketNameSource) Len() int            { return len(s) }
func (s bucketNameSource) String(i int) string { return s[i].ItemName }

// BuildListBuckets runs a filtered browse and returns one page. Ties are
// always broken by bucket key so paging stays stable across requests.
func (idx *BucketIndex) BuildListBuckets(filters BrowseFilters, sorts []Sort, offset int) *BucketPage {
	sig := browseSignature(filters, sorts)
	if cached, ok := idx.pages.Get(sig); ok {
		if keys, ok := cached.([]BucketKey); ok {
			return idx.pageFromKeys(keys, offset)
		}
	}

	var candidates []*AuctionBucket
	idx.buckets.Scan(func(b *AuctionBucket) bool {
		if idx.matchesFilters(b, filters) {
			candidates = append(candidates, b)
		}
		return true
	})

	if filters.Name != "" {
		matches := fuzzy.FindFrom(strings.ToLower(filters.Name), bucketNameSource(candidates))
		matched := make([]*AuctionBucket, 0, len(matches))
		for _, m := range matches {
			matched = append(matched, candidates[m.Index])
		}
		candidates = matched
	}

	// A name query without explicit sorts keeps fuzzy relevance order.
	if len(sorts) > 0 || filters.Name == "" {
		sortBuckets(candidates, sorts)
	}

	keys := make([]BucketKey, len(candidates))
	for i, b := range candidates {
		keys[i] = b.Key
	}
	idx.pages.Add(sig, keys)

	return idx.pageFromKeys(keys, offset)
}

// BuildListBucketsByKeys resolves an explicit key set, used when the client
// already knows which buckets it wants.
func (idx *BucketIndex) BuildListBucketsByKeys(keys []BucketKey, sorts []Sort) *BucketPage {
	buckets := make([]*AuctionBucket, 0, len(keys))
	for _, key := range keys {
		if b := idx.Bucket(key); b != nil {
			buckets = append(buckets, b)
		}
	}
	sortBuckets(buckets, sorts)
	return &BucketPage{Buckets: buckets}
}

func (idx *BucketIndex) pageFromKeys(keys []BucketKey, offset int) *BucketPage {
	page := &BucketPage{}
	for i := offset; i < len(keys); i++ {
		b := idx.Bucket(keys[i])
		if b == nil {
			continue
		}
		if len(page.Buckets) == bucketPageSize {
			page.HasMoreResults = true
			break
		}
		page.Buckets = append(page.Buckets, b)
	}
	return page
}

func (idx *BucketIndex) matchesFilters(b *AuctionBucket, f BrowseFilters) bool {
	if f.MinLevel != 0 && b.RequiredLevel < f.MinLevel {
		return false
	}
	if f.MaxLevel != 0 && b.RequiredLevel > f.MaxLevel {
		return false
	}
	if f.KnownPetSpecies != nil && b.Key.BattlePetSpeciesID != 0 {
		if !f.KnownPetSpecies[b.Key.BattlePetSpeciesID] {
			return false
		}
	}
	if len(f.Classes) == 0 {
		return true
	}
	for _, cf := range f.Classes {
		if cf.ClassID != b.ClassID {
			continue
		}
		if cf.SubClassMask == SubClassMaskAny {
			return true
		}
		if cf.SubClassMask&(1<<uint32(b.SubClassID)) != 0 {
			return true
		}
	}
	return false
}

// BuildListAuctionItems pages the postings of one bucket and classifies the
// result as commodity or item listing.
func (idx *BucketIndex) BuildListAuctionItems(key BucketKey, sorts []Sort, offset int) *ItemPage {
	bucket := idx.Bucket(key)
	if bucket == nil {
		return &ItemPage{ListType: ListTypeItems}
	}
	return buildItemPage(bucket.Postings(), bucket.IsCommodity(), sorts, offset)
}

// BuildListAuctionItemsByItemID unions postings across every bucket of one
// item id.
func (idx *BucketIndex) BuildListAuctionItemsByItemID(itemID int32, sorts []Sort, offset int) *ItemPage {
	var postings []*AuctionPosting
	commodity := false
	idx.buckets.Ascend(&AuctionBucket{Key: BucketKey{ItemID: itemID}}, func(b *AuctionBucket) bool {
		if b.Key.ItemID != itemID {
			return false
		}
		commodity = commodity || b.IsCommodity()
		postings = append(postings, b.Postings()...)
		return true
	})
	return buildItemPage(postings, commodity, sorts, offset)
}

func buildItemPage(postings []*AuctionPosting, commodity bool, sorts []Sort, offset int) *ItemPage {
	listType := ListTypeItems
	if commodity {
		listType = ListTypeCommodities
	}

	sorted := make([]*AuctionPosting, len(postings))
	copy(sorted, postings)
	if commodity {
		// Commodity pages always present cheapest-then-oldest; that is the
		// order purchases consume.
		sort.SliceStable(sorted, func(i, j int) bool { return postingOrderLess(sorted[i], sorted[j]) })
	} else {
		sortPostings(sorted, sorts)
	}

	page := &ItemPage{ListType: listType, TotalCount: len(sorted)}
	if offset < 0 {
		offset = 0
	}
	for i := offset; i < len(sorted); i++ {
		if len(page.Postings) == itemPageSize {
			page.HasMoreResults = true
			break
		}
		page.Postings = append(page.Postings, sorted[i])
	}
	return page
}

// BuildListOwnedItems returns a player's own postings, oldest first.
func (idx *BucketIndex) BuildListOwnedItems(owner snowflake.ID) []*AuctionPosting {
	return viewSlice(idx.owned, owner)
}

// BuildListBiddedItems returns the postings a player currently holds or has
// held the top bid on while they remain active.
func (idx *BucketIndex) BuildListBiddedItems(bidder snowflake.ID) []*AuctionPosting {
	return viewSlice(idx.bidded, bidder)
}

func viewSlice(view map[snowflake.ID]map[AuctionID]*AuctionPosting, player snowflake.ID) []*AuctionPosting {
	m := view[player]
	out := make([]*AuctionPosting, 0, len(m))
	for _, p := range m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// BuildReplicate returns the postings changed since the caller's cursor and
// the removals since its tombstone sequence. A generation mismatch (house
// restarted) resets the cursor so the mirror rebuilds from scratch.
func (idx *BucketIndex) BuildReplicate(generation, cursor, tombstoneSeq uint64, count int) *ReplicateResult {
	if count <= 0 {
		count = itemPageSize
	}
	if generation != idx.generation {
		cursor = 0
		tombstoneSeq = idx.tombstoneSeq
	}

	changed := make([]*AuctionPosting, 0, count)
	for _, p := range idx.byID {
		if p.changeNumber > cursor {
			changed = append(changed, p)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].changeNumber < changed[j].changeNumber })

	result := &ReplicateResult{
		Generation:   idx.generation,
		NextCursor:   cursor,
		TombstoneSeq: idx.tombstoneSeq,
	}
	for _, p := range changed {
		if len(result.Postings) == count {
			result.HasMore = true
			break
		}
		result.Postings = append(result.Postings, p)
		result.NextCursor = p.changeNumber
	}

	for _, t := range idx.tombstones {
		if t.Seq > tombstoneSeq {
			result.Removed = append(result.Removed, t.ID)
		}
	}
	return result
}

func sortBuckets(buckets []*AuctionBucket, sorts []Sort) {
	sort.SliceStable(buckets, func(i, j int) bool {
		a, b := buckets[i], buckets[j]
		for _, s := range sorts {
			if cmp := compareBuckets(a, b, s.Order); cmp != 0 {
				if s.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return bucketKeyLess(a.Key, b.Key)
	})
}

func compareBuckets(a, b *AuctionBucket, order SortOrder) int {
	switch order {
	case SortByPrice:
		return compareInt64(a.MinPrice(), b.MinPrice())
	case SortByName:
		return strings.Compare(a.ItemName, b.ItemName)
	case SortByLevel:
		return compareInt64(int64(a.RequiredLevel), int64(b.RequiredLevel))
	case SortByQuantity:
		return compareInt64(a.TotalQuantity(), b.TotalQuantity())
	default:
		return 0
	}
}

func sortPostings(postings []*AuctionPosting, sorts []Sort) {
	sort.SliceStable(postings, func(i, j int) bool {
		a, b := postings[i], postings[j]
		for _, s := range sorts {
			if cmp := comparePostings(a, b, s.Order); cmp != 0 {
				if s.Desc {
					return cmp > 0
				}
				return cmp < 0
			}
		}
		return a.ID < b.ID
	})
}

func comparePostings(a, b *AuctionPosting, order SortOrder) int {
	switch order {
	case SortByPrice:
		return compareInt64(a.EffectivePrice(), b.EffectivePrice())
	case SortByBid:
		return compareInt64(a.BidAmount, b.BidAmount)
	case SortByTimeLeft:
		return compareInt64(a.EndTime.UnixNano(), b.EndTime.UnixNano())
	case SortByQuantity:
		return compareInt64(a.TotalItemCount(), b.TotalItemCount())
	case SortByLevel:
		return compareInt64(int64(a.Key.ItemLevel), int64(b.Key.ItemLevel))
	default:
		return 0
	}
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func browseSignature(f BrowseFilters, sorts []Sort) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "n=%s|l=%d-%d", strings.ToLower(f.Name), f.MinLevel, f.MaxLevel)
	if f.KnownPetSpecies != nil {
		species := make([]int, 0, len(f.KnownPetSpecies))
		for id, known := range f.KnownPetSpecies {
			if known {
				species = append(species, int(id))
			}
		}
		sort.Ints(species)
		fmt.Fprintf(&sb, "|p=%v", species)
	}
	for _, cf := range f.Classes {
		fmt.Fprintf(&sb, "|c=%d:%d", cf.ClassID, cf.SubClassMask)
	}
	for _, s := range sorts {
		fmt.Fprintf(&sb, "|s=%d:%t", s.Order, s.Desc)
	}
	return sb.String()
}
