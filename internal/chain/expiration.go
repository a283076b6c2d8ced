package chain

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"optchain/internal/common"
)

// ExpirationBook is the option chain for one expiration date: it owns the
// strike registry and exposes chain-level aggregation.
type ExpirationBook struct {
	underlying string
	expiration time.Time
	strikes    *StrikeRegistry
}

func NewExpirationBook(underlying string, expiration time.Time, observer QuoteObserver) *ExpirationBook {
	expiration = normalizeExpiration(expiration)
	return &ExpirationBook{
		underlying: underlying,
		expiration: expiration,
		strikes:    NewStrikeRegistry(underlying, expiration, observer),
	}
}

func (b *ExpirationBook) Underlying() string {
	return b.underlying
}

func (b *ExpirationBook) Expiration() time.Time {
	return b.expiration
}

// Strikes returns the strike registry for direct traversal.
func (b *ExpirationBook) Strikes() *StrikeRegistry {
	return b.strikes
}

func (b *ExpirationBook) GetOrCreateStrike(strike decimal.Decimal) *StrikePair {
	return b.strikes.GetOrCreate(strike)
}

func (b *ExpirationBook) Strike(strike decimal.Decimal) (*StrikePair, error) {
	return b.strikes.Get(strike)
}

func (b *ExpirationBook) StrikeCount() int {
	return b.strikes.Len()
}

func (b *ExpirationBook) IsEmpty() bool {
	return b.strikes.IsEmpty()
}

func (b *ExpirationBook) StrikePrices() []decimal.Decimal {
	return b.strikes.Strikes()
}

// ATMStrike returns the strike pair closest to the reference price, ties
// broken toward the lower strike.
func (b *ExpirationBook) ATMStrike(reference decimal.Decimal) (*StrikePair, error) {
	return b.strikes.ATMStrike(reference)
}

// StrikeQuote is one row of a chain snapshot.
type StrikeQuote struct {
	Strike decimal.Decimal
	Call   common.Quote
	Put    common.Quote
}

// ChainQuotes snapshots the whole chain in ascending strike order. Each row's
// quotes are fresh reads; the rows together are weakly consistent with
// concurrent mutation.
func (b *ExpirationBook) ChainQuotes() []StrikeQuote {
	quotes := make([]StrikeQuote, 0, b.strikes.Len())
	b.strikes.Scan(func(pair *StrikePair) bool {
		quotes = append(quotes, StrikeQuote{
			Strike: pair.Strike(),
			Call:   pair.Call().BestQuote(),
			Put:    pair.Put().BestQuote(),
		})
		return true
	})
	return quotes
}

// Scan visits strike pairs in ascending order until fn returns false.
func (b *ExpirationBook) Scan(fn func(pair *StrikePair) bool) {
	b.strikes.Scan(fn)
}

// Stats folds the chain's counters at call time. Nothing is maintained
// incrementally, so the result is weakly consistent with concurrent inserts.
func (b *ExpirationBook) Stats() ChainStats {
	return ChainStats{
		Underlying:    b.underlying,
		Expiration:    b.expiration,
		StrikeCount:   b.strikes.Len(),
		TotalOrders:   b.strikes.TotalOrderCount(),
		TotalVolume:   b.strikes.TotalVolume(),
		TwoSidedCount: b.strikes.TwoSidedCount(),
	}
}

// ExpirationRegistry maps expiration date to ExpirationBook for one
// underlying, with the same creation protocol as the strike registry.
type ExpirationRegistry struct {
	underlying string
	observer   QuoteObserver

	createMu sync.Mutex
	tree     *btree.BTreeG[*ExpirationBook]
}

func NewExpirationRegistry(underlying string, observer QuoteObserver) *ExpirationRegistry {
	return &ExpirationRegistry{
		underlying: underlying,
		observer:   observer,
		tree: btree.NewBTreeG(func(a, b *ExpirationBook) bool {
			return a.expiration.Before(b.expiration)
		}),
	}
}

func (r *ExpirationRegistry) Underlying() string {
	return r.underlying
}

// GetOrCreate returns the book for the expiration date, constructing it
// exactly once. The date is truncated to its UTC calendar day.
func (r *ExpirationRegistry) GetOrCreate(expiration time.Time) *ExpirationBook {
	expiration = normalizeExpiration(expiration)
	if book, ok := r.tree.Get(&ExpirationBook{expiration: expiration}); ok {
		return book
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()
	if book, ok := r.tree.Get(&ExpirationBook{expiration: expiration}); ok {
		return book
	}
	book := NewExpirationBook(r.underlying, expiration, r.observer)
	r.tree.Set(book)
	log.Debug().
		Str("underlying", r.underlying).
		Time("expiration", expiration).
		Msg("expiration book created")
	return book
}

// Get is a non-creating lookup.
func (r *ExpirationRegistry) Get(expiration time.Time) (*ExpirationBook, error) {
	book, ok := r.tree.Get(&ExpirationBook{expiration: normalizeExpiration(expiration)})
	if !ok {
		return nil, common.ErrExpirationNotFound
	}
	return book, nil
}

func (r *ExpirationRegistry) Contains(expiration time.Time) bool {
	_, ok := r.tree.Get(&ExpirationBook{expiration: normalizeExpiration(expiration)})
	return ok
}

// Remove detaches the book for the expiration and returns it.
func (r *ExpirationRegistry) Remove(expiration time.Time) (*ExpirationBook, bool) {
	return r.tree.Delete(&ExpirationBook{expiration: normalizeExpiration(expiration)})
}

func (r *ExpirationRegistry) Len() int {
	return r.tree.Len()
}

func (r *ExpirationRegistry) IsEmpty() bool {
	return r.tree.Len() == 0
}

// Scan visits books in ascending date order until fn returns false. Weakly
// consistent, like every traversal in this package.
func (r *ExpirationRegistry) Scan(fn func(book *ExpirationBook) bool) {
	r.tree.Scan(fn)
}

// Sorted returns all expiration books by ascending date, for term-structure
// traversal.
func (r *ExpirationRegistry) Sorted() []*ExpirationBook {
	books := make([]*ExpirationBook, 0, r.tree.Len())
	r.tree.Scan(func(book *ExpirationBook) bool {
		books = append(books, book)
		return true
	})
	return books
}

func (r *ExpirationRegistry) TotalStrikeCount() int {
	var total int
	r.tree.Scan(func(book *ExpirationBook) bool {
		total += book.StrikeCount()
		return true
	})
	return total
}

func (r *ExpirationRegistry) TotalOrderCount() int {
	var total int
	r.tree.Scan(func(book *ExpirationBook) bool {
		total += book.strikes.TotalOrderCount()
		return true
	})
	return total
}

func (r *ExpirationRegistry) TotalVolume() uint64 {
	var total uint64
	r.tree.Scan(func(book *ExpirationBook) bool {
		total += book.strikes.TotalVolume()
		return true
	})
	return total
}
