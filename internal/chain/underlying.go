package chain

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tidwall/btree"

	"optchain/internal/common"
)

// UnderlyingBook holds all expirations for one underlying symbol.
type UnderlyingBook struct {
	symbol      string
	expirations *ExpirationRegistry
}

func NewUnderlyingBook(symbol string, observer QuoteObserver) *UnderlyingBook {
	return &UnderlyingBook{
		symbol:      symbol,
		expirations: NewExpirationRegistry(symbol, observer),
	}
}

func (b *UnderlyingBook) Symbol() string {
	return b.symbol
}

// Expirations returns the expiration registry for direct traversal.
func (b *UnderlyingBook) Expirations() *ExpirationRegistry {
	return b.expirations
}

func (b *UnderlyingBook) GetOrCreateExpiration(expiration time.Time) *ExpirationBook {
	return b.expirations.GetOrCreate(expiration)
}

func (b *UnderlyingBook) Expiration(expiration time.Time) (*ExpirationBook, error) {
	return b.expirations.Get(expiration)
}

func (b *UnderlyingBook) ExpirationCount() int {
	return b.expirations.Len()
}

func (b *UnderlyingBook) IsEmpty() bool {
	return b.expirations.IsEmpty()
}

// ExpirationsSorted returns the term structure: expiration books by
// ascending date.
func (b *UnderlyingBook) ExpirationsSorted() []*ExpirationBook {
	return b.expirations.Sorted()
}

func (b *UnderlyingBook) TotalStrikeCount() int {
	return b.expirations.TotalStrikeCount()
}

func (b *UnderlyingBook) TotalOrderCount() int {
	return b.expirations.TotalOrderCount()
}

func (b *UnderlyingBook) TotalVolume() uint64 {
	return b.expirations.TotalVolume()
}

// Stats folds across all expirations at call time.
func (b *UnderlyingBook) Stats() UnderlyingStats {
	return UnderlyingStats{
		Underlying:      b.symbol,
		ExpirationCount: b.expirations.Len(),
		TotalStrikes:    b.expirations.TotalStrikeCount(),
		TotalOrders:     b.expirations.TotalOrderCount(),
		TotalVolume:     b.expirations.TotalVolume(),
	}
}

// UnderlyingRegistry is the root of the hierarchy: a concurrent map from
// underlying symbol to UnderlyingBook. Its lifetime is owned by the caller.
type UnderlyingRegistry struct {
	observer QuoteObserver

	createMu sync.Mutex
	tree     *btree.BTreeG[*UnderlyingBook]
}

// NewUnderlyingRegistry builds the root registry. The observer receives
// top-of-book changes from every contract created below this root; nil
// disables notification.
func NewUnderlyingRegistry(observer QuoteObserver) *UnderlyingRegistry {
	return &UnderlyingRegistry{
		observer: observer,
		tree: btree.NewBTreeG(func(a, b *UnderlyingBook) bool {
			return a.symbol < b.symbol
		}),
	}
}

// GetOrCreate returns the book for the symbol, constructing it exactly once.
func (r *UnderlyingRegistry) GetOrCreate(symbol string) *UnderlyingBook {
	if book, ok := r.tree.Get(&UnderlyingBook{symbol: symbol}); ok {
		return book
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()
	if book, ok := r.tree.Get(&UnderlyingBook{symbol: symbol}); ok {
		return book
	}
	book := NewUnderlyingBook(symbol, r.observer)
	r.tree.Set(book)
	log.Debug().Str("underlying", symbol).Msg("underlying book created")
	return book
}

// Get is a non-creating lookup.
func (r *UnderlyingRegistry) Get(symbol string) (*UnderlyingBook, error) {
	book, ok := r.tree.Get(&UnderlyingBook{symbol: symbol})
	if !ok {
		return nil, common.ErrUnderlyingNotFound
	}
	return book, nil
}

func (r *UnderlyingRegistry) Contains(symbol string) bool {
	_, ok := r.tree.Get(&UnderlyingBook{symbol: symbol})
	return ok
}

// Remove detaches the book for the symbol and returns it.
func (r *UnderlyingRegistry) Remove(symbol string) (*UnderlyingBook, bool) {
	return r.tree.Delete(&UnderlyingBook{symbol: symbol})
}

func (r *UnderlyingRegistry) Len() int {
	return r.tree.Len()
}

func (r *UnderlyingRegistry) IsEmpty() bool {
	return r.tree.Len() == 0
}

// Scan visits books in ascending symbol order until fn returns false.
func (r *UnderlyingRegistry) Scan(fn func(book *UnderlyingBook) bool) {
	r.tree.Scan(fn)
}

// Symbols returns all underlying symbols in ascending order.
func (r *UnderlyingRegistry) Symbols() []string {
	symbols := make([]string, 0, r.tree.Len())
	r.tree.Scan(func(book *UnderlyingBook) bool {
		symbols = append(symbols, book.symbol)
		return true
	})
	return symbols
}

// Stats folds the whole tree: underlyings, then expirations, then strikes.
// Always computed on demand; nothing is cached so no invalidation ever
// crosses levels.
func (r *UnderlyingRegistry) Stats() GlobalStats {
	var stats GlobalStats
	r.tree.Scan(func(book *UnderlyingBook) bool {
		stats.UnderlyingCount++
		stats.TotalExpirations += book.ExpirationCount()
		stats.TotalStrikes += book.TotalStrikeCount()
		stats.TotalOrders += book.TotalOrderCount()
		stats.TotalVolume += book.TotalVolume()
		return true
	})
	return stats
}
