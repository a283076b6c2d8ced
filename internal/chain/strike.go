package chain

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"optchain/internal/common"
	"optchain/internal/pricing"
)

// StrikePair holds the call and put contract books for one strike price.
// Both sides are constructed before the pair is published to any caller, so
// a partially built pair is never observable.
type StrikePair struct {
	underlying string
	expiration time.Time
	strike     decimal.Decimal
	call       *ContractBook
	put        *ContractBook

	greeksMu   sync.RWMutex
	callGreeks *pricing.Greeks
	putGreeks  *pricing.Greeks
}

func NewStrikePair(underlying string, expiration time.Time, strike decimal.Decimal, observer QuoteObserver) *StrikePair {
	expiration = normalizeExpiration(expiration)
	return &StrikePair{
		underlying: underlying,
		expiration: expiration,
		strike:     strike,
		call:       NewContractBook(FormatInstrumentID(underlying, expiration, strike, common.Call), common.Call, observer),
		put:        NewContractBook(FormatInstrumentID(underlying, expiration, strike, common.Put), common.Put, observer),
	}
}

func (p *StrikePair) Underlying() string {
	return p.underlying
}

func (p *StrikePair) Expiration() time.Time {
	return p.expiration
}

func (p *StrikePair) Strike() decimal.Decimal {
	return p.strike
}

func (p *StrikePair) Call() *ContractBook {
	return p.call
}

func (p *StrikePair) Put() *ContractBook {
	return p.put
}

// Book returns the contract book for the given option side.
func (p *StrikePair) Book(side common.OptionSide) *ContractBook {
	if side == common.Put {
		return p.put
	}
	return p.call
}

// DistanceFrom returns the absolute distance between this strike and a
// reference price, the primitive used by ATM lookup one level up.
func (p *StrikePair) DistanceFrom(reference decimal.Decimal) decimal.Decimal {
	return p.strike.Sub(reference).Abs()
}

// IsFullyQuoted reports whether both call and put have two-sided quotes.
func (p *StrikePair) IsFullyQuoted() bool {
	return p.call.BestQuote().IsTwoSided() && p.put.BestQuote().IsTwoSided()
}

// OrderCount returns the total order count across call and put.
func (p *StrikePair) OrderCount() int {
	return p.call.OrderCount() + p.put.OrderCount()
}

// Volume returns the total resting quantity across call and put.
func (p *StrikePair) Volume() uint64 {
	return p.call.Volume() + p.put.Volume()
}

func (p *StrikePair) IsEmpty() bool {
	return p.call.IsEmpty() && p.put.IsEmpty()
}

// Clear drops all orders from both sides.
func (p *StrikePair) Clear() {
	p.call.Clear()
	p.put.Clear()
}

// SetGreeks stores externally computed Greeks for one side of the pair. The
// index never computes Greeks itself.
func (p *StrikePair) SetGreeks(side common.OptionSide, greeks pricing.Greeks) {
	p.greeksMu.Lock()
	defer p.greeksMu.Unlock()
	if side == common.Put {
		p.putGreeks = &greeks
	} else {
		p.callGreeks = &greeks
	}
}

// Greeks returns the stored Greeks for one side, if any were set.
func (p *StrikePair) Greeks(side common.OptionSide) (pricing.Greeks, bool) {
	p.greeksMu.RLock()
	defer p.greeksMu.RUnlock()
	stored := p.callGreeks
	if side == common.Put {
		stored = p.putGreeks
	}
	if stored == nil {
		return pricing.Greeks{}, false
	}
	return *stored, true
}

// StrikeRegistry maps strike price to StrikePair for one expiration. Lookups
// and scans go straight to the tree; only creation takes the registry mutex,
// with a re-check under the lock so that concurrent GetOrCreate calls for the
// same strike converge on one pair.
type StrikeRegistry struct {
	underlying string
	expiration time.Time
	observer   QuoteObserver

	createMu sync.Mutex
	tree     *btree.BTreeG[*StrikePair]
}

func NewStrikeRegistry(underlying string, expiration time.Time, observer QuoteObserver) *StrikeRegistry {
	return &StrikeRegistry{
		underlying: underlying,
		expiration: normalizeExpiration(expiration),
		observer:   observer,
		tree: btree.NewBTreeG(func(a, b *StrikePair) bool {
			return a.strike.LessThan(b.strike)
		}),
	}
}

func (r *StrikeRegistry) Underlying() string {
	return r.underlying
}

func (r *StrikeRegistry) Expiration() time.Time {
	return r.expiration
}

// GetOrCreate returns the pair for the strike, constructing it exactly once.
func (r *StrikeRegistry) GetOrCreate(strike decimal.Decimal) *StrikePair {
	if pair, ok := r.tree.Get(&StrikePair{strike: strike}); ok {
		return pair
	}

	r.createMu.Lock()
	defer r.createMu.Unlock()
	// Re-check: another caller may have won the race before we took the lock.
	if pair, ok := r.tree.Get(&StrikePair{strike: strike}); ok {
		return pair
	}
	pair := NewStrikePair(r.underlying, r.expiration, strike, r.observer)
	r.tree.Set(pair)
	log.Debug().
		Str("underlying", r.underlying).
		Time("expiration", r.expiration).
		Str("strike", strike.String()).
		Msg("strike pair created")
	return pair
}

// Get is a non-creating lookup.
func (r *StrikeRegistry) Get(strike decimal.Decimal) (*StrikePair, error) {
	pair, ok := r.tree.Get(&StrikePair{strike: strike})
	if !ok {
		return nil, common.ErrStrikeNotFound
	}
	return pair, nil
}

func (r *StrikeRegistry) Contains(strike decimal.Decimal) bool {
	_, ok := r.tree.Get(&StrikePair{strike: strike})
	return ok
}

// Remove detaches the pair for the strike and returns it. In-flight
// operations on the pair may complete, but it is unreachable from the
// registry as soon as Remove returns.
func (r *StrikeRegistry) Remove(strike decimal.Decimal) (*StrikePair, bool) {
	return r.tree.Delete(&StrikePair{strike: strike})
}

func (r *StrikeRegistry) Len() int {
	return r.tree.Len()
}

func (r *StrikeRegistry) IsEmpty() bool {
	return r.tree.Len() == 0
}

// Scan visits pairs in ascending strike order until fn returns false. The
// traversal is weakly consistent: it never blocks concurrent inserts, may
// miss pairs inserted during the scan and may include pairs removed during
// the scan.
func (r *StrikeRegistry) Scan(fn func(pair *StrikePair) bool) {
	r.tree.Scan(fn)
}

// Strikes returns all strike prices in ascending order.
func (r *StrikeRegistry) Strikes() []decimal.Decimal {
	strikes := make([]decimal.Decimal, 0, r.tree.Len())
	r.tree.Scan(func(pair *StrikePair) bool {
		strikes = append(strikes, pair.strike)
		return true
	})
	return strikes
}

// ATMStrike returns the pair whose strike minimizes the distance to the
// reference price. Ties break to the lower strike, which the ascending scan
// gives for free by keeping the first minimum seen.
func (r *StrikeRegistry) ATMStrike(reference decimal.Decimal) (*StrikePair, error) {
	var best *StrikePair
	var bestDistance decimal.Decimal
	r.tree.Scan(func(pair *StrikePair) bool {
		distance := pair.DistanceFrom(reference)
		if best == nil || distance.LessThan(bestDistance) {
			best = pair
			bestDistance = distance
		}
		return true
	})
	if best == nil {
		return nil, common.ErrNoStrikes
	}
	return best, nil
}

// TotalOrderCount folds the live order count over all pairs.
func (r *StrikeRegistry) TotalOrderCount() int {
	var total int
	r.tree.Scan(func(pair *StrikePair) bool {
		total += pair.OrderCount()
		return true
	})
	return total
}

// TotalVolume folds the resting quantity over all pairs.
func (r *StrikeRegistry) TotalVolume() uint64 {
	var total uint64
	r.tree.Scan(func(pair *StrikePair) bool {
		total += pair.Volume()
		return true
	})
	return total
}

// TwoSidedCount counts pairs where both call and put are two-sided.
func (r *StrikeRegistry) TwoSidedCount() int {
	var total int
	r.tree.Scan(func(pair *StrikePair) bool {
		if pair.IsFullyQuoted() {
			total++
		}
		return true
	})
	return total
}
