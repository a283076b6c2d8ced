package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"

	"optchain/internal/common"
)

var (
	ErrDuplicateOrder  = errors.New("order id already present in book")
	ErrUnknownOrder    = errors.New("order id not present in book")
	ErrInvalidQuantity = errors.New("order quantity must be positive")
	ErrInvalidPrice    = errors.New("order price must be positive")
)

// Reporter receives each trade produced while matching. A nil reporter is
// allowed; trades are then only logged.
type Reporter interface {
	ReportTrade(trade common.Trade)
}

type priceLevel struct {
	price  decimal.Decimal
	orders []*Order
}

func (level *priceLevel) quantity() uint64 {
	var total uint64
	for _, o := range level.orders {
		total += o.Quantity
	}
	return total
}

type PriceLevels = btree.BTreeG[*priceLevel]

// OrderBook is a single instrument's limit order book. Price levels are kept
// in two btrees, bids sorted greatest first and asks least first, with orders
// on a level sorted by time added as they are push-back'd. All exported
// methods are safe for concurrent use: mutations take the write lock,
// top-of-book reads take the read lock only.
type OrderBook struct {
	mu         sync.RWMutex
	instrument string
	reporter   Reporter

	bids *PriceLevels
	asks *PriceLevels

	// Resting orders indexed by id, for cancels and duplicate detection.
	index map[string]*Order

	// Some book keeping
	buyQuantity  uint64 // Track the bid-side liquidity of the book.
	sellQuantity uint64 // Track the ask-side liquidity of the book.
}

// Sorted greatest first.
func newBidLevels() *PriceLevels {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.GreaterThan(b.price)
	})
}

// Sorted least first.
func newAskLevels() *PriceLevels {
	return btree.NewBTreeG(func(a, b *priceLevel) bool {
		return a.price.LessThan(b.price)
	})
}

func NewOrderBook(instrument string) *OrderBook {
	return &OrderBook{
		instrument: instrument,
		bids:       newBidLevels(),
		asks:       newAskLevels(),
		index:      make(map[string]*Order),
	}
}

func (book *OrderBook) Instrument() string {
	return book.instrument
}

// SetReporter installs the trade reporter. Must be called before orders flow.
func (book *OrderBook) SetReporter(r Reporter) {
	book.reporter = r
}

// AddLimitOrder rests a new limit order and matches away any crossing levels.
// The book writes the arrival timestamp itself; we do not care about the
// accuracy of the timestamp, just its relativity to other timestamps.
func (book *OrderBook) AddLimitOrder(id string, side common.Side, price decimal.Decimal, quantity uint64) error {
	if quantity == 0 {
		return ErrInvalidQuantity
	}
	if !price.IsPositive() {
		return ErrInvalidPrice
	}

	book.mu.Lock()
	defer book.mu.Unlock()

	if _, ok := book.index[id]; ok {
		return ErrDuplicateOrder
	}

	order := &Order{
		ID:            id,
		Side:          side,
		Price:         price,
		Quantity:      quantity,
		TotalQuantity: quantity,
		At:            time.Now(),
	}

	// Limit orders are placed on the same side as order.Side, because they
	// rest until matched.
	var levels *PriceLevels
	switch side {
	case common.Buy:
		levels = book.bids
		book.buyQuantity += quantity
	case common.Sell:
		levels = book.asks
		book.sellQuantity += quantity
	}

	// Levels comparator only accounts for price, so a dummy level works for
	// the search.
	level, ok := levels.GetMut(&priceLevel{price: price})
	if ok {
		level.orders = append(level.orders, order)
	} else {
		levels.Set(&priceLevel{price: price, orders: []*Order{order}})
	}
	book.index[id] = order

	book.match()
	return nil
}

// CancelOrder removes a resting order from the book by id.
func (book *OrderBook) CancelOrder(id string) error {
	book.mu.Lock()
	defer book.mu.Unlock()

	order, ok := book.index[id]
	if !ok {
		return ErrUnknownOrder
	}

	var levels *PriceLevels
	switch order.Side {
	case common.Buy:
		levels = book.bids
		book.buyQuantity -= order.Quantity
	case common.Sell:
		levels = book.asks
		book.sellQuantity -= order.Quantity
	}

	level, ok := levels.GetMut(&priceLevel{price: order.Price})
	if !ok {
		// The index and the trees must agree; a resting order without its
		// level is corrupted state.
		panic("engine: resting order has no price level")
	}
	for i, resting := range level.orders {
		if resting.ID == id {
			level.orders = append(level.orders[:i], level.orders[i+1:]...)
			break
		}
	}
	if len(level.orders) == 0 {
		levels.Delete(level)
	}
	delete(book.index, id)
	return nil
}

// BestBid returns the highest resting bid price and the total quantity
// available at that level.
func (book *OrderBook) BestBid() (decimal.Decimal, uint64, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	level, ok := book.bids.Min()
	if !ok {
		return decimal.Zero, 0, false
	}
	return level.price, level.quantity(), true
}

// BestAsk returns the lowest resting ask price and the total quantity
// available at that level.
func (book *OrderBook) BestAsk() (decimal.Decimal, uint64, bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	level, ok := book.asks.Min()
	if !ok {
		return decimal.Zero, 0, false
	}
	return level.price, level.quantity(), true
}

// TopOfBook returns both best levels under a single read lock, so the pair is
// one consistent state of the book rather than two reads a writer could split.
func (book *OrderBook) TopOfBook() (bid decimal.Decimal, bidQty uint64, bidOk bool, ask decimal.Decimal, askQty uint64, askOk bool) {
	book.mu.RLock()
	defer book.mu.RUnlock()

	if level, ok := book.bids.Min(); ok {
		bid, bidQty, bidOk = level.price, level.quantity(), true
	}
	if level, ok := book.asks.Min(); ok {
		ask, askQty, askOk = level.price, level.quantity(), true
	}
	return bid, bidQty, bidOk, ask, askQty, askOk
}

// OrderCount returns the number of orders resting in the book.
func (book *OrderBook) OrderCount() int {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return len(book.index)
}

// Volume returns the total resting quantity across both sides.
func (book *OrderBook) Volume() uint64 {
	book.mu.RLock()
	defer book.mu.RUnlock()
	return book.buyQuantity + book.sellQuantity
}

// IsEmpty reports whether no orders rest in the book.
func (book *OrderBook) IsEmpty() bool {
	return book.OrderCount() == 0
}

// Clear drops every resting order from both sides.
func (book *OrderBook) Clear() {
	book.mu.Lock()
	defer book.mu.Unlock()

	book.bids = newBidLevels()
	book.asks = newAskLevels()
	book.index = make(map[string]*Order)
	book.buyQuantity = 0
	book.sellQuantity = 0
}

// match consumes the top of book price levels while they cross (bid >= ask),
// matching orders in price-time priority. The trade price is the resting
// order's price. Caller holds the write lock.
func (book *OrderBook) match() {
	for {
		bestBid, bidOk := book.bids.MinMut()
		bestAsk, askOk := book.asks.MinMut()

		// If either side is empty, or prices don't cross, we are done.
		if !bidOk || !askOk || bestBid.price.LessThan(bestAsk.price) {
			break
		}

		// While there are still orders on either side, move forward on the
		// orders.
		var aIdx, bIdx int
		for aIdx < len(bestAsk.orders) && bIdx < len(bestBid.orders) {
			askOrder := bestAsk.orders[aIdx]
			bidOrder := bestBid.orders[bIdx]

			matchQty := min(askOrder.Quantity, bidOrder.Quantity)
			askOrder.Quantity -= matchQty
			bidOrder.Quantity -= matchQty
			book.buyQuantity -= matchQty
			book.sellQuantity -= matchQty

			// The earlier order must be resting; the later one is the taker
			// and sets the aggressor side, the maker sets the price.
			if askOrder.At.After(bidOrder.At) {
				book.reportTrade(askOrder, bidOrder, matchQty, bidOrder.Price)
			} else {
				book.reportTrade(bidOrder, askOrder, matchQty, askOrder.Price)
			}

			if askOrder.Quantity == 0 {
				delete(book.index, askOrder.ID)
				aIdx++
			}
			if bidOrder.Quantity == 0 {
				delete(book.index, bidOrder.ID)
				bIdx++
			}
		}

		// Slice off consumed orders, and drop fully consumed levels. The
		// "no more matches" case is handled on the re-loop.
		if aIdx > 0 {
			bestAsk.orders = bestAsk.orders[aIdx:]
		}
		if bIdx > 0 {
			bestBid.orders = bestBid.orders[bIdx:]
		}
		if len(bestAsk.orders) == 0 {
			book.asks.Delete(bestAsk)
		}
		if len(bestBid.orders) == 0 {
			book.bids.Delete(bestBid)
		}
	}
}

func (book *OrderBook) reportTrade(taker, maker *Order, quantity uint64, price decimal.Decimal) {
	trade := common.Trade{
		Instrument: book.instrument,
		TakerID:    taker.ID,
		MakerID:    maker.ID,
		Side:       taker.Side,
		Price:      price,
		Quantity:   quantity,
		At:         time.Now(),
	}
	log.Debug().
		Str("instrument", book.instrument).
		Str("taker", taker.ID).
		Str("maker", maker.ID).
		Uint64("quantity", quantity).
		Str("price", price.String()).
		Msg("trade")
	if book.reporter != nil {
		book.reporter.ReportTrade(trade)
	}
}
