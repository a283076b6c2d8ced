package chain

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"optchain/internal/common"
	"optchain/internal/engine"
)

// QuoteObserver receives a QuoteUpdate whenever a structural mutation on a
// contract book changed its top of book. Delivery must not block: the
// observer is called synchronously on the mutating goroutine. Each snapshot
// in the update is internally consistent, but under concurrent mutators on
// the same contract the Previous snapshot may belong to an interleaved
// mutation rather than the state the emitting mutation replaced.
type QuoteObserver interface {
	QuoteChanged(update common.QuoteUpdate)
}

// ContractBook is the leaf of the hierarchy: one matching-engine order book
// for a single option side of a single strike/expiration/underlying. The
// engine is opaque to this layer; its failures are surfaced, never
// interpreted.
type ContractBook struct {
	instrument string
	side       common.OptionSide
	book       *engine.OrderBook
	observer   QuoteObserver
}

func NewContractBook(instrument string, side common.OptionSide, observer QuoteObserver) *ContractBook {
	return &ContractBook{
		instrument: instrument,
		side:       side,
		book:       engine.NewOrderBook(instrument),
		observer:   observer,
	}
}

func (c *ContractBook) Instrument() string {
	return c.instrument
}

func (c *ContractBook) Side() common.OptionSide {
	return c.side
}

// SetReporter forwards a trade reporter to the embedded engine book.
func (c *ContractBook) SetReporter(r engine.Reporter) {
	c.book.SetReporter(r)
}

// AddLimitOrder forwards a limit order to the engine. On a rejected order the
// book is untouched and a typed error is returned; on success a QuoteUpdate
// is emitted to the observer if the top of book changed by value.
func (c *ContractBook) AddLimitOrder(id string, side common.Side, price decimal.Decimal, quantity uint64) error {
	previous := c.BestQuote()
	if err := c.book.AddLimitOrder(id, side, price, quantity); err != nil {
		return c.mapEngineError(err)
	}
	c.notify(previous)
	return nil
}

// CancelOrder removes a resting order from the book.
func (c *ContractBook) CancelOrder(id string) error {
	previous := c.BestQuote()
	if err := c.book.CancelOrder(id); err != nil {
		return c.mapEngineError(err)
	}
	c.notify(previous)
	return nil
}

// BestQuote derives a fresh snapshot from the engine's current top of book.
// Both sides are read under one engine read lock, so a concurrent mutation
// yields either the before or the after state, never a torn mix.
func (c *ContractBook) BestQuote() common.Quote {
	quote := common.Quote{At: time.Now()}
	bid, bidSize, bidOk, ask, askSize, askOk := c.book.TopOfBook()
	if bidOk {
		quote.Bid = &bid
		quote.BidSize = bidSize
	}
	if askOk {
		quote.Ask = &ask
		quote.AskSize = askSize
	}
	return quote
}

// OrderCount returns the number of orders resting in this contract's book.
func (c *ContractBook) OrderCount() int {
	return c.book.OrderCount()
}

// Volume returns the total resting quantity in this contract's book.
func (c *ContractBook) Volume() uint64 {
	return c.book.Volume()
}

func (c *ContractBook) IsEmpty() bool {
	return c.book.IsEmpty()
}

// Clear drops all resting orders from this contract's book.
func (c *ContractBook) Clear() {
	previous := c.BestQuote()
	c.book.Clear()
	c.notify(previous)
}

func (c *ContractBook) notify(previous common.Quote) {
	if c.observer == nil {
		return
	}
	current := c.BestQuote()
	if previous.Equal(current) {
		return
	}
	c.observer.QuoteChanged(common.QuoteUpdate{
		Instrument: c.instrument,
		Previous:   previous,
		Current:    current,
	})
}

func (c *ContractBook) mapEngineError(err error) error {
	switch {
	case errors.Is(err, engine.ErrInvalidQuantity):
		return common.ErrInvalidQuantity
	case errors.Is(err, engine.ErrInvalidPrice):
		return common.ErrInvalidPrice
	case errors.Is(err, engine.ErrDuplicateOrder):
		return common.ErrDuplicateOrderID
	case errors.Is(err, engine.ErrUnknownOrder):
		return common.ErrOrderNotFound
	default:
		return fmt.Errorf("%w: %s: %w", common.ErrEngineFailure, c.instrument, err)
	}
}
