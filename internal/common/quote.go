package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is an immutable snapshot of the top of a single contract's book.
// A missing side is represented by a nil price with zero size. Each read of
// a book produces a fresh Quote; quotes are never mutated in place.
type Quote struct {
	Bid     *decimal.Decimal
	BidSize uint64
	Ask     *decimal.Decimal
	AskSize uint64
	At      time.Time
}

// IsTwoSided reports whether both a bid and an ask are present.
func (q Quote) IsTwoSided() bool {
	return q.Bid != nil && q.Ask != nil
}

// Mid returns the midpoint of a two-sided quote.
func (q Quote) Mid() (decimal.Decimal, bool) {
	if !q.IsTwoSided() {
		return decimal.Zero, false
	}
	return q.Bid.Add(*q.Ask).Div(decimal.NewFromInt(2)), true
}

// Spread returns ask minus bid of a two-sided quote.
func (q Quote) Spread() (decimal.Decimal, bool) {
	if !q.IsTwoSided() {
		return decimal.Zero, false
	}
	return q.Ask.Sub(*q.Bid), true
}

// Equal compares quotes by value, ignoring the snapshot timestamp.
func (q Quote) Equal(other Quote) bool {
	return sideEqual(q.Bid, other.Bid) &&
		sideEqual(q.Ask, other.Ask) &&
		q.BidSize == other.BidSize &&
		q.AskSize == other.AskSize
}

func sideEqual(a, b *decimal.Decimal) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func (q Quote) String() string {
	format := func(p *decimal.Decimal, size uint64) string {
		if p == nil {
			return "-"
		}
		return fmt.Sprintf("%s x %d", p.String(), size)
	}
	return fmt.Sprintf("[bid %s | ask %s]", format(q.Bid, q.BidSize), format(q.Ask, q.AskSize))
}

// QuoteUpdate records a top-of-book change on one instrument. It is an event
// value, not persisted state: Previous and Current are the before/after
// snapshots taken around the mutation that caused the change.
type QuoteUpdate struct {
	Instrument string
	Previous   Quote
	Current    Quote
}
