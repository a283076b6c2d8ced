package common

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade accounts for the two orders that matched inside one contract's book.
// The taker is the incoming order; the maker was resting.
type Trade struct {
	Instrument string
	TakerID    string
	MakerID    string
	Side       Side // aggressor side
	Price      decimal.Decimal
	Quantity   uint64
	At         time.Time
}

func (t Trade) String() string {
	return fmt.Sprintf("%s %s %d @ %s (taker %s, maker %s)",
		t.Instrument, t.Side, t.Quantity, t.Price, t.TakerID, t.MakerID)
}
