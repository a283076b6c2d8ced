package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"optchain/internal/common"
)

type Order struct {
	ID            string          // Caller supplied identifier, unique per book
	Side          common.Side     // Order side
	Price         decimal.Decimal // Limit price
	Quantity      uint64          // Remaining quantity
	TotalQuantity uint64          // Total volume requested
	At            time.Time       // Time of arrival into the book
}
