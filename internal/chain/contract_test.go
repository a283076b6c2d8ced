package chain_test

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optchain/internal/chain"
	"optchain/internal/common"
)

// --- Setup & Helpers --------------------------------------------------------

var testExpiration = time.Date(2026, time.September, 25, 0, 0, 0, 0, time.UTC)

type recordingObserver struct {
	mu      sync.Mutex
	updates []common.QuoteUpdate
}

func (o *recordingObserver) QuoteChanged(update common.QuoteUpdate) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.updates = append(o.updates, update)
}

func (o *recordingObserver) all() []common.QuoteUpdate {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]common.QuoteUpdate(nil), o.updates...)
}

func dec(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}

func newOrderID() string {
	return uuid.NewString()
}

// --- Tests ------------------------------------------------------------------

func TestContractBook_BestQuote(t *testing.T) {
	book := chain.NewContractBook("BTC-20260925-50000-C", common.Call, nil)

	// 1. Seed a two-sided market.
	require.NoError(t, book.AddLimitOrder("b1", common.Buy, dec(100), 10))
	require.NoError(t, book.AddLimitOrder("a1", common.Sell, dec(105), 5))

	// 2. The quote reflects the engine's top of book.
	quote := book.BestQuote()
	require.NotNil(t, quote.Bid)
	require.NotNil(t, quote.Ask)
	assert.True(t, quote.Bid.Equal(dec(100)))
	assert.Equal(t, uint64(10), quote.BidSize)
	assert.True(t, quote.Ask.Equal(dec(105)))
	assert.Equal(t, uint64(5), quote.AskSize)
	assert.True(t, quote.IsTwoSided())

	mid, ok := quote.Mid()
	assert.True(t, ok)
	assert.True(t, mid.Equal(dec(102.5)))
}

func TestContractBook_EmptyQuote(t *testing.T) {
	book := chain.NewContractBook("BTC-20260925-50000-C", common.Call, nil)

	quote := book.BestQuote()
	assert.Nil(t, quote.Bid)
	assert.Nil(t, quote.Ask)
	assert.Equal(t, uint64(0), quote.BidSize)
	assert.Equal(t, uint64(0), quote.AskSize)
	assert.False(t, quote.IsTwoSided())
}

func TestContractBook_ErrorPropagation(t *testing.T) {
	book := chain.NewContractBook("BTC-20260925-50000-C", common.Call, nil)
	require.NoError(t, book.AddLimitOrder("b1", common.Buy, dec(100), 10))
	before := book.BestQuote()

	// 1. Cancelling an unknown id.
	assert.ErrorIs(t, book.CancelOrder("missing"), common.ErrOrderNotFound)

	// 2. Non-positive quantity.
	assert.ErrorIs(t, book.AddLimitOrder("b2", common.Buy, dec(101), 0), common.ErrInvalidQuantity)

	// 3. Duplicate id.
	assert.ErrorIs(t, book.AddLimitOrder("b1", common.Buy, dec(99), 1), common.ErrDuplicateOrderID)

	// 4. No observable change to the top of book.
	assert.True(t, before.Equal(book.BestQuote()))
}

func TestContractBook_QuoteUpdateOnTopOfBookChange(t *testing.T) {
	observer := &recordingObserver{}
	book := chain.NewContractBook("BTC-20260925-50000-C", common.Call, observer)

	// 1. First bid changes the top of book.
	require.NoError(t, book.AddLimitOrder("b1", common.Buy, dec(100), 10))
	updates := observer.all()
	require.Len(t, updates, 1)
	assert.Equal(t, "BTC-20260925-50000-C", updates[0].Instrument)
	assert.Nil(t, updates[0].Previous.Bid)
	require.NotNil(t, updates[0].Current.Bid)
	assert.True(t, updates[0].Current.Bid.Equal(dec(100)))

	// 2. A worse bid behind the top does not change the quote by value.
	require.NoError(t, book.AddLimitOrder("b2", common.Buy, dec(99), 10))
	assert.Len(t, observer.all(), 1, "no update when top of book is unchanged")

	// 3. Cancelling the top bid promotes the next level and emits again.
	require.NoError(t, book.CancelOrder("b1"))
	updates = observer.all()
	require.Len(t, updates, 2)
	require.NotNil(t, updates[1].Previous.Bid)
	require.NotNil(t, updates[1].Current.Bid)
	assert.True(t, updates[1].Previous.Bid.Equal(dec(100)))
	assert.True(t, updates[1].Current.Bid.Equal(dec(99)))
}

func TestContractBook_BestQuoteNeverMixesStates(t *testing.T) {
	book := chain.NewContractBook("BTC-20260925-50000-C", common.Call, nil)

	done := make(chan struct{})
	var wg sync.WaitGroup
	var torn int

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			default:
			}
			if book.BestQuote().IsTwoSided() {
				torn++
			}
		}
	}()

	// Cycle the book through states that are never two-sided. A two-sided
	// quote can therefore only come from mixing two distinct states.
	for i := 0; i < 2000; i++ {
		require.NoError(t, book.AddLimitOrder("b", common.Buy, dec(100), 10))
		require.NoError(t, book.CancelOrder("b"))
		require.NoError(t, book.AddLimitOrder("a", common.Sell, dec(100), 10))
		require.NoError(t, book.CancelOrder("a"))
	}
	close(done)
	wg.Wait()

	assert.Zero(t, torn, "quote mixed the bid of one state with the ask of another")
}

func TestContractBook_ClearEmitsUpdate(t *testing.T) {
	observer := &recordingObserver{}
	book := chain.NewContractBook("BTC-20260925-50000-C", common.Call, observer)

	require.NoError(t, book.AddLimitOrder("b1", common.Buy, dec(100), 10))
	book.Clear()

	updates := observer.all()
	require.Len(t, updates, 2)
	assert.Nil(t, updates[1].Current.Bid)
	assert.True(t, book.IsEmpty())
}
