package chain_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optchain/internal/chain"
	"optchain/internal/common"
)

func TestUnderlyingBook_Hierarchy(t *testing.T) {
	book := chain.NewUnderlyingBook("BTC", nil)

	expiration := book.GetOrCreateExpiration(testExpiration)
	pair := expiration.GetOrCreateStrike(dec(50000))
	require.NoError(t, pair.Call().AddLimitOrder(newOrderID(), common.Buy, dec(100), 10))

	assert.Equal(t, 1, book.ExpirationCount())
	assert.Equal(t, 1, book.TotalStrikeCount())
	assert.Equal(t, 1, book.TotalOrderCount())
	assert.Equal(t, uint64(10), book.TotalVolume())
}

func TestUnderlyingBook_TermStructure(t *testing.T) {
	book := chain.NewUnderlyingBook("BTC", nil)

	book.GetOrCreateExpiration(testExpiration.AddDate(0, 2, 0))
	book.GetOrCreateExpiration(testExpiration)
	book.GetOrCreateExpiration(testExpiration.AddDate(0, 1, 0))

	sorted := book.ExpirationsSorted()
	require.Len(t, sorted, 3)
	for i := 1; i < len(sorted); i++ {
		assert.True(t, sorted[i-1].Expiration().Before(sorted[i].Expiration()))
	}
}

func TestUnderlyingRegistry_GetOrCreate(t *testing.T) {
	registry := chain.NewUnderlyingRegistry(nil)

	first := registry.GetOrCreate("BTC")
	second := registry.GetOrCreate("BTC")
	assert.Same(t, first, second)

	registry.GetOrCreate("ETH")
	registry.GetOrCreate("SPX")
	assert.Equal(t, 3, registry.Len())
	assert.Equal(t, []string{"BTC", "ETH", "SPX"}, registry.Symbols())
}

func TestUnderlyingRegistry_SingleCreationUnderConcurrency(t *testing.T) {
	registry := chain.NewUnderlyingRegistry(nil)

	const goroutines = 32
	var wg sync.WaitGroup
	books := make([]*chain.UnderlyingBook, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			books[slot] = registry.GetOrCreate("BTC")
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, books[0], books[i])
	}
	assert.Equal(t, 1, registry.Len())
}

func TestUnderlyingRegistry_GetRemoveContains(t *testing.T) {
	registry := chain.NewUnderlyingRegistry(nil)
	created := registry.GetOrCreate("BTC")

	book, err := registry.Get("BTC")
	require.NoError(t, err)
	assert.Same(t, created, book)

	_, err = registry.Get("XRP")
	assert.ErrorIs(t, err, common.ErrUnderlyingNotFound)

	removed, ok := registry.Remove("BTC")
	require.True(t, ok)
	assert.Same(t, created, removed)
	assert.False(t, registry.Contains("BTC"))

	// The detached handle keeps working for in-flight users.
	assert.NotNil(t, removed.GetOrCreateExpiration(testExpiration))
}

func TestUnderlyingRegistry_GlobalStatsFold(t *testing.T) {
	registry := chain.NewUnderlyingRegistry(nil)

	// BTC: one expiration, one strike, two orders.
	btc := registry.GetOrCreate("BTC")
	expiration := btc.GetOrCreateExpiration(testExpiration)
	pair := expiration.GetOrCreateStrike(dec(50000))
	require.NoError(t, pair.Call().AddLimitOrder(newOrderID(), common.Buy, dec(100), 10))
	require.NoError(t, pair.Put().AddLimitOrder(newOrderID(), common.Sell, dec(50), 5))

	// ETH: one expiration, one empty strike.
	eth := registry.GetOrCreate("ETH")
	eth.GetOrCreateExpiration(testExpiration).GetOrCreateStrike(dec(3000))

	stats := registry.Stats()
	assert.Equal(t, 2, stats.UnderlyingCount)
	assert.Equal(t, 2, stats.TotalExpirations)
	assert.Equal(t, 2, stats.TotalStrikes)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.Equal(t, uint64(15), stats.TotalVolume)
	assert.Contains(t, stats.String(), "2 underlyings")
}
