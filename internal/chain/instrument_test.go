package chain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optchain/internal/chain"
	"optchain/internal/common"
)

func TestFormatInstrumentID(t *testing.T) {
	id := chain.FormatInstrumentID("BTC", testExpiration, dec(50000), common.Call)
	assert.Equal(t, "BTC-20260925-50000-C", id)

	id = chain.FormatInstrumentID("ETH", testExpiration, dec(2450.5), common.Put)
	assert.Equal(t, "ETH-20260925-2450.5-P", id)
}

func TestParseInstrumentID_RoundTrip(t *testing.T) {
	cases := []chain.InstrumentID{
		{Underlying: "BTC", Expiration: testExpiration, Strike: dec(50000), Side: common.Call},
		{Underlying: "ETH", Expiration: testExpiration, Strike: dec(2450.5), Side: common.Put},
		// Underlyings may themselves contain dashes.
		{Underlying: "BRN-FUT", Expiration: testExpiration, Strike: dec(85.25), Side: common.Call},
	}

	for _, want := range cases {
		parsed, err := chain.ParseInstrumentID(want.String())
		require.NoError(t, err, want.String())
		assert.Equal(t, want.Underlying, parsed.Underlying)
		assert.True(t, want.Expiration.Equal(parsed.Expiration))
		assert.True(t, want.Strike.Equal(parsed.Strike))
		assert.Equal(t, want.Side, parsed.Side)
		assert.Equal(t, want.String(), parsed.String())
	}
}

func TestParseInstrumentID_Invalid(t *testing.T) {
	for _, id := range []string{
		"",
		"BTC",
		"BTC-20260925-50000",      // missing side
		"BTC-20260925-50000-X",    // bad side
		"BTC-2026925-50000-C",     // malformed date
		"BTC-20260925-abc-C",      // bad strike
		"-20260925-50000-C",       // empty underlying
	} {
		_, err := chain.ParseInstrumentID(id)
		assert.Error(t, err, "id %q should not parse", id)
	}
}

func TestParseInstrumentID_ExpirationIsUTCDate(t *testing.T) {
	parsed, err := chain.ParseInstrumentID("BTC-20260925-50000-C")
	require.NoError(t, err)
	assert.Equal(t, time.UTC, parsed.Expiration.Location())
	assert.Equal(t, 0, parsed.Expiration.Hour())
}
