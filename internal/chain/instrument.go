package chain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"optchain/internal/common"
)

const expirationLayout = "20060102"

// InstrumentID is the decomposed form of a contract identifier string.
type InstrumentID struct {
	Underlying string
	Expiration time.Time
	Strike     decimal.Decimal
	Side       common.OptionSide
}

// FormatInstrumentID composes the canonical contract identifier
// {underlying}-{YYYYMMDD}-{strike}-{C|P}. The strike is rendered without
// trailing zeros so the string round-trips through ParseInstrumentID.
func FormatInstrumentID(underlying string, expiration time.Time, strike decimal.Decimal, side common.OptionSide) string {
	return fmt.Sprintf("%s-%s-%s-%s",
		underlying, expiration.Format(expirationLayout), strike.String(), side.Tag())
}

// ParseInstrumentID splits a contract identifier back into its fields. The
// underlying symbol may itself contain dashes, so parsing anchors on the
// three trailing components.
func ParseInstrumentID(id string) (InstrumentID, error) {
	parts := strings.Split(id, "-")
	if len(parts) < 4 {
		return InstrumentID{}, fmt.Errorf("instrument id %q: want at least 4 dash-separated fields", id)
	}

	var side common.OptionSide
	switch parts[len(parts)-1] {
	case "C":
		side = common.Call
	case "P":
		side = common.Put
	default:
		return InstrumentID{}, fmt.Errorf("instrument id %q: side must be C or P", id)
	}

	strike, err := decimal.NewFromString(parts[len(parts)-2])
	if err != nil {
		return InstrumentID{}, fmt.Errorf("instrument id %q: bad strike: %w", id, err)
	}

	expiration, err := time.ParseInLocation(expirationLayout, parts[len(parts)-3], time.UTC)
	if err != nil {
		return InstrumentID{}, fmt.Errorf("instrument id %q: bad expiration: %w", id, err)
	}

	underlying := strings.Join(parts[:len(parts)-3], "-")
	if underlying == "" {
		return InstrumentID{}, fmt.Errorf("instrument id %q: empty underlying", id)
	}

	return InstrumentID{
		Underlying: underlying,
		Expiration: expiration,
		Strike:     strike,
		Side:       side,
	}, nil
}

func (i InstrumentID) String() string {
	return FormatInstrumentID(i.Underlying, i.Expiration, i.Strike, i.Side)
}

// normalizeExpiration truncates an expiration to its UTC calendar date so
// that any two times on the same trading date index the same registry entry.
func normalizeExpiration(expiration time.Time) time.Time {
	utc := expiration.UTC()
	return time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
}
