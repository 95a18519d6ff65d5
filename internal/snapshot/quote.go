package snapshot

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"marketsnapshot/internal/fetcher"
)

// ErrInsufficientHistory is returned when fewer than two sessions are known.
var ErrInsufficientHistory = errors.New("insufficient history: need at least two sessions")

var hundred = decimal.NewFromInt(100)

// Round2 rounds v half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// PctChange returns round((close-prev)/prev*100, 2), or nil when prev is zero.
func PctChange(close, prev float64) *float64 {
	if prev == 0 {
		return nil
	}
	c, p := decimal.NewFromFloat(close), decimal.NewFromFloat(prev)
	pct := c.Sub(p).DivRound(p, 16).Mul(hundred).Round(2).InexactFloat64()
	return &pct
}

// NewQuoteRecord applies the two-point algorithm to a session history: the
// last session is the close, the one before it the previous close. Both are
// rounded before the percent change is derived from them.
func NewQuoteRecord(inst Instrument, source string, h fetcher.History) (QuoteRecord, error) {
	if len(h.Sessions) < 2 {
		return QuoteRecord{}, fetcher.NewValidationError(ErrInsufficientHistory.Error()).WithSource(source)
	}

	last := h.Sessions[len(h.Sessions)-1]
	prev := h.Sessions[len(h.Sessions)-2]
	if !finite(last.Close) || !finite(prev.Close) {
		return QuoteRecord{}, fetcher.NewValidationError("non-numeric close").WithSource(source)
	}

	closeV := Round2(last.Close)
	prevV := Round2(prev.Close)
	asOf := last.Date.Format(DateLayout)

	return QuoteRecord{
		Symbol:    inst.Symbol,
		Name:      inst.DisplayName(),
		AsOfDate:  &asOf,
		Close:     &closeV,
		PrevClose: &prevV,
		PctChange: PctChange(closeV, prevV),
		Source:    source,
	}, nil
}

// FailedRecord converts a fetch failure into an error-marked record.
func FailedRecord(inst Instrument, source string, err error) QuoteRecord {
	msg := "no data available"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return QuoteRecord{
		Symbol: inst.Symbol,
		Name:   inst.DisplayName(),
		Source: source,
		Error:  msg,
	}
}

// ParseFloat coerces a provider value to a float. Anything that is not a
// finite number (empty strings, "-", "null", NaN) yields nil.
func ParseFloat(v any) *float64 {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int64:
		f = float64(x)
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		f = parsed
	case fmt.Stringer:
		return ParseFloat(x.String())
	default:
		return nil
	}
	if !finite(f) {
		return nil
	}
	return &f
}

// ParseDecimal is ParseFloat for values that must keep their exact digits.
func ParseDecimal(v any) decimal.NullDecimal {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(strings.ReplaceAll(x, ",", ""))
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(d)
	default:
		f := ParseFloat(v)
		if f == nil {
			return decimal.NullDecimal{}
		}
		return decimal.NewNullDecimal(decimal.NewFromFloat(*f))
	}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
