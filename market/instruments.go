// market/instruments.go
package market

import (
	"fmt"
	"strings"
)

// pip sizes in price terms. JPY-quoted pairs trade two decimal places to the
// pip instead of four.
const (
	PipSize    = 0.0001
	PipSizeJPY = 0.01
)

// InstrumentFromTicker derives a broker instrument name from a TradingView
// style 6-character ticker by splitting at position 3: "EURUSD" -> "EUR_USD".
// Anything other than exactly 6 characters is rejected.
func InstrumentFromTicker(ticker string) (string, error) {
	if len(ticker) != 6 {
		return "", fmt.Errorf("ticker %q must be exactly 6 characters", ticker)
	}
	return strings.ToUpper(ticker[:3]) + "_" + strings.ToUpper(ticker[3:]), nil
}

// SplitInstrument returns the base and quote currencies of a BASE_QUOTE
// instrument name.
func SplitInstrument(instrument string) (base, quote string, err error) {
	parts := strings.Split(instrument, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("instrument %q is not in BASE_QUOTE form", instrument)
	}
	return parts[0], parts[1], nil
}

// PipSizeFor returns the pip size for a pair given its quote currency.
func PipSizeFor(quoteCurrency string) float64 {
	if strings.Contains(quoteCurrency, "JPY") {
		return PipSizeJPY
	}
	return PipSize
}
