package broker

import (
	"fmt"
	"strings"
)

// Mode selects between OANDA's practice and live environments. Credentials
// and base URLs are keyed by mode, so a single process can serve both.
type Mode string

const (
	Practice Mode = "practice"
	Live     Mode = "live"
)

// ParseMode normalizes a trading_type string. An empty string defaults to
// practice, matching the inbound signal contract.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "practice", "demo":
		return Practice, nil
	case "live":
		return Live, nil
	default:
		return "", fmt.Errorf("unknown trading mode %q (want practice|live)", s)
	}
}
