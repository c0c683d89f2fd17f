package gateway

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ToMinorUnits converts a display-currency amount to the gateway's minor
// unit (e.g. satang for THB). The gateway rejects fractional minor units,
// so the result is rounded half up.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5))
}

// NormalizeExpYear accepts a 2-digit or 4-digit expiry year token and
// returns a 4-digit year. 2-digit years are assumed to be in the 2000s.
func NormalizeExpYear(year string) (int, error) {
	year = strings.TrimSpace(year)
	y, err := strconv.Atoi(year)
	if err != nil || y < 0 {
		return 0, fmt.Errorf("invalid expiration year %q", year)
	}
	if len(year) <= 2 {
		return 2000 + y, nil
	}
	if len(year) != 4 {
		return 0, fmt.Errorf("invalid expiration year %q", year)
	}
	return y, nil
}
