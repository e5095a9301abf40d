// Package units holds the pure conversions and the single defaulting policy
// applied to marketplace data before it reaches the rest of the service.
package units

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Unknown is the sentinel for absent textual fields.
const Unknown = "Unknown"

const weiDecimals = 18

const (
	secondsPerMinute = 60
	secondsPerHour   = 3600
	secondsPerDay    = 86400
	secondsPerWeek   = 604800
	secondsPerMonth  = 2592000
	secondsPerYear   = 31536000
)

var relativeUnits = []struct {
	name    string
	seconds int64
}{
	{"year", secondsPerYear},
	{"month", secondsPerMonth},
	{"week", secondsPerWeek},
	{"day", secondsPerDay},
	{"hour", secondsPerHour},
	{"minute", secondsPerMinute},
}

// WeiToEth converts a decimal-integer wei string to ETH. Empty, unparsable,
// fractional or negative input yields 0.
func WeiToEth(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	d, err := decimal.NewFromString(raw)
	if err != nil || d.Sign() < 0 || !d.Equal(d.Truncate(0)) {
		return 0
	}
	eth, _ := d.Shift(-weiDecimals).Float64()
	return NonNegative(eth)
}

// UnixSecondsToTime converts Unix seconds to a time, substituting now when
// the value is absent (zero or negative).
func UnixSecondsToTime(sec int64, now time.Time) time.Time {
	if sec <= 0 {
		return now
	}
	return time.Unix(sec, 0)
}

// RelativeTime renders t relative to now as "N units ago". Future times and
// anything older than two years render as "recently".
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		return "recently"
	}
	diff := int64(d / time.Second)
	if diff > 2*secondsPerYear {
		return "recently"
	}
	for _, u := range relativeUnits {
		if n := diff / u.seconds; n >= 1 {
			if n == 1 {
				return fmt.Sprintf("1 %s ago", u.name)
			}
			return fmt.Sprintf("%d %ss ago", n, u.name)
		}
	}
	return "just now"
}

// FormatAddress shortens an address to 0x1234...abcd.
func FormatAddress(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" || addr == Unknown {
		return Unknown
	}
	if len(addr) < 10 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-4:]
}

// OrUnknown returns s, or Unknown when s is blank.
func OrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return Unknown
	}
	return s
}

// OrDefault returns s, or def when s is blank.
func OrDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}

// NonNegative clamps negative and non-finite values to 0.
func NonNegative(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0
	}
	return f
}

// ParseFloatOrZero accepts numbers and numeric strings; anything else is 0.
func ParseFloatOrZero(v any) float64 {
	switch x := v.(type) {
	case float64:
		return finite(x)
	case float32:
		return finite(float64(x))
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0
		}
		return finite(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return 0
		}
		return finite(f)
	default:
		return 0
	}
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}
