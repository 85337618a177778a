// Package duration parses the delay values servers attach to callbacks.
//
// A delay is either a number of seconds or a string matching
// ^\d+(\.\d+)?(ms|s|m|h)?$ where the unit defaults to seconds.
package duration

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vango-dev/falk/internal/errors"
)

var pattern = regexp.MustCompile(`^(\d+(?:\.\d+)?)(ms|s|m|h)?$`)

var units = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
}

// Parse converts a delay value into a time.Duration.
// nil parses as zero. Numbers are seconds.
func Parse(v any) (time.Duration, error) {
	switch val := v.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return val, nil
	case int:
		return seconds(float64(val))
	case int64:
		return seconds(float64(val))
	case float64:
		return seconds(val)
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return 0, invalid(val.String())
		}
		return seconds(f)
	case string:
		return ParseString(val)
	default:
		return 0, invalid(fmt.Sprintf("%v", v))
	}
}

// ParseString parses the string form of a delay.
func ParseString(s string) (time.Duration, error) {
	m := pattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, invalid(s)
	}

	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, invalid(s)
	}

	unit := m[2]
	if unit == "" {
		unit = "s"
	}
	return scale(value, units[unit], s)
}

// Milliseconds parses v and returns the delay in milliseconds.
func Milliseconds(v any) (float64, error) {
	d, err := Parse(v)
	if err != nil {
		return 0, err
	}
	return float64(d) / float64(time.Millisecond), nil
}

func seconds(v float64) (time.Duration, error) {
	if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, invalid(strconv.FormatFloat(v, 'f', -1, 64))
	}
	return scale(v, time.Second, strconv.FormatFloat(v, 'f', -1, 64))
}

// scale converts v units into a Duration. Values past the int64 range are
// rejected rather than wrapped.
func scale(v float64, unit time.Duration, raw string) (time.Duration, error) {
	d := math.Round(v * float64(unit))
	if d >= math.MaxInt64 {
		return 0, invalid(raw).WithSuggestion("Use a delay shorter than 2562047h")
	}
	return time.Duration(d), nil
}

func invalid(s string) *errors.FalkError {
	return errors.New("E030").WithDetailf("invalid duration format: %q", s)
}
