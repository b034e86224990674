// Package timeunit converts estimated times between minutes and hours.
// Minutes are the canonical stored unit.
package timeunit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Unit is the unit an estimate is entered in.
type Unit string

const (
	Minutes Unit = "minutes"
	Hours   Unit = "hours"
)

// Granularity is the smallest step the hours view represents exactly.
const Granularity = 15

var (
	ErrNotNumeric  = errors.New("estimated time must be a non-negative number")
	ErrUnknownUnit = errors.New("time unit must be minutes or hours")
)

var sixty = decimal.NewFromInt(60)

// ParseUnit accepts "minutes" or "hours"; empty means minutes.
func ParseUnit(raw string) (Unit, error) {
	switch Unit(strings.ToLower(strings.TrimSpace(raw))) {
	case "", Minutes:
		return Minutes, nil
	case Hours:
		return Hours, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownUnit, raw)
	}
}

// FromMinutes renders minutes as a numeral in unit. Hours keep at most two
// decimals with trailing zeros trimmed.
func FromMinutes(minutes int, unit Unit) string {
	if unit == Hours {
		return decimal.NewFromInt(int64(minutes)).Div(sixty).Round(2).String()
	}
	return decimal.NewFromInt(int64(minutes)).String()
}

// ToMinutes parses a numeral given in unit and rounds to whole minutes.
func ToMinutes(numeral string, unit Unit) (int, error) {
	d, err := parse(numeral)
	if err != nil {
		return 0, err
	}
	if unit == Hours {
		d = d.Mul(sixty)
	}
	return int(d.Round(0).IntPart()), nil
}

// Convert re-expresses a numeral from one unit in another. An empty numeral
// stays empty.
func Convert(numeral string, from, to Unit) (string, error) {
	if strings.TrimSpace(numeral) == "" {
		return "", nil
	}
	d, err := parse(numeral)
	if err != nil {
		return "", err
	}
	switch {
	case from == to:
		return d.String(), nil
	case to == Hours:
		return d.Div(sixty).Round(2).String(), nil
	default:
		return d.Mul(sixty).Round(0).String(), nil
	}
}

// Preferred picks hours for estimates of an hour or more on the
// quarter-hour grid and minutes for everything else.
func Preferred(minutes int) Unit {
	if minutes >= 60 && minutes%Granularity == 0 {
		return Hours
	}
	return Minutes
}

// Label renders an estimate for display.
func Label(minutes *int, unit Unit) string {
	if minutes == nil {
		return "Not set"
	}
	if unit == Hours {
		return FromMinutes(*minutes, Hours) + " hours"
	}
	return FromMinutes(*minutes, Minutes) + " minutes"
}

func parse(numeral string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(numeral))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, numeral)
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, numeral)
	}
	return d, nil
}
