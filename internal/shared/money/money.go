package money

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var ErrBadAmount = errors.New("money: bad amount")

// FormatTiyin renders a tiyin amount as the decimal sum string providers
// expect on the wire, e.g. 5000000 -> "50000.00".
func FormatTiyin(t int64) string {
	sign := ""
	if t < 0 {
		sign = "-"
		t = -t
	}
	return fmt.Sprintf("%s%d.%02d", sign, t/100, t%100)
}

// ParseSumToTiyin parses a provider decimal sum ("50000", "50000.0",
// "50000.00") into tiyin exactly, without going through floats. More than
// two fractional digits is a malformed amount, not a rounding candidate.
func ParseSumToTiyin(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrBadAmount
	}

	whole, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		whole, frac = s[:i], s[i+1:]
	}
	if len(frac) > 2 {
		return 0, ErrBadAmount
	}
	// Digits only: ParseInt alone would accept a sign here and turn a
	// malformed amount into a wrong value instead of an error.
	for i := 0; i < len(frac); i++ {
		if frac[i] < '0' || frac[i] > '9' {
			return 0, ErrBadAmount
		}
	}
	for len(frac) < 2 {
		frac += "0"
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w < 0 {
		return 0, ErrBadAmount
	}
	f, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return 0, ErrBadAmount
	}
	return w*100 + f, nil
}
