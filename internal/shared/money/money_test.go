package money

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTiyin(t *testing.T) {
	assert.Equal(t, "50000.00", FormatTiyin(5_000_000))
	assert.Equal(t, "0.05", FormatTiyin(5))
	assert.Equal(t, "0.00", FormatTiyin(0))
	assert.Equal(t, "-123.45", FormatTiyin(-12_345))
}

func TestParseSumToTiyin(t *testing.T) {
	cases := map[string]int64{
		"50000":    5_000_000,
		"50000.0":  5_000_000,
		"50000.00": 5_000_000,
		"50000.05": 5_000_005,
		"0.01":     1,
		" 123.40 ": 12_340,
	}
	for in, want := range cases {
		got, err := ParseSumToTiyin(in)
		assert.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got, "input %q", in)
	}
}

func TestParseSumToTiyinRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "abc", "1.234", "-5", "1,50", "1.2.3", "5.-1", "5.+1", "5.1x"} {
		_, err := ParseSumToTiyin(in)
		assert.ErrorIs(t, err, ErrBadAmount, "input %q", in)
	}
}

func TestFormatParseRoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, 99, 100, 5_000_000, 123_456_789} {
		got, err := ParseSumToTiyin(FormatTiyin(v))
		assert.NoError(t, err)
		assert.Equal(t, v, got)
	}
}
