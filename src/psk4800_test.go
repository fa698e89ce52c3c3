package soundmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// One output sample of a carrier cycle with some power in it.
var psk_one_sample = []int16{10000, 0, -10000, 0}

func TestPSKDipJustAfterWrap(t *testing.T) {
	for _, dip := range []bool{false, true} {
		var f = NewPatternFramer(nil)
		var io = new_test_io(f)

		var d psk_demod
		d.init()
		d.peak = 1 << 40
		d.pwr = [5]int64{1000, 1000, 1000, 1000, 1000}
		if dip {
			d.pwr[3] = 0
		}
		d.pll.phase = 100

		d.demodulate16(io, psk_one_sample)

		// The dip is two samples behind, before the wrap, so it can only pull back to zero.
		assert.Empty(t, f.Received(), "dip %v", dip)
		if dip {
			require.Equal(t, d.pll.inc, d.pll.phase)
		} else {
			require.Equal(t, 100+d.pll.inc, d.pll.phase)
		}
	}
}
