package soundmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFragmentSamples(t *testing.T) {
	assert.Equal(t, 96, fragment_samples(9600, 10, 0))
	assert.Equal(t, 442, fragment_samples(44100, 10, 0), "rounded up to even")
	assert.Equal(t, 40, fragment_samples(38400, 1, 0))
	assert.Equal(t, 34, fragment_samples(9600, 1, 33), "never less than the overlap")
}

func TestHardwareDrivers(t *testing.T) {
	var hw = HardwareDrivers()
	assert.Len(t, hw, 3)
	assert.Equal(t, "sbc", hw[0].Name)
	assert.False(t, hw[0].FullDuplex)
	assert.True(t, hw[2].FullDuplex)

	// A copy, not the table.
	hw[0].MaxRate = 1
	assert.Equal(t, 44100, find_hw_driver("sbc").MaxRate)
	assert.Nil(t, find_hw_driver("gus"))
}

func TestSchemePairs(t *testing.T) {
	var tx, rx = SchemePairs()
	assert.Len(t, tx, len(scheme_table))
	assert.Len(t, rx, len(scheme_table))
	for i := range tx {
		assert.Equal(t, tx[i].Name, rx[i].Name)
	}
}
