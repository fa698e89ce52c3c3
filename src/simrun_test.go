package soundmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPRBSCheckClean(t *testing.T) {
	var c PRBSCheck
	c.PutBits(NewPRBS(77).Bits(1000))

	assert.Equal(t, 1, c.Locks)
	assert.Zero(t, c.Errors)
	assert.Equal(t, uint64(1000-15-PRBS_LOCK_RUN), c.Bits)
	assert.Zero(t, c.Rate())
}

func TestPRBSCheckSingleError(t *testing.T) {
	var bits = NewPRBS(5).Bits(1000)
	bits[500] ^= 1

	var c PRBSCheck
	c.PutBits(bits)
	assert.Equal(t, uint64(3), c.Errors)
	assert.Equal(t, 1, c.Locks)
}

func TestPRBSCheckIgnoresFill(t *testing.T) {
	var bits []uint8
	bits = append(bits, make([]uint8, 200)...)
	bits = append(bits, NewPRBS(1).Bits(800)...)
	for range 40 {
		bits = append(bits, BytesToBits([]byte{HDLC_FLAG})...)
	}

	var c PRBSCheck
	c.PutBits(bits)
	assert.Equal(t, 1, c.Locks, "zeros must not lock")
	assert.Zero(t, c.Errors)
	// The window that saw the flags is taken back out.
	assert.InDelta(t, 750, float64(c.Bits), 30)
}

func TestPRBSCheckRandomErrors(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var seed = rapid.Uint16Range(1, 0x7fff).Draw(t, "seed")
		var offsets = rapid.SliceOfN(rapid.IntRange(0, 200), 0, 5).Draw(t, "offsets")

		// Flips far enough apart that lock is never lost.
		var bits = NewPRBS(seed).Bits(2000)
		for k, off := range offsets {
			bits[100+350*k+off] ^= 1
		}

		var c PRBSCheck
		c.PutBits(bits)
		assert.Equal(t, 1, c.Locks)
		assert.Equal(t, uint64(3*len(offsets)), c.Errors)
	})
}

func TestPRBSCheckNothing(t *testing.T) {
	var c PRBSCheck
	c.PutBits(make([]uint8, 100))
	assert.Zero(t, c.Locks)
	assert.Equal(t, 1.0, c.Rate())
}

func TestSimTransmitReceive(t *testing.T) {
	RedirectLog(t)

	for _, mode := range []string{"sbc:afsk1200", "wss:afsk2400_8", "wss:fsk9600", "sbc:hapn4800pm", "wssfdx:psk4800"} {
		t.Run(mode, func(t *testing.T) {
			var tx = NewPRBS(1).Bits(3000)

			var rec, err = SimTransmit(mode, tx, SimOptions{})
			require.NoError(t, err)
			assert.False(t, rec.Stats.PTT)
			assert.Zero(t, rec.Stats.Underruns)
			var m, perr = parse_mode(rec.Mode)
			require.NoError(t, perr)
			assert.Equal(t, m.tx.SampleRate, rec.SampleRate)
			assert.GreaterOrEqual(t, len(rec.Samples), len(tx)*m.tx.SampleRate/m.tx.BitRate)

			got, err := SimReceive(rec.Mode, rec.Samples, rec.SampleRate, SimOptions{})
			require.NoError(t, err)

			var c PRBSCheck
			c.PutBits(got.Bits)
			assert.GreaterOrEqual(t, c.Locks, 1)
			assert.Greater(t, c.Bits, uint64(2500))
			assert.Less(t, c.Rate(), 0.01)
			assert.NotEmpty(t, got.DCD)
			assert.True(t, got.DCD[0])
		})
	}
}

func TestSimReceiveWrongRate(t *testing.T) {
	RedirectLog(t)

	var _, err = SimReceive("sbc:afsk1200", make([]int16, 1000), 8000, SimOptions{})
	assert.ErrorIs(t, err, ErrSampleRateMismatch)

	_, err = SimTransmit("sbc:afsk300", []uint8{1}, SimOptions{})
	assert.ErrorIs(t, err, ErrUnknownScheme)
}

func TestSimReceiveDiagnose(t *testing.T) {
	RedirectLog(t)

	var rec, err = SimTransmit("wssfdx:psk4800", NewPRBS(3).Bits(3000), SimOptions{})
	require.NoError(t, err)

	got, err := SimReceive(rec.Mode, rec.Samples, rec.SampleRate, SimOptions{Diagnose: DIAG_CONSTELLATION})
	require.NoError(t, err)
	require.NotNil(t, got.Diagnostic)

	var d = got.Diagnostic
	assert.True(t, d.Valid)
	assert.Equal(t, DIAG_CONSTELLATION, d.Mode)
	assert.Len(t, d.Samples, DEFAULT_DIAG_CAPACITY)
	assert.Equal(t, PSK_SRATE, d.SampleRate)
}
