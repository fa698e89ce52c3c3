package soundmodem

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// mockSerial records modem control line changes without a serial port.
type mockSerial struct {
	rts, dtr, brk bool
	calls         int
	closed        bool
}

func (m *mockSerial) set_rts(on bool) error {
	m.rts = on
	m.calls++
	return nil
}

func (m *mockSerial) set_dtr(on bool) error {
	m.dtr = on
	m.calls++
	return nil
}

func (m *mockSerial) set_break(on bool) error {
	m.brk = on
	m.calls++
	return nil
}

func (m *mockSerial) Close() error {
	m.closed = true
	return nil
}

type mockParallel struct {
	data   []byte
	closed bool
}

func (m *mockParallel) write_data(b byte) error {
	m.data = append(m.data, b)
	return nil
}

func (m *mockParallel) Close() error {
	m.closed = true
	return nil
}

// mockStrobeLine stands in for a gpiocdev line.
type mockStrobeLine struct {
	values []int
	closed bool
}

func (m *mockStrobeLine) SetValue(v int) error {
	m.values = append(m.values, v)
	return nil
}

func (m *mockStrobeLine) Close() error {
	m.closed = true
	return nil
}

func setupPTT(t *testing.T) (*ptt_outputs, *mockSerial, *mockParallel, *mockStrobeLine) {
	t.Helper()
	var s = new(mockSerial)
	var p = new(mockParallel)
	var g = new(mockStrobeLine)
	return &ptt_outputs{serial: s, parallel: p, strobe: g}, s, p, g
}

func TestPTTKeyed(t *testing.T) {
	var o, s, p, g = setupPTT(t)

	o.set_output(true, false)

	assert.True(t, s.rts, "RTS is the key")
	assert.False(t, s.dtr)
	assert.True(t, s.brk, "break held while keyed")
	assert.Equal(t, []byte{LPT_PTT_BIT}, p.data)
	assert.Equal(t, []int{1, 0}, g.values, "one strobe pulse")
}

func TestPTTCarrierOnly(t *testing.T) {
	var o, s, p, g = setupPTT(t)

	o.set_output(false, true)

	assert.False(t, s.rts)
	assert.True(t, s.dtr, "DTR shows carrier")
	assert.False(t, s.brk)
	assert.Equal(t, []byte{LPT_DCD_BIT}, p.data)
	assert.Empty(t, g.values, "no strobe while unkeyed")
}

func TestPTTStrobePulsesEveryUpdate(t *testing.T) {
	var o, _, _, g = setupPTT(t)

	o.set_output(true, true)
	o.set_output(true, false)
	o.set_output(false, false)

	assert.Equal(t, []int{1, 0, 1, 0}, g.values)
}

func TestPTTIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var ptt = rapid.Bool().Draw(t, "ptt")
		var dcd = rapid.Bool().Draw(t, "dcd")
		var n = rapid.IntRange(1, 5).Draw(t, "n")

		var s = new(mockSerial)
		var p = new(mockParallel)
		var g = new(mockStrobeLine)
		var o = &ptt_outputs{serial: s, parallel: p, strobe: g}

		for range n {
			o.set_output(ptt, dcd)
		}

		assert.Equal(t, ptt, s.rts)
		assert.Equal(t, dcd, s.dtr)
		assert.Equal(t, ptt, s.brk)
		require.Len(t, p.data, n)
		for _, b := range p.data {
			assert.Equal(t, p.data[0], b)
		}

		// The strobe is the one path that is not level driven.  It keeps a
		// retriggerable key timer alive, so every keyed update is one full
		// pulse and the line always rests low.
		if ptt {
			require.Len(t, g.values, 2*n)
			for i := 0; i < len(g.values); i += 2 {
				assert.Equal(t, []int{1, 0}, g.values[i:i+2])
			}
		} else {
			assert.Empty(t, g.values)
		}
	})
}

func TestPTTCloseReleases(t *testing.T) {
	var o, s, p, g = setupPTT(t)

	o.set_output(true, true)
	o.close()

	assert.False(t, s.rts)
	assert.False(t, s.dtr)
	assert.False(t, s.brk)
	assert.Equal(t, byte(0), p.data[len(p.data)-1])
	assert.True(t, s.closed)
	assert.True(t, p.closed)
	assert.True(t, g.closed)
	assert.Empty(t, o.enabled())
}

func TestPTTNil(t *testing.T) {
	var o *ptt_outputs
	o.set_output(true, true)
	o.close()
	assert.Empty(t, o.enabled())
}

func TestPTTInitNothingConfigured(t *testing.T) {
	var o = ptt_init("test", PTTConfig{})
	assert.Empty(t, o.enabled())
	o.close()
}

func TestPTTInitBadAddresses(t *testing.T) {
	var o = ptt_init("test", PTTConfig{
		Serial:   filepath.Join(t.TempDir(), "nope"),
		Parallel: "0xfffff",
		Strobe:   "gpiochip0",
	})
	assert.Empty(t, o.enabled(), "every path is disabled, not fatal")
	o.close()
}

func TestParseIOAddress(t *testing.T) {
	var v, err = parse_io_address("0x378")
	require.NoError(t, err)
	assert.Equal(t, int64(0x378), v)

	v, err = parse_io_address("888")
	require.NoError(t, err)
	assert.Equal(t, int64(0x378), v)

	for _, bad := range []string{"", "lpt1", "0", "-1", "0x10000"} {
		_, err = parse_io_address(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseGPIOAddress(t *testing.T) {
	var chip, off, err = parse_gpio_address("gpiochip0:17")
	require.NoError(t, err)
	assert.Equal(t, "gpiochip0", chip)
	assert.Equal(t, 17, off)

	for _, bad := range []string{"gpiochip0", ":3", "gpiochip0:x", "gpiochip0:-2"} {
		_, _, err = parse_gpio_address(bad)
		assert.Error(t, err, bad)
	}
}

func TestLptThroughFile(t *testing.T) {
	// An ordinary file stands in for /dev/port.
	var dev = filepath.Join(t.TempDir(), "port")
	require.NoError(t, os.WriteFile(dev, make([]byte, 0x400), 0o600))

	var p, err = lpt_open(dev, "0x378")
	require.NoError(t, err)
	require.NoError(t, p.write_data(LPT_PTT_BIT|LPT_DCD_BIT))

	// Called from the interrupt.
	var allocs = testing.AllocsPerRun(100, func() {
		p.write_data(LPT_PTT_BIT)
		p.write_data(LPT_PTT_BIT | LPT_DCD_BIT)
	})
	assert.Zero(t, allocs)
	require.NoError(t, p.Close())

	data, err := os.ReadFile(dev)
	require.NoError(t, err)
	assert.Equal(t, byte(3), data[0x378])

	// Nothing there to read back.
	_, err = lpt_open(dev, "0x1000")
	assert.Error(t, err)

	_, err = lpt_open(filepath.Join(t.TempDir(), "missing"), "0x378")
	assert.True(t, errors.Is(err, os.ErrNotExist))
}
