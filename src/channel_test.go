package soundmodem

import (
	"bytes"
	"context"
	"errors"
	"math/rand/v2"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigureErrors(t *testing.T) {
	RedirectLog(t)

	var cases = []struct {
		mode string
		want error
	}{
		{"", ErrBadMode},
		{"sbc", ErrBadMode},
		{"sbc:", ErrBadMode},
		{":afsk1200", ErrBadMode},
		{"sbc:afsk1200,", ErrBadMode},
		{"sbc:afsk1200,afsk1200,afsk1200", ErrBadMode},
		{"gus:afsk1200", ErrUnknownHardware},
		{"sbc:afsk300", ErrUnknownScheme},
		{"sbc:afsk1200,qpsk", ErrUnknownScheme},
		{"wssfdx:hapn4800_10,hapn4800pm_10", ErrIncompatibleWidths},
		{"sbc:fsk9600_5", ErrSampleRateMismatch},
		{"sbc:hapn4800_10", ErrSampleRateMismatch},
		{"wssfdx:afsk1200,fsk9600_4", ErrSampleRateMismatch},
	}

	for _, tc := range cases {
		var ch = NewChannel(ChannelConfig{Name: "t"}, NewPatternFramer(nil), NewSimDevice(nil))
		var err = ch.Configure(tc.mode)
		assert.ErrorIs(t, err, tc.want, "%q", tc.mode)
		assert.Empty(t, ch.Mode())
	}
}

func TestConfigureResolves(t *testing.T) {
	RedirectLog(t)

	var cases = []struct {
		mode   string
		want   string
		tx, rx int
	}{
		{"sbc:afsk1200", "sbc:afsk1200,afsk1200", 16, 16},
		{"sbc:fsk9600", "sbc:fsk9600_4,fsk9600_4", 16, 16},
		{"wss:fsk9600", "wss:fsk9600_5,fsk9600_5", 16, 16},
		{"sbc:hapn4800", "sbc:hapn4800_8,hapn4800_8", 16, 16},
		{"wss:hapn4800pm", "wss:hapn4800pm_10,hapn4800pm_10", 8, 8},
		// Half duplex can change width on turnaround.
		{"wss:hapn4800pm_10,hapn4800_10", "wss:hapn4800pm_10,hapn4800_10", 8, 16},
		{" wssfdx:psk4800 ", "wssfdx:psk4800,psk4800", 16, 16},
	}

	for _, tc := range cases {
		var ch = NewChannel(ChannelConfig{}, NewPatternFramer(nil), NewSimDevice(nil))
		require.NoError(t, ch.Configure(tc.mode), tc.mode)
		assert.Equal(t, tc.want, ch.Mode())
		assert.Equal(t, tc.tx, ch.mode.tx_width, tc.mode)
		assert.Equal(t, tc.rx, ch.mode.rx_width, tc.mode)
	}
}

func TestConfigureFailureForgetsOldMode(t *testing.T) {
	RedirectLog(t)

	var ch = NewChannel(ChannelConfig{}, NewPatternFramer(nil), NewSimDevice(nil))
	require.NoError(t, ch.Configure("sbc:afsk1200"))
	require.Error(t, ch.Configure("sbc:nothing"))

	assert.Empty(t, ch.Mode())
	assert.ErrorIs(t, ch.Open(context.Background()), ErrNotConfigured)
}

type bigMod struct {
	pad [MOD_SCRATCH_SIZE + 1]byte
}

func (*bigMod) init()                        {}
func (*bigMod) modulate8(*modemIO, []uint8)  {}
func (*bigMod) modulate16(*modemIO, []int16) {}

type bigDemod struct {
	pad [DEMOD_SCRATCH_SIZE + 1]byte
}

func (*bigDemod) init()                          {}
func (*bigDemod) demodulate8(*modemIO, []uint8)  {}
func (*bigDemod) demodulate16(*modemIO, []int16) {}

func TestConfigureScratchOverflow(t *testing.T) {
	RedirectLog(t)

	var old = scheme_table
	t.Cleanup(func() { scheme_table = old })

	var tx = &TxScheme{Name: "huge", SampleRate: 9600, BitRate: 1200, Widths: WIDTH_16,
		StateSize: unsafe.Sizeof(bigMod{}), new: func() modulator { return new(bigMod) }}
	var rx = &RxScheme{Name: "huge", SampleRate: 9600, BitRate: 1200, OverSampling: 8, DCDWindow: 120, Widths: WIDTH_16,
		StateSize: unsafe.Sizeof(bigDemod{}), new: func() demodulator { return new(bigDemod) }}

	scheme_table = append(append([]scheme_pair{}, old...), scheme_pair{tx, rx})

	var ch = NewChannel(ChannelConfig{}, NewPatternFramer(nil), NewSimDevice(nil))
	assert.ErrorIs(t, ch.Configure("sbc:huge"), ErrScratchOverflow)
	assert.ErrorIs(t, ch.Configure("sbc:afsk1200,huge"), ErrScratchOverflow)
	assert.ErrorIs(t, ch.Configure("sbc:huge,afsk1200"), ErrScratchOverflow)
	assert.NoError(t, ch.Configure("sbc:afsk1200"))
}

func TestConfigureThenClose(t *testing.T) {
	RedirectLog(t)

	var dev = NewSimDevice(nil)
	var ch = NewChannel(ChannelConfig{Name: "idle"}, NewPatternFramer(nil), dev)

	require.NoError(t, ch.Configure("sbc:afsk1200"))
	require.NoError(t, ch.Close())

	assert.Equal(t, CHANNEL_CLOSED, ch.State())
	assert.Empty(t, ch.PTTEnabled())
	assert.False(t, ch.Stats().PTT)
	assert.False(t, dev.Opened())
	assert.Zero(t, dev.opens)
	assert.Zero(t, dev.closes)
}

func TestChannelLifecycle(t *testing.T) {
	RedirectLog(t)

	var dev = NewSimDevice(nil)
	var ch = NewChannel(ChannelConfig{Name: "life", Backend: "sim"}, NewPatternFramer(nil), dev)

	require.NoError(t, ch.Configure("wss:afsk1200"))
	require.NoError(t, ch.Open(context.Background()))
	assert.Equal(t, CHANNEL_ACTIVE, ch.State())
	assert.True(t, dev.Opened())

	assert.ErrorIs(t, ch.Configure("wss:psk4800"), ErrChannelBusy)
	assert.ErrorIs(t, ch.Open(context.Background()), ErrChannelBusy)
	assert.Equal(t, "wss:afsk1200,afsk1200", ch.Mode())

	var s = ch.Stats()
	assert.Equal(t, "life", s.Name)
	assert.Equal(t, "active", s.State)
	assert.Equal(t, "receiving", s.Pipeline)

	require.NoError(t, ch.Close())
	require.NoError(t, ch.Close())
	assert.Equal(t, 1, dev.closes)
	assert.False(t, dev.Opened())

	s = ch.Stats()
	assert.Equal(t, "closed", s.State)
	assert.Equal(t, "-", s.Pipeline)

	// A closed channel can be opened again.
	require.NoError(t, ch.Configure("wss:psk4800"))
	require.NoError(t, ch.Open(context.Background()))
	assert.Equal(t, 2, dev.opens)
	require.NoError(t, ch.Close())
}

func TestChannelCloseWhileTransmitting(t *testing.T) {
	RedirectLog(t)

	var framer = NewPatternFramer(make([]uint8, 5000))
	var dev = NewSimDevice(nil)
	var ch = open_sim_channel(t, ChannelConfig{}, "sbc:afsk1200", framer, dev)

	dev.Tick()
	dev.Tick()
	require.True(t, ch.Stats().PTT)

	require.NoError(t, ch.Close())
	assert.False(t, ch.Stats().PTT)
	assert.Equal(t, AUDIO_IDLE, dev.Mode())

	// The device is gone, ticks do nothing.
	var before = ch.Stats().Interrupts
	dev.Tick()
	assert.Equal(t, before, ch.Stats().Interrupts)
}

func TestChannelOpenCancelled(t *testing.T) {
	RedirectLog(t)

	var dev = NewSimDevice(nil)
	var ch = NewChannel(ChannelConfig{}, NewPatternFramer(nil), dev)
	require.NoError(t, ch.Configure("sbc:afsk1200"))

	var ctx, cancel = context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, ch.Open(ctx), context.Canceled)
	assert.Equal(t, CHANNEL_CLOSED, ch.State())
	assert.Zero(t, dev.opens)
}

type brokenDevice struct {
	*SimDevice
}

func (brokenDevice) Open(*DMABinding) error {
	return errors.New("no such card")
}

func TestChannelOpenDeviceFails(t *testing.T) {
	RedirectLog(t)

	var ch = NewChannel(ChannelConfig{}, NewPatternFramer(nil), brokenDevice{NewSimDevice(nil)})
	require.NoError(t, ch.Configure("sbc:afsk1200"))

	var err = ch.Open(context.Background())
	assert.ErrorIs(t, err, ErrDeviceOpen)
	assert.ErrorContains(t, err, "no such card")
	assert.Equal(t, CHANNEL_CLOSED, ch.State())
}

func TestChannelFragmentSizes(t *testing.T) {
	RedirectLog(t)

	var dev = NewSimDevice(nil)
	var ch = open_sim_channel(t, ChannelConfig{Fragments: 3, FragmentMS: 20}, "wss:hapn4800pm_10,hapn4800_10", NewPatternFramer(nil), dev)
	defer ch.Close()

	assert.Equal(t, 3, ch.bind.Fragments)
	assert.Equal(t, DMAFormat{SampleRate: 48000, Width: 16, FragSize: 960}, ch.bind.In)
	assert.Equal(t, DMAFormat{SampleRate: 48000, Width: 8, FragSize: 960}, ch.bind.Out)
	assert.Equal(t, 960, ch.bind.out.frag_bytes())
	assert.Equal(t, 1920, ch.bind.in.frag_bytes())
}

func TestChannelDiagnose(t *testing.T) {
	RedirectLog(t)

	var dev = NewSimDevice(nil)
	var ch = open_sim_channel(t, ChannelConfig{DiagCapacity: 64}, "sbc:afsk1200", NewPatternFramer(nil), dev)
	defer ch.Close()

	var res, err = ch.Control(DiagnoseRequest{Mode: DIAG_INPUT})
	require.NoError(t, err)
	var d = res.(DiagnoseResult)
	assert.Equal(t, DIAG_INPUT, d.Mode)
	assert.False(t, d.Valid)
	assert.Equal(t, 9600, d.SampleRate)
	assert.Equal(t, 8, d.OverSampling)

	for range 50 {
		res, err = ch.Control(DiagnoseRead{})
		require.NoError(t, err)
		d = res.(DiagnoseResult)
		if d.Valid {
			break
		}
		dev.Tick()
	}
	require.True(t, d.Valid)
	assert.Len(t, d.Samples, 64)
	assert.NotZero(t, d.Flags&DIAG_FLAG_VALID)
	for _, v := range d.Samples {
		assert.Zero(t, v, "silence in")
	}

	// Reading re-arms.
	res, _ = ch.Control(DiagnoseRead{})
	assert.False(t, res.(DiagnoseResult).Valid)
	assert.Nil(t, res.(DiagnoseResult).Samples)

	_, err = ch.Control(DiagnoseRequest{Mode: DiagMode(9)})
	assert.ErrorIs(t, err, ErrBadRequest)
	_, err = ch.Control("eye pattern please")
	assert.ErrorIs(t, err, ErrBadRequest)

	res, err = ch.Control(StatsRequest{})
	require.NoError(t, err)
	assert.Equal(t, ch.Stats().Interrupts, res.(ChannelStats).Interrupts)
}

func TestChannelLoopback(t *testing.T) {
	RedirectLog(t)

	for _, mode := range []string{"sbc:afsk1200", "wss:afsk2666", "wss:fsk9600", "wssfdx:psk4800", "wss:hapn4800"} {
		t.Run(mode, func(t *testing.T) {
			var r = rand.New(rand.NewPCG(9, 9))
			var payload = random_bits(r, 400)
			var tx = append(random_bits(r, 600), payload...)

			var wire = new(SimWire)
			var sender = NewPatternFramer(tx)
			var listener = NewPatternFramer(nil)

			var a = NewSimDevice(nil)
			a.Sink = wire.Write
			var b = NewSimDevice(wire)

			var cha = open_sim_channel(t, ChannelConfig{Name: "a"}, mode, sender, a)
			defer cha.Close()
			var chb = open_sim_channel(t, ChannelConfig{Name: "b"}, mode, listener, b)
			defer chb.Close()

			for n := 0; n < 1000; n++ {
				a.Tick()
				b.Tick()
				if n > 2 && !cha.Stats().PTT {
					break
				}
			}
			// Flush what is still on the wire.
			for range 4 {
				b.Tick()
			}

			assert.True(t, sender.Done())
			assert.True(t, bytes.Contains(listener.Received(), payload), "payload not heard")
			assert.NotEmpty(t, listener.DCDChanges())
			assert.Zero(t, cha.Stats().Underruns)
			assert.Zero(t, chb.Stats().Overruns)
		})
	}
}
