package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	G3RUH compatible 9600 bits/sec baseband FSK.
 *
 * Description:	The scrambled NRZI line is sent as raised cosine
 *		shaped pulses, alpha = 1, truncated to 2.5 bits either
 *		side.  Rather than filter on the fly we look up the
 *		whole bit period from the last 5 line bits; the bit
 *		being output is the middle one.
 *
 *		Receive is a short low pass, a zero crossing slicer,
 *		and the usual edge locked bit clock.
 *
 *		Two sample rates, 4 or 5 samples per bit, depending on
 *		what the sound hardware can be clocked at.
 *
 *----------------------------------------------------------------*/

import (
	"unsafe"
)

const FSK9600_HIST_BITS = 5
const FSK9600_AMPLITUDE = 24000

type fsk9600_params struct {
	srate      int
	spb        int
	ntaps      int
	fc         float64
	dcd_window int

	tx_table []int16 // (1 << FSK9600_HIST_BITS) * spb
	taps     []int32
}

var fsk9600_4_params = fsk9600_params{srate: 38400, spb: 4, ntaps: 9, fc: 0.25, dcd_window: 384}
var fsk9600_5_params = fsk9600_params{srate: 48000, spb: 5, ntaps: 11, fc: 0.2, dcd_window: 384}

func init() {
	for _, p := range []*fsk9600_params{&fsk9600_4_params, &fsk9600_5_params} {
		p.tx_table = gen_pulse_table(FSK9600_HIST_BITS, FSK9600_HIST_BITS/2, p.spb,
			func(hist int, pos int) float64 {
				return IfThenElse((hist>>pos)&1 != 0, 1.0, -1.0)
			}, FSK9600_AMPLITUDE)
		p.taps = fir_quantize(gen_lowpass(p.fc, p.ntaps, BP_WINDOW_HAMMING))
	}
}

func fsk9600_tx_scheme(name string, p *fsk9600_params) TxScheme {
	return TxScheme{
		Name:       name,
		SampleRate: p.srate,
		BitRate:    9600,
		Widths:     WIDTH_8 | WIDTH_16,
		StateSize:  unsafe.Sizeof(fsk9600_mod{}),
		new:        func() modulator { return &fsk9600_mod{p: p} },
	}
}

func fsk9600_rx_scheme(name string, p *fsk9600_params) RxScheme {
	return RxScheme{
		Name:         name,
		SampleRate:   p.srate,
		BitRate:      9600,
		Overlap:      p.ntaps - 1,
		OverSampling: p.spb,
		DCDWindow:    p.dcd_window,
		Widths:       WIDTH_8 | WIDTH_16,
		StateSize:    unsafe.Sizeof(fsk9600_demod{}),
		new:          func() demodulator { return &fsk9600_demod{p: p} },
	}
}

var fsk9600_4_tx = fsk9600_tx_scheme("fsk9600_4", &fsk9600_4_params)
var fsk9600_4_rx = fsk9600_rx_scheme("fsk9600_4", &fsk9600_4_params)
var fsk9600_5_tx = fsk9600_tx_scheme("fsk9600_5", &fsk9600_5_params)
var fsk9600_5_rx = fsk9600_rx_scheme("fsk9600_5", &fsk9600_5_params)

type fsk9600_mod struct {
	p        *fsk9600_params
	src      tx_bit_source
	hist     int
	bitcount int
}

func (m *fsk9600_mod) init() {
	m.src.reset(true, true)
	m.hist = 0
	m.bitcount = 0
}

func (m *fsk9600_mod) modulate8(io *modemIO, buf []uint8) { fsk9600_modulate(m, io, buf) }

func (m *fsk9600_mod) modulate16(io *modemIO, buf []int16) { fsk9600_modulate(m, io, buf) }

func fsk9600_modulate[T pcm](m *fsk9600_mod, io *modemIO, buf []T) {
	const hist_mask = (1 << FSK9600_HIST_BITS) - 1
	var spb = m.p.spb

	for i := range buf {
		if m.bitcount == 0 {
			m.hist = ((m.hist << 1) | m.src.next(io)) & hist_mask
			m.bitcount = spb
		}
		buf[i] = s16_to_pcm[T](int32(m.p.tx_table[m.hist*spb+spb-m.bitcount]))
		m.bitcount--
	}
}

type fsk9600_demod struct {
	p    *fsk9600_params
	pll  bitclock
	dcd  dcd_state
	sink rx_bit_sink
	last int
}

func (d *fsk9600_demod) init() {
	d.pll.init(d.p.spb)
	d.dcd.init(d.p.spb, d.p.dcd_window)
	d.sink.reset(true, true)
	d.last = 0
}

func (d *fsk9600_demod) demodulate8(io *modemIO, buf []uint8) { fsk9600_demodulate(d, io, buf) }

func (d *fsk9600_demod) demodulate16(io *modemIO, buf []int16) { fsk9600_demodulate(d, io, buf) }

func fsk9600_demodulate[T pcm](d *fsk9600_demod, io *modemIO, buf []T) {
	for n := d.p.ntaps - 1; n < len(buf); n++ {
		var v = fir_convolve(buf, n, d.p.taps)
		var cur = IfThenElse(v > 0, 1, 0)

		var transition = cur != d.last
		d.last = cur

		d.dcd.sample(transition)
		if transition {
			d.pll.on_transition()
		}

		if d.pll.advance() {
			io.diag_add(DIAG_INPUT, pcm_to_s16(buf[n]))
			io.diag_add(DIAG_DEMOD, v)

			d.sink.put(io, cur)

			if d.dcd.bit() {
				io.set_dcd(d.dcd.carrier)
			}
		}
	}
}
