package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	HAPN compatible 4800 bits/sec duobinary modem.
 *
 * Description:	The NRZI line symbols a(k) = +1 / -1 are sent as
 *		y = a(k) + a(k-1), raised cosine shaped.  That gives
 *		three levels.  A data 1 leaves the line alone so lands
 *		on an outer level.  A data 0 toggles it and lands in
 *		the middle.  So the receiver slices |y| and never needs
 *		to undo the NRZI.
 *
 *		The "pm" variants are for phase modulated rigs.  They
 *		pre-emphasise on transmit, z = y - 3/4 y(-1), and
 *		integrate that back out on receive.
 *
 *		Besides the edge locked clock, a peak of |y| in the
 *		middle of an outer level bit gives a second, weaker
 *		timing nudge.
 *
 *----------------------------------------------------------------*/

import (
	"unsafe"
)

const HAPN_HIST_BITS = 6
const HAPN_CENTER = 2
const HAPN_AMPLITUDE = 12000
const HAPN_PM_AMPLITUDE = HAPN_AMPLITUDE / 2

// Envelope decay and peak significance, as right shifts of the envelope.
const HAPN_ENV_DECAY = 12
const HAPN_PEAK_MARGIN = 6

type hapn_params struct {
	srate      int
	spb        int
	ntaps      int
	pm         bool
	widths     WidthSet
	dcd_window int

	tx_table []int16 // (1 << HAPN_HIST_BITS) * spb
	taps     []int32
}

var hapn4800_8_params = hapn_params{srate: 38400, spb: 8, ntaps: 9, widths: WIDTH_8 | WIDTH_16, dcd_window: 240}
var hapn4800_10_params = hapn_params{srate: 48000, spb: 10, ntaps: 11, widths: WIDTH_16, dcd_window: 240}
var hapn4800pm_8_params = hapn_params{srate: 38400, spb: 8, ntaps: 9, pm: true, widths: WIDTH_8 | WIDTH_16, dcd_window: 240}
var hapn4800pm_10_params = hapn_params{srate: 48000, spb: 10, ntaps: 11, pm: true, widths: WIDTH_8, dcd_window: 240}

// Line level of history position pos, newest at bit 0.
func hapn_line(hist int, pos int) float64 {
	return IfThenElse((hist>>pos)&1 != 0, 1.0, -1.0)
}

func init() {
	for _, p := range []*hapn_params{&hapn4800_8_params, &hapn4800_10_params, &hapn4800pm_8_params, &hapn4800pm_10_params} {
		var amp = IfThenElse(p.pm, float64(HAPN_PM_AMPLITUDE), float64(HAPN_AMPLITUDE))

		// Duobinary symbol at pos needs the line bit at pos+1 too,
		// so the oldest history bit only contributes through its neighbour.
		p.tx_table = gen_pulse_table(HAPN_HIST_BITS, HAPN_CENTER, p.spb,
			func(hist int, pos int) float64 {
				if pos+1 >= HAPN_HIST_BITS {
					return 0
				}
				return hapn_line(hist, pos) + hapn_line(hist, pos+1)
			}, amp)

		p.taps = fir_quantize(gen_lowpass(4800/float64(p.srate), p.ntaps, BP_WINDOW_HAMMING))
	}
}

func hapn_tx_scheme(name string, p *hapn_params) TxScheme {
	return TxScheme{
		Name:       name,
		SampleRate: p.srate,
		BitRate:    4800,
		Widths:     p.widths,
		StateSize:  unsafe.Sizeof(hapn_mod{}),
		new:        func() modulator { return &hapn_mod{p: p} },
	}
}

func hapn_rx_scheme(name string, p *hapn_params) RxScheme {
	return RxScheme{
		Name:         name,
		SampleRate:   p.srate,
		BitRate:      4800,
		Overlap:      p.ntaps - 1,
		OverSampling: p.spb,
		DCDWindow:    p.dcd_window,
		Widths:       p.widths,
		StateSize:    unsafe.Sizeof(hapn_demod{}),
		new:          func() demodulator { return &hapn_demod{p: p} },
	}
}

var hapn4800_8_tx = hapn_tx_scheme("hapn4800_8", &hapn4800_8_params)
var hapn4800_8_rx = hapn_rx_scheme("hapn4800_8", &hapn4800_8_params)
var hapn4800_10_tx = hapn_tx_scheme("hapn4800_10", &hapn4800_10_params)
var hapn4800_10_rx = hapn_rx_scheme("hapn4800_10", &hapn4800_10_params)
var hapn4800pm_8_tx = hapn_tx_scheme("hapn4800pm_8", &hapn4800pm_8_params)
var hapn4800pm_8_rx = hapn_rx_scheme("hapn4800pm_8", &hapn4800pm_8_params)
var hapn4800pm_10_tx = hapn_tx_scheme("hapn4800pm_10", &hapn4800pm_10_params)
var hapn4800pm_10_rx = hapn_rx_scheme("hapn4800pm_10", &hapn4800pm_10_params)

type hapn_mod struct {
	p        *hapn_params
	src      tx_bit_source
	hist     int
	bitcount int
	prev     int32
}

func (m *hapn_mod) init() {
	m.src.reset(true, false)
	m.hist = 0
	m.bitcount = 0
	m.prev = 0
}

func (m *hapn_mod) modulate8(io *modemIO, buf []uint8) { hapn_modulate(m, io, buf) }

func (m *hapn_mod) modulate16(io *modemIO, buf []int16) { hapn_modulate(m, io, buf) }

func hapn_modulate[T pcm](m *hapn_mod, io *modemIO, buf []T) {
	const hist_mask = (1 << HAPN_HIST_BITS) - 1
	var spb = m.p.spb

	for i := range buf {
		if m.bitcount == 0 {
			m.hist = ((m.hist << 1) | m.src.next(io)) & hist_mask
			m.bitcount = spb
		}

		var y = int32(m.p.tx_table[m.hist*spb+spb-m.bitcount])
		m.bitcount--

		if m.p.pm {
			var z = y - (3*m.prev)>>2
			m.prev = y
			y = z
		}

		buf[i] = s16_to_pcm[T](y)
	}
}

type hapn_demod struct {
	p     *hapn_params
	pll   bitclock
	dcd   dcd_state
	sink  rx_bit_sink
	last  int
	env   int32
	integ int32
	mag   [5]int32 // |y| history, mag[4] newest
}

func (d *hapn_demod) init() {
	d.pll.init(d.p.spb)
	d.dcd.init(d.p.spb, d.p.dcd_window)
	d.sink.reset(false, false)
	d.last = 0
	d.env = 0
	d.integ = 0
	d.mag = [5]int32{}
}

func (d *hapn_demod) demodulate8(io *modemIO, buf []uint8) { hapn_demodulate(d, io, buf) }

func (d *hapn_demod) demodulate16(io *modemIO, buf []int16) { hapn_demodulate(d, io, buf) }

/*------------------------------------------------------------------
 *
 * Name:	hapn_peak
 *
 * Purpose:	Is the middle of the last five |y| values a peak?
 *
 * Description:	Strictly above its immediate neighbours, at least
 *		its outer neighbours, in the outer level half, and
 *		standing clear of the shoulders by a fraction of the
 *		envelope.
 *
 *----------------------------------------------------------------*/

func hapn_peak(m *[5]int32, env int32) bool {
	var p0, p1, p2, p3, p4 = m[0], m[1], m[2], m[3], m[4]

	if p2 <= p1 || p2 <= p3 || p2 < p0 || p2 < p4 {
		return false
	}
	if 2*p2 <= env {
		return false
	}
	return p2-min(p0, p4) > env>>HAPN_PEAK_MARGIN
}

func hapn_demodulate[T pcm](d *hapn_demod, io *modemIO, buf []T) {
	for n := d.p.ntaps - 1; n < len(buf); n++ {
		var v = fir_convolve(buf, n, d.p.taps)
		if d.p.pm {
			d.integ = v + (3*d.integ)>>2
			v = d.integ
		}

		var a = abs32(v)
		if a > d.env {
			d.env = a
		} else {
			d.env -= d.env >> HAPN_ENV_DECAY
		}

		copy(d.mag[:4], d.mag[1:])
		d.mag[4] = a

		var cur = IfThenElse(2*a > d.env, 1, 0)

		var transition = cur != d.last
		d.last = cur

		d.dcd.sample(transition)
		if transition {
			d.pll.on_transition()
		}

		if hapn_peak(&d.mag, d.env) {
			// The peak was two samples ago.  Aim to sample right on it.
			var phi = (d.pll.phase - 2*d.pll.inc) & PHASE_MASK
			var half = int32(d.pll.nudge / 2)
			if phi < PHASE_MODULUS/2 {
				d.pll.slew(-half)
			} else {
				d.pll.slew(half)
			}
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
