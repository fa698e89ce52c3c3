package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Audio frequency shift keying, 1200 to 2666 bits/sec.
 *
 * Description:	Transmit is a phase continuous DDS switching between
 *		the mark and space increments at each bit boundary.
 *
 *		Receive correlates the last bit period of samples
 *		against quadrature mark and space references.  The
 *		sliced output is whichever tone has more energy.
 *
 *		The 2400 variants use the tone pairs a TCM3105 modem
 *		chip produces with a 7.3728 or 8 MHz crystal, so they
 *		interoperate with hardware modems built around it.
 *
 *----------------------------------------------------------------*/

import (
	"unsafe"
)

const AFSK_MAX_SPB = 12

const TX_AMPLITUDE = 23000

type afsk_params struct {
	srate      int
	bitrate    int
	spb        int
	mark       int
	space      int
	scrambled  bool
	dcd_window int

	// Correlator references, filled by init().
	mark_cos  [AFSK_MAX_SPB]int32
	mark_sin  [AFSK_MAX_SPB]int32
	space_cos [AFSK_MAX_SPB]int32
	space_sin [AFSK_MAX_SPB]int32
}

var afsk1200_params = afsk_params{srate: 9600, bitrate: 1200, spb: 8, mark: 1200, space: 2200, dcd_window: 120}
var afsk2400_7_params = afsk_params{srate: 28800, bitrate: 2400, spb: 12, mark: 3970, space: 7610, dcd_window: 240}
var afsk2400_8_params = afsk_params{srate: 28800, bitrate: 2400, spb: 12, mark: 4308, space: 8257, dcd_window: 240}
var afsk2666_params = afsk_params{srate: 32000, bitrate: 2666, spb: 12, mark: 4000, space: 8000, scrambled: true, dcd_window: 240}

func init() {
	for _, p := range []*afsk_params{&afsk1200_params, &afsk2400_7_params, &afsk2400_8_params, &afsk2666_params} {
		Assert(p.spb <= AFSK_MAX_SPB)
		gen_ms(p.mark, p.srate, p.spb, p.mark_cos[:], p.mark_sin[:])
		gen_ms(p.space, p.srate, p.spb, p.space_cos[:], p.space_sin[:])
	}
}

func afsk_tx_scheme(name string, p *afsk_params) TxScheme {
	return TxScheme{
		Name:       name,
		SampleRate: p.srate,
		BitRate:    p.bitrate,
		Widths:     WIDTH_8 | WIDTH_16,
		StateSize:  unsafe.Sizeof(afsk_mod{}),
		new:        func() modulator { return &afsk_mod{p: p} },
	}
}

func afsk_rx_scheme(name string, p *afsk_params) RxScheme {
	return RxScheme{
		Name:         name,
		SampleRate:   p.srate,
		BitRate:      p.bitrate,
		Overlap:      p.spb - 1,
		OverSampling: p.spb,
		DCDWindow:    p.dcd_window,
		Widths:       WIDTH_8 | WIDTH_16,
		StateSize:    unsafe.Sizeof(afsk_demod{}),
		new:          func() demodulator { return &afsk_demod{p: p} },
	}
}

var afsk1200_tx = afsk_tx_scheme("afsk1200", &afsk1200_params)
var afsk1200_rx = afsk_rx_scheme("afsk1200", &afsk1200_params)
var afsk2400_7_tx = afsk_tx_scheme("afsk2400_7", &afsk2400_7_params)
var afsk2400_7_rx = afsk_rx_scheme("afsk2400_7", &afsk2400_7_params)
var afsk2400_8_tx = afsk_tx_scheme("afsk2400_8", &afsk2400_8_params)
var afsk2400_8_rx = afsk_rx_scheme("afsk2400_8", &afsk2400_8_params)
var afsk2666_tx = afsk_tx_scheme("afsk2666", &afsk2666_params)
var afsk2666_rx = afsk_rx_scheme("afsk2666", &afsk2666_params)

/*------------------------------------------------------------------
 *
 * Name:	afsk_mod
 *
 *----------------------------------------------------------------*/

type afsk_mod struct {
	p         *afsk_params
	src       tx_bit_source
	phase     uint32
	inc_mark  uint32
	inc_space uint32
	bitcount  int
	cur       int
}

func (m *afsk_mod) init() {
	m.src.reset(true, m.p.scrambled)
	m.phase = 0
	m.inc_mark = phase_increment(m.p.mark, m.p.srate)
	m.inc_space = phase_increment(m.p.space, m.p.srate)
	m.bitcount = 0
	m.cur = 0
}

func (m *afsk_mod) modulate8(io *modemIO, buf []uint8) { afsk_modulate(m, io, buf) }

func (m *afsk_mod) modulate16(io *modemIO, buf []int16) { afsk_modulate(m, io, buf) }

func afsk_modulate[T pcm](m *afsk_mod, io *modemIO, buf []T) {
	for i := range buf {
		if m.bitcount == 0 {
			m.cur = m.src.next(io)
			m.bitcount = m.p.spb
		}
		m.bitcount--

		var inc = IfThenElse(m.cur != 0, m.inc_mark, m.inc_space)
		buf[i] = s16_to_pcm[T]((dds_cos(m.phase) * TX_AMPLITUDE) >> Q15)
		m.phase = (m.phase + inc) & PHASE_MASK
	}
}

/*------------------------------------------------------------------
 *
 * Name:	afsk_demod
 *
 *----------------------------------------------------------------*/

type afsk_demod struct {
	p    *afsk_params
	pll  bitclock
	dcd  dcd_state
	sink rx_bit_sink
	last int
}

func (d *afsk_demod) init() {
	d.pll.init(d.p.spb)
	d.dcd.init(d.p.spb, d.p.dcd_window)
	d.sink.reset(true, d.p.scrambled)
	d.last = 0
}

func (d *afsk_demod) demodulate8(io *modemIO, buf []uint8) { afsk_demodulate(d, io, buf) }

func (d *afsk_demod) demodulate16(io *modemIO, buf []int16) { afsk_demodulate(d, io, buf) }

// Mark energy minus space energy over the bit period ending at buf[n].
func afsk_discriminate[T pcm](p *afsk_params, buf []T, n int) int64 {
	var mi, mq, si, sq int32
	for k := 0; k < p.spb; k++ {
		var x = pcm_to_s16(buf[n-p.spb+1+k])
		mi += (x * p.mark_cos[k]) >> Q15
		mq += (x * p.mark_sin[k]) >> Q15
		si += (x * p.space_cos[k]) >> Q15
		sq += (x * p.space_sin[k]) >> Q15
	}
	return int64(mi)*int64(mi) + int64(mq)*int64(mq) - int64(si)*int64(si) - int64(sq)*int64(sq)
}

func afsk_demodulate[T pcm](d *afsk_demod, io *modemIO, buf []T) {
	var overlap = d.p.spb - 1

	for n := overlap; n < len(buf); n++ {
		var f = afsk_discriminate(d.p, buf, n)
		var cur = IfThenElse(f > 0, 1, 0)

		var transition = cur != d.last
		d.last = cur

		d.dcd.sample(transition)
		if transition {
			d.pll.on_transition()
		}

		if d.pll.advance() {
			io.diag_add(DIAG_INPUT, pcm_to_s16(buf[n]))
			io.diag_add(DIAG_DEMOD, int32(f>>20))

			d.sink.put(io, cur)

			if d.dcd.bit() {
				io.set_dcd(d.dcd.carrier)
			}
		}
	}
}
