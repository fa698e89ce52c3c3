package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	4800 bits/sec differential 8-PSK on a 2400 Hz carrier.
 *
 * Description:	Three scrambled bits make a symbol.  Its Gray code
 *		picks a phase change, in multiples of 45 degrees, from
 *		the V.27 table also used for 8PSK in Dire Wolf.
 *
 *		Each 12 sample symbol has a half sine amplitude
 *		envelope.  The resulting dip in power at every symbol
 *		boundary is what the receiver locks its symbol clock to.
 *
 *		Receive mixes with a local 2400 Hz oscillator and sums
 *		4 samples, exactly one carrier cycle at 19200 samples
 *		per second, which nulls the image at twice the carrier.
 *		In the middle of each symbol the phase is measured and
 *		differenced against the previous symbol.
 *
 *----------------------------------------------------------------*/

import (
	"math"
	"unsafe"
)

const PSK_SRATE = 19200
const PSK_CARRIER = 2400
const PSK_SYMBOL_SAMPLES = 12
const PSK_BITS_PER_SYMBOL = 3
const PSK_BOXCAR = 4
const PSK_AMPLITUDE = 24000
const PSK_DCD_WINDOW = 128

// Peak power tracker decay, as a right shift.
const PSK_PEAK_DECAY = 10

// Symbol to phase change in units of 45 degrees.
var psk_gray2phase = [8]int{1, 0, 2, 3, 6, 7, 5, 4}

var psk_phase2gray = make_phase2gray()

func make_phase2gray() (t [8]int) {
	for gray, phase := range psk_gray2phase {
		t[phase] = gray
	}
	return t
}

// Half sine symbol envelope in Q15.
var psk_envelope = make_psk_envelope()

func make_psk_envelope() (t [PSK_SYMBOL_SAMPLES]int32) {
	for i := range PSK_SYMBOL_SAMPLES {
		t[i] = int32(math.Round(S16_MAX * math.Sin(math.Pi*(float64(i)+0.5)/PSK_SYMBOL_SAMPLES)))
	}
	return t
}

var psk4800_tx = TxScheme{
	Name:       "psk4800",
	SampleRate: PSK_SRATE,
	BitRate:    4800,
	Widths:     WIDTH_8 | WIDTH_16,
	StateSize:  unsafe.Sizeof(psk_mod{}),
	new:        func() modulator { return new(psk_mod) },
}

var psk4800_rx = RxScheme{
	Name:         "psk4800",
	SampleRate:   PSK_SRATE,
	BitRate:      4800,
	Overlap:      PSK_BOXCAR - 1,
	OverSampling: PSK_SYMBOL_SAMPLES / PSK_BITS_PER_SYMBOL,
	DCDWindow:    PSK_DCD_WINDOW,
	Widths:       WIDTH_8 | WIDTH_16,
	StateSize:    unsafe.Sizeof(psk_demod{}),
	new:          func() demodulator { return new(psk_demod) },
}

type psk_mod struct {
	src    tx_bit_source
	lo     uint32
	inc    uint32
	phi    uint32
	sample int
}

func (m *psk_mod) init() {
	m.src.reset(false, true)
	m.lo = 0
	m.inc = phase_increment(PSK_CARRIER, PSK_SRATE)
	m.phi = 0
	m.sample = 0
}

func (m *psk_mod) modulate8(io *modemIO, buf []uint8) { psk_modulate(m, io, buf) }

func (m *psk_mod) modulate16(io *modemIO, buf []int16) { psk_modulate(m, io, buf) }

func psk_modulate[T pcm](m *psk_mod, io *modemIO, buf []T) {
	for i := range buf {
		if m.sample == 0 {
			var sym = 0
			for range PSK_BITS_PER_SYMBOL {
				sym = sym<<1 | m.src.next(io)
			}
			m.phi = (m.phi + uint32(psk_gray2phase[sym])*(PHASE_MODULUS/8)) & PHASE_MASK
		}

		var a = (PSK_AMPLITUDE * psk_envelope[m.sample]) >> Q15
		buf[i] = s16_to_pcm[T]((a * dds_cos(m.lo+m.phi)) >> Q15)

		m.lo = (m.lo + m.inc) & PHASE_MASK
		m.sample++
		if m.sample == PSK_SYMBOL_SAMPLES {
			m.sample = 0
		}
	}
}

type psk_demod struct {
	pll  bitclock
	dcd  dcd_state
	sink rx_bit_sink
	lo   uint32
	inc  uint32
	pwr  [5]int64 // boxcar power history, pwr[4] newest
	peak int64
	last uint32 // phase of the previous symbol
}

func (d *psk_demod) init() {
	d.pll.init(PSK_SYMBOL_SAMPLES)
	d.dcd.init(PSK_SYMBOL_SAMPLES, PSK_DCD_WINDOW)
	d.sink.reset(false, true)
	d.lo = 0
	d.inc = phase_increment(PSK_CARRIER, PSK_SRATE)
	d.pwr = [5]int64{}
	d.peak = 0
	d.last = 0
}

func (d *psk_demod) demodulate8(io *modemIO, buf []uint8) { psk_demodulate(d, io, buf) }

func (d *psk_demod) demodulate16(io *modemIO, buf []int16) { psk_demodulate(d, io, buf) }

// Boxcar power minimum at the middle of the last five.
func psk_dip(p *[5]int64, peak int64) bool {
	return p[2] <= p[1] && p[2] <= p[0] && p[2] < p[3] && p[2] < p[4] && 4*p[2] < peak
}

func psk_demodulate[T pcm](d *psk_demod, io *modemIO, buf []T) {
	for n := PSK_BOXCAR - 1; n < len(buf); n++ {

		/*
		 * Mix the last carrier cycle down to baseband.
		 * Sample n-k was taken when the oscillator was at lo - k*inc.
		 */
		var zi, zq int32
		for k := range PSK_BOXCAR {
			var x = pcm_to_s16(buf[n-k])
			var ph = d.lo - uint32(k)*d.inc
			zi += (x * dds_cos(ph)) >> Q15
			zq -= (x * dds_sin(ph)) >> Q15
		}
		d.lo = (d.lo + d.inc) & PHASE_MASK

		var p = int64(zi)*int64(zi) + int64(zq)*int64(zq)
		if p > d.peak {
			d.peak = p
		} else {
			d.peak -= d.peak >> PSK_PEAK_DECAY
		}

		copy(d.pwr[:4], d.pwr[1:])
		d.pwr[4] = p

		var dip = psk_dip(&d.pwr, d.peak)
		d.dcd.sample(dip)
		if dip {
			// The dip was two samples ago.  Put it half a symbol from the wrap.
			var q = (d.pll.phase - 2*d.pll.inc) & PHASE_MASK
			if q < PHASE_MODULUS/2 {
				d.pll.slew(int32(d.pll.nudge))
			} else {
				d.pll.slew(-int32(d.pll.nudge))
			}
		}

		if d.pll.advance() {
			var theta = iatan2(zq, zi)
			var delta = (theta - d.last) & PHASE_MASK
			d.last = theta

			io.diag_add(DIAG_INPUT, pcm_to_s16(buf[n]))
			io.diag_add_pair(DIAG_CONSTELLATION, zi, zq)

			var sym = psk_phase2gray[((delta+PHASE_MODULUS/16)>>13)&7]
			for b := PSK_BITS_PER_SYMBOL - 1; b >= 0; b-- {
				d.sink.put(io, (sym>>b)&1)
			}

			if d.dcd.bit() {
				io.set_dcd(d.dcd.carrier)
			}
		}
	}
}
