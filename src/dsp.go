package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:     Generate the filters and pulse shapes used by the
 *		modems.  All of this runs at init time in floating
 *		point and is then quantized for the integer sample path.
 *
 *----------------------------------------------------------------*/

import (
	"math"

	"github.com/mjibson/go-dsp/window"
)

type bp_window_t int

const (
	BP_WINDOW_TRUNCATED bp_window_t = iota
	BP_WINDOW_HANN
	BP_WINDOW_HAMMING
	BP_WINDOW_BLACKMAN
	BP_WINDOW_FLATTOP
)

const MAX_FILTER_SIZE = 64

// Integer FIR taps are Q12.
const FIR_SHIFT = 12

/*------------------------------------------------------------------
 *
 * Name:        window_shape
 *
 * Purpose:     Filter window shape.
 *
 * Inputs:   	wtype	- BP_WINDOW_HAMMING, etc.
 *		size	- Number of filter taps.
 *
 * Returns:     Multiplier for each tap.
 *
 *----------------------------------------------------------------*/

func window_shape(wtype bp_window_t, size int) []float64 {
	switch wtype {
	case BP_WINDOW_HANN:
		return window.Hann(size)
	case BP_WINDOW_HAMMING:
		return window.Hamming(size)
	case BP_WINDOW_BLACKMAN:
		return window.Blackman(size)
	case BP_WINDOW_FLATTOP:
		return window.FlatTop(size)
	case BP_WINDOW_TRUNCATED:
		fallthrough
	default:
		return window.Rectangular(size)
	}
}

/*------------------------------------------------------------------
 *
 * Name:        gen_lowpass
 *
 * Purpose:     Generate low pass filter kernel.
 *
 * Inputs:   	fc		- Cutoff frequency as fraction of sampling frequency.
 *		filter_size	- Number of filter taps.
 *		wtype		- Window type, BP_WINDOW_HAMMING, etc.
 *
 * Returns:	Kernel normalized for unity gain at DC.
 *
 *----------------------------------------------------------------*/

func gen_lowpass(fc float64, filter_size int, wtype bp_window_t) []float64 {

	Assert(filter_size >= 3 && filter_size <= MAX_FILTER_SIZE)

	var lp_filter = make([]float64, filter_size)
	var shape = window_shape(wtype, filter_size)
	var center = 0.5 * float64(filter_size-1)

	for j := 0; j < filter_size; j++ {
		var sinc float64

		if float64(j)-center == 0 {
			sinc = 2 * fc
		} else {
			sinc = math.Sin(2*math.Pi*(fc*(float64(j)-center))) / (math.Pi * (float64(j) - center))
		}

		lp_filter[j] = sinc * shape[j]
	}

	/*
	 * Normalize lowpass for unity gain at DC.
	 */
	var G float64 = 0
	for j := 0; j < filter_size; j++ {
		G += lp_filter[j]
	}
	for j := 0; j < filter_size; j++ {
		lp_filter[j] /= G
	}

	return lp_filter
} /* end gen_lowpass */

// Quantize a kernel to Q12 integer taps.
func fir_quantize(f []float64) []int32 {
	var taps = make([]int32, len(f))
	for j, v := range f {
		taps[j] = int32(math.Round(v * (1 << FIR_SHIFT)))
	}
	return taps
}

/*------------------------------------------------------------------
 *
 * Name:        fir_convolve
 *
 * Purpose:     One output of an integer FIR filter.
 *
 * Inputs:	buf	- Samples.  buf[n] is the newest.
 *		n	- Index of the output sample.  Must be at
 *			  least len(taps)-1, which the receive overlap
 *			  guarantees.
 *		taps	- Q12 kernel.
 *
 *----------------------------------------------------------------*/

func fir_convolve[T pcm](buf []T, n int, taps []int32) int32 {
	var sum int32
	for k, c := range taps {
		sum += c * pcm_to_s16(buf[n-k])
	}
	return sum >> FIR_SHIFT
}

/*------------------------------------------------------------------
 *
 * Name:        gen_ms
 *
 * Purpose:     Generate mark or space correlator tables.
 *
 * Inputs:   	fc		- Tone frequency, i.e. mark or space.
 *		sps		- Samples per second.
 *		filter_size	- Number of taps, one bit period.
 *
 * Outputs:     cos_tab, sin_tab in Q15.
 *
 *----------------------------------------------------------------*/

func gen_ms(fc int, sps int, filter_size int, cos_tab []int32, sin_tab []int32) {
	var inc = phase_increment(fc, sps)
	var phase uint32
	for j := 0; j < filter_size; j++ {
		cos_tab[j] = dds_cos(phase)
		sin_tab[j] = dds_sin(phase)
		phase = (phase + inc) & PHASE_MASK
	}
} /* end gen_ms */

/*------------------------------------------------------------------
 *
 * Name:        rcos
 *
 * Purpose:     Raised cosine pulse.
 *
 * Inputs:      t		- Time in units of symbol duration.
 *				  i.e. The centers of two adjacent symbols would differ by 1.
 *
 *		a		- Roll off factor, between 0 and 1.
 *
 * Returns:	Basically the sinc  (sin(x)/x) function with edges decreasing faster.
 *		1 for t = 0 and 0 at all other integer values of t.
 *
 *----------------------------------------------------------------*/

func rcos(t float64, a float64) float64 {

	var sinc, shape float64

	if t > -0.001 && t < 0.001 {
		sinc = 1
	} else {
		sinc = math.Sin(math.Pi*t) / (math.Pi * t)
	}

	if math.Abs(a*t) > 0.499 && math.Abs(a*t) < 0.501 {
		shape = math.Pi / 4
	} else {
		shape = math.Cos(math.Pi*a*t) / (1 - math.Pow(2*a*t, 2))
	}

	return sinc * shape
}

/*------------------------------------------------------------------
 *
 * Name:        gen_pulse_table
 *
 * Purpose:     Precompute transmit waveforms for every line history.
 *
 * Inputs:	nbits	- Number of line symbols that contribute to one
 *			  output bit period.  Index bit 0 is the newest.
 *		center	- Which history position is being output.
 *		spb	- Samples per bit.
 *		level	- Function giving the pulse weight for a history
 *			  value and position.
 *		amp	- Scale for a unit pulse.
 *
 * Returns:	(1<<nbits) * spb samples.
 *
 *----------------------------------------------------------------*/

func gen_pulse_table(nbits int, center int, spb int, level func(hist int, pos int) float64, amp float64) []int16 {
	var tab = make([]int16, (1<<nbits)*spb)

	for hist := 0; hist < 1<<nbits; hist++ {
		for i := 0; i < spb; i++ {
			var u = (float64(i)+0.5)/float64(spb) - 0.5
			var y float64
			for pos := 0; pos < nbits; pos++ {
				// Position 0 is the newest so it lies center bits in the future.
				var d = float64(center - pos)
				y += level(hist, pos) * rcos(u-d, 1.0)
			}
			tab[hist*spb+i] = int16(clip16(int32(math.Round(amp * y))))
		}
	}

	return tab
}
