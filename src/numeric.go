package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Fixed point helpers shared by all of the modems.
 *
 *		Direct digital synthesis phase is 16 bits and wraps
 *		modulo 65536.  Samples travel between the modems and
 *		the sound device as 8 bit unsigned (0x80 is silence)
 *		or 16 bit signed.  Everything in between is int32.
 *
 *----------------------------------------------------------------*/

import (
	"math"
	"math/bits"
	"unsafe"
)

const PHASE_BITS = 16
const PHASE_MODULUS = 1 << PHASE_BITS
const PHASE_MASK = PHASE_MODULUS - 1

const COS_TABLE_BITS = 10
const COS_TABLE_SIZE = 1 << COS_TABLE_BITS

const Q15 = 15

// Octant table for iatan2.  8 octants of 128 steps gives 1024 steps per turn.
const ATAN_TABLE_BITS = 7
const ATAN_TABLE_SIZE = 1 << ATAN_TABLE_BITS

const S16_MAX = 32767
const S16_MIN = -32768

const U8_SILENCE = 0x80

// Package level initializers run before any init(), and the modem
// tables are built in init() from these.
var cos_table = make_cos_table()

var atan_table = make_atan_table()

func make_cos_table() (t [COS_TABLE_SIZE]int32) {
	for i := range COS_TABLE_SIZE {
		t[i] = int32(math.Round(S16_MAX * math.Cos(2*math.Pi*float64(i)/COS_TABLE_SIZE)))
	}
	return t
}

func make_atan_table() (t [ATAN_TABLE_SIZE + 1]uint32) {
	for k := range ATAN_TABLE_SIZE + 1 {
		var a = math.Atan(float64(k)/ATAN_TABLE_SIZE) * PHASE_MODULUS / (2 * math.Pi)
		t[k] = uint32(math.Round(a))
	}
	return t
}

/*------------------------------------------------------------------
 *
 * Name:	dds_cos, dds_sin
 *
 * Purpose:	Table lookup of cosine / sine for a 16 bit phase.
 *
 * Returns:	Q15 value in range -32767 .. 32767.
 *
 *----------------------------------------------------------------*/

func dds_cos(phase uint32) int32 {
	return cos_table[(phase&PHASE_MASK)>>(PHASE_BITS-COS_TABLE_BITS)]
}

func dds_sin(phase uint32) int32 {
	return dds_cos(phase - PHASE_MODULUS/4)
}

// Per sample phase increment for a tone of freq Hz, rounded to nearest.
func phase_increment(freq int, srate int) uint32 {
	return uint32((freq*PHASE_MODULUS + srate/2) / srate)
}

func clip16(v int32) int32 {
	if v > S16_MAX {
		return S16_MAX
	}
	if v < S16_MIN {
		return S16_MIN
	}
	return v
}

/*
 * The two sample widths the sound hardware can move.
 * Everything generic over samples is written against this.
 */

type pcm interface {
	~uint8 | ~int16
}

func pcm_to_s16[T pcm](v T) int32 {
	if unsafe.Sizeof(v) == 1 {
		return (int32(v) - U8_SILENCE) << 8
	}
	return int32(v)
}

func s16_to_pcm[T pcm](v int32) T {
	var zero T
	v = clip16(v)
	if unsafe.Sizeof(zero) == 1 {
		return T((v >> 8) + U8_SILENCE)
	}
	return T(v)
}

// Value of silence in the given sample width.
func pcm_silence[T pcm]() T {
	return s16_to_pcm[T](0)
}

/*------------------------------------------------------------------
 *
 * Name:	iatan2
 *
 * Purpose:	Integer arctangent.
 *
 * Inputs:	q, i	- Quadrature and in-phase components.
 *
 * Returns:	Angle as a 16 bit phase, same scale as the DDS.
 *		0 for the origin.
 *
 * Description:	Fold into the first octant, look up the ratio of
 *		the smaller to the larger magnitude, then unfold.
 *
 *----------------------------------------------------------------*/

func iatan2(q int32, i int32) uint32 {
	if q == 0 && i == 0 {
		return 0
	}

	var ai = abs64(int64(i))
	var aq = abs64(int64(q))

	var a uint32
	if aq <= ai {
		a = atan_table[(aq<<ATAN_TABLE_BITS+ai/2)/ai]
	} else {
		a = PHASE_MODULUS/4 - atan_table[(ai<<ATAN_TABLE_BITS+aq/2)/aq]
	}

	if i < 0 {
		a = PHASE_MODULUS/2 - a
	}
	if q < 0 {
		a = (PHASE_MODULUS - a) & PHASE_MASK
	}

	return a
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func abs32(v int32) int32 {
	if v < 0 {
		return -v
	}
	return v
}

// Population count, used for the carrier detect scoring.
func hweight(v uint32) int32 {
	return int32(bits.OnesCount32(v))
}
