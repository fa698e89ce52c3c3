package soundmodem

/*-------------------------------------------------------------------
 *
 * Purpose:	Bit clock recovery and data carrier detect shared by
 *		the demodulators.
 *
 * Description:	The bit clock is a 16 bit phase accumulator stepped
 *		once per audio sample.  Wraparound is where data is
 *		sampled.  Each transition seen by the slicer nudges the
 *		phase toward the point half a bit before the wrap so
 *		that sampling lands in the middle of the bit.
 *
 *		DCD keeps a running score of how well the transitions
 *		line up with where they are expected.  A transition one
 *		bit period after the previous one is good, one that
 *		arrives well inside a bit period is bad.
 *
 *--------------------------------------------------------------------*/

const PLL_NUDGE_DIV = 8

type bitclock struct {
	phase uint32
	inc   uint32
	nudge uint32
}

func (p *bitclock) init(spb int) {
	p.inc = PHASE_MODULUS / uint32(spb)
	p.nudge = p.inc / PLL_NUDGE_DIV
	p.phase = 0
}

// Target for a transition, half a bit period before the wrap.
func (p *bitclock) target() uint32 {
	return PHASE_MODULUS/2 - p.inc/2
}

func (p *bitclock) on_transition() {
	if p.phase < p.target() {
		p.phase += p.nudge
	} else {
		p.phase -= p.nudge
	}
}

// Move the phase by d without crossing the wrap.  Only advance() emits bits.
func (p *bitclock) slew(d int32) {
	var v = int32(p.phase) + d
	p.phase = uint32(min(max(v, 0), PHASE_MODULUS-1))
}

// Step one sample.  True when a bit should be sampled.
func (p *bitclock) advance() bool {
	p.phase += p.inc
	if p.phase >= PHASE_MODULUS {
		p.phase -= PHASE_MODULUS
		return true
	}
	return false
}

/*-------------------------------------------------------------------
 *
 * Name:	dcd_state
 *
 * Purpose:	Three window carrier detect.
 *
 * Inputs:	spb	- Samples between expected transitions.
 *		window	- Bit periods per scoring window.
 *
 * Description:	shreg has one bit per sample, bit k set when there
 *		was a transition k samples ago.  When a transition
 *		happens we score the register against two masks:
 *
 *		good	distance spb-1 .. spb+1
 *		bad	distance 2 .. spb-2, weighted double
 *
 *		Each window the three most recent sums are added up.
 *		Negative means carrier.  A fresh window starts at
 *		DCD_BIAS so a quiet channel leans toward "no carrier".
 *
 *--------------------------------------------------------------------*/

const DCD_BAD_WEIGHT = 2
const DCD_BIAS = 2

type dcd_state struct {
	shreg     uint32
	good_mask uint32
	bad_mask  uint32

	sum0 int32
	sum1 int32
	sum2 int32

	window int
	count  int

	carrier bool
}

func (d *dcd_state) init(spb int, window int) {
	Assert(spb >= 3 && spb+1 < 32)
	Assert(window > 0)

	*d = dcd_state{}

	d.good_mask = 1<<(spb-1) | 1<<spb | 1<<(spb+1)
	for k := 2; k <= spb-2; k++ {
		d.bad_mask |= 1 << k
	}

	d.window = window
	d.count = window
	d.sum0 = DCD_BIAS
	d.sum1 = DCD_BIAS
	d.sum2 = DCD_BIAS
}

// Once per sample with whether the slicer changed state.
func (d *dcd_state) sample(transition bool) {
	d.shreg <<= 1
	if transition {
		d.shreg |= 1
		d.sum0 += DCD_BAD_WEIGHT*hweight(d.shreg&d.bad_mask) - hweight(d.shreg&d.good_mask)
	}
}

// Once per recovered bit (or symbol).  Returns true when the decision changed.
func (d *dcd_state) bit() bool {
	d.count--
	if d.count > 0 {
		return false
	}
	d.count = d.window

	var prev = d.carrier
	d.carrier = d.sum0+d.sum1+d.sum2 < 0
	d.sum2 = d.sum1
	d.sum1 = d.sum0
	d.sum0 = DCD_BIAS

	return d.carrier != prev
}
