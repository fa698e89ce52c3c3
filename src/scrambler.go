package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Self synchronizing scrambler and NRZI line coding.
 *
 * Description:	G3RUH style polynomial 1 + x^12 + x^17.
 *
 *		The transmitter feeds its own output back into the
 *		shift register.  The receiver feeds in what it received,
 *		so after SCRAM_SPAN bits its register matches the sender
 *		and the output is correct from then on.  A single bad
 *		channel bit becomes three bad data bits.
 *
 *		Transmit order is NRZI then scramble.  Receive order is
 *		descramble then NRZI decode, which makes the receiver
 *		indifferent to the polarity of the audio path.
 *
 *----------------------------------------------------------------*/

const SCRAM_TAP_A = 11
const SCRAM_TAP_B = 16
const SCRAM_SPAN = SCRAM_TAP_B + 1
const SCRAM_MASK = (1 << SCRAM_SPAN) - 1

type scrambler struct {
	reg uint32
}

func (s *scrambler) feedback() int {
	return int((s.reg>>SCRAM_TAP_A)^(s.reg>>SCRAM_TAP_B)) & 1
}

func (s *scrambler) scramble(in int) int {
	var out = (in ^ s.feedback()) & 1
	s.reg = ((s.reg << 1) | uint32(out)) & SCRAM_MASK
	return out
}

func (s *scrambler) descramble(in int) int {
	var out = (in ^ s.feedback()) & 1
	s.reg = ((s.reg << 1) | uint32(in&1)) & SCRAM_MASK
	return out
}

/*
 * NRZI as used by HDLC.
 * A data 0 toggles the line, a data 1 leaves it alone.
 */

type nrzi_state struct {
	level int
}

func (z *nrzi_state) encode(bit int) int {
	if bit&1 == 0 {
		z.level ^= 1
	}
	return z.level
}

func (z *nrzi_state) decode(level int) int {
	var bit = 1 ^ ((level ^ z.level) & 1)
	z.level = level & 1
	return bit
}
