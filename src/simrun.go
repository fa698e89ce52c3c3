package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Run a channel against recorded audio instead of a
 *		sound card.
 *
 * Description:	SimTransmit keys a simulated channel with a list of
 *		bits and records what it plays.  SimReceive feeds a
 *		recording into a simulated channel and collects the
 *		bits and carrier detect changes it reports.
 *
 *		Both go through the real Channel, scheduler and ring
 *		buffers, only the clock is ours.
 *
 *----------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"math/bits"
)

type SimOptions struct {
	Fragments  int // zero for the default
	FragmentMS int
	Diagnose   DiagMode // capture during SimReceive, DIAG_OFF for none
}

type SimRecording struct {
	Mode       string
	SampleRate int
	Width      int
	Samples    []int16
	Stats      ChannelStats
}

type SimReception struct {
	Mode       string
	Bits       []uint8
	DCD        []bool
	Stats      ChannelStats
	Diagnostic *DiagnoseResult // first full capture, if one was asked for
}

func sim_channel(name string, mode string, opt SimOptions, framer Framer, dev *SimDevice) (*Channel, error) {
	var ch = NewChannel(ChannelConfig{
		Name:       name,
		Backend:    "sim",
		Fragments:  opt.Fragments,
		FragmentMS: opt.FragmentMS,
	}, framer, dev)

	if err := ch.Configure(mode); err != nil {
		return nil, err
	}
	if err := ch.Open(context.Background()); err != nil {
		return nil, err
	}
	return ch, nil
}

/*------------------------------------------------------------------
 *
 * Name:	SimTransmit
 *
 * Purpose:	Modulate a list of bits.
 *
 * Returns:	Everything the device played from the first transmitted
 *		fragment until PTT dropped.
 *
 *----------------------------------------------------------------*/

func SimTransmit(mode string, tx []uint8, opt SimOptions) (*SimRecording, error) {
	var framer = NewPatternFramer(tx)
	var dev = NewSimDevice(nil)
	var rec = &SimRecording{}

	var keyed bool
	dev.Sink = func(s []int16) {
		if keyed {
			rec.Samples = append(rec.Samples, s...)
		}
	}

	var ch, err = sim_channel("smgen", mode, opt, framer, dev)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	rec.Mode = ch.mode.String()
	rec.SampleRate = ch.mode.tx.SampleRate
	rec.Width = ch.mode.tx_width

	// Each fragment carries at least one bit, so this is generous.
	var limit = 2*(len(tx)+framer.Tail) + 4*ch.bind.Fragments + 16
	var started = false
	for range limit {
		keyed = dev.Mode() == AUDIO_OUTPUT || dev.Mode() == AUDIO_DUPLEX && ch.stats.ptt.Load()
		dev.Tick()
		if ch.stats.ptt.Load() {
			started = true
		} else if started {
			break
		}
	}

	rec.Stats = ch.Stats()
	if ch.stats.ptt.Load() || !framer.Done() {
		return rec, fmt.Errorf("transmission of %d bits did not finish in %d fragments", len(tx), limit)
	}
	return rec, nil
}

/*------------------------------------------------------------------
 *
 * Name:	SimReceive
 *
 * Purpose:	Demodulate a recording.
 *
 * Inputs:	rate	- Sample rate of the recording.  Must match the
 *			  receive scheme, nothing is resampled.
 *
 *----------------------------------------------------------------*/

func SimReceive(mode string, samples []int16, rate int, opt SimOptions) (*SimReception, error) {
	var framer = NewPatternFramer(nil)
	var src = &SampleSource{Samples: samples}
	var dev = NewSimDevice(src)

	var ch, err = sim_channel("smtest", mode, opt, framer, dev)
	if err != nil {
		return nil, err
	}
	defer ch.Close()

	if rate != ch.mode.rx.SampleRate {
		return nil, fmt.Errorf("%w: recording is %d samples/sec, %s wants %d",
			ErrSampleRateMismatch, rate, ch.mode.rx.Name, ch.mode.rx.SampleRate)
	}

	var r = &SimReception{Mode: ch.mode.String()}

	if opt.Diagnose != DIAG_OFF {
		if _, err = ch.Control(DiagnoseRequest{Mode: opt.Diagnose}); err != nil {
			return nil, err
		}
	}

	// One more fragment than needed pushes the last samples through.
	for src.Remaining() > 0 {
		dev.Tick()
		if opt.Diagnose != DIAG_OFF && r.Diagnostic == nil {
			r.Diagnostic = sim_diag_poll(ch)
		}
	}
	dev.Tick()

	r.Bits = framer.Received()
	r.DCD = framer.DCDChanges()
	r.Stats = ch.Stats()
	return r, nil
}

func sim_diag_poll(ch *Channel) *DiagnoseResult {
	var res, err = ch.Control(DiagnoseRead{})
	if err != nil {
		return nil
	}
	var d = res.(DiagnoseResult)
	if !d.Valid {
		return nil
	}
	return &d
}

/*------------------------------------------------------------------
 *
 * Name:	PRBSCheck
 *
 * Purpose:	Count errors in a received PRBS stream.
 *
 * Description:	The generator feeds back bits 14 and 13, so every
 *		output bit is the xor of the bits 15 and 14 places
 *		before it.  Checking that needs no knowledge of the
 *		seed.  A single bit error shows up as three
 *		mismatches.
 *
 *		Counting starts after 32 correct bits in a row and
 *		stops when more than 8 of the last 32 are wrong, which
 *		is what noise before the signal and the flag fill
 *		after it look like.  The errors inside that last window
 *		are taken back out.
 *
 *----------------------------------------------------------------*/

const PRBS_LOCK_RUN = 32
const PRBS_LOSE_ERRORS = 8

type PRBSCheck struct {
	Bits   uint64 // checked while locked
	Errors uint64 // mismatches while locked
	Locks  int

	hist   uint32
	seen   int
	run    int
	locked bool
	window uint32 // one bit per mismatch, newest at the bottom
	since  int    // bits since lock
}

func (c *PRBSCheck) Put(bit uint8) {
	bit &= 1

	if c.seen >= 15 {
		var expect = uint8((c.hist>>14)^(c.hist>>13)) & 1
		var wrong = expect != bit

		if c.locked {
			c.Bits++
			c.since++
			c.window <<= 1
			if wrong {
				c.Errors++
				c.window |= 1
			}
			if bits.OnesCount32(c.window) > PRBS_LOSE_ERRORS {
				c.Errors -= uint64(bits.OnesCount32(c.window))
				c.Bits -= uint64(min(c.since, 32))
				c.locked = false
				c.run = 0
			}
		} else if wrong {
			c.run = 0
		} else {
			c.run++
			// A run of zeros fits the recurrence too.  The real sequence never has 15.
			if c.run >= PRBS_LOCK_RUN && c.hist != 0 {
				c.locked = true
				c.window = 0
				c.since = 0
				c.Locks++
			}
		}
	}

	c.hist = (c.hist<<1 | uint32(bit)) & 0x7fff
	c.seen++
}

func (c *PRBSCheck) PutBits(b []uint8) {
	for _, v := range b {
		c.Put(v)
	}
}

// Mismatch rate, or 1 when nothing was checked.
func (c *PRBSCheck) Rate() float64 {
	if c.Bits == 0 {
		return 1
	}
	return float64(c.Errors) / float64(c.Bits)
}
