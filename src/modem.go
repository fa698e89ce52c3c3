package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Waveform scheme registry and the plumbing between a
 *		modem and the framing layer.
 *
 * Description:	Each scheme provides a modulator and a demodulator.
 *		Their state lives in a per channel value created when
 *		the channel is configured, checked against a fixed
 *		scratch budget so a channel can always hold whichever
 *		pair it was given.
 *
 *		The modems are called from the fragment interrupt.
 *		They must not allocate, block, or log.
 *
 *----------------------------------------------------------------*/

import (
	"strings"
	"sync/atomic"
	"unsafe"
)

// Scratch budget for per channel modem state, in bytes.
const MOD_SCRATCH_SIZE = 512
const DEMOD_SCRATCH_SIZE = 1024

/*
 * Framing layer.  The modem core calls these from the interrupt
 * so an implementation must return promptly.
 */

type Framer interface {
	// Next 16 channel bits to send, least significant first.
	GetTxBits() uint16

	// One recovered channel bit.
	PutRxBit(bit int)

	// Carrier detect changed.
	SetDCD(dcd bool)

	// Does the framing layer want the transmitter keyed?
	PTT() bool

	// Chance to decide on channel access before PTT is asked.
	Arbitrate()
}

type modulator interface {
	init()
	modulate8(io *modemIO, buf []uint8)
	modulate16(io *modemIO, buf []int16)
}

// The buffer passed to a demodulator starts with Overlap samples of history.
type demodulator interface {
	init()
	demodulate8(io *modemIO, buf []uint8)
	demodulate16(io *modemIO, buf []int16)
}

type WidthSet uint8

const (
	WIDTH_8 WidthSet = 1 << iota
	WIDTH_16
)

func width_bit(bits int) WidthSet {
	switch bits {
	case 8:
		return WIDTH_8
	case 16:
		return WIDTH_16
	}
	return 0
}

func (w WidthSet) Has(bits int) bool {
	return w&width_bit(bits) != 0
}

// Widest width in the set, 0 for none.
func (w WidthSet) Best() int {
	if w&WIDTH_16 != 0 {
		return 16
	}
	if w&WIDTH_8 != 0 {
		return 8
	}
	return 0
}

func (w WidthSet) String() string {
	var s []string
	if w&WIDTH_8 != 0 {
		s = append(s, "8")
	}
	if w&WIDTH_16 != 0 {
		s = append(s, "16")
	}
	return strings.Join(s, ",")
}

type TxScheme struct {
	Name       string
	SampleRate int
	BitRate    int
	Widths     WidthSet
	StateSize  uintptr
	new        func() modulator
}

type RxScheme struct {
	Name         string
	SampleRate   int
	BitRate      int
	Overlap      int // history samples needed ahead of each fragment
	OverSampling int // samples per recovered bit
	DCDWindow    int
	Widths       WidthSet
	StateSize    uintptr
	new          func() demodulator
}

type scheme_pair struct {
	tx *TxScheme
	rx *RxScheme
}

var scheme_table = []scheme_pair{
	{&afsk1200_tx, &afsk1200_rx},
	{&afsk2400_7_tx, &afsk2400_7_rx},
	{&afsk2400_8_tx, &afsk2400_8_rx},
	{&afsk2666_tx, &afsk2666_rx},
	{&fsk9600_4_tx, &fsk9600_4_rx},
	{&fsk9600_5_tx, &fsk9600_5_rx},
	{&hapn4800_8_tx, &hapn4800_8_rx},
	{&hapn4800_10_tx, &hapn4800_10_rx},
	{&hapn4800pm_8_tx, &hapn4800pm_8_rx},
	{&hapn4800pm_10_tx, &hapn4800pm_10_rx},
	{&psk4800_tx, &psk4800_rx},
}

// Generic names which pick the fastest variant the hardware can clock.
var scheme_aliases = map[string][]string{
	"fsk9600":    {"fsk9600_5", "fsk9600_4"},
	"hapn4800":   {"hapn4800_10", "hapn4800_8"},
	"hapn4800pm": {"hapn4800pm_10", "hapn4800pm_8"},
}

// A state value of every scheme has to fit the scratch budget.
const _ = MOD_SCRATCH_SIZE - unsafe.Sizeof(afsk_mod{})
const _ = MOD_SCRATCH_SIZE - unsafe.Sizeof(fsk9600_mod{})
const _ = MOD_SCRATCH_SIZE - unsafe.Sizeof(hapn_mod{})
const _ = MOD_SCRATCH_SIZE - unsafe.Sizeof(psk_mod{})
const _ = DEMOD_SCRATCH_SIZE - unsafe.Sizeof(afsk_demod{})
const _ = DEMOD_SCRATCH_SIZE - unsafe.Sizeof(fsk9600_demod{})
const _ = DEMOD_SCRATCH_SIZE - unsafe.Sizeof(hapn_demod{})
const _ = DEMOD_SCRATCH_SIZE - unsafe.Sizeof(psk_demod{})

func find_tx_scheme(name string) *TxScheme {
	for _, p := range scheme_table {
		if p.tx != nil && p.tx.Name == name {
			return p.tx
		}
	}
	return nil
}

func find_rx_scheme(name string) *RxScheme {
	for _, p := range scheme_table {
		if p.rx != nil && p.rx.Name == name {
			return p.rx
		}
	}
	return nil
}

// Expand an alias to the concrete names to try, in order of preference.
func scheme_candidates(name string) []string {
	if names, ok := scheme_aliases[name]; ok {
		return names
	}
	return []string{name}
}

/*------------------------------------------------------------------
 *
 * Name:	channel_stats
 *
 * Purpose:	Counters updated from the interrupt and read from
 *		anywhere.  Atomics only, so the interrupt never waits.
 *
 *----------------------------------------------------------------*/

type channel_stats struct {
	rx_bits     atomic.Uint64
	tx_bits     atomic.Uint64
	dcd_on      atomic.Uint64
	dcd_off     atomic.Uint64
	underruns   atomic.Uint64
	overruns    atomic.Uint64
	interrupts  atomic.Uint64
	frags_mod   atomic.Uint64
	frags_demod atomic.Uint64
	ptt         atomic.Bool
	dcd         atomic.Bool
}

/*------------------------------------------------------------------
 *
 * Name:	modemIO
 *
 * Purpose:	Everything a modem may touch besides its own state.
 *
 *----------------------------------------------------------------*/

type modemIO struct {
	framer Framer
	diag   *diag_buffer
	stats  *channel_stats
	dcd    bool
}

func (io *modemIO) put_bit(bit int) {
	io.framer.PutRxBit(bit & 1)
	io.stats.rx_bits.Add(1)
}

func (io *modemIO) get_tx_bits() uint16 {
	io.stats.tx_bits.Add(16)
	return io.framer.GetTxBits()
}

func (io *modemIO) set_dcd(dcd bool) {
	if dcd == io.dcd {
		return
	}
	io.dcd = dcd
	io.stats.dcd.Store(dcd)
	if dcd {
		io.stats.dcd_on.Add(1)
	} else {
		io.stats.dcd_off.Add(1)
	}
	io.framer.SetDCD(dcd)
}

func (io *modemIO) diag_add(mode DiagMode, v int32) {
	io.diag.add(mode, io.dcd, v)
}

func (io *modemIO) diag_add_pair(mode DiagMode, i int32, q int32) {
	io.diag.add_pair(mode, io.dcd, i, q)
}

/*------------------------------------------------------------------
 *
 * Name:	tx_bit_source
 *
 * Purpose:	Pull channel bits from the framer and apply the line
 *		coding for the scheme.
 *
 *----------------------------------------------------------------*/

type tx_bit_source struct {
	bits      uint16
	nbits     int
	use_nrzi  bool
	scrambled bool
	nrzi      nrzi_state
	scram     scrambler
}

func (s *tx_bit_source) reset(use_nrzi bool, scrambled bool) {
	*s = tx_bit_source{use_nrzi: use_nrzi, scrambled: scrambled}
}

// Next data bit before line coding.
func (s *tx_bit_source) raw(io *modemIO) int {
	if s.nbits == 0 {
		s.bits = io.get_tx_bits()
		s.nbits = 16
	}
	var b = int(s.bits & 1)
	s.bits >>= 1
	s.nbits--
	return b
}

func (s *tx_bit_source) next(io *modemIO) int {
	var b = s.raw(io)
	if s.use_nrzi {
		b = s.nrzi.encode(b)
	}
	if s.scrambled {
		b = s.scram.scramble(b)
	}
	return b
}

/*------------------------------------------------------------------
 *
 * Name:	rx_bit_sink
 *
 * Purpose:	Undo the line coding and hand bits to the framer.
 *
 *----------------------------------------------------------------*/

type rx_bit_sink struct {
	use_nrzi  bool
	scrambled bool
	nrzi      nrzi_state
	descram   scrambler
}

func (s *rx_bit_sink) reset(use_nrzi bool, scrambled bool) {
	*s = rx_bit_sink{use_nrzi: use_nrzi, scrambled: scrambled}
}

func (s *rx_bit_sink) put(io *modemIO, line int) {
	var b = line & 1
	if s.scrambled {
		b = s.descram.descramble(b)
	}
	if s.use_nrzi {
		b = s.nrzi.decode(b)
	}
	io.put_bit(b)
}
