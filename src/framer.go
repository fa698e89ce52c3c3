package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Framing layer stand-ins.
 *
 * Description:	Real framing (HDLC, FX.25, IL2P) lives above this
 *		package.  These are enough to move bits for the tools
 *		and the tests:
 *
 *		PatternFramer	- sends a fixed bit list once and records
 *				  everything it hears.
 *
 *		BitPipe		- bridges raw channel bytes between
 *				  files or FIFOs and a channel.
 *
 *		Both are called from the interrupt, so neither blocks.
 *
 *----------------------------------------------------------------*/

import (
	"bufio"
	"io"
	"sync"
	"sync/atomic"
)

// HDLC flag, sent to fill when there is nothing else.
const HDLC_FLAG = 0x7e

/*------------------------------------------------------------------
 *
 * Name:	PRBS
 *
 * Purpose:	Pseudo random test bits, x^15 + x^14 + 1.
 *
 *----------------------------------------------------------------*/

type PRBS struct {
	reg uint16
}

func NewPRBS(seed uint16) *PRBS {
	var p = &PRBS{reg: seed & 0x7fff}
	if p.reg == 0 {
		p.reg = 1
	}
	return p
}

func (p *PRBS) Bit() uint8 {
	var b = ((p.reg >> 14) ^ (p.reg >> 13)) & 1
	p.reg = ((p.reg << 1) | b) & 0x7fff
	return uint8(b)
}

func (p *PRBS) Bits(n int) []uint8 {
	var out = make([]uint8, n)
	for i := range out {
		out[i] = p.Bit()
	}
	return out
}

/*------------------------------------------------------------------
 *
 * Name:	PatternFramer
 *
 * Purpose:	Send a list of bits once, record what comes back.
 *
 * Description:	PTT stays up until every pattern bit has been handed
 *		over plus Tail more bits of flags, so the bits still
 *		sitting in the modulator when PTT drops are only fill.
 *
 *----------------------------------------------------------------*/

type PatternFramer struct {
	Tail int // fill bits after the pattern

	mu    sync.Mutex
	tx    []uint8
	txpos int
	fill  int
	rx    []uint8
	dcd   []bool
	arb   int
	hold  bool
}

func NewPatternFramer(tx []uint8) *PatternFramer {
	return &PatternFramer{tx: tx, Tail: 32}
}

// Start sending the pattern again.
func (f *PatternFramer) Send(tx []uint8) {
	f.mu.Lock()
	f.tx = tx
	f.txpos = 0
	f.fill = 0
	f.mu.Unlock()
}

// Keep PTT off even with bits left, to test receive only.
func (f *PatternFramer) Hold(h bool) {
	f.mu.Lock()
	f.hold = h
	f.mu.Unlock()
}

func (f *PatternFramer) GetTxBits() uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()

	var w uint16
	for i := range 16 {
		var b uint8
		if f.txpos < len(f.tx) {
			b = f.tx[f.txpos] & 1
			f.txpos++
		} else {
			b = (HDLC_FLAG >> (f.fill % 8)) & 1
			f.fill++
		}
		w |= uint16(b) << i
	}
	return w
}

func (f *PatternFramer) PutRxBit(bit int) {
	f.mu.Lock()
	f.rx = append(f.rx, uint8(bit&1))
	f.mu.Unlock()
}

func (f *PatternFramer) SetDCD(dcd bool) {
	f.mu.Lock()
	f.dcd = append(f.dcd, dcd)
	f.mu.Unlock()
}

func (f *PatternFramer) PTT() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.hold {
		return false
	}
	return len(f.tx) > 0 && (f.txpos < len(f.tx) || f.fill < f.Tail)
}

func (f *PatternFramer) Arbitrate() {
	f.mu.Lock()
	f.arb++
	f.mu.Unlock()
}

// Bits received so far.
func (f *PatternFramer) Received() []uint8 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]uint8(nil), f.rx...)
}

// Every carrier detect change reported, in order.
func (f *PatternFramer) DCDChanges() []bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]bool(nil), f.dcd...)
}

func (f *PatternFramer) Arbitrations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.arb
}

// All pattern bits handed to the modulator?
func (f *PatternFramer) Done() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txpos >= len(f.tx)
}

/*------------------------------------------------------------------
 *
 * Name:	BitPipe
 *
 * Purpose:	Raw byte bridge for the daemon.
 *
 * Description:	Feed reads bytes on its own goroutine and queues them.
 *		The interrupt side takes chunks off the queue without
 *		waiting.  A transmission starts with TxDelay flag
 *		bytes, only when something is queued and the channel
 *		is clear, and carries on while more is queued.  When
 *		the queue runs dry TxTail flag bytes go out before PTT
 *		drops.
 *
 *		Received bits are packed least significant first and
 *		Drain writes them out on its own goroutine.  No byte
 *		alignment is attempted, that is the framer's business.
 *
 *----------------------------------------------------------------*/

const BITPIPE_QUEUE = 64
const BITPIPE_CHUNK = 256

type BitPipe struct {
	TxDelay int // flag bytes before data
	TxTail  int // flag bytes after data

	txq chan []byte
	rxq chan byte

	// Interrupt side only.
	cur     []byte
	curbit  int
	sending bool
	flags   int // flag bytes still to send
	tail    bool
	fill    int // flag bits sent since the data ran out
	rxacc   byte
	rxn     int

	dcd     atomic.Bool
	dropped atomic.Uint64
}

func NewBitPipe() *BitPipe {
	return &BitPipe{
		TxDelay: 8,
		TxTail:  4,
		txq:     make(chan []byte, BITPIPE_QUEUE),
		rxq:     make(chan byte, 4096),
	}
}

// Queue everything r produces for transmission.  Returns at EOF or on error.
func (p *BitPipe) Feed(r io.Reader) error {
	var br = bufio.NewReader(r)
	for {
		var buf = make([]byte, BITPIPE_CHUNK)
		var n, err = br.Read(buf)
		if n > 0 {
			p.txq <- buf[:n]
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// Write received bytes to w until the pipe is closed.
func (p *BitPipe) Drain(w io.Writer) error {
	var bw = bufio.NewWriter(w)
	for b := range p.rxq {
		if err := bw.WriteByte(b); err != nil {
			return err
		}
		if len(p.rxq) == 0 {
			if err := bw.Flush(); err != nil {
				return err
			}
		}
	}
	return bw.Flush()
}

// Stop Drain.  Call after the channel is closed.
func (p *BitPipe) Close() {
	close(p.rxq)
}

// Received bytes lost because Drain fell behind.
func (p *BitPipe) Dropped() uint64 {
	return p.dropped.Load()
}

func (p *BitPipe) next_chunk() bool {
	select {
	case c := <-p.txq:
		p.cur = c
		p.curbit = 0
		return true
	default:
		return false
	}
}

func (p *BitPipe) next_bit() int {
	for {
		if p.curbit < 8*len(p.cur) {
			var b = int(p.cur[p.curbit/8]>>(p.curbit%8)) & 1
			p.curbit++
			return b
		}
		if p.flags > 0 {
			// Flags are queued as whole bytes.
			p.cur = flag_byte[:]
			p.curbit = 0
			p.flags--
			continue
		}
		if !p.tail && p.next_chunk() {
			continue
		}
		if !p.tail {
			p.tail = true
			p.flags = p.TxTail
			if p.flags > 0 {
				continue
			}
		}
		p.sending = false
		var b = (HDLC_FLAG >> (p.fill % 8)) & 1
		p.fill++
		return b
	}
}

var flag_byte = [1]byte{HDLC_FLAG}

func (p *BitPipe) GetTxBits() uint16 {
	var w uint16
	for i := range 16 {
		w |= uint16(p.next_bit()) << i
	}
	return w
}

func (p *BitPipe) PutRxBit(bit int) {
	p.rxacc |= byte(bit&1) << p.rxn
	p.rxn++
	if p.rxn < 8 {
		return
	}
	select {
	case p.rxq <- p.rxacc:
	default:
		p.dropped.Add(1)
	}
	p.rxacc = 0
	p.rxn = 0
}

func (p *BitPipe) SetDCD(dcd bool) {
	p.dcd.Store(dcd)
}

func (p *BitPipe) PTT() bool {
	if p.sending {
		return true
	}
	if p.dcd.Load() || len(p.txq) == 0 {
		return false
	}

	// Start a new transmission: delay flags first, then the data.
	p.sending = true
	p.tail = false
	p.cur = nil
	p.curbit = 0
	p.fill = 0
	p.flags = p.TxDelay
	return true
}

// Nothing to do.  Channel access is the carrier check in PTT.
func (p *BitPipe) Arbitrate() {}
