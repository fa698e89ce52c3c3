package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Fragment scheduler between the sound device and the
 *		modems.
 *
 * Description:	The device moves audio through two rings of nfrags
 *		fragments each and raises the channel interrupt every
 *		time it completes one.  All counting is in absolute
 *		fragments since open.  The slot of fragment n is
 *		n % nfrags.
 *
 *		The input ring carries one spare fragment at its end.
 *		When slot 0 is demodulated it is first copied there,
 *		so the samples before it (the end of the last slot)
 *		are contiguous and a demodulator always sees Overlap
 *		samples of history without any copying on its side.
 *
 *		Half duplex:
 *
 *		  Receiving   -- framer wants PTT -->  TxPriming
 *		  TxPriming   -- one fragment made -->  Transmitting
 *		  Transmitting -- framer done ------->  TxDraining
 *		  TxDraining  -- queue played out --->  Receiving
 *
 *		Start is eager: the first fragment is made inside the
 *		same interrupt that saw PTT.  Stop is lazy: whatever
 *		is already queued is played before the device goes
 *		back to input.
 *
 *		Full duplex runs the receive side on every interrupt
 *		and the same transmit bookkeeping on a device that
 *		never changes direction.  The output ring is reset to
 *		silence when a transmission has played out, because
 *		the device keeps cycling through it.
 *
 *----------------------------------------------------------------*/

type DMADir int

const (
	DMA_INPUT DMADir = iota
	DMA_OUTPUT
)

func (d DMADir) String() string {
	return IfThenElse(d == DMA_INPUT, "input", "output")
}

type PipelineState int

const (
	PIPE_RECEIVING PipelineState = iota
	PIPE_TX_PRIMING
	PIPE_TRANSMITTING
	PIPE_TX_DRAINING
)

var pipe_state_names = []string{"receiving", "tx-priming", "transmitting", "tx-draining"}

func (s PipelineState) String() string {
	if s >= 0 && int(s) < len(pipe_state_names) {
		return pipe_state_names[s]
	}
	return "unknown"
}

/*------------------------------------------------------------------
 *
 * Name:	dma_ring
 *
 * Purpose:	One direction's sample memory, in whichever width
 *		the hardware runs that direction.
 *
 *----------------------------------------------------------------*/

type dma_ring struct {
	width  int
	fragsz int // samples
	nfrags int
	b8     []uint8
	b16    []int16
}

func new_dma_ring(width int, fragsz int, nfrags int, spare int) *dma_ring {
	Assert(width == 8 || width == 16)
	Assert(fragsz > 0 && nfrags >= 2)

	var r = &dma_ring{width: width, fragsz: fragsz, nfrags: nfrags}
	var n = (nfrags + spare) * fragsz
	if width == 8 {
		r.b8 = make([]uint8, n)
	} else {
		r.b16 = make([]int16, n)
	}
	r.clear()
	return r
}

func (r *dma_ring) clear() {
	for i := range r.b8 {
		r.b8[i] = U8_SILENCE
	}
	clear(r.b16)
}

// Bytes per fragment, as the hardware sees it.
func (r *dma_ring) frag_bytes() int {
	return r.fragsz * r.width / 8
}

func (r *dma_ring) slot8(slot int) []uint8 {
	return r.b8[slot*r.fragsz : (slot+1)*r.fragsz]
}

func (r *dma_ring) slot16(slot int) []int16 {
	return r.b16[slot*r.fragsz : (slot+1)*r.fragsz]
}

/*------------------------------------------------------------------
 *
 * Name:	DMABinding
 *
 * Purpose:	What a SoundDevice gets from the channel at open:
 *		the format of each direction, the ring memory, and
 *		the interrupt line to raise.
 *
 * Description:	A device stores fragment n of a direction in slot
 *		n % Fragments, then bumps its Progress and calls
 *		Interrupt.  In half duplex only the direction most
 *		recently started moves.
 *
 *----------------------------------------------------------------*/

type DMAFormat struct {
	SampleRate int
	Width      int // bits per sample, 8 or 16
	FragSize   int // samples per fragment
}

type DMABinding struct {
	FullDuplex bool
	Fragments  int
	In         DMAFormat
	Out        DMAFormat

	in  *dma_ring
	out *dma_ring
	irq *irq_line
}

func new_dma_binding(fdx bool, nfrags int, in DMAFormat, out DMAFormat, irq *irq_line) *DMABinding {
	return &DMABinding{
		FullDuplex: fdx,
		Fragments:  nfrags,
		In:         in,
		Out:        out,
		in:         new_dma_ring(in.Width, in.FragSize, nfrags, 1),
		out:        new_dma_ring(out.Width, out.FragSize, nfrags, 0),
		irq:        irq,
	}
}

// Raise the channel interrupt.  Safe from any goroutine, never blocks.
func (b *DMABinding) Interrupt() {
	b.irq.raise()
}

// Where the device stores captured fragment n.
func (b *DMABinding) Capture8(n uint64) []uint8 {
	return b.in.slot8(int(n % uint64(b.Fragments)))
}

func (b *DMABinding) Capture16(n uint64) []int16 {
	return b.in.slot16(int(n % uint64(b.Fragments)))
}

// Where the device finds output fragment n.
func (b *DMABinding) Playback8(n uint64) []uint8 {
	return b.out.slot8(int(n % uint64(b.Fragments)))
}

func (b *DMABinding) Playback16(n uint64) []int16 {
	return b.out.slot16(int(n % uint64(b.Fragments)))
}

// Store captured fragment n from 16 bit samples, converting to the ring width.
func (b *DMABinding) CaptureS16(n uint64, src []int16) {
	if b.in.width == 8 {
		var dst = b.Capture8(n)
		for i := range dst {
			dst[i] = s16_to_pcm[uint8](int32(src[i]))
		}
		return
	}
	copy(b.Capture16(n), src)
}

// Fetch output fragment n as 16 bit samples.
func (b *DMABinding) PlaybackS16(n uint64, dst []int16) {
	if b.out.width == 8 {
		for i, v := range b.Playback8(n) {
			dst[i] = int16(pcm_to_s16(v))
		}
		return
	}
	copy(dst, b.Playback16(n))
}

/*------------------------------------------------------------------
 *
 * Name:	pipeline
 *
 * Purpose:	Scheduler state.  Only touched by the interrupt
 *		handler, or inside irq_line.critical.
 *
 *----------------------------------------------------------------*/

type pipeline struct {
	bind    *DMABinding
	dev     SoundDevice
	io      *modemIO
	mod     modulator
	demod   demodulator
	overlap int

	state   PipelineState
	iptr    uint64 // next input fragment to demodulate
	optr    uint64 // next output fragment to fill
	odone   uint64 // output progress seen at the last interrupt
	ptt_cnt int    // fragments queued and not yet played
	closed  bool
}

func new_pipeline(bind *DMABinding, dev SoundDevice, io *modemIO, mod modulator, demod demodulator, overlap int) *pipeline {
	Assert(overlap <= bind.In.FragSize)
	return &pipeline{
		bind:    bind,
		dev:     dev,
		io:      io,
		mod:     mod,
		demod:   demod,
		overlap: overlap,
		state:   PIPE_RECEIVING,
	}
}

// Sync the fragment counters with the device after it was started.
func (p *pipeline) start() {
	p.iptr = p.dev.Progress(DMA_INPUT)
	p.optr = p.dev.Progress(DMA_OUTPUT)
	p.odone = p.optr
	p.ptt_cnt = 0
	p.state = PIPE_RECEIVING
}

func (p *pipeline) transmitting() bool {
	return p.ptt_cnt > 0
}

/*------------------------------------------------------------------
 *
 * Name:	service
 *
 * Purpose:	The fragment interrupt handler.
 *
 *----------------------------------------------------------------*/

func (p *pipeline) service() {
	if p.closed {
		return
	}
	p.io.stats.interrupts.Add(1)

	if p.bind.FullDuplex {
		p.dma_receive()
		p.service_tx()
		return
	}

	if p.state == PIPE_RECEIVING {
		p.dma_receive()
		p.io.framer.Arbitrate()
		if p.io.framer.PTT() {
			p.start_tx()
		}
		return
	}

	p.service_tx()
}

func (p *pipeline) dma_receive() {
	var cur = p.dev.Progress(DMA_INPUT)
	var n = uint64(p.bind.Fragments)

	if cur-p.iptr >= n {
		// The ring lapped us.  Everything but the newest fragment is gone.
		p.io.stats.overruns.Add(1)
		p.iptr = cur - 1
	}

	for p.iptr < cur {
		p.demod_fragment(int(p.iptr % n))
		p.iptr++
	}
}

func (p *pipeline) demod_fragment(slot int) {
	var r = p.bind.in
	var fs = r.fragsz
	var start = slot * fs

	if slot == 0 {
		start = r.nfrags * fs
		if r.width == 8 {
			copy(r.b8[start:start+fs], r.b8[:fs])
		} else {
			copy(r.b16[start:start+fs], r.b16[:fs])
		}
	}

	if r.width == 8 {
		p.demod.demodulate8(p.io, r.b8[start-p.overlap:start+fs])
	} else {
		p.demod.demodulate16(p.io, r.b16[start-p.overlap:start+fs])
	}
	p.io.stats.frags_demod.Add(1)
}

func (p *pipeline) mod_fragment() {
	var r = p.bind.out
	var slot = int(p.optr % uint64(r.nfrags))

	if r.width == 8 {
		p.mod.modulate8(p.io, r.slot8(slot))
	} else {
		p.mod.modulate16(p.io, r.slot16(slot))
	}
	p.optr++
	p.ptt_cnt++
	p.io.stats.frags_mod.Add(1)
}

// Keep the output ring full while the framer has something to send.
func (p *pipeline) dma_transmit() {
	for p.ptt_cnt < p.bind.Fragments && p.io.framer.PTT() {
		p.mod_fragment()
	}
}

func (p *pipeline) start_tx() {
	p.state = PIPE_TX_PRIMING

	if !p.bind.FullDuplex {
		if p.dev.StartOutput() != nil {
			// Device refused to turn around.  Stay on receive and let the framer ask again.
			p.dev.StartInput()
			p.iptr = p.dev.Progress(DMA_INPUT)
			p.state = PIPE_RECEIVING
			return
		}
	}

	p.optr = p.dev.Progress(DMA_OUTPUT)
	p.odone = p.optr
	p.ptt_cnt = 0

	p.mod_fragment()
	p.state = PIPE_TRANSMITTING
	p.dma_transmit()
}

func (p *pipeline) service_tx() {
	var cur = p.dev.Progress(DMA_OUTPUT)
	var played = int(cur - p.odone)
	p.odone = cur

	if p.state == PIPE_RECEIVING {
		// Full duplex only.  The device has been playing silence.
		p.io.framer.Arbitrate()
		if p.io.framer.PTT() {
			p.start_tx()
		}
		return
	}

	if played > p.ptt_cnt {
		// The device played fragments nobody refilled.  Carry on from where it is now.
		p.io.stats.underruns.Add(1)
		p.ptt_cnt = 0
		p.optr = cur
	} else {
		p.ptt_cnt -= played
	}

	if p.io.framer.PTT() {
		p.state = PIPE_TRANSMITTING
		p.dma_transmit()
		return
	}

	if p.ptt_cnt > 0 {
		p.state = PIPE_TX_DRAINING
		return
	}

	p.end_tx()
}

func (p *pipeline) end_tx() {
	p.state = PIPE_RECEIVING
	p.ptt_cnt = 0

	if p.bind.FullDuplex {
		p.bind.out.clear()
		return
	}

	p.dev.StartInput()
	p.iptr = p.dev.Progress(DMA_INPUT)
}

// Close while transmitting drops whatever is queued.
func (p *pipeline) abort() {
	p.ptt_cnt = 0
	p.state = PIPE_RECEIVING
	p.closed = true
}
