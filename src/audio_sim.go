package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	A sound device that only moves when told to.
 *
 * Description:	Every Tick completes one fragment in each running
 *		direction and raises the interrupt.  Tests use it to
 *		drive the scheduler one interrupt at a time, smgen and
 *		smtest use it to run a channel against WAV files as
 *		fast as the CPU allows.
 *
 *		Input comes from a SimSource, output goes to a sink
 *		function.  A SimWire is both, so two simulated
 *		channels can talk to each other.
 *
 *----------------------------------------------------------------*/

import (
	"sync"
	"sync/atomic"
)

type SimSource interface {
	// Fill dst with the next samples.
	Read(dst []int16)
}

// Silence forever.
type SilenceSource struct{}

func (SilenceSource) Read(dst []int16) {
	clear(dst)
}

// A fixed recording, then silence.
type SampleSource struct {
	Samples []int16
	pos     int
}

func (s *SampleSource) Read(dst []int16) {
	var n = copy(dst, s.Samples[min(s.pos, len(s.Samples)):])
	clear(dst[n:])
	s.pos += n
}

// Samples not yet read.
func (s *SampleSource) Remaining() int {
	return max(len(s.Samples)-s.pos, 0)
}

/*
 * Audio cable between two simulated devices.  Whatever one end
 * plays the other end reads, silence when nothing is waiting.
 */

type SimWire struct {
	mu  sync.Mutex
	buf []int16
}

func (w *SimWire) Write(samples []int16) {
	w.mu.Lock()
	w.buf = append(w.buf, samples...)
	w.mu.Unlock()
}

func (w *SimWire) Read(dst []int16) {
	w.mu.Lock()
	var n = copy(dst, w.buf)
	w.buf = w.buf[n:]
	w.mu.Unlock()
	clear(dst[n:])
}

type SimDevice struct {
	Source SimSource
	Sink   func(samples []int16) // may be nil

	b        *DMABinding
	opened   bool
	in_on    bool
	out_on   bool
	progress [2]atomic.Uint64
	scratch  []int16

	opens  int
	closes int
}

func NewSimDevice(src SimSource) *SimDevice {
	if src == nil {
		src = SilenceSource{}
	}
	return &SimDevice{Source: src}
}

func (d *SimDevice) Open(b *DMABinding) error {
	d.b = b
	d.opened = true
	d.in_on = false
	d.out_on = false
	d.scratch = make([]int16, max(b.In.FragSize, b.Out.FragSize))
	d.opens++
	return nil
}

func (d *SimDevice) Close() error {
	d.opened = false
	d.in_on = false
	d.out_on = false
	d.closes++
	return nil
}

func (d *SimDevice) StartInput() error {
	d.in_on = true
	if !d.b.FullDuplex {
		d.out_on = false
	}
	return nil
}

func (d *SimDevice) StartOutput() error {
	d.out_on = true
	if !d.b.FullDuplex {
		d.in_on = false
	}
	return nil
}

func (d *SimDevice) Progress(dir DMADir) uint64 {
	return d.progress[dir].Load()
}

// Is the device held by a channel?
func (d *SimDevice) Opened() bool {
	return d.opened
}

// Direction currently running, for half duplex checks.
func (d *SimDevice) Mode() int32 {
	switch {
	case d.in_on && d.out_on:
		return AUDIO_DUPLEX
	case d.in_on:
		return AUDIO_INPUT
	case d.out_on:
		return AUDIO_OUTPUT
	}
	return AUDIO_IDLE
}

// Complete one fragment and interrupt.
func (d *SimDevice) Tick() {
	d.TickN(1)
}

/*------------------------------------------------------------------
 *
 * Name:	TickN
 *
 * Purpose:	Complete k fragments, then interrupt once.
 *
 * Description:	k > 1 is an interrupt that arrived late.  The
 *		direction is sampled at the start, as real hardware
 *		would keep running whatever it was running.
 *
 *----------------------------------------------------------------*/

func (d *SimDevice) TickN(k int) {
	if !d.opened {
		return
	}

	var in_on, out_on = d.in_on, d.out_on

	for range k {
		if in_on {
			var n = d.progress[DMA_INPUT].Load()
			var s = d.scratch[:d.b.In.FragSize]
			d.Source.Read(s)
			d.b.CaptureS16(n, s)
			d.progress[DMA_INPUT].Store(n + 1)
		}
		if out_on {
			var n = d.progress[DMA_OUTPUT].Load()
			var s = d.scratch[:d.b.Out.FragSize]
			d.b.PlaybackS16(n, s)
			if d.Sink != nil {
				d.Sink(s)
			}
			d.progress[DMA_OUTPUT].Store(n + 1)
		}
	}

	if in_on || out_on {
		d.b.Interrupt()
	}
}
