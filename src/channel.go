package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	One radio channel: a sound device, a pair of
 *		waveforms, the scheduler between them, and the PTT
 *		outputs.
 *
 * Description:	Closed --Configure--> Closed (mode chosen)
 *		       --Open-->       Open    (buffers sized, modems initialised)
 *		                       Active  (device running, interrupts flowing)
 *		       --Close-->      Closed
 *
 *		The lifecycle calls are serialised by mu.  Anything they
 *		share with the interrupt handler is changed inside
 *		irq.critical.
 *
 *----------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrBadMode            = errors.New("bad mode string")
	ErrUnknownHardware    = errors.New("unknown hardware driver")
	ErrUnknownScheme      = errors.New("unknown waveform scheme")
	ErrScratchOverflow    = errors.New("modem state exceeds scratch storage")
	ErrIncompatibleWidths = errors.New("incompatible sample widths")
	ErrSampleRateMismatch = errors.New("sample rate mismatch")
	ErrChannelBusy        = errors.New("channel is not closed")
	ErrNotConfigured      = errors.New("channel has no mode")
	ErrDeviceOpen         = errors.New("sound device open failed")
	ErrBadRequest         = errors.New("unsupported control request")
)

type ChannelState int

const (
	CHANNEL_CLOSED ChannelState = iota
	CHANNEL_OPEN
	CHANNEL_ACTIVE
)

var channel_state_names = []string{"closed", "open", "active"}

func (s ChannelState) String() string {
	if s >= 0 && int(s) < len(channel_state_names) {
		return channel_state_names[s]
	}
	return "unknown"
}

type Channel struct {
	name   string
	cfg    ChannelConfig
	framer Framer
	dev    SoundDevice

	mu    sync.Mutex
	state ChannelState
	mode  *channel_mode

	irq   *irq_line
	stats channel_stats
	diag  *diag_buffer
	io    modemIO
	bind  *DMABinding
	pipe  *pipeline
	ptt   *ptt_outputs
}

/*------------------------------------------------------------------
 *
 * Name:	NewChannel
 *
 * Purpose:	Create a closed, unconfigured channel.
 *
 * Inputs:	cfg	- Name, fragment sizing, diagnostics capacity
 *			  and PTT addresses.  Mode is not looked at,
 *			  use Configure.
 *		framer	- Framing layer that supplies and takes bits.
 *		dev	- Sound device backend.
 *
 *----------------------------------------------------------------*/

func NewChannel(cfg ChannelConfig, framer Framer, dev SoundDevice) *Channel {
	cfg.applyDefaults(0)

	var c = &Channel{
		name:   cfg.Name,
		cfg:    cfg,
		framer: framer,
		dev:    dev,
		diag:   new_diag_buffer(cfg.DiagCapacity),
	}
	c.irq = new_irq_line(c.service)
	return c
}

func (c *Channel) Name() string {
	return c.name
}

func (c *Channel) State() ChannelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Resolved mode, empty if not configured.
func (c *Channel) Mode() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.mode == nil {
		return ""
	}
	return c.mode.String()
}

// PTT paths currently held.
func (c *Channel) PTTEnabled() []string {
	var out []string
	c.irq.critical(func() {
		out = c.ptt.enabled()
	})
	return out
}

/*------------------------------------------------------------------
 *
 * Name:	service
 *
 * Purpose:	Interrupt handler.  Runs the scheduler, then puts the
 *		result on the PTT outputs.
 *
 *----------------------------------------------------------------*/

func (c *Channel) service() {
	if c.pipe == nil {
		return
	}
	c.pipe.service()

	var keyed = c.pipe.transmitting()
	c.stats.ptt.Store(keyed)
	c.ptt.set_output(keyed, c.io.dcd)
}

/*------------------------------------------------------------------
 *
 * Name:	Configure
 *
 * Purpose:	Choose hardware and waveforms from a mode string.
 *
 * Returns:	nil, or an error wrapping ErrBadMode, ErrUnknownHardware,
 *		ErrUnknownScheme, ErrScratchOverflow,
 *		ErrIncompatibleWidths, ErrSampleRateMismatch or
 *		ErrChannelBusy.
 *
 * Description:	Only legal while closed.  A failure leaves the channel
 *		with no mode at all so it cannot open by accident on an
 *		older one.
 *
 *----------------------------------------------------------------*/

func (c *Channel) Configure(mode string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CHANNEL_CLOSED {
		return fmt.Errorf("%w: %s is %s", ErrChannelBusy, c.name, c.state)
	}

	var m, err = parse_mode(mode)
	if err != nil {
		c.mode = nil
		smlog.Error("Configure failed", "channel", c.name, "mode", mode, "err", err)
		return err
	}

	c.mode = m
	smlog.Info("Configured", "channel", c.name, "mode", m.String(),
		"tx_rate", m.tx.SampleRate, "tx_bits", m.tx_width,
		"rx_rate", m.rx.SampleRate, "rx_bits", m.rx_width)
	return nil
}

/*------------------------------------------------------------------
 *
 * Name:	Open
 *
 * Purpose:	Size the buffers, probe the PTT paths, open and start
 *		the sound device.
 *
 * Description:	This is the only place that blocks.  ctx is checked
 *		between the probe steps.
 *
 *----------------------------------------------------------------*/

func (c *Channel) Open(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CHANNEL_CLOSED {
		return fmt.Errorf("%w: %s is %s", ErrChannelBusy, c.name, c.state)
	}
	if c.mode == nil {
		return fmt.Errorf("%w: %s", ErrNotConfigured, c.name)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var m = c.mode
	var fdx = m.hw.FullDuplex

	var in = DMAFormat{
		SampleRate: m.rx.SampleRate,
		Width:      m.rx_width,
		FragSize:   fragment_samples(m.rx.SampleRate, c.cfg.FragmentMS, m.rx.Overlap),
	}
	var out = DMAFormat{
		SampleRate: m.tx.SampleRate,
		Width:      m.tx_width,
		FragSize:   fragment_samples(m.tx.SampleRate, c.cfg.FragmentMS, 0),
	}
	if fdx {
		out.FragSize = in.FragSize
	}

	var mod = m.tx.new()
	mod.init()
	var demod = m.rx.new()
	demod.init()

	var ptt = ptt_init(c.name, c.cfg.PTT)
	if err := ctx.Err(); err != nil {
		ptt.close()
		return err
	}

	var bind = new_dma_binding(fdx, c.cfg.Fragments, in, out, c.irq)
	if err := c.dev.Open(bind); err != nil {
		ptt.close()
		smlog.Error("Sound device open failed", "channel", c.name, "err", err)
		return fmt.Errorf("%w: %s: %w", ErrDeviceOpen, c.name, err)
	}

	c.state = CHANNEL_OPEN
	c.bind = bind
	c.io = modemIO{framer: c.framer, diag: c.diag, stats: &c.stats}
	c.stats.dcd.Store(false)
	c.stats.ptt.Store(false)

	var pipe = new_pipeline(bind, c.dev, &c.io, mod, demod, m.rx.Overlap)

	var err = c.dev.StartInput()
	if err == nil && fdx {
		err = c.dev.StartOutput()
	}
	if err != nil {
		c.dev.Close()
		ptt.close()
		c.bind = nil
		c.state = CHANNEL_CLOSED
		return fmt.Errorf("%w: %s: %w", ErrDeviceOpen, c.name, err)
	}

	c.irq.critical(func() {
		pipe.start()
		c.pipe = pipe
		c.ptt = ptt
	})
	c.state = CHANNEL_ACTIVE

	smlog.Info("Channel open", "channel", c.name, "mode", m.String(),
		"fragments", bind.Fragments,
		"in_fragment", in.FragSize, "in_bytes", bind.in.frag_bytes(),
		"out_fragment", out.FragSize, "out_bytes", bind.out.frag_bytes(),
		"ptt", ptt.enabled())
	return nil
}

/*------------------------------------------------------------------
 *
 * Name:	Close
 *
 * Purpose:	Stop everything now.
 *
 * Description:	Whatever is still queued for transmit is dropped and
 *		the key is released before the device is.  Closing a
 *		closed channel does nothing.
 *
 *----------------------------------------------------------------*/

func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CHANNEL_CLOSED {
		return nil
	}

	var ptt *ptt_outputs
	var was PipelineState
	c.irq.critical(func() {
		if c.pipe != nil {
			was = c.pipe.state
			c.pipe.abort()
		}
		c.pipe = nil
		ptt = c.ptt
		c.ptt = nil
		ptt.set_output(false, false)
	})

	ptt.close()
	var err = c.dev.Close()

	c.bind = nil
	c.stats.ptt.Store(false)
	c.stats.dcd.Store(false)
	c.state = CHANNEL_CLOSED

	smlog.Info("Channel closed", "channel", c.name, "was", was)
	return err
}

/*------------------------------------------------------------------
 *
 * Control requests.
 *
 *----------------------------------------------------------------*/

// Set the capture point and arm the diagnostics buffer.
type DiagnoseRequest struct {
	Mode  DiagMode
	Flags int // DIAG_FLAG_DCDGATE
}

// Take the capture, if full.
type DiagnoseRead struct{}

type DiagnoseResult struct {
	Mode         DiagMode
	Flags        int
	Valid        bool
	Samples      []int16 // I,Q interleaved in constellation mode
	SampleRate   int
	OverSampling int
}

type StatsRequest struct{}

type ChannelStats struct {
	Name                 string
	Mode                 string
	State                string
	Pipeline             string
	RxBits               uint64
	TxBits               uint64
	DCDOn                uint64
	DCDOff               uint64
	Underruns            uint64
	Overruns             uint64
	Interrupts           uint64
	FragmentsModulated   uint64
	FragmentsDemodulated uint64
	DeviceXRuns          uint64 // reported by the sound device itself, if it can
	PTT                  bool
	DCD                  bool
}

/*------------------------------------------------------------------
 *
 * Name:	Control
 *
 * Purpose:	Diagnostics and statistics.
 *
 * Inputs:	req	- DiagnoseRequest, DiagnoseRead or StatsRequest.
 *
 * Returns:	DiagnoseResult or ChannelStats.  ErrBadRequest for
 *		anything else.
 *
 *----------------------------------------------------------------*/

func (c *Channel) Control(req any) (any, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch r := req.(type) {
	case DiagnoseRequest:
		if r.Mode < DIAG_OFF || r.Mode > DIAG_CONSTELLATION {
			return nil, fmt.Errorf("%w: diagnostics mode %d", ErrBadRequest, r.Mode)
		}
		var res DiagnoseResult
		c.irq.critical(func() {
			c.diag.arm(r.Mode, r.Flags)
			res = c.diag_result(nil, false)
		})
		return res, nil

	case DiagnoseRead:
		var res DiagnoseResult
		c.irq.critical(func() {
			var valid = c.diag.valid()
			res = c.diag_result(c.diag.drain(), valid)
		})
		return res, nil

	case StatsRequest:
		return c.snapshot(), nil
	}

	return nil, fmt.Errorf("%w: %T", ErrBadRequest, req)
}

// Call with the interrupt masked.
func (c *Channel) diag_result(data []int16, valid bool) DiagnoseResult {
	var r = DiagnoseResult{
		Mode:    c.diag.mode,
		Flags:   c.diag.flags &^ DIAG_FLAG_VALID,
		Valid:   valid,
		Samples: data,
	}
	if valid {
		r.Flags |= DIAG_FLAG_VALID
	}
	if c.mode != nil {
		r.SampleRate = c.mode.rx.SampleRate
		r.OverSampling = c.mode.rx.OverSampling
	}
	return r
}

func (c *Channel) snapshot() ChannelStats {
	var s = ChannelStats{
		Name:                 c.name,
		State:                c.state.String(),
		Pipeline:             "-",
		RxBits:               c.stats.rx_bits.Load(),
		TxBits:               c.stats.tx_bits.Load(),
		DCDOn:                c.stats.dcd_on.Load(),
		DCDOff:               c.stats.dcd_off.Load(),
		Underruns:            c.stats.underruns.Load(),
		Overruns:             c.stats.overruns.Load(),
		Interrupts:           c.stats.interrupts.Load(),
		FragmentsModulated:   c.stats.frags_mod.Load(),
		FragmentsDemodulated: c.stats.frags_demod.Load(),
		PTT:                  c.stats.ptt.Load(),
		DCD:                  c.stats.dcd.Load(),
	}
	if c.mode != nil {
		s.Mode = c.mode.String()
	}
	if x, ok := c.dev.(interface{ XRuns() uint64 }); ok {
		s.DeviceXRuns = x.XRuns()
	}
	c.irq.critical(func() {
		if c.pipe != nil {
			s.Pipeline = c.pipe.state.String()
		}
	})
	return s
}

// Shorthand for Control(StatsRequest{}).
func (c *Channel) Stats() ChannelStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot()
}
