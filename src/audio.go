package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to audio device commonly called a "sound card" for
 *		historical reasons.
 *
 *		Two kinds of device are supported:
 *
 *		* PortAudio - whatever the host has.  The stream callback
 *			plays the part of the DMA completion interrupt.
 *
 *		* sim - a device that only moves when told to, for tests
 *			and for the file based tools.  See audio_sim.go.
 *
 *		Either way the device copies one fragment per call between
 *		its own buffers and the channel's ring, advances its
 *		progress counter, then raises the interrupt.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

/*
 * What the channel needs from a sound device.
 *
 * Progress is the residue readback: how many fragments of that
 * direction have been completed since Open.  It only ever grows.
 */

type SoundDevice interface {
	Open(b *DMABinding) error
	Close() error
	StartInput() error
	StartOutput() error
	Progress(dir DMADir) uint64
}

const (
	AUDIO_IDLE int32 = iota
	AUDIO_INPUT
	AUDIO_OUTPUT
	AUDIO_DUPLEX
)

// Create the backend named in the configuration file.
func NewSoundDevice(backend string, input string, output string) (SoundDevice, error) {
	switch backend {
	case "", "portaudio":
		return &PortAudioDevice{InputName: input, OutputName: output}, nil
	case "sim":
		return NewSimDevice(nil), nil
	}
	return nil, fmt.Errorf("%w: unknown audio backend %q", ErrBadConfig, backend)
}

/*------------------------------------------------------------------
 *
 * Name:	PortAudioDevice
 *
 * Purpose:	Sound device backed by PortAudio callback streams.
 *
 * Description:	Half duplex opens an input and an output stream up
 *		front and leaves both running.  Turnaround only flips
 *		which callback does real work, so nothing blocks when
 *		the scheduler changes direction from the interrupt.
 *		The idle direction reads nothing and plays silence.
 *
 *		Full duplex uses one duplex stream, which the hardware
 *		rules guarantee has a common rate and width.
 *
 *----------------------------------------------------------------*/

type PortAudioDevice struct {
	InputName  string // empty for the default device
	OutputName string

	b        *DMABinding
	streams  []*portaudio.Stream
	mode     atomic.Int32
	progress [2]atomic.Uint64
	xruns    atomic.Uint64
}

var errNoAudioDevice = errors.New("no such audio device")

func pa_find_device(name string, input bool) (*portaudio.DeviceInfo, error) {
	if name == "" {
		if input {
			return portaudio.DefaultInputDevice()
		}
		return portaudio.DefaultOutputDevice()
	}

	var devs, err = portaudio.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devs {
		if d.Name != name {
			continue
		}
		if input && d.MaxInputChannels > 0 || !input && d.MaxOutputChannels > 0 {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", errNoAudioDevice, name)
}

func (d *PortAudioDevice) Open(b *DMABinding) error {
	if err := portaudio.Initialize(); err != nil {
		return err
	}

	d.b = b
	d.mode.Store(AUDIO_IDLE)

	var err error
	if b.FullDuplex {
		err = d.open_duplex()
	} else {
		err = d.open_half()
	}
	if err != nil {
		d.close_streams()
		portaudio.Terminate()
		return err
	}

	for _, s := range d.streams {
		if err = s.Start(); err != nil {
			d.close_streams()
			portaudio.Terminate()
			return err
		}
	}
	return nil
}

func (d *PortAudioDevice) open_half() error {
	var indev, err = pa_find_device(d.InputName, true)
	if err != nil {
		return err
	}
	outdev, err := pa_find_device(d.OutputName, false)
	if err != nil {
		return err
	}

	var b = d.b
	var ip = portaudio.HighLatencyParameters(indev, nil)
	ip.SampleRate = float64(b.In.SampleRate)
	ip.FramesPerBuffer = b.In.FragSize
	ip.Input.Channels = 1

	var op = portaudio.HighLatencyParameters(nil, outdev)
	op.SampleRate = float64(b.Out.SampleRate)
	op.FramesPerBuffer = b.Out.FragSize
	op.Output.Channels = 1

	var in *portaudio.Stream
	if b.In.Width == 8 {
		in, err = portaudio.OpenStream(ip, d.input_cb8)
	} else {
		in, err = portaudio.OpenStream(ip, d.input_cb16)
	}
	if err != nil {
		return err
	}
	d.streams = append(d.streams, in)

	var out *portaudio.Stream
	if b.Out.Width == 8 {
		out, err = portaudio.OpenStream(op, d.output_cb8)
	} else {
		out, err = portaudio.OpenStream(op, d.output_cb16)
	}
	if err != nil {
		return err
	}
	d.streams = append(d.streams, out)
	return nil
}

func (d *PortAudioDevice) open_duplex() error {
	var indev, err = pa_find_device(d.InputName, true)
	if err != nil {
		return err
	}
	outdev, err := pa_find_device(d.OutputName, false)
	if err != nil {
		return err
	}

	var b = d.b
	var p = portaudio.HighLatencyParameters(indev, outdev)
	p.SampleRate = float64(b.In.SampleRate)
	p.FramesPerBuffer = b.In.FragSize
	p.Input.Channels = 1
	p.Output.Channels = 1

	var s *portaudio.Stream
	if b.In.Width == 8 {
		s, err = portaudio.OpenStream(p, d.duplex_cb8)
	} else {
		s, err = portaudio.OpenStream(p, d.duplex_cb16)
	}
	if err != nil {
		return err
	}
	d.streams = append(d.streams, s)
	return nil
}

func (d *PortAudioDevice) close_streams() {
	for _, s := range d.streams {
		s.Close()
	}
	d.streams = nil
}

func (d *PortAudioDevice) Close() error {
	d.mode.Store(AUDIO_IDLE)
	var err error
	for _, s := range d.streams {
		err = errors.Join(err, s.Stop())
	}
	d.close_streams()
	return errors.Join(err, portaudio.Terminate())
}

func (d *PortAudioDevice) StartInput() error {
	if d.b.FullDuplex {
		d.mode.Store(AUDIO_DUPLEX)
	} else {
		d.mode.Store(AUDIO_INPUT)
	}
	return nil
}

func (d *PortAudioDevice) StartOutput() error {
	if d.b.FullDuplex {
		d.mode.Store(AUDIO_DUPLEX)
	} else {
		d.mode.Store(AUDIO_OUTPUT)
	}
	return nil
}

func (d *PortAudioDevice) Progress(dir DMADir) uint64 {
	return d.progress[dir].Load()
}

// Over and under flows reported by PortAudio itself, as opposed to the scheduler.
func (d *PortAudioDevice) XRuns() uint64 {
	return d.xruns.Load()
}

func (d *PortAudioDevice) note_flags(flags portaudio.StreamCallbackFlags) {
	if flags&(portaudio.InputOverflow|portaudio.OutputUnderflow) != 0 {
		d.xruns.Add(1)
	}
}

/*
 * Stream callbacks.  These run on PortAudio's thread and are the
 * fragment interrupt, so the same rules as the modems apply.
 */

func (d *PortAudioDevice) input_cb8(in []uint8, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.note_flags(flags)
	if d.mode.Load() != AUDIO_INPUT {
		return
	}
	var n = d.progress[DMA_INPUT].Load()
	copy(d.b.Capture8(n), in)
	d.progress[DMA_INPUT].Store(n + 1)
	d.b.Interrupt()
}

func (d *PortAudioDevice) input_cb16(in []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.note_flags(flags)
	if d.mode.Load() != AUDIO_INPUT {
		return
	}
	var n = d.progress[DMA_INPUT].Load()
	copy(d.b.Capture16(n), in)
	d.progress[DMA_INPUT].Store(n + 1)
	d.b.Interrupt()
}

func (d *PortAudioDevice) output_cb8(out []uint8, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.note_flags(flags)
	if d.mode.Load() != AUDIO_OUTPUT {
		for i := range out {
			out[i] = U8_SILENCE
		}
		return
	}
	var n = d.progress[DMA_OUTPUT].Load()
	copy(out, d.b.Playback8(n))
	d.progress[DMA_OUTPUT].Store(n + 1)
	d.b.Interrupt()
}

func (d *PortAudioDevice) output_cb16(out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.note_flags(flags)
	if d.mode.Load() != AUDIO_OUTPUT {
		clear(out)
		return
	}
	var n = d.progress[DMA_OUTPUT].Load()
	copy(out, d.b.Playback16(n))
	d.progress[DMA_OUTPUT].Store(n + 1)
	d.b.Interrupt()
}

func (d *PortAudioDevice) duplex_cb8(in []uint8, out []uint8, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.note_flags(flags)
	if d.mode.Load() != AUDIO_DUPLEX {
		for i := range out {
			out[i] = U8_SILENCE
		}
		return
	}
	var ni = d.progress[DMA_INPUT].Load()
	var no = d.progress[DMA_OUTPUT].Load()
	copy(d.b.Capture8(ni), in)
	copy(out, d.b.Playback8(no))
	d.progress[DMA_INPUT].Store(ni + 1)
	d.progress[DMA_OUTPUT].Store(no + 1)
	d.b.Interrupt()
}

func (d *PortAudioDevice) duplex_cb16(in []int16, out []int16, _ portaudio.StreamCallbackTimeInfo, flags portaudio.StreamCallbackFlags) {
	d.note_flags(flags)
	if d.mode.Load() != AUDIO_DUPLEX {
		clear(out)
		return
	}
	var ni = d.progress[DMA_INPUT].Load()
	var no = d.progress[DMA_OUTPUT].Load()
	copy(d.b.Capture16(ni), in)
	copy(out, d.b.Playback16(no))
	d.progress[DMA_INPUT].Store(ni + 1)
	d.progress[DMA_OUTPUT].Store(no + 1)
	d.b.Interrupt()
}

/*------------------------------------------------------------------
 *
 * Name:	AudioDeviceNames
 *
 * Purpose:	List what PortAudio can see, for smlist.
 *
 *----------------------------------------------------------------*/

type AudioDeviceInfo struct {
	Name       string
	Inputs     int
	Outputs    int
	SampleRate float64
}

func AudioDeviceNames() ([]AudioDeviceInfo, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, err
	}
	defer portaudio.Terminate()

	var devs, err = portaudio.Devices()
	if err != nil {
		return nil, err
	}

	var out []AudioDeviceInfo
	for _, d := range devs {
		out = append(out, AudioDeviceInfo{
			Name:       d.Name,
			Inputs:     d.MaxInputChannels,
			Outputs:    d.MaxOutputChannels,
			SampleRate: d.DefaultSampleRate,
		})
	}
	return out, nil
}
