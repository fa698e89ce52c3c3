package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Drive the transmitter key and the carrier indicator
 *		out to the radio.
 *
 * Description:	Three independent paths, any of which may be absent:
 *
 *		serial	- RTS is the key.  DTR shows carrier.  Break on
 *			  TxD is held while keyed as the loop qualify
 *			  signal some interfaces want.
 *
 *		parallel - The data register of a printer port, bit 0
 *			  key, bit 1 carrier.  Written through /dev/port
 *			  at the port's I/O address, usually 0x378.
 *
 *		strobe	- A GPIO line pulsed on every update while keyed,
 *			  for interfaces that hold the key with a
 *			  retriggerable timer and drop it when the pulses
 *			  stop.
 *
 *		A path is used only if its address parses and the
 *		device answers when opened.  Anything else is logged
 *		and that path stays off.
 *
 *		set_output is called from the interrupt after every
 *		scheduler pass and keeps no memory of what it did
 *		before.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/warthog618/go-gpiocdev"
)

type PTTConfig struct {
	Serial   string `yaml:"serial"`   // /dev/ttyS0
	Parallel string `yaml:"parallel"` // 0x378
	Strobe   string `yaml:"strobe"`   // gpiochip0:17
}

// Bit positions on the parallel port data register.
const LPT_PTT_BIT = 0x01
const LPT_DCD_BIT = 0x02

const LPT_DEVICE = "/dev/port"

type serial_lines interface {
	set_rts(on bool) error
	set_dtr(on bool) error
	set_break(on bool) error
	Close() error
}

type parallel_data interface {
	write_data(b byte) error
	Close() error
}

// Satisfied by *gpiocdev.Line.
type strobe_line interface {
	SetValue(v int) error
	Close() error
}

type ptt_outputs struct {
	serial   serial_lines
	parallel parallel_data
	strobe   strobe_line
}

/*-------------------------------------------------------------------
 *
 * Name:        set_output
 *
 * Purpose:    	Put the current key and carrier state on every path.
 *
 * Inputs:	ptt	- Transmitter should be keyed.
 *		dcd	- Channel is busy.
 *
 * Description:	Errors are ignored here.  This runs in the interrupt
 *		and there is nobody to tell.  The next call tries again.
 *
 *--------------------------------------------------------------------*/

func (o *ptt_outputs) set_output(ptt bool, dcd bool) {
	if o == nil {
		return
	}

	if o.serial != nil {
		o.serial.set_rts(ptt)
		o.serial.set_dtr(dcd)
		o.serial.set_break(ptt)
	}

	if o.parallel != nil {
		var b byte
		if ptt {
			b |= LPT_PTT_BIT
		}
		if dcd {
			b |= LPT_DCD_BIT
		}
		o.parallel.write_data(b)
	}

	if o.strobe != nil && ptt {
		o.strobe.SetValue(1)
		o.strobe.SetValue(0)
	}
}

// Names of the paths in use.
func (o *ptt_outputs) enabled() []string {
	var out []string
	if o == nil {
		return out
	}
	if o.serial != nil {
		out = append(out, "serial")
	}
	if o.parallel != nil {
		out = append(out, "parallel")
	}
	if o.strobe != nil {
		out = append(out, "strobe")
	}
	return out
}

func (o *ptt_outputs) close() {
	if o == nil {
		return
	}
	o.set_output(false, false)
	if o.serial != nil {
		o.serial.Close()
		o.serial = nil
	}
	if o.parallel != nil {
		o.parallel.Close()
		o.parallel = nil
	}
	if o.strobe != nil {
		o.strobe.Close()
		o.strobe = nil
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        ptt_init
 *
 * Purpose:    	Open and probe whatever paths are configured.
 *
 * Inputs:	channel	- Name, for the log.
 *		cfg	- Addresses.  Empty means not wanted.
 *
 * Returns:	The paths that answered.  Never fails as a whole.
 *
 *--------------------------------------------------------------------*/

func ptt_init(channel string, cfg PTTConfig) *ptt_outputs {
	var o = new(ptt_outputs)

	if cfg.Serial != "" {
		var s, err = serial_port_open(cfg.Serial)
		if err != nil {
			smlog.Warn("Serial PTT disabled", "channel", channel, "port", cfg.Serial, "err", err)
		} else {
			o.serial = s
			smlog.Info("Serial PTT", "channel", channel, "port", s.name)
		}
	}

	if cfg.Parallel != "" {
		var p, err = lpt_open(LPT_DEVICE, cfg.Parallel)
		if err != nil {
			smlog.Warn("Parallel PTT disabled", "channel", channel, "address", cfg.Parallel, "err", err)
		} else {
			o.parallel = p
			smlog.Info("Parallel PTT", "channel", channel, "address", fmt.Sprintf("0x%x", p.base))
		}
	}

	if cfg.Strobe != "" {
		var l, err = strobe_open(cfg.Strobe)
		if err != nil {
			smlog.Warn("Strobe PTT disabled", "channel", channel, "line", cfg.Strobe, "err", err)
		} else {
			o.strobe = l
			smlog.Info("Strobe PTT", "channel", channel, "line", cfg.Strobe)
		}
	}

	o.set_output(false, false)
	return o
}

/*
 * Parallel printer port through /dev/port.
 */

type lpt_port struct {
	f    *os.File
	base int64
	out  [1]byte
}

func parse_io_address(s string) (int64, error) {
	var v, err = strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, err
	}
	if v <= 0 || v > 0xffff {
		return 0, fmt.Errorf("I/O address %s out of range", s)
	}
	return v, nil
}

func lpt_open(device string, address string) (*lpt_port, error) {
	var base, err = parse_io_address(address)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(device, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}

	// Probe: the data register must read back.
	var b = make([]byte, 1)
	if _, err = f.ReadAt(b, base); err != nil {
		f.Close()
		return nil, fmt.Errorf("no response at 0x%x: %w", base, err)
	}

	return &lpt_port{f: f, base: base}, nil
}

func (p *lpt_port) write_data(b byte) error {
	p.out[0] = b
	var _, err = p.f.WriteAt(p.out[:], p.base)
	return err
}

func (p *lpt_port) Close() error {
	return p.f.Close()
}

/*
 * Strobe on a GPIO character device line, "chip:offset".
 */

func parse_gpio_address(s string) (string, int, error) {
	var chip, off, ok = strings.Cut(s, ":")
	if !ok || chip == "" {
		return "", 0, fmt.Errorf("expected <chip>:<offset>, got %q", s)
	}
	var n, err = strconv.Atoi(off)
	if err != nil || n < 0 {
		return "", 0, fmt.Errorf("bad line offset in %q", s)
	}
	return chip, n, nil
}

func strobe_open(address string) (*gpiocdev.Line, error) {
	var chip, offset, err = parse_gpio_address(address)
	if err != nil {
		return nil, err
	}
	return gpiocdev.RequestLine(chip, offset, gpiocdev.AsOutput(0), gpiocdev.WithConsumer("soundmodem"))
}
