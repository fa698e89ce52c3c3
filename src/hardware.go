package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Sound hardware drivers and the mode string.
 *
 * Description:	A mode string names a driver and the waveforms for
 *		each direction:
 *
 *			<hardware>:<tx scheme>[,<rx scheme>]
 *
 *		e.g. "sbc:afsk1200" or "wssfdx:fsk9600".  Without an
 *		RX scheme the channel receives what it sends.
 *
 *		The half duplex drivers reprogram the DMA engine on
 *		every turnaround, so each direction may have its own
 *		rate and width.  The full duplex one runs a single
 *		format both ways.
 *
 *----------------------------------------------------------------*/

import (
	"fmt"
	"strings"
)

type HardwareDriver struct {
	Name       string
	FullDuplex bool
	Widths     WidthSet
	MaxRate    int
}

var hw_drivers = []*HardwareDriver{
	{Name: "sbc", FullDuplex: false, Widths: WIDTH_8 | WIDTH_16, MaxRate: 44100},
	{Name: "wss", FullDuplex: false, Widths: WIDTH_8 | WIDTH_16, MaxRate: 48000},
	{Name: "wssfdx", FullDuplex: true, Widths: WIDTH_8 | WIDTH_16, MaxRate: 48000},
}

func find_hw_driver(name string) *HardwareDriver {
	for _, h := range hw_drivers {
		if h.Name == name {
			return h
		}
	}
	return nil
}

// HardwareDrivers lists the driver table, for smlist.
func HardwareDrivers() []HardwareDriver {
	var out = make([]HardwareDriver, len(hw_drivers))
	for i, h := range hw_drivers {
		out[i] = *h
	}
	return out
}

// SchemePairs lists the waveform registry, for smlist.
func SchemePairs() (tx []TxScheme, rx []RxScheme) {
	for _, p := range scheme_table {
		tx = append(tx, *p.tx)
		rx = append(rx, *p.rx)
	}
	return tx, rx
}

/*------------------------------------------------------------------
 *
 * Name:	channel_mode
 *
 * Purpose:	A mode string that passed every check, with the
 *		aliases resolved and the sample widths picked.
 *
 *----------------------------------------------------------------*/

type channel_mode struct {
	text     string
	hw       *HardwareDriver
	tx       *TxScheme
	rx       *RxScheme
	tx_width int
	rx_width int
}

func (m *channel_mode) String() string {
	return m.hw.Name + ":" + m.tx.Name + "," + m.rx.Name
}

// Pick the first candidate the hardware can clock.
func resolve_scheme[S any](name string, hw *HardwareDriver, find func(string) *S, rate func(*S) int) (*S, error) {
	var too_fast *S
	for _, c := range scheme_candidates(name) {
		var s = find(c)
		if s == nil {
			continue
		}
		if rate(s) <= hw.MaxRate {
			return s, nil
		}
		if too_fast == nil {
			too_fast = s
		}
	}
	if too_fast != nil {
		return nil, fmt.Errorf("%w: %s needs %d samples/sec, %s tops out at %d",
			ErrSampleRateMismatch, name, rate(too_fast), hw.Name, hw.MaxRate)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownScheme, name)
}

/*------------------------------------------------------------------
 *
 * Name:	parse_mode
 *
 * Purpose:	Check a mode string against the driver and scheme
 *		tables.
 *
 * Returns:	The resolved mode, or an error wrapping one of the
 *		configuration sentinels.  Nothing is allocated for the
 *		channel until this succeeds.
 *
 *----------------------------------------------------------------*/

func parse_mode(mode string) (*channel_mode, error) {
	var hwname, schemes, ok = strings.Cut(strings.TrimSpace(mode), ":")
	if !ok || hwname == "" || schemes == "" {
		return nil, fmt.Errorf("%w: %q, expected <hardware>:<tx>[,<rx>]", ErrBadMode, mode)
	}

	var txname, rxname, has_rx = strings.Cut(schemes, ",")
	if txname == "" || has_rx && (rxname == "" || strings.Contains(rxname, ",")) {
		return nil, fmt.Errorf("%w: %q", ErrBadMode, mode)
	}

	var hw = find_hw_driver(hwname)
	if hw == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownHardware, hwname)
	}

	var tx, err = resolve_scheme(txname, hw, find_tx_scheme, func(s *TxScheme) int { return s.SampleRate })
	if err != nil {
		return nil, err
	}

	if !has_rx {
		rxname = tx.Name
	}
	rx, err := resolve_scheme(rxname, hw, find_rx_scheme, func(s *RxScheme) int { return s.SampleRate })
	if err != nil {
		return nil, err
	}

	if tx.StateSize > MOD_SCRATCH_SIZE {
		return nil, fmt.Errorf("%w: %s modulator needs %d bytes, have %d", ErrScratchOverflow, tx.Name, tx.StateSize, MOD_SCRATCH_SIZE)
	}
	if rx.StateSize > DEMOD_SCRATCH_SIZE {
		return nil, fmt.Errorf("%w: %s demodulator needs %d bytes, have %d", ErrScratchOverflow, rx.Name, rx.StateSize, DEMOD_SCRATCH_SIZE)
	}

	var m = &channel_mode{text: mode, hw: hw, tx: tx, rx: rx}

	if hw.FullDuplex {
		var common = tx.Widths & rx.Widths & hw.Widths
		if common == 0 {
			return nil, fmt.Errorf("%w: %s sends %s bit, %s receives %s bit, %s needs one width both ways",
				ErrIncompatibleWidths, tx.Name, tx.Widths, rx.Name, rx.Widths, hw.Name)
		}
		if tx.SampleRate != rx.SampleRate {
			return nil, fmt.Errorf("%w: %s at %d and %s at %d on full duplex %s",
				ErrSampleRateMismatch, tx.Name, tx.SampleRate, rx.Name, rx.SampleRate, hw.Name)
		}
		m.tx_width = common.Best()
		m.rx_width = m.tx_width
	} else {
		m.tx_width = (tx.Widths & hw.Widths).Best()
		m.rx_width = (rx.Widths & hw.Widths).Best()
		if m.tx_width == 0 || m.rx_width == 0 {
			return nil, fmt.Errorf("%w: %s does not do %s / %s bit", ErrIncompatibleWidths, hw.Name, tx.Widths, rx.Widths)
		}
	}

	return m, nil
}

// Samples per fragment for fragment_ms of audio, even, and at least the overlap.
func fragment_samples(srate int, fragment_ms int, overlap int) int {
	var n = (srate*fragment_ms + 999) / 1000
	n = max(n, overlap)
	return n + n&1
}

/*------------------------------------------------------------------
 *
 * Name:	ListModes
 *
 * Purpose:	Every hardware:scheme combination that configures,
 *		same scheme both ways.
 *
 *----------------------------------------------------------------*/

func ListModes() []string {
	var out []string
	for _, h := range hw_drivers {
		for _, p := range scheme_table {
			var s = h.Name + ":" + p.tx.Name
			if _, err := parse_mode(s); err == nil {
				out = append(out, s)
			}
		}
	}
	return out
}
