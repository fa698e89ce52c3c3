package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Take diagnostics captures and save them.
 *
 * Description:	Either from a live channel in the configuration file,
 *		received only (the transmitter is never keyed), or
 *		from a .WAV file through a simulated channel.
 *
 *		Each capture is written as CSV, a one line summary
 *		goes to the daily index, and the summary is printed.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

const DIAG_POLL = 50 * time.Millisecond

func SmdiagMain() {
	var configFile = pflag.StringP("config", "c", "", "Configuration file for a live capture.")
	var channelName = pflag.StringP("channel", "C", "", "Channel to capture from.  Default is the first.")
	var wavFile = pflag.StringP("wav", "w", "", "Capture from this .WAV file instead.")
	var mode = pflag.StringP("mode", "m", "sbc:afsk1200", "Channel mode for a .WAV capture.")
	var what = pflag.StringP("diag", "D", "input", "Capture point: input, demod, constellation.")
	var dcdGate = pflag.BoolP("dcd-gate", "g", false, "Only capture while carrier is detected.")
	var count = pflag.IntP("count", "n", 1, "Number of captures to take from a live channel.")
	var timeout = pflag.DurationP("timeout", "t", 10*time.Second, "Give up on a live capture after this long.")
	var dir = pflag.StringP("dir", "o", ".", "Directory for capture files.")
	var pattern = pflag.StringP("pattern", "p", DEFAULT_CAPTURE_PATTERN, "strftime pattern for capture file names.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Modem diagnostics capture\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "\t%s -c soundmodem.yaml -C vhf -D demod -n 5 -o /tmp/diag\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\t%s -w psk.wav -m wss:psk4800 -D constellation\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	var dm, ok = ParseDiagMode(*what)
	if !ok || dm == DIAG_OFF {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("Capture point must be input, demod or constellation, not \"%s\".\n", *what)
		os.Exit(1)
	}
	var flags = IfThenElse(*dcdGate, DIAG_FLAG_DCDGATE, 0)

	var clog, err = NewCaptureLog(*dir, *pattern)
	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("%s\n", err)
		os.Exit(1)
	}
	defer clog.Close()

	var name string
	var results []DiagnoseResult

	if *wavFile != "" {
		name = "wav"
		results, err = diag_from_wav(*wavFile, *mode, dm)
	} else {
		var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		name, results, err = diag_from_channel(ctx, *configFile, *channelName, DiagnoseRequest{Mode: dm, Flags: flags}, *count, *timeout)
	}

	for _, r := range results {
		var path, werr = clog.Write(name, r, time.Now())
		if werr != nil {
			text_color_set(DW_COLOR_ERROR)
			dw_printf("%s\n", werr)
			os.Exit(1)
		}
		diag_print(path, SummarizeCapture(r), r.Mode)
	}

	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("%s\n", err)
		os.Exit(1)
	}
}

func diag_from_wav(fname string, mode string, dm DiagMode) ([]DiagnoseResult, error) {
	var samples, rate, _, err = ReadWavFile(fname)
	if err != nil {
		return nil, err
	}
	var r *SimReception
	r, err = SimReceive(mode, samples, rate, SimOptions{Diagnose: dm})
	if err != nil {
		return nil, err
	}
	if r.Diagnostic == nil {
		return nil, fmt.Errorf("%s: too short to fill the capture buffer", fname)
	}
	return []DiagnoseResult{*r.Diagnostic}, nil
}

/*-------------------------------------------------------------------
 *
 * Name:	diag_from_channel
 *
 * Purpose:	Open a configured channel and take count captures.
 *
 * Returns:	Whatever was captured, even on error.
 *
 *------------------------------------------------------------------*/

func diag_from_channel(ctx context.Context, configFile string, channelName string, req DiagnoseRequest, count int, timeout time.Duration) (string, []DiagnoseResult, error) {
	var cfg, err = LoadConfig(configFile)
	if err != nil {
		return "", nil, err
	}
	if err = SetLogLevel(cfg.Log.Level); err != nil {
		return "", nil, err
	}

	var cc *ChannelConfig
	for i := range cfg.Channels {
		if channelName == "" || cfg.Channels[i].Name == channelName {
			cc = &cfg.Channels[i]
			break
		}
	}
	if cc == nil {
		return "", nil, fmt.Errorf("%w: no channel %q", ErrBadConfig, channelName)
	}

	var dev SoundDevice
	dev, err = NewSoundDevice(cc.Backend, cc.InputDevice, cc.OutputDevice)
	if err != nil {
		return cc.Name, nil, err
	}

	var framer = NewPatternFramer(nil)
	var ch = NewChannel(*cc, framer, dev)
	if err = ch.Configure(cc.Mode); err != nil {
		return cc.Name, nil, err
	}
	if err = ch.Open(ctx); err != nil {
		return cc.Name, nil, err
	}
	defer ch.Close()

	var results []DiagnoseResult
	for range count {
		var r, cerr = diag_capture(ctx, ch, req, timeout)
		if cerr != nil {
			return cc.Name, results, cerr
		}
		results = append(results, r)
	}
	return cc.Name, results, nil
}

var ErrCaptureTimeout = errors.New("capture buffer did not fill")

func diag_capture(ctx context.Context, ch *Channel, req DiagnoseRequest, timeout time.Duration) (DiagnoseResult, error) {
	if _, err := ch.Control(req); err != nil {
		return DiagnoseResult{}, err
	}

	var deadline = time.NewTimer(timeout)
	defer deadline.Stop()
	var t = time.NewTicker(DIAG_POLL)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return DiagnoseResult{}, ctx.Err()
		case <-deadline.C:
			return DiagnoseResult{}, fmt.Errorf("%w in %s", ErrCaptureTimeout, timeout)
		case <-t.C:
			var res, err = ch.Control(DiagnoseRead{})
			if err != nil {
				return DiagnoseResult{}, err
			}
			if r := res.(DiagnoseResult); r.Valid {
				return r, nil
			}
		}
	}
}

func diag_print(path string, s CaptureSummary, mode DiagMode) {
	text_color_set(DW_COLOR_INFO)
	dw_printf("%s: %s, %d values, mean %.1f, std dev %.1f, rms %.1f, peak %.0f\n",
		path, mode, s.Count, s.Mean, s.StdDev, s.RMS, s.Peak)
	if mode == DIAG_CONSTELLATION {
		dw_printf("  points per 45 degree sector: %v\n", s.Sectors)
	} else if s.Spectrum != nil {
		dw_printf("  strongest line %.1f Hz at %.1f values/sec\n", s.PeakHz, s.Rate)
	}
}
