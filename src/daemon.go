package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the sound card modem daemon.
 *
 * Description:	Reads the configuration file, brings up every channel
 *		listed there, and moves raw channel bits between each
 *		channel and a pair of files (usually FIFOs) so a framing
 *		layer can run as a separate process:
 *
 *			tx_input	- bytes written here are sent,
 *					  least significant bit first.
 *			rx_output	- received bits come out here,
 *					  packed the same way.
 *
 *		Channel statistics are exported for Prometheus when
 *		metrics.listen is set.
 *
 *		Stops on SIGINT or SIGTERM, dropping the key first.
 *
 *---------------------------------------------------------------*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"gopkg.in/lumberjack.v2"
)

const METRICS_POLL = time.Second

type daemon_channel struct {
	ch   *Channel
	pipe *BitPipe
	sim  *SimDevice
	cfg  ChannelConfig
	last ChannelStats
}

func SoundmodemMain() {
	var configFile = pflag.StringP("config", "c", "", "Configuration file name.  Default is to look in the usual places.")
	var logLevel = pflag.StringP("log-level", "l", "", "Override the log level: debug, info, warn, error.")
	var metricsListen = pflag.StringP("metrics-listen", "m", "", "Override metrics.listen, e.g. :9110")
	var listModes = pflag.BoolP("list-modes", "L", false, "List every hardware:scheme mode and exit.")
	var showVersion = pflag.BoolP("version", "v", false, "Print the version and exit.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Sound card modem\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "\t%s -c /etc/soundmodem.yaml\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\t%s -l debug -m :9110\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *showVersion {
		fmt.Println(version_string())
		os.Exit(0)
	}

	if *listModes {
		for _, m := range ListModes() {
			fmt.Println(m)
		}
		os.Exit(0)
	}

	var cfg, err = LoadConfig(*configFile)
	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("%s\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if *metricsListen != "" {
		cfg.Metrics.Listen = *metricsListen
	}

	var logfile = log_setup(cfg.Log)
	if logfile != nil {
		defer logfile.Close()
	}
	smlog.Info("Starting", "version", version_string())

	if len(cfg.Channels) == 0 {
		smlog.Error("No channels configured")
		os.Exit(1)
	}

	var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = run_daemon(ctx, cfg); err != nil {
		smlog.Error("Exiting", "err", err)
		os.Exit(1)
	}
}

// Point the logger at the configured file.  Returns it so it can be closed.
func log_setup(lc LogConfig) io.Closer {
	var closer io.Closer

	if lc.File != "" {
		var lj = &lumberjack.Logger{
			Filename:   lc.File,
			MaxSize:    lc.MaxSizeMB,
			MaxBackups: lc.MaxBackups,
			MaxAge:     lc.MaxAgeDays,
		}
		SetLogger(lj)
		closer = lj
	}

	if err := SetLogLevel(lc.Level); err != nil {
		smlog.Warn("Ignoring log level", "err", err)
	}
	return closer
}

/*-------------------------------------------------------------------
 *
 * Name:	run_daemon
 *
 * Purpose:	Open every channel, serve until ctx is done, close.
 *
 * Description:	A channel that fails to come up is fatal only if no
 *		channel at all came up.
 *
 *------------------------------------------------------------------*/

func run_daemon(ctx context.Context, cfg *Config) error {
	var reg = prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	var metrics = NewMetrics(reg)

	var chans []*daemon_channel
	for _, cc := range cfg.Channels {
		var dc, err = daemon_channel_open(ctx, cc)
		if err != nil {
			smlog.Error("Channel not started", "channel", cc.Name, "err", err)
			continue
		}
		chans = append(chans, dc)
	}
	if len(chans) == 0 {
		return errors.New("no channel could be started")
	}

	var wg, ticking sync.WaitGroup

	var srv *http.Server
	if cfg.Metrics.Listen != "" {
		var mux = http.NewServeMux()
		mux.Handle(cfg.Metrics.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		srv = &http.Server{Addr: cfg.Metrics.Listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		wg.Go(func() {
			smlog.Info("Metrics listening", "addr", cfg.Metrics.Listen, "path", cfg.Metrics.Path)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				smlog.Error("Metrics server", "err", err)
			}
		})
	}

	for _, dc := range chans {
		dc.start_io(ctx, &wg, &ticking)
	}

	var t = time.NewTicker(METRICS_POLL)
	defer t.Stop()

poll:
	for {
		select {
		case <-ctx.Done():
			break poll
		case <-t.C:
			for _, dc := range chans {
				var st = dc.ch.Stats()
				metrics.Update(dc.ch.Name(), st)
				dc.log_changes(st)
			}
		}
	}

	smlog.Info("Shutting down")
	ticking.Wait()

	var errs []error
	for _, dc := range chans {
		errs = append(errs, dc.ch.Close())
		dc.pipe.Close()
		if n := dc.pipe.Dropped(); n > 0 {
			smlog.Warn("Received bytes dropped, rx_output reader too slow", "channel", dc.ch.Name(), "bytes", n)
		}
	}
	if srv != nil {
		var sctx, cancel = context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, srv.Shutdown(sctx))
		cancel()
	}

	// Readers blocked opening a FIFO with no writer never return; don't wait on those.
	var done = make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}

	return errors.Join(errs...)
}

/*-------------------------------------------------------------------
 *
 * Name:	log_changes
 *
 * Purpose:	Report transmitter turnaround and new scheduler
 *		trouble since the last poll.
 *
 * Description:	Runs on the polling side only.  A key/unkey cycle
 *		shorter than the poll interval is not seen here but
 *		still shows up in the counters.
 *
 *------------------------------------------------------------------*/

func (dc *daemon_channel) log_changes(st ChannelStats) {
	var name = dc.ch.Name()

	if st.PTT != dc.last.PTT {
		smlog.Debug(IfThenElse(st.PTT, "Transmitter keyed", "Transmitter released"), "channel", name,
			"tx_bits", st.TxBits, "fragments_modulated", st.FragmentsModulated)
	}
	if st.DCD != dc.last.DCD {
		smlog.Debug(IfThenElse(st.DCD, "Carrier detected", "Carrier lost"), "channel", name)
	}
	if st.Underruns > dc.last.Underruns || st.Overruns > dc.last.Overruns {
		smlog.Warn("Fragment scheduling fell behind", "channel", name,
			"underruns", st.Underruns-dc.last.Underruns, "overruns", st.Overruns-dc.last.Overruns)
	}

	dc.last = st
}

func daemon_channel_open(ctx context.Context, cc ChannelConfig) (*daemon_channel, error) {
	var dev, err = NewSoundDevice(cc.Backend, cc.InputDevice, cc.OutputDevice)
	if err != nil {
		return nil, err
	}

	var pipe = NewBitPipe()
	var ch = NewChannel(cc, pipe, dev)

	if err = ch.Configure(cc.Mode); err != nil {
		return nil, err
	}
	if err = ch.Open(ctx); err != nil {
		return nil, err
	}

	if cc.PTT != (PTTConfig{}) && len(ch.PTTEnabled()) == 0 {
		smlog.Warn("No PTT path usable, transmitting without keying", "channel", ch.Name())
	}

	var dc = &daemon_channel{ch: ch, pipe: pipe, cfg: cc}
	if sim, ok := dev.(*SimDevice); ok {
		dc.sim = sim
	}
	return dc, nil
}

/*-------------------------------------------------------------------
 *
 * Name:	start_io
 *
 * Purpose:	Start the goroutines that feed and drain the channel.
 *
 * Description:	The transmit side reopens tx_input every time the
 *		writer goes away, which is what a FIFO wants.
 *
 *		A sim channel has no clock of its own, so it gets a
 *		ticker at the fragment rate.
 *
 *------------------------------------------------------------------*/

func (dc *daemon_channel) start_io(ctx context.Context, wg *sync.WaitGroup, ticking *sync.WaitGroup) {
	var name = dc.ch.Name()

	if dc.cfg.TxInput != "" {
		wg.Go(func() {
			for ctx.Err() == nil {
				var f, err = os.Open(dc.cfg.TxInput)
				if err != nil {
					smlog.Error("Can't open transmit input", "channel", name, "file", dc.cfg.TxInput, "err", err)
					return
				}
				err = dc.pipe.Feed(f)
				f.Close()
				if err != nil {
					smlog.Error("Transmit input", "channel", name, "err", err)
					return
				}
				if !is_fifo(dc.cfg.TxInput) {
					return
				}
			}
		})
	}

	if dc.cfg.RxOutput != "" {
		wg.Go(func() {
			var f, err = os.OpenFile(dc.cfg.RxOutput, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644) //nolint:gosec
			if err != nil {
				smlog.Error("Can't open receive output", "channel", name, "file", dc.cfg.RxOutput, "err", err)
				return
			}
			defer f.Close()
			if err = dc.pipe.Drain(f); err != nil {
				smlog.Error("Receive output", "channel", name, "err", err)
			}
		})
	}

	if dc.sim != nil {
		ticking.Go(func() {
			var t = time.NewTicker(time.Duration(dc.ch.cfg.FragmentMS) * time.Millisecond)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-t.C:
					dc.sim.Tick()
				}
			}
		})
	}
}

func is_fifo(path string) bool {
	var st, err = os.Stat(path)
	return err == nil && st.Mode()&os.ModeNamedPipe != 0
}
