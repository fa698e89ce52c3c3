package soundmodem

/*-------------------------------------------------------------------
 *
 * Purpose:	Useful utility to list what the modem can use.
 *
 * Description:	With no options, prints the hardware drivers, the
 *		waveform schemes, the sound devices PortAudio sees and
 *		the devices a PTT line could be on.
 *
 *		Given a PTT path, toggles it once per second so the
 *		wiring can be checked with a meter or the radio.
 *
 *------------------------------------------------------------------*/

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
)

func SmlistMain() {
	var modesOnly = pflag.BoolP("modes", "M", false, "Only list the valid mode strings.")
	var testSerial = pflag.StringP("serial", "s", "", "Toggle RTS, DTR and break on this serial port.")
	var testParallel = pflag.StringP("parallel", "p", "", "Toggle the data lines at this parallel port I/O address.")
	var testStrobe = pflag.StringP("strobe", "g", "", "Pulse this GPIO line, chip:offset.")
	var cycles = pflag.IntP("cycles", "n", 10, "Number of on/off cycles when testing PTT.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - List sound and PTT devices, test PTT wiring\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "\t%s\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\t%s -s /dev/ttyUSB0 -n 5\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\t%s -g gpiochip0:17\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *modesOnly {
		for _, m := range ListModes() {
			fmt.Println(m)
		}
		return
	}

	var pc = PTTConfig{Serial: *testSerial, Parallel: *testParallel, Strobe: *testStrobe}
	if pc != (PTTConfig{}) {
		var ctx, stop = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if !ptt_exercise(ctx, pc, *cycles) {
			os.Exit(1)
		}
		return
	}

	list_drivers()
	list_audio()
	list_ptt()
}

func list_drivers() {
	fmt.Printf("Hardware drivers:\n\n")
	fmt.Printf("    %-8s  %-6s  %-6s  %s\n", "name", "duplex", "widths", "max rate")
	fmt.Printf("    %-8s  %-6s  %-6s  %s\n", "----", "------", "------", "--------")
	for _, h := range HardwareDrivers() {
		fmt.Printf("    %-8s  %-6s  %-6s  %d\n", h.Name, IfThenElse(h.FullDuplex, "full", "half"), h.Widths, h.MaxRate)
	}

	fmt.Printf("\nWaveform schemes:\n\n")
	fmt.Printf("    %-14s  %6s  %6s  %-6s  %7s  %7s\n", "name", "rate", "bps", "widths", "tx size", "rx size")
	fmt.Printf("    %-14s  %6s  %6s  %-6s  %7s  %7s\n", "----", "----", "---", "------", "-------", "-------")
	var tx, rx = SchemePairs()
	for i := range tx {
		fmt.Printf("    %-14s  %6d  %6d  %-6s  %7d  %7d\n", tx[i].Name, tx[i].SampleRate, tx[i].BitRate,
			tx[i].Widths&rx[i].Widths, tx[i].StateSize, rx[i].StateSize)
	}
	fmt.Printf("\n")
}

func list_audio() {
	var devs, err = AudioDeviceNames()
	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("Can't list sound devices: %s\n", err)
		return
	}

	fmt.Printf("Sound devices:\n\n")
	fmt.Printf("    %-40s  %3s  %3s  %s\n", "name", "in", "out", "default rate")
	fmt.Printf("    %-40s  %3s  %3s  %s\n", "----", "--", "---", "------------")
	for _, d := range devs {
		fmt.Printf("    %-40s  %3d  %3d  %.0f\n", d.Name, d.Inputs, d.Outputs, d.SampleRate)
	}
	fmt.Printf("\n")
}

func list_ptt() {
	var things, err = PTTInventory()
	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("Can't list PTT devices: %s\n", err)
		return
	}

	fmt.Printf("PTT devices:\n\n")
	fmt.Printf("    %-8s  %-16s  %4s %4s  %-24s  %s\n", "kind", "device", "VID", "PID", "model", "config")
	fmt.Printf("    %-8s  %-16s  %4s %4s  %-24s  %s\n", "----", "------", "---", "---", "-----", "------")
	for _, t := range things {
		var model = t.Model
		if t.Kind == PTT_DEV_GPIO {
			model = fmt.Sprintf("%s, %d lines", t.Label, t.Lines)
		}
		fmt.Printf("    %-8s  %-16s  %4s %4s  %-24s  %s\n", t.Kind, t.Devnode, t.Vendor, t.Product, model, t.Config)
	}
	fmt.Printf("\n")
}

/*-------------------------------------------------------------------
 *
 * Name:	ptt_exercise
 *
 * Purpose:	Key and unkey once per second.
 *
 * Returns:	false if no path could be opened.
 *
 *------------------------------------------------------------------*/

func ptt_exercise(ctx context.Context, pc PTTConfig, cycles int) bool {
	var o = ptt_init("smlist", pc)
	defer o.close()

	var paths = o.enabled()
	if len(paths) == 0 {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("None of the PTT paths could be opened.\n")
		return false
	}

	text_color_set(DW_COLOR_INFO)
	dw_printf("Toggling %v once per second.\n", paths)

	var t = time.NewTicker(time.Second)
	defer t.Stop()

	var on = false
	for n := 0; n < 2*cycles; n++ {
		on = !on
		o.set_output(on, !on)
		dw_printf("PTT %s\n", IfThenElse(on, "on", "off"))

		select {
		case <-ctx.Done():
			o.set_output(false, false)
			return true
		case <-t.C:
		}
	}

	o.set_output(false, false)
	return true
}
