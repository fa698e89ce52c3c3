package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Test fixture for the demodulators.
 *
 * Description:	Run .WAV files through a simulated channel and count
 *		bit errors against the pseudo random sequence smgen
 *		sends by default.
 *
 *		The file's sample rate must be the receive scheme's
 *		own, as with real hardware.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"
)

func SmtestMain() {
	var mode = pflag.StringP("mode", "m", "sbc:afsk1200", "Channel mode.  The receive scheme is the one used.")
	var fragmentMS = pflag.IntP("fragment-ms", "f", DEFAULT_FRAGMENT_MS, "Fragment length in milliseconds.")
	var errorIfLessThan = pflag.IntP("error-if-less-than", "L", -1, "Error if fewer than this many bits were checked.")
	var maxRate = pflag.Float64P("max-error-rate", "e", -1, "Error if the mismatch rate is above this.")
	var showDCD = pflag.BoolP("dcd", "d", false, "Show carrier detect changes.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Demodulator test\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] wav_file_in ...\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "\t%s -m wss:fsk9600 fsk.wav\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\t%s -L 4000 -e 0.001 afsk1.wav afsk2.wav\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if len(pflag.Args()) == 0 {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("Specify .WAV file name on command line.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var start_time = time.Now()
	var total_filetime float64
	var check PRBSCheck

	for _, wavFileName := range pflag.Args() {
		var samples, rate, bits, err = ReadWavFile(wavFileName)
		if err != nil {
			text_color_set(DW_COLOR_ERROR)
			dw_printf("%s: %s\n", wavFileName, err)
			os.Exit(1)
		}

		var one_filetime = float64(len(samples)) / float64(rate)
		total_filetime += one_filetime

		text_color_set(DW_COLOR_INFO)
		dw_printf("%s: %d samples per second.  %d bits per sample.  Duration = %.1f seconds.\n",
			wavFileName, rate, bits, one_filetime)

		var r *SimReception
		r, err = SimReceive(*mode, samples, rate, SimOptions{FragmentMS: *fragmentMS})
		if err != nil {
			text_color_set(DW_COLOR_ERROR)
			dw_printf("%s: %s\n", wavFileName, err)
			os.Exit(1)
		}

		var one PRBSCheck
		one.PutBits(r.Bits)
		check.Bits += one.Bits
		check.Errors += one.Errors
		check.Locks += one.Locks

		dw_printf("%s: %s, %d bits received, %d checked, %d mismatches, %d locks\n",
			wavFileName, r.Mode, len(r.Bits), one.Bits, one.Errors, one.Locks)

		if *showDCD {
			text_color_set(DW_COLOR_DEBUG)
			for i, d := range r.DCD {
				dw_printf("DCD %d: %s\n", i, IfThenElse(d, "on", "off"))
			}
			text_color_set(DW_COLOR_INFO)
		}
	}

	var elapsed = time.Since(start_time)

	text_color_set(DW_COLOR_INFO)
	dw_printf("%d bits checked, %d mismatches, rate %.2e, in %.3f seconds.  %.1f x realtime\n",
		check.Bits, check.Errors, check.Rate(), elapsed.Seconds(), total_filetime/elapsed.Seconds())

	if *errorIfLessThan != -1 && check.Bits < uint64(*errorIfLessThan) {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("\n * * * TEST FAILED: bits checked is less than %d * * * \n", *errorIfLessThan)
		os.Exit(1)
	}
	if *maxRate >= 0 && check.Rate() > *maxRate {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("\n * * * TEST FAILED: mismatch rate is greater than %g * * * \n", *maxRate)
		os.Exit(1)
	}
}
