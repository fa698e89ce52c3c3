package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Test fixture for the modems.
 *
 * Description:	Generate a .WAV file of a transmission, without a
 *		sound card, so the demodulators can be tested with
 *		smtest, or the audio fed into something else.
 *
 *		The bits are either pseudo random (the default) or
 *		bytes given in hex on the command line, sent least
 *		significant bit first.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
)

func SmgenMain() {
	var mode = pflag.StringP("mode", "m", "sbc:afsk1200", "Channel mode, <hardware>:<tx scheme>.")
	var count = pflag.IntP("bits", "n", 4800, "Number of pseudo random bits to send.")
	var seed = pflag.Uint16P("seed", "s", 1, "PRBS seed.")
	var hexData = pflag.StringP("hex", "x", "", "Send these bytes instead of PRBS, e.g. 7e7e1234.")
	var leadMS = pflag.IntP("lead", "d", 100, "Milliseconds of silence before and after.")
	var fragmentMS = pflag.IntP("fragment-ms", "f", DEFAULT_FRAGMENT_MS, "Fragment length in milliseconds.")
	var outputFile = pflag.StringP("output-file", "o", "", "Write to this .wav file.  Required.")
	var help = pflag.BoolP("help", "h", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - Generate modem test audio\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Usage: %s [options] -o file.wav\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Examples:\n")
		fmt.Fprintf(os.Stderr, "\t%s -m wss:fsk9600 -n 96000 -o fsk.wav\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\t%s -m sbc:afsk1200 -x 7e7e7e7e -o flags.wav\n", os.Args[0])
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		os.Exit(0)
	}

	if *outputFile == "" {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("An output file is required.\n")
		pflag.Usage()
		os.Exit(1)
	}

	var bits []uint8
	if *hexData != "" {
		var data, err = hex.DecodeString(strings.ReplaceAll(*hexData, " ", ""))
		if err != nil {
			text_color_set(DW_COLOR_ERROR)
			dw_printf("Bad hex data: %s\n", err)
			os.Exit(1)
		}
		bits = BytesToBits(data)
	} else {
		if *count <= 0 {
			text_color_set(DW_COLOR_ERROR)
			dw_printf("Number of bits must be positive.\n")
			os.Exit(1)
		}
		bits = NewPRBS(*seed).Bits(*count)
	}

	var rec, err = SimTransmit(*mode, bits, SimOptions{FragmentMS: *fragmentMS})
	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("%s\n", err)
		os.Exit(1)
	}

	var w *WavWriter
	w, err = CreateWav(*outputFile, rec.SampleRate, rec.Width)
	if err != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("Can't create %s: %s\n", *outputFile, err)
		os.Exit(1)
	}

	var lead = make([]int16, rec.SampleRate**leadMS/1000)
	var werr = w.WriteSamples(lead)
	if werr == nil {
		werr = w.WriteSamples(rec.Samples)
	}
	if werr == nil {
		werr = w.WriteSamples(lead)
	}
	if cerr := w.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		text_color_set(DW_COLOR_ERROR)
		dw_printf("Writing %s: %s\n", *outputFile, werr)
		os.Exit(1)
	}

	text_color_set(DW_COLOR_INFO)
	dw_printf("%s: %d bits, %d samples at %d/sec, %d bit, %d fragments, %d underruns\n",
		rec.Mode, len(bits), len(rec.Samples), rec.SampleRate, rec.Width,
		rec.Stats.FragmentsModulated, rec.Stats.Underruns)
}

// Unpack bytes least significant bit first.
func BytesToBits(data []byte) []uint8 {
	var out = make([]uint8, 0, 8*len(data))
	for _, b := range data {
		for i := range 8 {
			out = append(out, (b>>i)&1)
		}
	}
	return out
}
