package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Boil a diagnostics capture down to a few numbers.
 *
 * Description:	Input and demod captures are one value per bit, so
 *		their time axis runs at SampleRate / OverSampling.
 *		They get level statistics and a windowed magnitude
 *		spectrum.  Constellation captures are I,Q pairs and
 *		get statistics of the magnitude and a count of
 *		points per 45 degree sector instead.
 *
 *----------------------------------------------------------------*/

import (
	"math"
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

type CaptureSummary struct {
	Count    int
	Rate     float64 // values per second
	Mean     float64
	StdDev   float64
	RMS      float64
	Peak     float64
	PeakHz   float64   // strongest non-DC spectral line
	Spectrum []float64 // magnitude, bins 0 .. N/2
	Sectors  [8]int    // constellation points per 45 degrees
}

func SummarizeCapture(r DiagnoseResult) CaptureSummary {
	var s CaptureSummary

	if r.OverSampling > 0 {
		s.Rate = float64(r.SampleRate) / float64(r.OverSampling)
	}

	var x []float64
	if r.Mode == DIAG_CONSTELLATION {
		for i := 0; i+1 < len(r.Samples); i += 2 {
			var c = complex(float64(r.Samples[i]), float64(r.Samples[i+1]))
			x = append(x, cmplx.Abs(c))
			var a = cmplx.Phase(c)
			if a < 0 {
				a += 2 * math.Pi
			}
			s.Sectors[int(a/(math.Pi/4))%8]++
		}
	} else {
		x = make([]float64, len(r.Samples))
		for i, v := range r.Samples {
			x[i] = float64(v)
		}
	}

	s.Count = len(x)
	if s.Count == 0 {
		return s
	}

	s.Mean, s.StdDev = stat.MeanStdDev(x, nil)
	s.RMS = math.Sqrt(floats.Dot(x, x) / float64(s.Count))
	s.Peak = math.Max(floats.Max(x), -floats.Min(x))

	if r.Mode == DIAG_CONSTELLATION || s.Count < 4 {
		return s
	}

	var w = make([]float64, len(x))
	copy(w, x)
	floats.AddConst(-s.Mean, w)
	window.Apply(w, window.Hann)

	var spec = fft.FFTReal(w)
	s.Spectrum = make([]float64, len(spec)/2+1)
	for k := range s.Spectrum {
		s.Spectrum[k] = cmplx.Abs(spec[k])
	}

	if len(s.Spectrum) > 1 {
		var k = floats.MaxIdx(s.Spectrum[1:]) + 1
		s.PeakHz = float64(k) * s.Rate / float64(len(x))
	}

	return s
}
