package soundmodem

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummarizeTone(t *testing.T) {
	// 1200 values/sec carrying a 150 Hz tone.
	var r = DiagnoseResult{Mode: DIAG_DEMOD, SampleRate: 9600, OverSampling: 8}
	for n := range 256 {
		r.Samples = append(r.Samples, int16(1000*math.Sin(2*math.Pi*150*float64(n)/1200)))
	}

	var s = SummarizeCapture(r)
	assert.Equal(t, 256, s.Count)
	assert.Equal(t, 1200.0, s.Rate)
	assert.InDelta(t, 0, s.Mean, 5)
	assert.InDelta(t, 1000/math.Sqrt2, s.RMS, 5)
	assert.InDelta(t, 1000, s.Peak, 1)
	assert.Len(t, s.Spectrum, 129)
	assert.InDelta(t, 150, s.PeakHz, 1200.0/256)
}

func TestSummarizeConstellation(t *testing.T) {
	var r = DiagnoseResult{Mode: DIAG_CONSTELLATION, SampleRate: PSK_SRATE, OverSampling: 4}
	// Eight points on a circle, one per sector, plus a spare I value.
	for k := range 8 {
		var a = (float64(k) + 0.5) * math.Pi / 4
		r.Samples = append(r.Samples, int16(500*math.Cos(a)), int16(500*math.Sin(a)))
	}
	r.Samples = append(r.Samples, 7)

	var s = SummarizeCapture(r)
	assert.Equal(t, 8, s.Count)
	assert.Equal(t, [8]int{1, 1, 1, 1, 1, 1, 1, 1}, s.Sectors)
	assert.InDelta(t, 500, s.Mean, 1)
	assert.Nil(t, s.Spectrum)
}

func TestSummarizeEmpty(t *testing.T) {
	var s = SummarizeCapture(DiagnoseResult{Mode: DIAG_INPUT})
	assert.Zero(t, s.Count)
	assert.Zero(t, s.Rate)
	assert.Nil(t, s.Spectrum)
}
