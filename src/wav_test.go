package soundmodem

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestWavRoundTrip16(t *testing.T) {
	var fname = filepath.Join(t.TempDir(), "rt.wav")

	rapid.Check(t, func(t *rapid.T) {
		var samples = rapid.SliceOfN(rapid.Int16(), 0, 2000).Draw(t, "samples")
		var rate = rapid.SampledFrom([]int{9600, 19200, 44100, 48000}).Draw(t, "rate")

		var ww, err = CreateWav(fname, rate, 16)
		require.NoError(t, err)
		require.NoError(t, ww.WriteSamples(samples))
		require.NoError(t, ww.Close())

		got, grate, bits, err := ReadWavFile(fname)
		require.NoError(t, err)
		assert.Equal(t, rate, grate)
		assert.Equal(t, 16, bits)
		assert.Equal(t, len(samples), len(got))
		for i := range samples {
			assert.Equal(t, samples[i], got[i])
		}
	})
}

func TestWav8Bit(t *testing.T) {
	var fname = filepath.Join(t.TempDir(), "a.wav")

	var ww, err = CreateWav(fname, 9600, 8)
	require.NoError(t, err)
	require.NoError(t, ww.WriteSamples([]int16{0, S16_MAX, S16_MIN, 0x1234}))
	require.NoError(t, ww.Close())

	raw, err := os.ReadFile(fname)
	require.NoError(t, err)
	assert.Len(t, raw, 44+4)
	assert.Equal(t, uint32(40), binary.LittleEndian.Uint32(raw[4:]), "RIFF size")
	assert.Equal(t, []byte{0x80, 0xff, 0x00, 0x92}, raw[44:])

	got, rate, bits, err := ReadWavFile(fname)
	require.NoError(t, err)
	assert.Equal(t, 9600, rate)
	assert.Equal(t, 8, bits)
	assert.Equal(t, []int16{0, 0x7f00, -0x8000, 0x1200}, got)
}

func TestWavBadWidth(t *testing.T) {
	var _, err = CreateWav(filepath.Join(t.TempDir(), "x.wav"), 9600, 24)
	assert.ErrorIs(t, err, ErrBadWav)
}

// Hand built file with an extra chunk and a stereo 16 bit body.
func TestWavStereoAndExtraChunk(t *testing.T) {
	var b bytes.Buffer
	var le = binary.LittleEndian

	b.WriteString("RIFF")
	binary.Write(&b, le, uint32(0))
	b.WriteString("WAVE")

	b.WriteString("LIST")
	binary.Write(&b, le, uint32(3))
	b.Write([]byte{1, 2, 3, 0}) // odd size, padded

	b.WriteString("fmt ")
	binary.Write(&b, le, uint32(18))
	binary.Write(&b, le, []int16{1, 2})
	binary.Write(&b, le, []int32{22050, 22050 * 4})
	binary.Write(&b, le, []int16{4, 16, 0})

	b.WriteString("data")
	binary.Write(&b, le, uint32(8))
	binary.Write(&b, le, []int16{100, -1, -200, -1})

	var got, rate, bits, err = ReadWav(&b)
	require.NoError(t, err)
	assert.Equal(t, 22050, rate)
	assert.Equal(t, 16, bits)
	assert.Equal(t, []int16{100, -200}, got, "left channel only")
}

func TestWavGarbage(t *testing.T) {
	for _, in := range [][]byte{
		nil,
		[]byte("RIFF\x00\x00\x00\x00WAVX"),
		[]byte("RIFF\x00\x00\x00\x00WAVEdata\x04\x00\x00\x00\x00\x00\x00\x00"),
	} {
		var _, _, _, err = ReadWav(bytes.NewReader(in))
		assert.ErrorIs(t, err, ErrBadWav)
	}
}
