package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Read and write .WAV files for the file based tools.
 *
 * Description:	Only the plain 44 byte header form with PCM data is
 *		written.  Reading skips any chunks other than "fmt "
 *		and "data".  8 bit unsigned and 16 bit signed, mono or
 *		stereo (the left channel is used).
 *
 *----------------------------------------------------------------*/

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

type wav_header struct { /* .WAV file header. */
	Riff            [4]byte /* "RIFF" */
	Filesize        int32   /* file length - 8 */
	Wave            [4]byte /* "WAVE" */
	Fmt             [4]byte /* "fmt " */
	Fmtsize         int32   /* 16. */
	Wformattag      int16   /* 1 for PCM. */
	Nchannels       int16   /* 1 for mono, 2 for stereo. */
	Nsamplespersec  int32   /* sampling freq, Hz. */
	Navgbytespersec int32   /* = nblockalign * nsamplespersec. */
	Nblockalign     int16   /* = wbitspersample / 8 * nchannels. */
	Wbitspersample  int16   /* 16 or 8. */
	Data            [4]byte /* "data" */
	Datasize        int32   /* number of bytes following. */
}

type wav_chunk struct {
	ID   [4]byte
	Size int32
}

var ErrBadWav = errors.New("not a usable WAV file")

/*------------------------------------------------------------------
 *
 * Name:        WavWriter
 *
 * Purpose:     Mono PCM output file.  Sizes in the header are fixed
 *		up on Close.
 *
 *----------------------------------------------------------------*/

type WavWriter struct {
	f          *os.File
	w          *bufio.Writer
	header     wav_header
	byte_count int
}

func CreateWav(fname string, rate int, bits int) (*WavWriter, error) {
	if bits != 8 && bits != 16 {
		return nil, fmt.Errorf("%w: %d bits per sample", ErrBadWav, bits)
	}

	var f, err = os.Create(fname) //nolint:gosec // We expect to write to a user-supplied file from CLI
	if err != nil {
		return nil, err
	}

	var ww = &WavWriter{f: f}
	var h = &ww.header
	h.Riff = [4]byte{'R', 'I', 'F', 'F'}
	h.Wave = [4]byte{'W', 'A', 'V', 'E'}
	h.Fmt = [4]byte{'f', 'm', 't', ' '}
	h.Fmtsize = 16   // Always 16.
	h.Wformattag = 1 // 1 for PCM.
	h.Nchannels = 1
	h.Nsamplespersec = int32(rate)
	h.Wbitspersample = int16(bits)
	h.Nblockalign = h.Wbitspersample / 8 * h.Nchannels
	h.Navgbytespersec = int32(h.Nblockalign) * h.Nsamplespersec
	h.Data = [4]byte{'d', 'a', 't', 'a'}

	if err = binary.Write(f, binary.LittleEndian, h); err != nil {
		f.Close()
		return nil, err
	}

	ww.w = bufio.NewWriter(f)
	return ww, nil
}

// Write samples, converting to the file's width.
func (ww *WavWriter) WriteSamples(samples []int16) error {
	if ww.header.Wbitspersample == 8 {
		for _, s := range samples {
			if err := ww.w.WriteByte(s16_to_pcm[uint8](int32(s))); err != nil {
				return err
			}
		}
		ww.byte_count += len(samples)
		return nil
	}

	if err := binary.Write(ww.w, binary.LittleEndian, samples); err != nil {
		return err
	}
	ww.byte_count += 2 * len(samples)
	return nil
}

func (ww *WavWriter) Close() error {
	ww.header.Filesize = int32(ww.byte_count + binary.Size(ww.header) - 8)
	ww.header.Datasize = int32(ww.byte_count)

	if err := ww.w.Flush(); err != nil {
		ww.f.Close()
		return err
	}
	if _, err := ww.f.Seek(0, io.SeekStart); err != nil {
		ww.f.Close()
		return err
	}
	if err := binary.Write(ww.f, binary.LittleEndian, &ww.header); err != nil {
		ww.f.Close()
		return err
	}
	return ww.f.Close()
}

/*------------------------------------------------------------------
 *
 * Name:        ReadWav
 *
 * Purpose:     Load a whole file.
 *
 * Returns:	Samples as 16 bit, the sample rate, the file's bits
 *		per sample.
 *
 *----------------------------------------------------------------*/

func ReadWav(r io.Reader) ([]int16, int, int, error) {
	var br = bufio.NewReader(r)

	var riff wav_chunk
	var wave [4]byte
	if err := binary.Read(br, binary.LittleEndian, &riff); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrBadWav, err)
	}
	if err := binary.Read(br, binary.LittleEndian, &wave); err != nil {
		return nil, 0, 0, fmt.Errorf("%w: %w", ErrBadWav, err)
	}
	if string(riff.ID[:]) != "RIFF" || string(wave[:]) != "WAVE" {
		return nil, 0, 0, fmt.Errorf("%w: missing RIFF/WAVE", ErrBadWav)
	}

	var channels, rate, bits int
	for {
		var c wav_chunk
		if err := binary.Read(br, binary.LittleEndian, &c); err != nil {
			return nil, 0, 0, fmt.Errorf("%w: no data chunk: %w", ErrBadWav, err)
		}

		switch string(c.ID[:]) {
		case "fmt ":
			var f struct {
				Wformattag      int16
				Nchannels       int16
				Nsamplespersec  int32
				Navgbytespersec int32
				Nblockalign     int16
				Wbitspersample  int16
			}
			if err := binary.Read(br, binary.LittleEndian, &f); err != nil {
				return nil, 0, 0, fmt.Errorf("%w: %w", ErrBadWav, err)
			}
			if _, err := br.Discard(int(c.Size) - binary.Size(f)); err != nil {
				return nil, 0, 0, fmt.Errorf("%w: %w", ErrBadWav, err)
			}
			if f.Wformattag != 1 {
				return nil, 0, 0, fmt.Errorf("%w: format %d is not PCM", ErrBadWav, f.Wformattag)
			}
			channels, rate, bits = int(f.Nchannels), int(f.Nsamplespersec), int(f.Wbitspersample)
			if channels < 1 || channels > 2 || bits != 8 && bits != 16 {
				return nil, 0, 0, fmt.Errorf("%w: %d channels of %d bits", ErrBadWav, channels, bits)
			}

		case "data":
			if rate == 0 {
				return nil, 0, 0, fmt.Errorf("%w: data before fmt", ErrBadWav)
			}
			var raw = make([]byte, c.Size)
			var n, err = io.ReadFull(br, raw)
			if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, 0, 0, fmt.Errorf("%w: %w", ErrBadWav, err)
			}
			return wav_decode(raw[:n], channels, bits), rate, bits, nil

		default:
			if _, err := br.Discard(int(c.Size) + int(c.Size&1)); err != nil {
				return nil, 0, 0, fmt.Errorf("%w: %w", ErrBadWav, err)
			}
		}
	}
}

func wav_decode(raw []byte, channels int, bits int) []int16 {
	var frame = channels * bits / 8
	var out = make([]int16, len(raw)/frame)
	for i := range out {
		var p = raw[i*frame:]
		if bits == 8 {
			out[i] = int16(pcm_to_s16(p[0]))
		} else {
			out[i] = int16(binary.LittleEndian.Uint16(p))
		}
	}
	return out
}

func ReadWavFile(fname string) ([]int16, int, int, error) {
	var f, err = os.Open(fname)
	if err != nil {
		return nil, 0, 0, err
	}
	defer f.Close()
	return ReadWav(f)
}
