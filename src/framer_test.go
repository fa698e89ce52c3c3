package soundmodem

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func pack_bits(bits []uint8) []byte {
	var out = make([]byte, (len(bits)+7)/8)
	for i, b := range bits {
		out[i/8] |= (b & 1) << (i % 8)
	}
	return out
}

func TestPRBSGolden(t *testing.T) {
	var p = NewPRBS(1)
	assert.Equal(t, "00600028001e8008", hex.EncodeToString(pack_bits(p.Bits(64))))
}

func TestPRBSPeriod(t *testing.T) {
	var p = NewPRBS(1)
	var n = 0
	for {
		p.Bit()
		n++
		if p.reg == 1 {
			break
		}
		require.Less(t, n, 40000)
	}
	assert.Equal(t, 32767, n)

	// Zero would be stuck.
	assert.Equal(t, uint16(1), NewPRBS(0).reg)
	assert.Equal(t, uint16(1), NewPRBS(0x8000).reg)
}

func TestPRBSRecurrence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		var seed = rapid.Uint16Range(1, 0x7fff).Draw(t, "seed")
		var bits = NewPRBS(seed).Bits(200)
		for n := 15; n < len(bits); n++ {
			assert.Equal(t, bits[n-15]^bits[n-14], bits[n], "bit %d", n)
		}
	})
}

func TestBytesToBits(t *testing.T) {
	assert.Equal(t, []uint8{1, 0, 1, 0, 0, 1, 0, 1}, BytesToBits([]byte{0xa5}))
	assert.Equal(t, []byte{0x12, 0x34}, pack_bits(BytesToBits([]byte{0x12, 0x34})))
}

func TestPatternFramer(t *testing.T) {
	var f = NewPatternFramer([]uint8{1, 1, 0, 1})
	f.Tail = 16

	assert.True(t, f.PTT())
	assert.False(t, f.Done())

	// 1101 in the low bits, then a flag and a bit.
	assert.Equal(t, uint16(0xe7eb), f.GetTxBits())
	assert.True(t, f.Done())
	assert.True(t, f.PTT(), "12 fill bits so far, tail is 16")

	f.GetTxBits()
	assert.False(t, f.PTT())

	f.Hold(true)
	f.Send([]uint8{1})
	assert.False(t, f.PTT())
	f.Hold(false)
	assert.True(t, f.PTT())

	f.PutRxBit(3)
	f.PutRxBit(0)
	f.SetDCD(true)
	f.Arbitrate()
	assert.Equal(t, []uint8{1, 0}, f.Received())
	assert.Equal(t, []bool{true}, f.DCDChanges())
	assert.Equal(t, 1, f.Arbitrations())

	assert.False(t, NewPatternFramer(nil).PTT())
}

func TestBitPipeTransmit(t *testing.T) {
	var p = NewBitPipe()
	p.TxDelay = 1
	p.TxTail = 1

	assert.False(t, p.PTT(), "nothing queued")
	require.NoError(t, p.Feed(bytes.NewReader([]byte{0x12, 0x34})))

	require.True(t, p.PTT())
	assert.Equal(t, uint16(0x127e), p.GetTxBits())
	assert.Equal(t, uint16(0x7e34), p.GetTxBits())
	assert.True(t, p.PTT(), "tail flag still in the modulator")

	// Tail flag, then flag fill for the rest of the word.
	assert.Equal(t, uint16(0x7e7e), p.GetTxBits())
	assert.False(t, p.PTT())

	// The modulator may ask for more while the queue plays out.
	assert.Equal(t, uint16(0x7e7e), p.GetTxBits())
	assert.Equal(t, uint16(0x7e7e), p.GetTxBits())
}

func TestBitPipeWaitsForClearChannel(t *testing.T) {
	var p = NewBitPipe()
	require.NoError(t, p.Feed(bytes.NewReader([]byte{0x55})))

	p.SetDCD(true)
	assert.False(t, p.PTT())
	p.SetDCD(false)
	assert.True(t, p.PTT())

	// Once started, carrier does not stop it.
	p.SetDCD(true)
	assert.True(t, p.PTT())
}

func TestBitPipeReceive(t *testing.T) {
	var p = NewBitPipe()
	for _, b := range BytesToBits([]byte{0xa5, 0x3c}) {
		p.PutRxBit(int(b))
	}
	// A partial byte is not delivered.
	p.PutRxBit(1)
	p.Close()

	var out bytes.Buffer
	require.NoError(t, p.Drain(&out))
	assert.Equal(t, []byte{0xa5, 0x3c}, out.Bytes())
	assert.Zero(t, p.Dropped())
}

func TestBitPipeDropsWhenFull(t *testing.T) {
	var p = NewBitPipe()
	var n = cap(p.rxq) + 3
	for range n * 8 {
		p.PutRxBit(1)
	}
	assert.Equal(t, uint64(3), p.Dropped())
}
