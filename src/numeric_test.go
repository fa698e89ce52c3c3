package soundmodem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestDDSTable(t *testing.T) {
	assert.Equal(t, int32(32767), dds_cos(0))
	assert.Equal(t, int32(-32767), dds_cos(PHASE_MODULUS/2))
	assert.Equal(t, int32(0), dds_cos(PHASE_MODULUS/4))
	assert.Equal(t, int32(0), dds_sin(0))
	assert.Equal(t, int32(32767), dds_sin(PHASE_MODULUS/4))

	// Only the low 16 bits matter.
	assert.Equal(t, dds_cos(1234), dds_cos(1234+PHASE_MODULUS))
}

func TestPhaseIncrement(t *testing.T) {
	assert.Equal(t, uint32(8192), phase_increment(1200, 9600))
	assert.Equal(t, uint32(16384), phase_increment(2400, 9600))
	assert.Equal(t, uint32(8192), phase_increment(2400, PSK_SRATE))
}

func TestClip(t *testing.T) {
	assert.Equal(t, int32(S16_MAX), clip16(100000))
	assert.Equal(t, int32(S16_MIN), clip16(-100000))
	assert.Equal(t, int32(-5), clip16(-5))
}

func TestPCMConversion(t *testing.T) {
	assert.Equal(t, uint8(U8_SILENCE), pcm_silence[uint8]())
	assert.Equal(t, int16(0), pcm_silence[int16]())

	assert.Equal(t, uint8(0), s16_to_pcm[uint8](S16_MIN))
	assert.Equal(t, uint8(255), s16_to_pcm[uint8](S16_MAX))
	assert.Equal(t, int32(0), pcm_to_s16(uint8(0x80)))
	assert.Equal(t, int32(-32768), pcm_to_s16(uint8(0)))

	rapid.Check(t, func(t *rapid.T) {
		var v = rapid.Int16().Draw(t, "v")

		assert.Equal(t, int32(v), pcm_to_s16(s16_to_pcm[int16](int32(v))))

		// 8 bit keeps the top byte.
		var back = pcm_to_s16(s16_to_pcm[uint8](int32(v)))
		assert.Equal(t, int32(v)&^0xff, back)
	})
}

func TestIatan2(t *testing.T) {
	assert.Equal(t, uint32(0), iatan2(0, 0))
	assert.Equal(t, uint32(0), iatan2(0, 100))
	assert.Equal(t, uint32(16384), iatan2(100, 0))
	assert.Equal(t, uint32(32768), iatan2(0, -100))
	assert.Equal(t, uint32(49152), iatan2(-100, 0))
	assert.Equal(t, uint32(8192), iatan2(100, 100))

	rapid.Check(t, func(t *rapid.T) {
		var p = rapid.Uint32Range(0, PHASE_MASK).Draw(t, "phase")
		var i = dds_cos(p)
		var q = dds_sin(p)

		var got = iatan2(q, i)
		var diff = int32(int16(uint16(got - p)))
		assert.LessOrEqual(t, abs32(diff), int32(200), "phase %d came back as %d", p, got)
	})
}

func TestHweight(t *testing.T) {
	assert.Equal(t, int32(0), hweight(0))
	assert.Equal(t, int32(32), hweight(0xffffffff))
	assert.Equal(t, int32(3), hweight(0x70))
}
