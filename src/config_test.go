package soundmodem

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
log:
  level: debug
metrics:
  listen: ":9110"
channels:
  - name: vhf
    mode: "sbc:afsk1200"
    input_device: "USB Audio"
    ptt:
      serial: /dev/ttyUSB0
    tx_input: /run/soundmodem/vhf.tx
    rx_output: /run/soundmodem/vhf.rx
  - mode: "wssfdx:fsk9600"
    backend: sim
    fragments: 8
    fragment_ms: 20
`

func TestParseConfig(t *testing.T) {
	var c, err = ParseConfig(strings.NewReader(sampleConfig))
	require.NoError(t, err)

	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 10, c.Log.MaxSizeMB)
	assert.Equal(t, ":9110", c.Metrics.Listen)
	assert.Equal(t, "/metrics", c.Metrics.Path)

	require.Len(t, c.Channels, 2)
	var vhf = c.Channels[0]
	assert.Equal(t, "vhf", vhf.Name)
	assert.Equal(t, "portaudio", vhf.Backend)
	assert.Equal(t, "USB Audio", vhf.InputDevice)
	assert.Equal(t, "/dev/ttyUSB0", vhf.PTT.Serial)
	assert.Equal(t, DEFAULT_FRAGMENTS, vhf.Fragments)
	assert.Equal(t, DEFAULT_FRAGMENT_MS, vhf.FragmentMS)
	assert.Equal(t, DEFAULT_DIAG_CAPACITY, vhf.DiagCapacity)

	var second = c.Channels[1]
	assert.Equal(t, "ch1", second.Name)
	assert.Equal(t, "sim", second.Backend)
	assert.Equal(t, 8, second.Fragments)
	assert.Equal(t, 20, second.FragmentMS)
}

func TestParseConfigEmpty(t *testing.T) {
	var c, err = ParseConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, c.Channels)
	assert.Equal(t, "info", c.Log.Level)
}

func TestParseConfigRejects(t *testing.T) {
	var cases = map[string]string{
		"unknown key":    "channels:\n  - mode: sbc:afsk1200\n    colour: red\n",
		"no mode":        "channels:\n  - name: a\n",
		"bad mode":       "channels:\n  - mode: sbc:fsk9600_5\n",
		"duplicate name": "channels:\n  - name: a\n    mode: sbc:afsk1200\n  - name: a\n    mode: sbc:afsk1200\n",
		"one fragment":   "channels:\n  - mode: sbc:afsk1200\n    fragments: 1\n",
		"long fragment":  "channels:\n  - mode: sbc:afsk1200\n    fragment_ms: 5000\n",
		"tiny diag":      "channels:\n  - mode: sbc:afsk1200\n    diag_capacity: 1\n",
		"backend":        "channels:\n  - mode: sbc:afsk1200\n    backend: oss\n",
		"log level":      "log:\n  level: chatty\n",
		"not yaml":       "channels: [",
	}

	for name, text := range cases {
		var _, err = ParseConfig(strings.NewReader(text))
		assert.ErrorIs(t, err, ErrBadConfig, name)
	}
}

func TestLoadConfig(t *testing.T) {
	RedirectLog(t)

	var fname = filepath.Join(t.TempDir(), "soundmodem.yaml")
	require.NoError(t, os.WriteFile(fname, []byte(sampleConfig), 0o600))

	var c, err = LoadConfig(fname)
	require.NoError(t, err)
	assert.Len(t, c.Channels, 2)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
