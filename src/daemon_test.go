package soundmodem

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunDaemonSim(t *testing.T) {
	RedirectLog(t)

	var dir = t.TempDir()
	var txin = filepath.Join(dir, "vhf.tx")
	var rxout = filepath.Join(dir, "vhf.rx")
	require.NoError(t, os.WriteFile(txin, []byte("hello, world"), 0o600))

	var text = strings.Join([]string{
		"channels:",
		"  - name: vhf",
		"    mode: sbc:afsk1200",
		"    backend: sim",
		"    tx_input: " + txin,
		"    rx_output: " + rxout,
	}, "\n")
	var cfg, err = ParseConfig(strings.NewReader(text))
	require.NoError(t, err)

	var ctx, cancel = context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, run_daemon(ctx, cfg))
	assert.FileExists(t, rxout)
}

func TestRunDaemonNothingStarts(t *testing.T) {
	RedirectLog(t)

	var cfg = &Config{Channels: []ChannelConfig{{Name: "x", Mode: "sbc:afsk1200", Backend: "oss"}}}
	var err = run_daemon(context.Background(), cfg)
	assert.ErrorContains(t, err, "no channel could be started")
}

func TestLogSetup(t *testing.T) {
	RedirectLog(t)

	var fname = filepath.Join(t.TempDir(), "soundmodem.log")
	var closer = log_setup(LogConfig{Level: "warn", File: fname, MaxSizeMB: 1})
	require.NotNil(t, closer)

	smlog.Info("not this")
	smlog.Warn("but this")
	require.NoError(t, closer.Close())

	var data, err = os.ReadFile(fname)
	require.NoError(t, err)
	assert.Contains(t, string(data), "but this")
	assert.NotContains(t, string(data), "not this")

	assert.Nil(t, log_setup(LogConfig{Level: "info"}))
}

func TestIsFifo(t *testing.T) {
	var f = filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(f, nil, 0o600))
	assert.False(t, is_fifo(f))
	assert.False(t, is_fifo(filepath.Join(t.TempDir(), "missing")))
}

func TestDaemonLogChanges(t *testing.T) {
	var buf = RedirectLog(t)
	smlog.SetLevel(log.DebugLevel)

	var dc = &daemon_channel{ch: NewChannel(ChannelConfig{Name: "hf"}, NewPatternFramer(nil), NewSimDevice(nil))}

	dc.log_changes(ChannelStats{PTT: true, TxBits: 160})
	dc.log_changes(ChannelStats{PTT: true, TxBits: 320})
	dc.log_changes(ChannelStats{TxBits: 320, Underruns: 2, DCD: true})

	var out = buf.String()
	assert.Equal(t, 1, strings.Count(out, "Transmitter keyed"))
	assert.Equal(t, 1, strings.Count(out, "Transmitter released"))
	assert.Contains(t, out, "Carrier detected")
	assert.Contains(t, out, "underruns=2")
	assert.Equal(t, uint64(2), dc.last.Underruns)
}
