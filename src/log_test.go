package soundmodem

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureLogWrite(t *testing.T) {
	RedirectLog(t)

	var dir = filepath.Join(t.TempDir(), "captures")
	var l, err = NewCaptureLog(dir, "")
	require.NoError(t, err)
	defer l.Close()

	var when = time.Date(2024, 3, 9, 14, 5, 6, 0, time.UTC)
	var r = DiagnoseResult{Mode: DIAG_INPUT, SampleRate: 9600, OverSampling: 8, Valid: true, Samples: []int16{1, -2, 3}}

	path, err := l.Write("vhf", r, when)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "diag-20240309-140506.csv"), path)

	var rows = read_csv(t, path)
	assert.Equal(t, [][]string{
		{"n", "t", "value"},
		{"0", "0.000000", "1"},
		{"1", "0.000833", "-2"},
		{"2", "0.001667", "3"},
	}, rows)

	// Same day, second capture, constellation this time.
	var c = DiagnoseResult{Mode: DIAG_CONSTELLATION, SampleRate: PSK_SRATE, OverSampling: 4, Samples: []int16{10, 20, 30, 40}}
	path, err = l.Write("vhf", c, when.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"n", "i", "q"}, {"0", "10", "20"}, {"1", "30", "40"}}, read_csv(t, path))

	var index = read_csv(t, filepath.Join(dir, "diag-2024-03-09.log"))
	require.Len(t, index, 3)
	assert.Equal(t, "utime", index[0][0])
	assert.Equal(t, []string{"1709993106", "2024-03-09T14:05:06Z", "vhf", "input", "9600", "3"}, index[1][:6])
	assert.Equal(t, "diag-20240309-140506.csv", index[1][11])
	assert.Equal(t, "constellation", index[2][3])
	assert.Equal(t, "2", index[2][5])
}

func TestCaptureLogNewDay(t *testing.T) {
	RedirectLog(t)

	var dir = t.TempDir()
	var l, err = NewCaptureLog(dir, "%H%M%S.csv")
	require.NoError(t, err)

	var r = DiagnoseResult{Mode: DIAG_DEMOD, Samples: []int16{5}}
	_, err = l.Write("a", r, time.Date(2024, 1, 1, 23, 59, 0, 0, time.UTC))
	require.NoError(t, err)
	_, err = l.Write("a", r, time.Date(2024, 1, 2, 0, 1, 0, 0, time.UTC))
	require.NoError(t, err)
	l.Close()

	assert.Len(t, read_csv(t, filepath.Join(dir, "diag-2024-01-01.log")), 2)
	assert.Len(t, read_csv(t, filepath.Join(dir, "diag-2024-01-02.log")), 2)
	assert.FileExists(t, filepath.Join(dir, "235900.csv"))

	// Reopening appends without a second header.
	l, err = NewCaptureLog(dir, "%H%M%S.csv")
	require.NoError(t, err)
	_, err = l.Write("a", r, time.Date(2024, 1, 2, 0, 2, 0, 0, time.UTC))
	require.NoError(t, err)
	l.Close()
	assert.Len(t, read_csv(t, filepath.Join(dir, "diag-2024-01-02.log")), 3)
}

func TestCaptureLogNotADirectory(t *testing.T) {
	var f = filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(f, nil, 0o600))

	var _, err = NewCaptureLog(f, "")
	assert.Error(t, err)

	_, err = NewCaptureLog(filepath.Join(t.TempDir(), "a", "b"), "")
	assert.Error(t, err, "only one level is created")
}

func read_csv(t *testing.T, path string) [][]string {
	t.Helper()
	var data, err = os.ReadFile(path)
	require.NoError(t, err)
	rows, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
	require.NoError(t, err)
	return rows
}
