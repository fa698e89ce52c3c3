package soundmodem

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run command with stdout captured and check what it printed.
// Log output is not captured, that goes through smlog.
func AssertOutputContains(t *testing.T, command func(), expectedOutputContains ...string) {
	t.Helper()

	var oldStdout = os.Stdout
	defer func() {
		os.Stdout = oldStdout
	}()

	var r, w, _ = os.Pipe()
	os.Stdout = w

	var outputBytes []byte
	var readErr error
	var done = make(chan struct{})
	go func() {
		outputBytes, readErr = io.ReadAll(r)
		close(done)
	}()

	command()

	w.Close() //nolint:gosec
	<-done

	os.Stdout = oldStdout

	require.NoError(t, readErr)

	var outputString = string(outputBytes)
	for _, s := range expectedOutputContains {
		assert.Contains(t, outputString, s)
	}
}

// Send the package logger to a buffer for the rest of the test.
func RedirectLog(t *testing.T) *bytes.Buffer {
	t.Helper()

	var old = smlog
	var buf = new(bytes.Buffer)
	SetLogger(buf)
	t.Cleanup(func() {
		smlog = old
	})
	return buf
}
