package soundmodem

// A lightweight reimplementation of Dire Wolf's textcolor.c
//
// Console output from the tools still goes text_color_set / dw_printf,
// but lands in the package logger with the colour picking the level.
// Library code logs to smlog directly with key/value pairs.

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
)

type dw_color_e int

const (
	DW_COLOR_INFO    dw_color_e = iota /* black */
	DW_COLOR_ERROR                     /* red */
	DW_COLOR_REC                       /* green */
	DW_COLOR_DECODED                   /* blue */
	DW_COLOR_XMIT                      /* magenta */
	DW_COLOR_DEBUG                     /* dark_green */
)

var smlog = new_logger(os.Stderr)

var _text_color = DW_COLOR_INFO

func new_logger(w io.Writer) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "soundmodem",
		Level:           log.InfoLevel,
	})
}

// Replace the package logger, e.g. to send it to a rotating file.
func SetLogger(w io.Writer) {
	var level = smlog.GetLevel()
	smlog = new_logger(w)
	smlog.SetLevel(level)
}

// debug, info, warn, error.
func SetLogLevel(level string) error {
	var l, err = log_level_ok(level)
	if err != nil {
		return err
	}
	smlog.SetLevel(l)
	return nil
}

func log_level_ok(level string) (log.Level, error) {
	var l, err = log.ParseLevel(level)
	if err != nil {
		return l, fmt.Errorf("%w: log level %q", ErrBadConfig, level)
	}
	return l, nil
}

func text_color_set(c dw_color_e) {
	_text_color = c
}

func dw_printf(format string, a ...any) {
	var msg = strings.TrimRight(fmt.Sprintf(format, a...), "\n")
	if msg == "" {
		return
	}

	switch _text_color {
	case DW_COLOR_ERROR:
		smlog.Error(msg)
	case DW_COLOR_DEBUG:
		smlog.Debug(msg)
	default:
		smlog.Info(msg)
	}
}
