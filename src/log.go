package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Save diagnostics captures to disk.
 *
 * Description: Each capture goes to its own CSV file, named from a
 *		strftime pattern so a directory of them sorts by time.
 *		A one line summary of every capture is appended to a
 *		daily index file in the same directory, in a format
 *		suitable for importing into a spreadsheet.
 *
 *------------------------------------------------------------------*/

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/lestrrat-go/strftime"
)

const DEFAULT_CAPTURE_PATTERN = "diag-%Y%m%d-%H%M%S.csv"
const CAPTURE_INDEX_PATTERN = "diag-%Y-%m-%d.log"

type CaptureLog struct {
	dir     string
	pattern *strftime.Strftime
	index   *strftime.Strftime

	fp         *os.File // index file, kept open
	open_fname string
}

/*------------------------------------------------------------------
 *
 * Function:	NewCaptureLog
 *
 * Purpose:	Prepare the capture directory.
 *
 * Inputs:	dir	- Directory.  Created if missing, parent must exist.
 *		pattern	- strftime pattern for capture file names.
 *			  Empty for DEFAULT_CAPTURE_PATTERN.
 *
 *------------------------------------------------------------------*/

func NewCaptureLog(dir string, pattern string) (*CaptureLog, error) {
	if pattern == "" {
		pattern = DEFAULT_CAPTURE_PATTERN
	}

	var p, err = strftime.New(pattern)
	if err != nil {
		return nil, fmt.Errorf("capture file pattern %q: %w", pattern, err)
	}
	idx, err := strftime.New(CAPTURE_INDEX_PATTERN)
	if err != nil {
		return nil, err
	}

	var stat, statErr = os.Stat(dir)
	if statErr == nil {
		if !stat.IsDir() {
			return nil, fmt.Errorf("capture location %q is not a directory", dir)
		}
	} else {
		// We don't create multiple levels like "mkdir -p"
		if err = os.Mkdir(dir, 0755); err != nil {
			return nil, err
		}
		smlog.Info("Capture directory created", "dir", dir)
	}

	return &CaptureLog{dir: dir, pattern: p, index: idx}, nil
}

/*------------------------------------------------------------------
 *
 * Function:	Write
 *
 * Purpose:	Save one capture and its summary.
 *
 * Returns:	Full path of the capture file.
 *
 *------------------------------------------------------------------*/

func (l *CaptureLog) Write(channel string, r DiagnoseResult, now time.Time) (string, error) {
	var now_utc = now.UTC()
	var full_path = filepath.Join(l.dir, l.pattern.FormatString(now_utc))

	var f, err = os.Create(full_path) //nolint:gosec
	if err != nil {
		return "", err
	}

	var w = csv.NewWriter(f)
	if r.Mode == DIAG_CONSTELLATION {
		w.Write([]string{"n", "i", "q"})
		for n := 0; n+1 < len(r.Samples); n += 2 {
			w.Write([]string{strconv.Itoa(n / 2), strconv.Itoa(int(r.Samples[n])), strconv.Itoa(int(r.Samples[n+1]))})
		}
	} else {
		var step = 0.0
		if r.SampleRate > 0 {
			step = float64(r.OverSampling) / float64(r.SampleRate)
		}
		w.Write([]string{"n", "t", "value"})
		for n, v := range r.Samples {
			w.Write([]string{strconv.Itoa(n), strconv.FormatFloat(float64(n)*step, 'f', 6, 64), strconv.Itoa(int(v))})
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		f.Close()
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}

	l.write_index(channel, r, filepath.Base(full_path), now_utc)
	return full_path, nil
}

func (l *CaptureLog) write_index(channel string, r DiagnoseResult, fname string, now time.Time) {
	var name = l.index.FormatString(now)

	// Close current file if name has changed

	if l.fp != nil && name != l.open_fname {
		l.Close()
	}

	if l.fp == nil {
		var full_path = filepath.Join(l.dir, name)

		// Write a header only if this will be the first line.
		var _, statErr = os.Stat(full_path)
		var already_there = statErr == nil

		var f, err = os.OpenFile(full_path, os.O_RDWR|os.O_APPEND|os.O_CREATE, 0644) //nolint:gosec
		if err != nil {
			smlog.Error("Can't open capture index", "file", full_path, "err", err)
			return
		}
		l.fp = f
		l.open_fname = name

		if !already_there {
			fmt.Fprintf(l.fp, "utime,isotime,chan,mode,rate,count,mean,stddev,rms,peak,peak_hz,file\n")
		}
	}

	var s = SummarizeCapture(r)
	var w = csv.NewWriter(l.fp)
	w.Write([]string{
		strconv.FormatInt(now.Unix(), 10),
		now.Format("2006-01-02T15:04:05Z"),
		channel,
		r.Mode.String(),
		strconv.Itoa(r.SampleRate),
		strconv.Itoa(s.Count),
		strconv.FormatFloat(s.Mean, 'f', 1, 64),
		strconv.FormatFloat(s.StdDev, 'f', 1, 64),
		strconv.FormatFloat(s.RMS, 'f', 1, 64),
		strconv.FormatFloat(s.Peak, 'f', 0, 64),
		strconv.FormatFloat(s.PeakHz, 'f', 1, 64),
		fname,
	})
	w.Flush()
}

func (l *CaptureLog) Close() {
	if l.fp != nil {
		l.fp.Close()
		l.fp = nil
		l.open_fname = ""
	}
}
