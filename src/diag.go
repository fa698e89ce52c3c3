package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Diagnostics capture.
 *
 * Description:	The demodulators offer samples from a few fixed
 *		points: the raw input, the post filter decision value,
 *		and for PSK the I/Q pair at each symbol.  Only the
 *		point matching the armed mode gets stored.
 *
 *		Once the buffer fills it is held, with DIAG_FLAG_VALID
 *		set, until somebody reads it out and re-arms it.
 *
 *----------------------------------------------------------------*/

type DiagMode int

const (
	DIAG_OFF DiagMode = iota
	DIAG_INPUT
	DIAG_DEMOD
	DIAG_CONSTELLATION
)

var diag_mode_names = []string{"off", "input", "demod", "constellation"}

func (m DiagMode) String() string {
	if m >= 0 && int(m) < len(diag_mode_names) {
		return diag_mode_names[m]
	}
	return "unknown"
}

func ParseDiagMode(s string) (DiagMode, bool) {
	for i, n := range diag_mode_names {
		if n == s {
			return DiagMode(i), true
		}
	}
	return DIAG_OFF, false
}

const (
	DIAG_FLAG_DCDGATE = 1 << iota // only capture while carrier is detected
	DIAG_FLAG_VALID               // buffer is full
)

const DEFAULT_DIAG_CAPACITY = 256

type diag_buffer struct {
	data  []int16
	ptr   int // next slot, negative when not capturing
	mode  DiagMode
	flags int
}

func new_diag_buffer(capacity int) *diag_buffer {
	Assert(capacity > 0)
	return &diag_buffer{data: make([]int16, capacity), ptr: -1}
}

func (d *diag_buffer) arm(mode DiagMode, flags int) {
	d.mode = mode
	d.flags = flags &^ DIAG_FLAG_VALID
	if mode == DIAG_OFF {
		d.ptr = -1
	} else {
		d.ptr = 0
	}
}

func (d *diag_buffer) accepting(mode DiagMode, dcd bool) bool {
	if d.ptr < 0 || d.mode != mode {
		return false
	}
	if d.flags&DIAG_FLAG_DCDGATE != 0 && !dcd {
		return false
	}
	return true
}

func (d *diag_buffer) add(mode DiagMode, dcd bool, v int32) {
	if !d.accepting(mode, dcd) {
		return
	}
	d.data[d.ptr] = int16(clip16(v))
	d.ptr++
	if d.ptr >= len(d.data) {
		d.flags |= DIAG_FLAG_VALID
		d.ptr = -1
	}
}

func (d *diag_buffer) add_pair(mode DiagMode, dcd bool, i int32, q int32) {
	if !d.accepting(mode, dcd) {
		return
	}
	if d.ptr+2 > len(d.data) {
		d.flags |= DIAG_FLAG_VALID
		d.ptr = -1
		return
	}
	d.data[d.ptr] = int16(clip16(i))
	d.data[d.ptr+1] = int16(clip16(q))
	d.ptr += 2
	if d.ptr+2 > len(d.data) {
		d.flags |= DIAG_FLAG_VALID
		d.ptr = -1
	}
}

func (d *diag_buffer) valid() bool {
	return d.flags&DIAG_FLAG_VALID != 0
}

// Number of samples held.
func (d *diag_buffer) count() int {
	if d.ptr >= 0 {
		return d.ptr
	}
	if d.valid() {
		if d.mode == DIAG_CONSTELLATION {
			return len(d.data) &^ 1
		}
		return len(d.data)
	}
	return 0
}

/*------------------------------------------------------------------
 *
 * Name:	drain
 *
 * Purpose:	Take a full capture and start the next one.
 *
 * Returns:	Copy of the samples, nil if not yet full.
 *
 *----------------------------------------------------------------*/

func (d *diag_buffer) drain() []int16 {
	if !d.valid() {
		return nil
	}
	var out = make([]int16, d.count())
	copy(out, d.data)
	d.arm(d.mode, d.flags)
	return out
}
