package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:	Per channel interrupt line.
 *
 * Description:	The sound backend raises the line once per fragment.
 *		The handler runs with the line "masked": a raise that
 *		arrives meanwhile is latched in pending and handled
 *		by whoever releases the mask, never by waiting.
 *
 *		The open/close/control side uses critical() for the
 *		same mask so a multi field update is never seen half
 *		done from the interrupt.
 *
 *----------------------------------------------------------------*/

import (
	"sync"
	"sync/atomic"
)

type irq_line struct {
	mu      sync.Mutex
	pending atomic.Bool
	handler func()
}

func new_irq_line(handler func()) *irq_line {
	return &irq_line{handler: handler}
}

// Called from the sound backend.  Never blocks.
func (l *irq_line) raise() {
	l.pending.Store(true)
	l.drain()
}

// Run handlers for anything latched, unless somebody else holds the mask.
func (l *irq_line) drain() {
	for l.pending.Load() {
		if !l.mu.TryLock() {
			return
		}
		for l.pending.Swap(false) {
			l.handler()
		}
		l.mu.Unlock()
	}
}

// Run fn with the interrupt masked.  Interrupts that arrived meanwhile
// are serviced on the way out.
func (l *irq_line) critical(fn func()) {
	l.mu.Lock()
	defer l.drain()
	defer l.mu.Unlock()
	fn()
}
