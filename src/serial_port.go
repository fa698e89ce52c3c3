package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Interface to serial port, hiding operating system differences.
 *
 * Description:	Here the serial port is only a bundle of control lines
 *		for PTT.  No data is ever sent, so the port is opened
 *		without becoming the controlling terminal and without
 *		waiting for carrier, and the modem control lines are
 *		set directly with TIOCMBIS / TIOCMBIC.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"strings"

	"github.com/pkg/term/termios"
	"golang.org/x/sys/unix"
)

type serial_port struct {
	name string
	fd   int
}

/*-------------------------------------------------------------------
 *
 * Name:	serial_port_open
 *
 * Purpose:	Open serial port.
 *
 * Inputs:	devicename	- Usually like /dev/ttyS0.
 *				  "COMn" also allowed and converted to /dev/ttyS(n-1)
 *				  Could be /dev/ttyUSB0 for a USB adapter.
 *
 * Returns 	Handle for serial port.  The port has answered a
 *		TIOCMGET, which is the probe.
 *
 *---------------------------------------------------------------*/

func serial_port_open(devicename string) (*serial_port, error) {

	/* Translate Windows device name into Linux name. */
	/* COM1 -> /dev/ttyS0, etc. */

	var linuxname = devicename
	if len(devicename) > 3 && strings.EqualFold(devicename[:3], "COM") {
		var n int
		if _, err := fmt.Sscanf(devicename[3:], "%d", &n); err == nil {
			linuxname = fmt.Sprintf("/dev/ttyS%d", max(n, 1)-1)
			smlog.Debug("Converted serial port name", "from", devicename, "to", linuxname)
		}
	}

	var fd, err = unix.Open(linuxname, unix.O_RDWR|unix.O_NOCTTY|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("could not open serial port %s: %w", linuxname, err)
	}

	if _, err = termios.Tiocmget(uintptr(fd)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%s is not a serial port: %w", linuxname, err)
	}

	return &serial_port{name: linuxname, fd: fd}, nil
}

func (s *serial_port) set_line(bit int, on bool) error {
	if on {
		return termios.Tiocmbis(uintptr(s.fd), bit)
	}
	return termios.Tiocmbic(uintptr(s.fd), bit)
}

func (s *serial_port) set_rts(on bool) error {
	return s.set_line(unix.TIOCM_RTS, on)
}

func (s *serial_port) set_dtr(on bool) error {
	return s.set_line(unix.TIOCM_DTR, on)
}

// Hold TxD in the spacing state.
func (s *serial_port) set_break(on bool) error {
	if on {
		return unix.IoctlSetInt(s.fd, unix.TIOCSBRK, 0)
	}
	return unix.IoctlSetInt(s.fd, unix.TIOCCBRK, 0)
}

/*-------------------------------------------------------------------
 *
 * Name:        Close
 *
 * Purpose:     Drop all lines and close the device.
 *
 *--------------------------------------------------------------------*/

func (s *serial_port) Close() error {
	if s == nil || s.fd < 0 {
		return nil
	}
	s.set_break(false)
	termios.Tiocmbic(uintptr(s.fd), unix.TIOCM_RTS|unix.TIOCM_DTR)
	var err = unix.Close(s.fd)
	s.fd = -1
	return err
}

/* end serial_port.go */
