package soundmodem

/*------------------------------------------------------------------
 *
 * Purpose:   	Take inventory of things a PTT line can be hung on.
 *
 * Description:	Serial ports (RTS, DTR and break), parallel ports and
 *		GPIO chips, as udev sees them.  USB serial adapters and
 *		the All in One cable show up as ttyUSB / ttyACM with
 *		the product name of the parent USB device, which is
 *		usually enough to tell which radio cable is which.
 *
 *		The ttyS ports on a PC are always enumerated even when
 *		nothing is fitted, so those without a driver are left
 *		out.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jochenvg/go-udev"
	"github.com/warthog618/go-gpiocdev"
)

type PTTDeviceKind string

const (
	PTT_DEV_SERIAL   PTTDeviceKind = "serial"
	PTT_DEV_PARALLEL PTTDeviceKind = "parallel"
	PTT_DEV_GPIO     PTTDeviceKind = "gpio"
)

type PTTDevice struct {
	Kind    PTTDeviceKind
	Devnode string // e.g. /dev/ttyUSB0, or the chip name for GPIO
	Vendor  string // USB vendor id, four hex digits
	Product string // USB product id, four hex digits
	Model   string
	Lines   int    // GPIO only
	Label   string // GPIO only
	Config  string // value to put in the ptt section
}

var ErrNoUdev = errors.New("udev enumeration failed")

// Subsystems to look through, and what each one is good for.
var ptt_subsystems = []struct {
	subsystem string
	kind      PTTDeviceKind
}{
	{"tty", PTT_DEV_SERIAL},
	{"parport", PTT_DEV_PARALLEL},
	{"gpio", PTT_DEV_GPIO},
}

/*-------------------------------------------------------------------
 *
 * Name:	PTTInventory
 *
 * Purpose:	List the devices present.
 *
 * Returns:	Sorted by kind then device node.
 *
 *------------------------------------------------------------------*/

func PTTInventory() ([]PTTDevice, error) {
	var u udev.Udev
	var things []PTTDevice

	for _, s := range ptt_subsystems {
		var e = u.NewEnumerate()
		if err := e.AddMatchSubsystem(s.subsystem); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoUdev, s.subsystem, err)
		}
		if err := e.AddMatchIsInitialized(); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoUdev, s.subsystem, err)
		}

		var devices, err = e.Devices()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrNoUdev, s.subsystem, err)
		}

		for _, d := range devices {
			var t, ok = inventory_device(s.kind, d)
			if ok {
				things = append(things, t)
			}
		}
	}

	sort.Slice(things, func(i, j int) bool {
		if things[i].Kind != things[j].Kind {
			return things[i].Kind < things[j].Kind
		}
		return things[i].Devnode < things[j].Devnode
	})
	return things, nil
}

func inventory_device(kind PTTDeviceKind, d *udev.Device) (PTTDevice, bool) {
	var devnode = d.Devnode()
	if devnode == "" {
		return PTTDevice{}, false
	}

	var t = PTTDevice{
		Kind:    kind,
		Devnode: devnode,
		Vendor:  d.PropertyValue("ID_VENDOR_ID"),
		Product: d.PropertyValue("ID_MODEL_ID"),
		Model:   strings.ReplaceAll(d.PropertyValue("ID_MODEL"), "_", " "),
	}

	switch kind {
	case PTT_DEV_SERIAL:
		// Virtual consoles and ptys have no driver behind them.
		if d.Driver() == "" && d.Parent() == nil {
			return PTTDevice{}, false
		}
		if !is_serial_name(d.Sysname()) {
			return PTTDevice{}, false
		}
		t.Config = "serial: " + devnode

	case PTT_DEV_PARALLEL:
		t.Config = "parallel: \"0x378\"  # I/O address of " + devnode

	case PTT_DEV_GPIO:
		if !strings.HasPrefix(d.Sysname(), "gpiochip") {
			return PTTDevice{}, false
		}
		t.Devnode = d.Sysname()
		gpio_chip_info(&t)
		t.Config = "strobe: \"" + t.Devnode + ":<line>\""
	}

	return t, true
}

func is_serial_name(name string) bool {
	for _, p := range []string{"ttyS", "ttyUSB", "ttyACM", "ttyAMA"} {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Fill in the line count and label.  Leave them empty if the chip can't be opened.
func gpio_chip_info(t *PTTDevice) {
	var c, err = gpiocdev.NewChip(t.Devnode, gpiocdev.WithConsumer("soundmodem"))
	if err != nil {
		smlog.Debug("Can't open GPIO chip", "chip", t.Devnode, "err", err)
		return
	}
	defer c.Close()

	t.Lines = c.Lines()
	t.Label = c.Label
}
