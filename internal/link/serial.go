package link

import (
	"context"
	"fmt"
	"log"
	"time"

	jserial "github.com/jacobsa/go-serial/serial"
	bugst "go.bug.st/serial"
)

// Drivers accepted in Options.Driver.
const (
	DriverJacobsa = "jacobsa"
	DriverBugst   = "bugst"
)

// Options describes how to open the serial device.
type Options struct {
	PortName    string
	BaudRate    int
	Driver      string
	ReadTimeout time.Duration
	// Wakeup is how long to wait after opening. Most controllers reboot when
	// the port opens and ignore requests until they finish.
	Wakeup time.Duration
}

// Open opens the serial device and waits out the wake-up delay.
func Open(ctx context.Context, opts Options) (*Link, error) {
	var (
		port Port
		err  error
	)
	switch opts.Driver {
	case DriverSim:
		log.Println("link: using the simulated flight controller")
		return New(NewSimulator()), nil
	case DriverBugst:
		port, err = openBugst(opts)
	case DriverJacobsa, "":
		port, err = openJacobsa(opts)
	default:
		return nil, fmt.Errorf("unknown serial driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", opts.PortName, err)
	}
	log.Printf("link: serial port %s opened at %d baud (%s driver)", opts.PortName, opts.BaudRate, opts.Driver)

	if opts.Wakeup > 0 {
		log.Printf("link: waiting %v for the flight controller to boot", opts.Wakeup)
		select {
		case <-time.After(opts.Wakeup):
		case <-ctx.Done():
			port.Close()
			return nil, ctx.Err()
		}
	}

	return New(port), nil
}

func openJacobsa(opts Options) (Port, error) {
	// The termios timer counts tenths of a second, from 1 to 255.
	tenths := uint(opts.ReadTimeout / (100 * time.Millisecond))
	if tenths < 1 {
		tenths = 1
	}
	if tenths > 255 {
		tenths = 255
	}

	serialOpts := jserial.OpenOptions{
		PortName:              opts.PortName,
		BaudRate:              uint(opts.BaudRate),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       0,
		ParityMode:            jserial.PARITY_NONE,
		InterCharacterTimeout: tenths * 100,
	}
	return jserial.Open(serialOpts)
}

func openBugst(opts Options) (Port, error) {
	mode := &bugst.Mode{
		BaudRate: opts.BaudRate,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	}
	port, err := bugst.Open(opts.PortName, mode)
	if err != nil {
		return nil, err
	}
	if err := port.SetReadTimeout(opts.ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to set read timeout: %w", err)
	}
	return port, nil
}
