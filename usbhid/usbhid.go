// Package usbhid drives the power meter over its vendor HID
// interface. A session claims the device exclusively, runs the
// initialisation handshake and then serves interrupt reads and
// keep-alive writes until closed.
package usbhid

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/gousb"
	"github.com/sirupsen/logrus"

	"github.com/PowerMeterProject/usb-meter-logger/meter"
)

var log = logrus.New()

// lockFile guards against two processes driving the meter at once.
const lockFile = "/var/lock/usb-meter.lock"

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoHIDInterface = errors.New("no HID interface found")
	ErrNoEndpoints    = errors.New("could not find endpoints")
	ErrAlreadyRunning = errors.New("meter is in use by another process")
)

// interfaceChoice pins down the numbers needed to claim the meter's
// HID interface and its two interrupt endpoints.
type interfaceChoice struct {
	config int
	number int
	alt    int
	in     int
	out    int
}

// chooseInterface walks the device descriptor for the first HID
// interface that carries both an IN and an OUT endpoint.
func chooseInterface(desc *gousb.DeviceDesc) (interfaceChoice, error) {
	for _, cfg := range desc.Configs {
		for _, intf := range cfg.Interfaces {
			for _, alt := range intf.AltSettings {
				if alt.Class != gousb.ClassHID {
					continue
				}
				choice := interfaceChoice{
					config: cfg.Number,
					number: intf.Number,
					alt:    alt.Alternate,
					in:     -1,
					out:    -1,
				}
				for _, ep := range alt.Endpoints {
					switch ep.Direction {
					case gousb.EndpointDirectionIn:
						if choice.in == -1 {
							choice.in = ep.Number
						}
					case gousb.EndpointDirectionOut:
						if choice.out == -1 {
							choice.out = ep.Number
						}
					}
				}
				if choice.in == -1 || choice.out == -1 {
					return interfaceChoice{}, ErrNoEndpoints
				}
				return choice, nil
			}
		}
	}
	return interfaceChoice{}, ErrNoHIDInterface
}

// Session is an open claim on the meter.
type Session struct {
	ctx  *gousb.Context
	dev  *gousb.Device
	cfg  *gousb.Config
	intf *gousb.Interface
	in   *gousb.InEndpoint
	out  *gousb.OutEndpoint

	lock    *flock.Flock
	timeout time.Duration
}

// Open claims the meter, runs the initialisation handshake and
// returns a session ready to poll. The timeout bounds each USB
// transfer. Only one process may hold a session at a time.
func Open(timeout time.Duration) (*Session, error) {
	lock := flock.New(lockFile)
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring %s: %w", lockFile, err)
	}
	if !locked {
		return nil, ErrAlreadyRunning
	}

	s := &Session{lock: lock, timeout: timeout}
	if err := s.open(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Session) open() error {
	s.ctx = gousb.NewContext()
	dev, err := s.ctx.OpenDeviceWithVIDPID(gousb.ID(meter.VendorID), gousb.ID(meter.ProductID))
	if err != nil {
		return fmt.Errorf("opening device %04x:%04x: %w", meter.VendorID, meter.ProductID, err)
	}
	if dev == nil {
		return ErrDeviceNotFound
	}
	s.dev = dev

	if err := dev.SetAutoDetach(true); err != nil {
		log.Debugf("auto detach not available: %v", err)
	}

	choice, err := chooseInterface(dev.Desc)
	if err != nil {
		return err
	}
	cfg, err := dev.Config(choice.config)
	if err != nil {
		return fmt.Errorf("claiming config %d: %w", choice.config, err)
	}
	s.cfg = cfg
	intf, err := cfg.Interface(choice.number, choice.alt)
	if err != nil {
		return fmt.Errorf("claiming interface %d: %w", choice.number, err)
	}
	s.intf = intf

	in, err := intf.InEndpoint(choice.in)
	if err != nil {
		return fmt.Errorf("preparing IN endpoint %d: %w", choice.in, err)
	}
	s.in = in
	out, err := intf.OutEndpoint(choice.out)
	if err != nil {
		return fmt.Errorf("preparing OUT endpoint %d: %w", choice.out, err)
	}
	s.out = out

	s.handshake()
	return nil
}

// handshake sends the initialisation commands. The meter only starts
// streaming once the whole sequence has been seen, so a failed write
// is logged and the rest of the sequence still runs.
func (s *Session) handshake() {
	for _, cmd := range meter.InitCommands {
		if err := s.write(cmd); err != nil {
			log.Errorf("sending init command: %v", err)
		}
		time.Sleep(meter.InitDelay)
	}
}

func (s *Session) write(b []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	_, err := s.out.WriteContext(ctx, b)
	return err
}

// Poll reads one report from the meter and decodes it. A report that
// is not telemetry decodes to meter.ErrBadPacket.
func (s *Session) Poll(ctx context.Context) (meter.Reading, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	buf := make([]byte, meter.PacketLen)
	n, err := s.in.ReadContext(ctx, buf)
	if err != nil {
		return meter.Reading{}, fmt.Errorf("usb read: %w", err)
	}
	return meter.Decode(buf[:n])
}

// SendKeepAlive nudges the meter so it keeps streaming.
func (s *Session) SendKeepAlive() error {
	return s.write(meter.KeepAlive)
}

// Close releases the interface, the device and the instance lock.
func (s *Session) Close() error {
	var firstErr error
	if s.intf != nil {
		s.intf.Close()
	}
	if s.cfg != nil {
		if err := s.cfg.Close(); err != nil {
			firstErr = err
		}
	}
	if s.dev != nil {
		if err := s.dev.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.ctx != nil {
		if err := s.ctx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
