package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/STROBE/controller"
	"github.com/Alia5/STROBE/internal/serialport"
	"github.com/Alia5/STROBE/internal/sim"
	"github.com/Alia5/STROBE/matrix"
	"github.com/Alia5/STROBE/transport"
	"github.com/Alia5/STROBE/transport/buspar"
	"github.com/Alia5/STROBE/transport/serial"
)

// Run executes the keyboard controller on simulated hardware: keys typed on
// the local terminal become matrix closures, events go to the host over the
// selected transport, and inbound serial commands drive the logged LEDs.
type Run struct {
	Transport string `help:"Host transport" enum:"serial,bus" default:"serial" env:"STROBE_TRANSPORT"`
	Listen    string `help:"Serve the serial line to the host over TCP on this address" default:":7250" env:"STROBE_LISTEN"`
	Device    string `help:"Use a serial tty device instead of TCP (e.g. /dev/ttyUSB0)" env:"STROBE_DEVICE"`
	Baud      int    `help:"Baud rate for --device" default:"19200"`

	Rows  uint8 `help:"Matrix rows (strobe lines)" default:"8"`
	Banks uint8 `help:"Input banks per row" default:"1"`
	Cols  uint8 `help:"Columns per bank" default:"8"`

	Debounce  uint8 `help:"Debounce window in scan cycles (0 commits on first mismatch)" default:"5"`
	QueueSize int   `help:"Event ring capacity, power of two" default:"256"`
	CapsLock  int   `help:"Caps-lock scancode, -1 disables the latch" default:"-1"`
	ScanHz    int   `help:"Matrix scan rate in Hz" default:"200"`
	IdleByte  uint8 `help:"Reserved idle byte for the bus transport" default:"64"`
}

// Run is called by kong when the run command is executed.
func (r *Run) Run(logger *slog.Logger) error {
	geo, err := matrix.New(r.Rows, r.Banks, r.Cols)
	if err != nil {
		return err
	}
	if r.ScanHz <= 0 {
		return fmt.Errorf("scan rate must be positive, got %d", r.ScanHz)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tr, closer, err := r.buildTransport(ctx, logger)
	if err != nil {
		return err
	}
	if closer != nil {
		defer closer.Close()
	}

	hw := sim.NewMatrix(geo)
	var caps *uint8
	if r.CapsLock >= 0 && r.CapsLock < matrix.MaxKeys {
		v := uint8(r.CapsLock)
		caps = &v
	}

	scanInterval := time.Second / time.Duration(r.ScanHz)
	ctrl, err := controller.New(controller.Config{
		Geometry:          geo,
		DebounceThreshold: r.Debounce,
		QueueCapacity:     r.QueueSize,
		CapsLockScancode:  caps,
		ScanInterval:      scanInterval,
		// The simulated matrix has no propagation delay to wait out.
		Settle: func() {},
	}, hw, tr, sim.NewLEDs(logger), logger)
	if err != nil {
		return err
	}

	// Each terminal byte taps a key long enough to clear the debounce
	// window plus slack for sampling jitter.
	hold := scanInterval * time.Duration(int(r.Debounce)+4)
	go readKeys(ctx, cancel, hw, geo, hold, logger)

	return ctrl.Run(ctx)
}

func (r *Run) buildTransport(ctx context.Context, logger *slog.Logger) (transport.Transport, io.Closer, error) {
	switch r.Transport {
	case "bus":
		bus := sim.NewBus(logger)
		return buspar.New(bus, buspar.Config{IdleByte: r.IdleByte, AckPoll: time.Microsecond}, logger), nil, nil
	case "serial":
		if r.Device != "" {
			port, err := serialport.Open(r.Device, r.Baud)
			if err != nil {
				return nil, nil, err
			}
			return serial.New(port, logger), port, nil
		}
		conn, err := waitForHost(ctx, r.Listen, logger)
		if err != nil {
			return nil, nil, err
		}
		return serial.New(conn, logger), conn, nil
	default:
		return nil, nil, fmt.Errorf("unknown transport %q", r.Transport)
	}
}

// waitForHost accepts a single host connection carrying the serial
// protocol.
func waitForHost(ctx context.Context, addr string, logger *slog.Logger) (net.Conn, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	defer ln.Close()

	logger.Info("waiting for host connection", "addr", ln.Addr().String())

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = ln.Close()
		case <-done:
		}
	}()

	conn, err := ln.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("accept: %w", err)
	}
	logger.Info("host connected", "remote", conn.RemoteAddr().String())
	return conn, nil
}

// readKeys turns terminal bytes into simulated key taps. In raw mode Ctrl-C
// no longer raises a signal, so it is handled in-band as quit.
func readKeys(ctx context.Context, cancel context.CancelFunc, hw *sim.Matrix, geo matrix.Geometry, hold time.Duration, logger *slog.Logger) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		old, err := term.MakeRaw(fd)
		if err != nil {
			logger.Warn("could not switch terminal to raw mode", "error", err)
		} else {
			defer func() { _ = term.Restore(fd, old) }()
			logger.Info("terminal keys drive the matrix, Ctrl-C quits")
		}
	}

	var buf [1]byte
	for {
		if ctx.Err() != nil {
			return
		}
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			logger.Debug("stdin closed", "error", err)
			return
		}
		if n == 0 {
			continue
		}
		if buf[0] == 0x03 { // Ctrl-C
			cancel()
			return
		}
		code := codeForByte(geo, buf[0])
		hw.Tap(code, hold)
		logger.Debug("tap", "byte", buf[0], "scancode", fmt.Sprintf("0x%02X", code))
	}
}

// codeForByte maps an arbitrary input byte onto a valid scancode of the
// geometry, walking positions in scan order.
func codeForByte(geo matrix.Geometry, b uint8) uint8 {
	idx := int(b) % geo.Keys()
	perRow := int(geo.Banks()) * int(geo.Cols())
	pos := matrix.Position{
		Row:  uint8(idx / perRow),
		Bank: uint8(idx % perRow / int(geo.Cols())),
		Col:  uint8(idx % int(geo.Cols())),
	}
	return geo.Scancode(pos)
}
