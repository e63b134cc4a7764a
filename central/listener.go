package central

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/srg/blecentral/internal/gatt"
)

// ErrTerminated marks the end of a session that has nothing further to do.
// It is not a failure: callers are expected to exit with status 0.
var ErrTerminated = errors.New("session terminated")

// TerminationReason tells why a session was terminated.
type TerminationReason string

const (
	ReasonStopScanFailed   TerminationReason = "stop scan failed"
	ReasonScanComplete     TerminationReason = "scan complete"
	ReasonPeerDisconnected TerminationReason = "peer disconnected"
)

// TerminatedError is returned by Listen when the session ends on a
// terminal condition. It matches ErrTerminated.
type TerminatedError struct {
	Reason     TerminationReason
	Identifier string
	Err        error
}

func (e *TerminatedError) Error() string {
	msg := fmt.Sprintf("%s: %s", ErrTerminated, e.Reason)
	if e.Identifier != "" {
		msg = fmt.Sprintf("%s (%s)", msg, e.Identifier)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TerminatedError) Is(target error) bool {
	return target == ErrTerminated
}

func (e *TerminatedError) Unwrap() error {
	return e.Err
}

// Listener consumes Central service events and drives scan, connect and
// hand-off to the GATT loop.
type Listener struct {
	// Out receives connect results, Err receives event lines.
	Out io.Writer
	Err io.Writer

	Logger *logrus.Logger

	// NewEndpoints creates the GATT client endpoint pair for a connect request.
	NewEndpoints func(ctx context.Context) (*gatt.ClientEnd, *gatt.ServerEnd, error)
	// GattLoop runs the GATT interaction once a peripheral is connected.
	GattLoop func(ctx context.Context, client *gatt.ClientEnd) error
}

// NewListener creates a Listener printing to stdout/stderr and running the
// interactive GATT REPL on stdin.
func NewListener(logger *logrus.Logger) *Listener {
	if logger == nil {
		logger = logrus.New()
	}

	l := &Listener{
		Out:          os.Stdout,
		Err:          os.Stderr,
		Logger:       logger,
		NewEndpoints: gatt.NewEndpoints,
	}
	l.GattLoop = func(ctx context.Context, client *gatt.ClientEnd) error {
		return gatt.StartLoop(ctx, client, &gatt.LoopOptions{
			In:     os.Stdin,
			Out:    l.Out,
			Logger: l.Logger,
			Prompt: gatt.DefaultPrompt,
			Color:  true,
		})
	}
	return l
}

// Listen handles events from the state's service until the stream ends, an
// error occurs or a terminal condition is reached.
//
// It returns nil when the stream is exhausted or when a discovery arrives with
// neither scan-once nor auto-connect set, and a *TerminatedError when there is
// nothing further to do. Events are handled strictly in arrival order.
//
// Stop-scan and connect are issued for the first discovery only. Discoveries
// queued before the radio stopped are still reported but never acted upon.
func (l *Listener) Listen(ctx context.Context, state *ClientState) error {
	events, err := state.Service().TakeEventStream()
	if err != nil {
		return fmt.Errorf("failed to take event stream: %w", err)
	}

	stopped := false
	for {
		evt, err := events.Next(ctx)
		if errors.Is(err, io.EOF) {
			l.Logger.Debug("Central event stream closed")
			return nil
		}
		if err != nil {
			return err
		}

		switch e := evt.(type) {
		case ScanStateChanged:
			fmt.Fprintf(l.Err, "  scan state changed: %t\n", e.Scanning)

		case DeviceDiscovered:
			if stopped {
				fmt.Fprintf(l.Err, " %s\n", FormatDevice(e.Device))
				l.Logger.WithField("identifier", e.Device.Identifier).Debug("Ignoring discovery received after stop-scan")
				continue
			}
			done, err := l.handleDiscovery(ctx, state, e.Device)
			if err != nil || done {
				return err
			}
			stopped = true

		case PeripheralDisconnected:
			fmt.Fprintf(l.Err, "  peer disconnected: %s\n", e.Identifier)
			return &TerminatedError{Reason: ReasonPeerDisconnected, Identifier: e.Identifier}

		default:
			l.Logger.WithField("event", fmt.Sprintf("%T", evt)).Warn("Ignoring unknown Central event")
		}
	}
}

// handleDiscovery reports the device and decides whether listening goes on.
// It returns false only after a completed auto-connect session without
// scan-once, in which case the scan has already been stopped.
func (l *Listener) handleDiscovery(ctx context.Context, state *ClientState, dev RemoteDevice) (bool, error) {
	fmt.Fprintf(l.Err, " %s\n", FormatDevice(dev))

	scanOnce, autoConnect, svc := state.snapshot()
	if !scanOnce && !autoConnect {
		return true, nil
	}

	if err := svc.StopScan(ctx); err != nil {
		fmt.Fprintf(l.Err, "request to stop scan failed: %v\n", err)
		return true, &TerminatedError{Reason: ReasonStopScanFailed, Err: err}
	}

	if autoConnect && dev.Connectable {
		l.Logger.WithField("identifier", dev.Identifier).Debug("Connecting to first connectable peripheral")
		if err := l.Connect(ctx, state, dev.Identifier); err != nil {
			return true, err
		}
		if !scanOnce {
			return false, nil
		}
	}

	return true, &TerminatedError{Reason: ReasonScanComplete, Identifier: dev.Identifier}
}
