package goble

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cornelk/hashmap"
	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/gatt"
	"github.com/srg/blecentral/internal/groutine"
	"github.com/srg/blecentral/internal/ringchan"
)

// Adapter is the part of ble.Device the Central service drives.
type Adapter interface {
	Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error
	Dial(ctx context.Context, a ble.Addr) (ble.Client, error)
	Stop() error
}

var (
	// ErrClosed is returned by requests issued after Close.
	ErrClosed = errors.New("central service closed")
	// ErrScanInProgress is returned by StartScan while a scan is running.
	ErrScanInProgress = errors.New("scan already in progress")
)

// Options configures a Central.
type Options struct {
	AllowDuplicates bool
	ConnectTimeout  time.Duration // 0 waits for the caller's context only
	ScanTimeout     time.Duration // 0 scans until stopped
	EventBuffer     int
}

// DefaultOptions returns default Central options.
func DefaultOptions() *Options {
	return &Options{
		ConnectTimeout: 30 * time.Second,
		EventBuffer:    256,
	}
}

// Central implements central.Service on top of a go-ble device.
type Central struct {
	adapter Adapter
	logger  *logrus.Logger
	opts    Options

	events      *ringchan.RingChannel[central.Event]
	taken       atomic.Bool
	peripherals *hashmap.Map[string, ble.Addr]

	// discoveries may fill the queue up to this length; the rest is kept
	// for scan state and disconnect events.
	discoveryLimit int

	mu          sync.Mutex
	scanCancel  context.CancelFunc
	scanDone    chan struct{}
	client      ble.Client
	connectedID string
	streamErr   error
	closed      bool
}

var _ central.Service = (*Central)(nil)

// NewCentral creates a Central service driving the given adapter.
func NewCentral(adapter Adapter, logger *logrus.Logger, opts *Options) *Central {
	if logger == nil {
		logger = logrus.New()
	}
	if opts == nil {
		opts = DefaultOptions()
	}
	o := *opts
	if o.EventBuffer <= 0 {
		o.EventBuffer = DefaultOptions().EventBuffer
	}

	return &Central{
		adapter:        adapter,
		logger:         logger,
		opts:           o,
		events:         ringchan.NewRingChannel[central.Event](o.EventBuffer),
		discoveryLimit: o.EventBuffer - controlEventReserve(o.EventBuffer),
		peripherals:    hashmap.New[string, ble.Addr](),
	}
}

// controlEventReserve is the queue capacity discoveries may never take.
func controlEventReserve(capacity int) int {
	if capacity <= 1 {
		return 0
	}
	return min(max(capacity/8, 1), 16)
}

// TakeEventStream returns the single event stream of this service.
func (c *Central) TakeEventStream() (central.EventStream, error) {
	if !c.taken.CompareAndSwap(false, true) {
		return nil, central.ErrEventStreamTaken
	}
	return &eventStream{c: c}, nil
}

type eventStream struct {
	c *Central
}

// Next blocks for the next event. After the stream is closed it returns the
// error that closed it, or io.EOF.
func (s *eventStream) Next(ctx context.Context) (central.Event, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case evt, ok := <-s.c.events.C():
		if !ok {
			if err := s.c.terminalError(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
		return evt, nil
	}
}

// StartScan starts scanning in the background. Scanning ends on StopScan,
// on ctx cancellation or when the configured scan timeout elapses.
func (c *Central) StartScan(ctx context.Context, filter *central.ScanFilter) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.scanCancel != nil {
		c.mu.Unlock()
		return ErrScanInProgress
	}

	var scanCtx context.Context
	var cancel context.CancelFunc
	if c.opts.ScanTimeout > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, c.opts.ScanTimeout)
	} else {
		scanCtx, cancel = context.WithCancel(ctx)
	}
	done := make(chan struct{})
	c.scanCancel, c.scanDone = cancel, done
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"timeout":          c.opts.ScanTimeout,
		"allow_duplicates": c.opts.AllowDuplicates,
	}).Info("Starting BLE scan...")

	c.emit(central.ScanStateChanged{Scanning: true})

	handler := c.handleAdvertisement(newAdvertisementFilter(filter))
	groutine.Go(scanCtx, "central-scan", func(ctx context.Context) {
		defer close(done)
		err := NormalizeError(c.adapter.Scan(ctx, c.opts.AllowDuplicates, handler))
		cancel()

		c.mu.Lock()
		if c.scanDone == done {
			c.scanCancel, c.scanDone = nil, nil
		}
		connected := c.client != nil
		c.mu.Unlock()

		c.emit(central.ScanStateChanged{Scanning: false})

		switch {
		case err == nil, errors.Is(err, context.Canceled):
			c.logger.Debug("BLE scan stopped")
		case errors.Is(err, context.DeadlineExceeded):
			c.logger.WithField("peripherals", c.peripherals.Len()).Info("BLE scan timeout reached")
			if !connected {
				c.closeStream(nil)
			}
		default:
			c.logger.WithError(err).Error("BLE scan failed")
			c.closeStream(fmt.Errorf("scan failed: %w", err))
		}
	})
	return nil
}

// handleAdvertisement records and reports advertisements accepted by match.
func (c *Central) handleAdvertisement(match func(ble.Advertisement) bool) ble.AdvHandler {
	return func(adv ble.Advertisement) {
		if !match(adv) {
			return
		}
		dev := NewRemoteDevice(adv)
		c.peripherals.Set(strings.ToLower(dev.Identifier), adv.Addr())

		c.logger.WithFields(logrus.Fields{
			"address":     dev.Identifier,
			"connectable": dev.Connectable,
		}).Debug("Discovered peripheral")

		c.emit(central.DeviceDiscovered{Device: dev})
	}
}

// StopScan stops the running scan and waits until the radio reports it
// stopped. Without a running scan it does nothing.
func (c *Central) StopScan(ctx context.Context) error {
	c.mu.Lock()
	cancel, done := c.scanCancel, c.scanDone
	c.scanCancel, c.scanDone = nil, nil
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if cancel == nil {
		c.logger.Debug("StopScan called without an active scan")
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ConnectPeripheral dials the peripheral and binds the connected client to
// server. Dial failures are reported as structured failures.
func (c *Central) ConnectPeripheral(ctx context.Context, id string, server *gatt.ServerEnd) (central.ConnectResult, error) {
	if server == nil {
		return central.ConnectResult{}, fmt.Errorf("missing GATT server endpoint")
	}
	if strings.TrimSpace(id) == "" {
		return central.ConnectResult{
			Error: central.NewServiceError(central.ErrorCodeInvalidArguments, "peripheral identifier is empty"),
		}, nil
	}

	c.mu.Lock()
	closed, connectedID := c.closed, c.connectedID
	busy := c.client != nil
	c.mu.Unlock()

	if closed {
		return central.ConnectResult{}, ErrClosed
	}
	if busy {
		return central.ConnectResult{
			Error: central.NewServiceError(central.ErrorCodeBadState, fmt.Sprintf("already connected to %s", connectedID)),
		}, nil
	}

	addr, known := c.peripherals.Get(strings.ToLower(id))
	if !known {
		addr = ble.NewAddr(id)
	}

	dialCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.opts.ConnectTimeout > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, c.opts.ConnectTimeout)
	}
	defer cancel()

	log := c.logger.WithFields(logrus.Fields{
		"address": addr.String(),
		"timeout": c.opts.ConnectTimeout,
		"known":   known,
	})
	log.Info("Connecting to peripheral...")

	client, err := c.adapter.Dial(dialCtx, addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return central.ConnectResult{}, ctxErr
		}
		log.WithError(err).Error("Failed to dial peripheral")
		return central.ConnectResult{Error: connectFailure(err)}, nil
	}

	if err := server.Bind(client); err != nil {
		_ = client.CancelConnection()
		return central.ConnectResult{}, fmt.Errorf("failed to bind GATT client: %w", err)
	}

	c.mu.Lock()
	c.client, c.connectedID = client, id
	c.mu.Unlock()

	log.Info("Peripheral connected")
	c.watchDisconnect(id, client)
	return central.ConnectResult{}, nil
}

// watchDisconnect reports PeripheralDisconnected once the client goes away.
func (c *Central) watchDisconnect(id string, client ble.Client) {
	dc, ok := client.(interface{ Disconnected() <-chan struct{} })
	if !ok {
		c.logger.Debug("Client does not report disconnection")
		return
	}

	groutine.Go(context.Background(), "central-disconnect-watch", func(ctx context.Context) {
		<-dc.Disconnected()

		c.mu.Lock()
		if c.client == client {
			c.client, c.connectedID = nil, ""
		}
		c.mu.Unlock()

		c.logger.WithFields(logrus.Fields{
			"address":   id,
			"goroutine": groutine.GetName(ctx),
		}).Info("Peripheral disconnected")
		c.emit(central.PeripheralDisconnected{Identifier: id})
	})
}

// Close stops scanning, drops the connection, ends the event stream and
// releases the adapter.
func (c *Central) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel, done, client := c.scanCancel, c.scanDone, c.client
	c.scanCancel, c.scanDone = nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if client != nil {
		if err := client.CancelConnection(); err != nil {
			c.logger.WithError(err).Warn("Failed to cancel connection on close")
		}
	}
	c.closeStream(nil)

	m := c.events.GetMetrics()
	c.logger.WithFields(logrus.Fields{
		"events":      m.Written,
		"overwritten": m.Overwritten,
		"dropped":     m.Rejected,
		"pending":     c.events.Len(),
	}).Debug("Central event queue closed")

	return NormalizeError(c.adapter.Stop())
}

// emit queues evt for the event stream. Under load discoveries are dropped
// first: a discovery that does not fit below discoveryLimit is discarded,
// while scan state and disconnect events overwrite the oldest queued event.
func (c *Central) emit(evt central.Event) {
	if d, ok := evt.(central.DeviceDiscovered); ok {
		if !c.events.Offer(evt, c.discoveryLimit) {
			c.logger.WithField("address", d.Device.Identifier).Warn("Central event queue full, dropped discovery")
		}
		return
	}
	if dropped := c.events.Send(evt); dropped {
		c.logger.WithField("event", fmt.Sprintf("%T", evt)).Warn("Central event queue full, dropped oldest event")
	}
}

func (c *Central) closeStream(err error) {
	c.mu.Lock()
	if c.streamErr == nil {
		c.streamErr = err
	}
	c.mu.Unlock()
	c.events.Close()
}

func (c *Central) terminalError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.streamErr
}
