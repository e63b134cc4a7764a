// Package gatt implements the interactive GATT client loop that runs once a
// peripheral is connected, plus the endpoint pair through which a Central
// service hands the connected client over to that loop.
package gatt

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
)

// Client is the part of ble.Client the REPL needs.
type Client interface {
	Addr() ble.Addr
	DiscoverProfile(force bool) (*ble.Profile, error)
	ReadCharacteristic(c *ble.Characteristic) ([]byte, error)
	WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error
	CancelConnection() error
}

var (
	// ErrAlreadyBound is returned when a ServerEnd is bound twice.
	ErrAlreadyBound = errors.New("gatt endpoint already bound")
	// ErrNotBound is returned by ClientEnd.Client when the server end was
	// closed without ever being bound to a connected client.
	ErrNotBound = errors.New("gatt endpoint closed before a client was bound")
)

// ClientEnd is the consumer side of an endpoint pair. It yields the connected
// Client once the Central service binds the matching ServerEnd.
type ClientEnd struct {
	ch <-chan Client
}

// ServerEnd is the producer side of an endpoint pair, handed to the Central
// service together with a connect request.
type ServerEnd struct {
	mu     sync.Mutex
	ch     chan Client
	bound  bool
	closed bool
}

// NewEndpoints creates a connected ClientEnd/ServerEnd pair.
// It fails if ctx is already done, in which case no pair is allocated.
func NewEndpoints(ctx context.Context) (*ClientEnd, *ServerEnd, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to create endpoints: %w", err)
	}
	ch := make(chan Client, 1)
	return &ClientEnd{ch: ch}, &ServerEnd{ch: ch}, nil
}

// Bind delivers the connected client to the ClientEnd. A ServerEnd can be
// bound once; binding a closed end returns ErrNotBound.
func (s *ServerEnd) Bind(c Client) error {
	if c == nil {
		return fmt.Errorf("gatt: cannot bind nil client")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case s.bound:
		return ErrAlreadyBound
	case s.closed:
		return ErrNotBound
	}

	s.bound = true
	s.ch <- c
	return nil
}

// Close releases the ServerEnd. A ClientEnd waiting on an unbound pair
// observes ErrNotBound.
func (s *ServerEnd) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}

// Client waits for the bound client or for ctx to be done.
func (c *ClientEnd) Client(ctx context.Context) (Client, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case cl, ok := <-c.ch:
		if !ok || cl == nil {
			return nil, ErrNotBound
		}
		return cl, nil
	}
}
