package central

import (
	"context"
	"errors"
	"fmt"

	"github.com/srg/blecentral/internal/gatt"
)

// Event is a single notification emitted by the Central service.
type Event interface {
	isCentralEvent()
}

// ScanStateChanged reports that scanning started or stopped.
type ScanStateChanged struct {
	Scanning bool
}

// DeviceDiscovered reports one advertisement from a peripheral.
type DeviceDiscovered struct {
	Device RemoteDevice
}

// PeripheralDisconnected reports that the connected peripheral went away.
type PeripheralDisconnected struct {
	Identifier string
}

func (ScanStateChanged) isCentralEvent()       {}
func (DeviceDiscovered) isCentralEvent()       {}
func (PeripheralDisconnected) isCentralEvent() {}

// EventStream yields service events in emission order.
// Next returns io.EOF once the stream is exhausted.
type EventStream interface {
	Next(ctx context.Context) (Event, error)
}

// ScanFilter restricts which advertisements are reported.
// Empty fields match everything.
type ScanFilter struct {
	NameSubstring string
	ServiceUUIDs  []string
}

// Service is the Bluetooth LE Central service consumed by the Listener.
type Service interface {
	// TakeEventStream hands out the single event stream of this service.
	TakeEventStream() (EventStream, error)
	StartScan(ctx context.Context, filter *ScanFilter) error
	StopScan(ctx context.Context) error
	// ConnectPeripheral connects to the peripheral with the given identifier
	// and, on success, binds the connected GATT client to server.
	// A non-nil error means the request itself could not be delivered or
	// answered; a refused connection is reported through ConnectResult.
	ConnectPeripheral(ctx context.Context, id string, server *gatt.ServerEnd) (ConnectResult, error)
}

// ErrEventStreamTaken is returned when the event stream is requested twice.
var ErrEventStreamTaken = errors.New("event stream already taken")

// ConnectResult is the answer to a connect request. A nil Error means success.
type ConnectResult struct {
	Error *ServiceError
}

// ErrorCode classifies a ServiceError.
type ErrorCode int

const (
	ErrorCodeUnknown ErrorCode = iota
	ErrorCodeFailed
	ErrorCodeCanceled
	ErrorCodeInProgress
	ErrorCodeTimedOut
	ErrorCodeNotFound
	ErrorCodeNotSupported
	ErrorCodeBluetoothNotAvailable
	ErrorCodeBadState
	ErrorCodeInvalidArguments
	ErrorCodeProtocolError
)

var errorCodeNames = map[ErrorCode]string{
	ErrorCodeUnknown:               "unknown",
	ErrorCodeFailed:                "failed",
	ErrorCodeCanceled:              "canceled",
	ErrorCodeInProgress:            "in progress",
	ErrorCodeTimedOut:              "timed out",
	ErrorCodeNotFound:              "not found",
	ErrorCodeNotSupported:          "not supported",
	ErrorCodeBluetoothNotAvailable: "bluetooth not available",
	ErrorCodeBadState:              "bad state",
	ErrorCodeInvalidArguments:      "invalid arguments",
	ErrorCodeProtocolError:         "protocol error",
}

func (c ErrorCode) String() string {
	if name, ok := errorCodeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("error code %d", int(c))
}

// ServiceError is a structured failure reported by the Central service.
type ServiceError struct {
	Code              ErrorCode
	ProtocolErrorCode uint32
	Description       *string
}

// NewServiceError builds a ServiceError with a description.
func NewServiceError(code ErrorCode, description string) *ServiceError {
	return &ServiceError{Code: code, Description: &description}
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := e.Code.String()
	if e.Description != nil {
		msg = fmt.Sprintf("%s: %s", msg, *e.Description)
	}
	if e.ProtocolErrorCode != 0 {
		msg = fmt.Sprintf("%s (protocol error 0x%02x)", msg, e.ProtocolErrorCode)
	}
	return msg
}

// DescriptionOr returns the description, or def when there is none.
func (e *ServiceError) DescriptionOr(def string) string {
	if e == nil || e.Description == nil {
		return def
	}
	return *e.Description
}
