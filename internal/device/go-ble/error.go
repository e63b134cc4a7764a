package goble

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/device"
)

// NormalizeError maps known go-ble error strings to the sentinel errors of the
// device package. The original error is kept in the chain.
func NormalizeError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	msg := err.Error()
	switch {
	case msg == "central manager has invalid state: have=4 want=5: is Bluetooth turned on?":
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "bluetooth is turned off"):
		return fmt.Errorf("%w: %v", device.ErrBluetoothOff, err)
	case containsIgnoreCase(msg, "device not connected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case containsIgnoreCase(msg, "disconnected"):
		return fmt.Errorf("%w: %v", device.ErrNotConnected, err)
	case containsIgnoreCase(msg, "device already connected"):
		return fmt.Errorf("%w: %v", device.ErrAlreadyConnected, err)
	case containsIgnoreCase(msg, "connection is not initialized"):
		return fmt.Errorf("%w: %v", device.ErrNotInitialized, err)
	case containsIgnoreCase(msg, "timed out"), containsIgnoreCase(msg, "timeout"):
		return fmt.Errorf("%w: %v", device.ErrTimeout, err)
	default:
		return err
	}
}

// connectFailure turns a dial error into the structured failure reported to
// the connect requester.
func connectFailure(err error) *central.ServiceError {
	err = NormalizeError(err)

	code := central.ErrorCodeFailed
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, device.ErrTimeout):
		code = central.ErrorCodeTimedOut
	case errors.Is(err, device.ErrBluetoothOff):
		code = central.ErrorCodeBluetoothNotAvailable
	case device.IsConnectionState(err, device.AlreadyConnected), device.IsConnectionState(err, device.NotInitialized):
		code = central.ErrorCodeBadState
	}
	return central.NewServiceError(code, err.Error())
}

// containsIgnoreCase checks the substring case-insensitively
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
