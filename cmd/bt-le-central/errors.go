package main

import (
	"errors"
	"fmt"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/device"
	goble "github.com/srg/blecentral/internal/device/go-ble"
)

// Command-level errors
var (
	// ErrInvalidIdentifier is returned for a blank peripheral identifier.
	ErrInvalidIdentifier = errors.New("invalid peripheral identifier")
)

// FormatUserError turns known errors into a short message with a hint.
// Unknown errors are printed as is.
func FormatUserError(err error) string {
	var svcErr *central.ServiceError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is turned off, enable it and try again"
	case errors.Is(err, device.ErrUnsupported):
		return fmt.Sprintf("%v (supported platforms: linux, darwin)", err)
	case errors.As(err, &svcErr):
		switch svcErr.Code {
		case central.ErrorCodeTimedOut:
			return fmt.Sprintf("connection timed out: %s (is the peripheral advertising and in range?)",
				svcErr.DescriptionOr("no response"))
		case central.ErrorCodeBluetoothNotAvailable:
			return "Bluetooth is not available, enable it and try again"
		default:
			return fmt.Sprintf("connection failed: %s", svcErr.DescriptionOr(svcErr.Code.String()))
		}
	case device.IsConnectionState(err, device.NotConnected):
		return fmt.Sprintf("%v (the peripheral is no longer connected)", err)
	case device.IsConnectionState(err, device.AlreadyConnected):
		return fmt.Sprintf("%v (disconnect the current peripheral first)", err)
	case errors.Is(err, goble.ErrScanInProgress):
		return "a scan is already running"
	default:
		return err.Error()
	}
}
