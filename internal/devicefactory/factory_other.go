//go:build !linux && !darwin

package devicefactory

import (
	"fmt"
	"runtime"

	"github.com/go-ble/ble"

	"github.com/srg/blecentral/internal/device"
)

func defaultDevice() (ble.Device, error) {
	return nil, fmt.Errorf("%w: no BLE backend for %s", device.ErrUnsupported, runtime.GOOS)
}
