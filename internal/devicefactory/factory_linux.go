//go:build linux

package devicefactory

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

func defaultDevice() (ble.Device, error) {
	return linux.NewDevice()
}
