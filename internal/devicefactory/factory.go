// Package devicefactory opens the platform BLE device and wraps it in the
// go-ble Central service.
package devicefactory

import (
	"fmt"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"

	goble "github.com/srg/blecentral/internal/device/go-ble"
)

// DeviceFactory creates the platform ble.Device.
// This is a variable so that it can be overridden in tests.
var DeviceFactory = defaultDevice

// NewCentral opens the platform device and returns a Central service on top of it.
func NewCentral(logger *logrus.Logger, opts *goble.Options) (*goble.Central, error) {
	dev, err := DeviceFactory()
	if err != nil {
		return nil, fmt.Errorf("failed to create BLE device: %w", goble.NormalizeError(err))
	}
	return goble.NewCentral(dev, logger, opts), nil
}

// ensure the platform device can drive the Central service
var _ goble.Adapter = ble.Device(nil)
