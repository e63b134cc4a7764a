package goble

import (
	"strings"

	mapset "github.com/deckarep/golang-set"
	"github.com/go-ble/ble"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/device"
)

const (
	// txPowerUnavailable is reported when the advertisement carries no TX power.
	txPowerUnavailable = 127
	// rssiUnavailable is reported by CoreBluetooth when no reading exists.
	rssiUnavailable = 127
)

// NewRemoteDevice converts a go-ble advertisement into a discovery record.
// Absent fields stay nil.
func NewRemoteDevice(adv ble.Advertisement) central.RemoteDevice {
	dev := central.RemoteDevice{
		Identifier:  adv.Addr().String(),
		Connectable: adv.Connectable(),
	}
	if rssi := adv.RSSI(); rssi != rssiUnavailable {
		dev.RSSI = &rssi
	}

	var ad central.AdvertisingData
	present := false

	if name := strings.TrimRight(adv.LocalName(), "\x00"); name != "" {
		ad.Name = &name
		present = true
	}
	if tx := adv.TxPowerLevel(); tx != txPowerUnavailable {
		ad.TxPowerLevel = &tx
		present = true
	}
	for _, u := range adv.Services() {
		ad.ServiceUUIDs = append(ad.ServiceUUIDs, device.NormalizeUUID(u.String()))
		present = true
	}
	if md := adv.ManufacturerData(); len(md) > 0 {
		ad.ManufacturerData = md
		present = true
	}

	if present {
		dev.Advertising = &ad
	}
	return dev
}

// newAdvertisementFilter returns a predicate applying the scan filter.
// A nil filter accepts every advertisement.
func newAdvertisementFilter(f *central.ScanFilter) func(ble.Advertisement) bool {
	if f == nil {
		return func(ble.Advertisement) bool { return true }
	}

	name := strings.ToLower(f.NameSubstring)
	services := mapset.NewThreadUnsafeSet()
	for _, u := range device.NormalizeUUIDs(f.ServiceUUIDs) {
		services.Add(u)
	}

	return func(adv ble.Advertisement) bool {
		if name != "" && !strings.Contains(strings.ToLower(adv.LocalName()), name) {
			return false
		}
		if services.Cardinality() == 0 {
			return true
		}
		for _, advUUID := range adv.Services() {
			if services.Contains(device.NormalizeUUID(advUUID.String())) {
				return true
			}
		}
		return false
	}
}
