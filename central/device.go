package central

import (
	"fmt"
	"strings"
)

// RemoteDevice is a peripheral as reported by one discovery event.
type RemoteDevice struct {
	Identifier  string           `json:"identifier"`
	Connectable bool             `json:"connectable"`
	RSSI        *int             `json:"rssi,omitempty"`
	Advertising *AdvertisingData `json:"advertising,omitempty"`
}

// AdvertisingData carries the optional advertised fields of a RemoteDevice.
type AdvertisingData struct {
	Name             *string  `json:"name,omitempty"`
	TxPowerLevel     *int     `json:"txPowerLevel,omitempty"`
	ServiceUUIDs     []string `json:"serviceUuids,omitempty"`
	ManufacturerData []byte   `json:"manufacturerData,omitempty"`
}

// Name returns the advertised name, if any.
func (d RemoteDevice) Name() (string, bool) {
	if d.Advertising == nil || d.Advertising.Name == nil {
		return "", false
	}
	return *d.Advertising.Name, true
}

// String implements fmt.Stringer using FormatDevice.
func (d RemoteDevice) String() string {
	return FormatDevice(d)
}

// FormatDevice renders a discovered device as
// "[device(<conn|non-conn>), [rssi: <n>, ][<name>, ]id: <identifier>]".
func FormatDevice(d RemoteDevice) string {
	connectable := "non-conn"
	if d.Connectable {
		connectable = "conn"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[device(%s), ", connectable)
	if d.RSSI != nil {
		fmt.Fprintf(&b, "rssi: %d, ", *d.RSSI)
	}
	if name, ok := d.Name(); ok {
		fmt.Fprintf(&b, "%s, ", name)
	}
	fmt.Fprintf(&b, "id: %s]", d.Identifier)
	return b.String()
}
