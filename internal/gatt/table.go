package gatt

import (
	"strings"

	"github.com/go-ble/ble"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/srg/blecentral/internal/device"
)

// attributeTable keeps discovered services and characteristics in the order
// the peripheral reported them, keyed by normalized UUID.
type attributeTable struct {
	services        *orderedmap.OrderedMap[string, *ble.Service]
	characteristics *orderedmap.OrderedMap[string, *ble.Characteristic]
}

func newAttributeTable() *attributeTable {
	return &attributeTable{
		services:        orderedmap.New[string, *ble.Service](),
		characteristics: orderedmap.New[string, *ble.Characteristic](),
	}
}

// load replaces the table contents with the given profile.
func (t *attributeTable) load(p *ble.Profile) {
	t.services = orderedmap.New[string, *ble.Service]()
	t.characteristics = orderedmap.New[string, *ble.Characteristic]()
	if p == nil {
		return
	}

	for _, svc := range p.Services {
		t.services.Set(device.NormalizeUUID(svc.UUID.String()), svc)
		for _, c := range svc.Characteristics {
			key := device.NormalizeUUID(c.UUID.String())
			if _, exists := t.characteristics.Get(key); !exists {
				t.characteristics.Set(key, c)
			}
		}
	}
}

func (t *attributeTable) empty() bool {
	return t.services.Len() == 0
}

func (t *attributeTable) characteristic(uuid string) (*ble.Characteristic, bool) {
	return t.characteristics.Get(device.NormalizeUUID(uuid))
}

// forEachService visits services in discovery order.
func (t *attributeTable) forEachService(fn func(uuid string, svc *ble.Service)) {
	for pair := t.services.Oldest(); pair != nil; pair = pair.Next() {
		fn(pair.Key, pair.Value)
	}
}

var propertyNames = []struct {
	prop ble.Property
	name string
}{
	{ble.CharBroadcast, "broadcast"},
	{ble.CharRead, "read"},
	{ble.CharWriteNR, "write-without-response"},
	{ble.CharWrite, "write"},
	{ble.CharNotify, "notify"},
	{ble.CharIndicate, "indicate"},
	{ble.CharSignedWrite, "signed-write"},
	{ble.CharExtended, "extended"},
}

// formatProperties renders a property bit set as a comma separated list.
func formatProperties(p ble.Property) string {
	names := make([]string, 0, len(propertyNames))
	for _, pn := range propertyNames {
		if p&pn.prop != 0 {
			names = append(names, pn.name)
		}
	}
	return strings.Join(names, ",")
}
