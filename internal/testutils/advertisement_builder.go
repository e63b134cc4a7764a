package testutils

import (
	"encoding/json"
	"fmt"

	"github.com/go-ble/ble"

	"github.com/srg/blecentral/internal/testutils/mocks"
)

// AdvertisementBuilder builds mocked BLE advertisements for testing.
// Every accessor is mocked with .Maybe(), unset fields report the values a
// radio reports for absent data (empty name, no services, 127 for RSSI and
// TX power).
type AdvertisementBuilder struct {
	name        string
	address     string
	rssi        int
	services    []string
	manufData   []byte
	txPower     int
	connectable bool
}

// NewAdvertisementBuilder creates a connectable advertisement with no optional data.
func NewAdvertisementBuilder() *AdvertisementBuilder {
	return &AdvertisementBuilder{
		address:     "00:00:00:00:00:01",
		rssi:        127,
		txPower:     127,
		connectable: true,
	}
}

func (b *AdvertisementBuilder) WithName(name string) *AdvertisementBuilder {
	b.name = name
	return b
}

func (b *AdvertisementBuilder) WithAddress(addr string) *AdvertisementBuilder {
	b.address = addr
	return b
}

func (b *AdvertisementBuilder) WithRSSI(rssi int) *AdvertisementBuilder {
	b.rssi = rssi
	return b
}

// WithServices adds service UUIDs in short ("180D") or full form.
func (b *AdvertisementBuilder) WithServices(uuids ...string) *AdvertisementBuilder {
	b.services = append(b.services, uuids...)
	return b
}

func (b *AdvertisementBuilder) WithManufacturerData(data []byte) *AdvertisementBuilder {
	b.manufData = data
	return b
}

func (b *AdvertisementBuilder) WithTxPower(power int) *AdvertisementBuilder {
	b.txPower = power
	return b
}

func (b *AdvertisementBuilder) WithConnectable(c bool) *AdvertisementBuilder {
	b.connectable = c
	return b
}

// FromJSON fills builder fields from a JSON string with format support.
// Panics on invalid JSON as this is intended for test data setup.
func (b *AdvertisementBuilder) FromJSON(jsonStrFmt string, args ...interface{}) *AdvertisementBuilder {
	var data struct {
		Name             *string  `json:"name"`
		Address          *string  `json:"address"`
		RSSI             *int     `json:"rssi"`
		Services         []string `json:"services"`
		ManufacturerData []byte   `json:"manufacturerData"`
		TxPower          *int     `json:"txPower"`
		Connectable      *bool    `json:"connectable"`
	}
	if err := json.Unmarshal([]byte(fmt.Sprintf(jsonStrFmt, args...)), &data); err != nil {
		panic(fmt.Sprintf("FromJSON: %v", err))
	}

	if data.Name != nil {
		b.name = *data.Name
	}
	if data.Address != nil {
		b.address = *data.Address
	}
	if data.RSSI != nil {
		b.rssi = *data.RSSI
	}
	if data.Services != nil {
		b.services = data.Services
	}
	if data.ManufacturerData != nil {
		b.manufData = data.ManufacturerData
	}
	if data.TxPower != nil {
		b.txPower = *data.TxPower
	}
	if data.Connectable != nil {
		b.connectable = *data.Connectable
	}
	return b
}

// Build creates a MockAdvertisement implementing ble.Advertisement.
func (b *AdvertisementBuilder) Build() *mocks.MockAdvertisement {
	var services []ble.UUID
	for _, s := range b.services {
		services = append(services, ble.MustParse(s))
	}

	adv := &mocks.MockAdvertisement{}
	adv.On("Addr").Return(ble.NewAddr(b.address)).Maybe()
	adv.On("LocalName").Return(b.name).Maybe()
	adv.On("RSSI").Return(b.rssi).Maybe()
	adv.On("TxPowerLevel").Return(b.txPower).Maybe()
	adv.On("Services").Return(services).Maybe()
	adv.On("ManufacturerData").Return(b.manufData).Maybe()
	adv.On("ServiceData").Return([]ble.ServiceData(nil)).Maybe()
	adv.On("Connectable").Return(b.connectable).Maybe()
	return adv
}
