package mocks

import (
	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockAdvertisement is a testify mock of ble.Advertisement.
// The embedded interface stays nil; only mocked methods may be called.
type MockAdvertisement struct {
	ble.Advertisement
	mock.Mock
}

func (m *MockAdvertisement) LocalName() string {
	return m.Called().String(0)
}

func (m *MockAdvertisement) ManufacturerData() []byte {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]byte)
	}
	return nil
}

func (m *MockAdvertisement) ServiceData() []ble.ServiceData {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.ServiceData)
	}
	return nil
}

func (m *MockAdvertisement) Services() []ble.UUID {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.([]ble.UUID)
	}
	return nil
}

func (m *MockAdvertisement) TxPowerLevel() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Connectable() bool {
	return m.Called().Bool(0)
}

func (m *MockAdvertisement) RSSI() int {
	return m.Called().Int(0)
}

func (m *MockAdvertisement) Addr() ble.Addr {
	args := m.Called()
	if v := args.Get(0); v != nil {
		return v.(ble.Addr)
	}
	return nil
}
