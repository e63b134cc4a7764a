package mocks

import (
	"sync"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// MockClient is a testify mock of ble.Client covering the calls made by the
// Central service and the GATT loop. CancelConnection closes the channel
// returned by Disconnected unless an error is configured.
type MockClient struct {
	ble.Client
	mock.Mock

	addr         ble.Addr
	once         sync.Once
	disconnected chan struct{}
}

// NewMockClient creates a client reporting the given address.
func NewMockClient(address string) *MockClient {
	return &MockClient{
		addr:         ble.NewAddr(address),
		disconnected: make(chan struct{}),
	}
}

func (m *MockClient) Addr() ble.Addr {
	return m.addr
}

func (m *MockClient) DiscoverProfile(force bool) (*ble.Profile, error) {
	args := m.Called(force)
	var p *ble.Profile
	if v := args.Get(0); v != nil {
		p = v.(*ble.Profile)
	}
	return p, args.Error(1)
}

func (m *MockClient) ReadCharacteristic(c *ble.Characteristic) ([]byte, error) {
	args := m.Called(c)
	var data []byte
	if v := args.Get(0); v != nil {
		data = v.([]byte)
	}
	return data, args.Error(1)
}

func (m *MockClient) WriteCharacteristic(c *ble.Characteristic, value []byte, noRsp bool) error {
	return m.Called(c, value, noRsp).Error(0)
}

func (m *MockClient) CancelConnection() error {
	err := m.Called().Error(0)
	if err == nil {
		m.Disconnect()
	}
	return err
}

func (m *MockClient) Disconnected() <-chan struct{} {
	return m.disconnected
}

// Disconnect simulates the peer dropping the connection.
func (m *MockClient) Disconnect() {
	m.once.Do(func() { close(m.disconnected) })
}
