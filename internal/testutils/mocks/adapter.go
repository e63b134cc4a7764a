package mocks

import (
	"context"

	"github.com/go-ble/ble"
	"github.com/stretchr/testify/mock"
)

// ScanFunc lets a Scan expectation drive the advertisement handler.
type ScanFunc func(ctx context.Context, h ble.AdvHandler) error

// MockAdapter is a testify mock of the ble.Device subset driven by the
// go-ble Central service.
//
// A Scan expectation may return either an error or a ScanFunc:
//
//	adapter.On("Scan", mock.Anything, false, mock.Anything).Return(mocks.ScanFunc(
//	    func(ctx context.Context, h ble.AdvHandler) error {
//	        h(adv)
//	        <-ctx.Done()
//	        return ctx.Err()
//	    }))
type MockAdapter struct {
	mock.Mock
}

func (m *MockAdapter) Scan(ctx context.Context, allowDup bool, h ble.AdvHandler) error {
	args := m.Called(ctx, allowDup, h)
	if fn, ok := args.Get(0).(ScanFunc); ok {
		return fn(ctx, h)
	}
	return args.Error(0)
}

func (m *MockAdapter) Dial(ctx context.Context, a ble.Addr) (ble.Client, error) {
	args := m.Called(ctx, a)
	var c ble.Client
	if v := args.Get(0); v != nil {
		c = v.(ble.Client)
	}
	return c, args.Error(1)
}

func (m *MockAdapter) Stop() error {
	return m.Called().Error(0)
}
