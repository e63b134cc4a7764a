package mocks

import (
	"context"
	"io"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/gatt"
)

// MockService is a testify mock of central.Service.
type MockService struct {
	mock.Mock
}

func (m *MockService) TakeEventStream() (central.EventStream, error) {
	args := m.Called()
	var s central.EventStream
	if v := args.Get(0); v != nil {
		s = v.(central.EventStream)
	}
	return s, args.Error(1)
}

func (m *MockService) StartScan(ctx context.Context, filter *central.ScanFilter) error {
	return m.Called(ctx, filter).Error(0)
}

func (m *MockService) StopScan(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockService) ConnectPeripheral(ctx context.Context, id string, server *gatt.ServerEnd) (central.ConnectResult, error) {
	args := m.Called(ctx, id, server)
	var r central.ConnectResult
	if v := args.Get(0); v != nil {
		r = v.(central.ConnectResult)
	}
	return r, args.Error(1)
}

// ScriptedStream replays a fixed list of events, then ends with Err
// (io.EOF when Err is nil).
type ScriptedStream struct {
	mu     sync.Mutex
	events []central.Event
	Err    error
}

// NewScriptedStream creates a stream yielding events in order.
func NewScriptedStream(events ...central.Event) *ScriptedStream {
	return &ScriptedStream{events: events}
}

func (s *ScriptedStream) Next(ctx context.Context) (central.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.events) == 0 {
		if s.Err != nil {
			return nil, s.Err
		}
		return nil, io.EOF
	}
	evt := s.events[0]
	s.events = s.events[1:]
	return evt, nil
}

// Remaining reports how many events were not consumed.
func (s *ScriptedStream) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}
