package central_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/srg/blecentral/central"
	"github.com/srg/blecentral/internal/gatt"
	"github.com/srg/blecentral/internal/testutils"
	"github.com/srg/blecentral/internal/testutils/mocks"
)

type ListenerTestSuite struct {
	suite.Suite

	helper   *testutils.TestHelper
	svc      *mocks.MockService
	out      *bytes.Buffer
	errOut   *bytes.Buffer
	listener *central.Listener

	endpointCalls int
	gattCalls     []*gatt.ClientEnd
	gattErr       error
}

func (s *ListenerTestSuite) SetupTest() {
	s.helper = testutils.NewTestHelper(s.T())
	s.svc = &mocks.MockService{}
	s.out = &bytes.Buffer{}
	s.errOut = &bytes.Buffer{}
	s.endpointCalls = 0
	s.gattCalls = nil
	s.gattErr = nil

	s.listener = &central.Listener{
		Out:    s.out,
		Err:    s.errOut,
		Logger: s.helper.Logger,
		NewEndpoints: func(ctx context.Context) (*gatt.ClientEnd, *gatt.ServerEnd, error) {
			s.endpointCalls++
			return gatt.NewEndpoints(ctx)
		},
		GattLoop: func(ctx context.Context, client *gatt.ClientEnd) error {
			s.gattCalls = append(s.gattCalls, client)
			return s.gattErr
		},
	}
}

func (s *ListenerTestSuite) TearDownTest() {
	s.svc.AssertExpectations(s.T())
}

func (s *ListenerTestSuite) withStream(events ...central.Event) *mocks.ScriptedStream {
	stream := mocks.NewScriptedStream(events...)
	s.svc.On("TakeEventStream").Return(stream, nil).Once()
	return stream
}

func discovered(id string, connectable bool) central.DeviceDiscovered {
	return central.DeviceDiscovered{Device: central.RemoteDevice{
		Identifier:  id,
		Connectable: connectable,
		RSSI:        intPtr(-40),
		Advertising: &central.AdvertisingData{Name: strPtr("Widget")},
	}}
}

func (s *ListenerTestSuite) calledMethods() []string {
	var names []string
	for _, c := range s.svc.Calls {
		names = append(names, c.Method)
	}
	return names
}

func (s *ListenerTestSuite) TestPrintsEventsInArrivalOrder() {
	// GOAL: Verify every event produces exactly one line, in emission order
	//
	// TEST SCENARIO: Scan starts, scan stops, scan restarts, one device is found in report-only mode → four lines in order

	s.withStream(
		central.ScanStateChanged{Scanning: true},
		central.ScanStateChanged{Scanning: false},
		central.ScanStateChanged{Scanning: true},
		discovered("abc", true),
	)

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc))
	s.Require().NoError(err)

	testutils.NewOutputAsserter(s.T(), testutils.WithTrimSpace(false)).Equal(
		"  scan state changed: true\n"+
			"  scan state changed: false\n"+
			"  scan state changed: true\n"+
			" [device(conn), rssi: -40, Widget, id: abc]\n",
		s.errOut.String())
	s.Empty(s.out.String())
}

func (s *ListenerTestSuite) TestReportOnlyModeStopsAfterFirstDiscovery() {
	// GOAL: Verify that without scan-once and auto-connect the listener returns after the first discovery
	//
	// TEST SCENARIO: Two devices are queued, no flags set → one line printed, no stop-scan issued, second event unread

	stream := s.withStream(discovered("abc", true), discovered("def", true))

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc))

	s.Require().NoError(err)
	s.Equal(" [device(conn), rssi: -40, Widget, id: abc]\n", s.errOut.String())
	s.Equal(1, stream.Remaining(), "listener MUST stop consuming after the first discovery")
	s.svc.AssertNotCalled(s.T(), "StopScan", mock.Anything)
	s.svc.AssertNotCalled(s.T(), "ConnectPeripheral", mock.Anything, mock.Anything, mock.Anything)
}

func (s *ListenerTestSuite) TestScanOnceTerminatesAfterStopScan() {
	// GOAL: Verify scan-once stops the scan exactly once and terminates
	//
	// TEST SCENARIO: scan_once=true, connectable device found → stop-scan once, no connect, ErrTerminated

	s.withStream(discovered("abc", true), discovered("def", true))
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithScanOnce(true)))

	s.Require().ErrorIs(err, central.ErrTerminated)
	var terminated *central.TerminatedError
	s.Require().ErrorAs(err, &terminated)
	s.Equal(central.ReasonScanComplete, terminated.Reason)
	s.Equal("abc", terminated.Identifier)

	s.svc.AssertNumberOfCalls(s.T(), "StopScan", 1)
	s.svc.AssertNotCalled(s.T(), "ConnectPeripheral", mock.Anything, mock.Anything, mock.Anything)
	s.Zero(s.endpointCalls)
}

func (s *ListenerTestSuite) TestStopScanFailureTerminatesWithoutConnect() {
	// GOAL: Verify a failed stop-scan request ends the session before any connect attempt
	//
	// TEST SCENARIO: auto_connect=true, stop-scan fails → failure reported, connect never attempted, ErrTerminated

	s.withStream(discovered("abc", true))
	stopErr := errors.New("service unavailable")
	s.svc.On("StopScan", mock.Anything).Return(stopErr).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	s.Require().ErrorIs(err, central.ErrTerminated)
	s.ErrorIs(err, stopErr)
	var terminated *central.TerminatedError
	s.Require().ErrorAs(err, &terminated)
	s.Equal(central.ReasonStopScanFailed, terminated.Reason)

	s.Contains(s.errOut.String(), "request to stop scan failed: service unavailable\n")
	s.svc.AssertNotCalled(s.T(), "ConnectPeripheral", mock.Anything, mock.Anything, mock.Anything)
	s.Zero(s.endpointCalls, "endpoints MUST NOT be created when stop-scan fails")
	s.Empty(s.gattCalls)
}

func (s *ListenerTestSuite) TestAutoConnectConnectsToConnectableDevice() {
	// GOAL: Verify auto-connect stops the scan, connects once to the discovered id and runs the GATT loop
	//
	// TEST SCENARIO: auto_connect=true, connectable device → stop-scan, one connect with "abc", GATT loop once, stream end → success

	s.withStream(discovered("abc", true))
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()
	s.svc.On("ConnectPeripheral", mock.Anything, "abc", mock.AnythingOfType("*gatt.ServerEnd")).
		Return(central.ConnectResult{}, nil).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	s.Require().NoError(err)
	s.Equal([]string{"TakeEventStream", "StopScan", "ConnectPeripheral"}, s.calledMethods(),
		"stop-scan MUST precede the connect request")
	s.Equal(1, s.endpointCalls)
	s.Len(s.gattCalls, 1, "GATT loop MUST be invoked exactly once")
	s.Equal("  device connected: abc\n", s.out.String())
}

func (s *ListenerTestSuite) TestAutoConnectKeepsListeningAfterSession() {
	// GOAL: Verify the listener keeps consuming events after the GATT loop returns
	//
	// TEST SCENARIO: connect succeeds, then the peer disconnects → disconnect line printed, ErrTerminated

	s.withStream(discovered("abc", true), central.PeripheralDisconnected{Identifier: "abc"})
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()
	s.svc.On("ConnectPeripheral", mock.Anything, "abc", mock.Anything).Return(central.ConnectResult{}, nil).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	s.Require().ErrorIs(err, central.ErrTerminated)
	var terminated *central.TerminatedError
	s.Require().ErrorAs(err, &terminated)
	s.Equal(central.ReasonPeerDisconnected, terminated.Reason)
	s.Equal("abc", terminated.Identifier)
	s.Contains(s.errOut.String(), "  peer disconnected: abc\n")
}

func (s *ListenerTestSuite) TestScanOnceWithAutoConnectEndsAfterSession() {
	// GOAL: Verify scan-once ends listening once the single connect session is over
	//
	// TEST SCENARIO: scan_once+auto_connect, connect succeeds, a second discovery is still queued → one stop-scan, one connect, ErrTerminated, second discovery unread

	stream := s.withStream(discovered("abc", true), discovered("def", true))
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()
	s.svc.On("ConnectPeripheral", mock.Anything, "abc", mock.Anything).Return(central.ConnectResult{}, nil).Once()

	err := s.listener.Listen(context.Background(),
		central.NewClientState(s.svc, central.WithScanOnce(true), central.WithAutoConnect(true)))

	s.Require().ErrorIs(err, central.ErrTerminated)
	var terminated *central.TerminatedError
	s.Require().ErrorAs(err, &terminated)
	s.Equal(central.ReasonScanComplete, terminated.Reason)
	s.Equal("abc", terminated.Identifier)

	s.Equal(1, stream.Remaining(), "listener MUST stop consuming after the scan-once session")
	s.svc.AssertNumberOfCalls(s.T(), "StopScan", 1)
	s.svc.AssertNumberOfCalls(s.T(), "ConnectPeripheral", 1)
	s.Len(s.gattCalls, 1)
	s.Equal("  device connected: abc\n", s.out.String())
}

func (s *ListenerTestSuite) TestAutoConnectReportsQueuedDiscoveryWithoutReconnecting() {
	// GOAL: Verify discoveries queued before the scan stopped are reported but never trigger another stop-scan or connect
	//
	// TEST SCENARIO: auto_connect only, connect succeeds, a stale discovery follows, then the peer disconnects → one line per discovery, single stop-scan and connect, ErrTerminated on disconnect

	s.withStream(
		discovered("abc", true),
		discovered("def", true),
		central.PeripheralDisconnected{Identifier: "abc"},
	)
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()
	s.svc.On("ConnectPeripheral", mock.Anything, "abc", mock.Anything).Return(central.ConnectResult{}, nil).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	s.Require().ErrorIs(err, central.ErrTerminated)
	var terminated *central.TerminatedError
	s.Require().ErrorAs(err, &terminated)
	s.Equal(central.ReasonPeerDisconnected, terminated.Reason)

	testutils.NewOutputAsserter(s.T(), testutils.WithTrimSpace(false)).Equal(
		" [device(conn), rssi: -40, Widget, id: abc]\n"+
			" [device(conn), rssi: -40, Widget, id: def]\n"+
			"  peer disconnected: abc\n",
		s.errOut.String())
	s.svc.AssertNumberOfCalls(s.T(), "StopScan", 1)
	s.svc.AssertNumberOfCalls(s.T(), "ConnectPeripheral", 1)
	s.Equal(1, s.endpointCalls, "queued discovery MUST NOT create a second endpoint pair")
	s.Len(s.gattCalls, 1)
}

func (s *ListenerTestSuite) TestAutoConnectSkipsNonConnectableDevice() {
	// GOAL: Verify a non-connectable first device ends the session without connecting
	//
	// TEST SCENARIO: auto_connect=true, non-connectable device → stop-scan, no connect, ErrTerminated

	s.withStream(discovered("abc", false), discovered("def", true))
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	s.Require().ErrorIs(err, central.ErrTerminated)
	s.Contains(s.errOut.String(), " [device(non-conn), rssi: -40, Widget, id: abc]\n")
	s.NotContains(s.errOut.String(), "def", "listener MUST NOT read past a terminal discovery")
	s.svc.AssertNotCalled(s.T(), "ConnectPeripheral", mock.Anything, mock.Anything, mock.Anything)
	s.Zero(s.endpointCalls)
}

func (s *ListenerTestSuite) TestConnectFailurePropagates() {
	// GOAL: Verify a refused connection ends listening with the structured error
	//
	// TEST SCENARIO: connect returns a failure "timeout" → diagnostic printed, ServiceError returned, GATT loop not run

	s.withStream(discovered("abc", true))
	s.svc.On("StopScan", mock.Anything).Return(nil).Once()
	s.svc.On("ConnectPeripheral", mock.Anything, "abc", mock.Anything).
		Return(central.ConnectResult{Error: central.NewServiceError(central.ErrorCodeTimedOut, "timeout")}, nil).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	var svcErr *central.ServiceError
	s.Require().ErrorAs(err, &svcErr)
	s.Equal(central.ErrorCodeTimedOut, svcErr.Code)
	s.NotErrorIs(err, central.ErrTerminated)
	s.Equal("  failed to connect to peripheral: timeout\n", s.out.String())
	s.Empty(s.gattCalls)
}

func (s *ListenerTestSuite) TestPeerDisconnectedTerminates() {
	// GOAL: Verify a disconnect event is reported and terminates the session
	//
	// TEST SCENARIO: stream yields a disconnect → one line, ErrTerminated, following events unread

	stream := s.withStream(central.PeripheralDisconnected{Identifier: "abc"}, central.ScanStateChanged{Scanning: true})

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc))

	s.Require().ErrorIs(err, central.ErrTerminated)
	s.Equal("  peer disconnected: abc\n", s.errOut.String())
	s.Equal(1, stream.Remaining())
}

func (s *ListenerTestSuite) TestStreamEndReturnsSuccess() {
	// GOAL: Verify an exhausted stream ends listening successfully
	//
	// TEST SCENARIO: only scan state events then EOF → nil

	s.withStream(central.ScanStateChanged{Scanning: true}, central.ScanStateChanged{Scanning: false})

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc, central.WithAutoConnect(true)))

	s.Require().NoError(err)
	s.svc.AssertNotCalled(s.T(), "StopScan", mock.Anything)
}

func (s *ListenerTestSuite) TestStreamErrorPropagates() {
	// GOAL: Verify an event decoding failure is returned as is
	//
	// TEST SCENARIO: stream fails after one event → error returned, not ErrTerminated

	stream := s.withStream(central.ScanStateChanged{Scanning: true})
	stream.Err = errors.New("malformed event")

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc))

	s.Require().EqualError(err, "malformed event")
	s.NotErrorIs(err, central.ErrTerminated)
}

func (s *ListenerTestSuite) TestTakeEventStreamFailure() {
	// GOAL: Verify a missing event stream is reported
	//
	// TEST SCENARIO: stream already taken → wrapped ErrEventStreamTaken

	s.svc.On("TakeEventStream").Return(nil, central.ErrEventStreamTaken).Once()

	err := s.listener.Listen(context.Background(), central.NewClientState(s.svc))

	s.Require().ErrorIs(err, central.ErrEventStreamTaken)
	s.Contains(err.Error(), "failed to take event stream")
}

func (s *ListenerTestSuite) TestCancelledContext() {
	// GOAL: Verify listening stops when the context is cancelled
	//
	// TEST SCENARIO: context cancelled before listening → context.Canceled, nothing printed

	s.withStream(discovered("abc", true))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.listener.Listen(ctx, central.NewClientState(s.svc))

	s.Require().ErrorIs(err, context.Canceled)
	s.Empty(s.errOut.String())
}

func TestListenerTestSuite(t *testing.T) {
	suite.Run(t, new(ListenerTestSuite))
}
