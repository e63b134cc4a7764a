package central

import "sync"

// ClientState is shared by every task of a client session.
//
// The mode flags are written before listening starts and only read
// afterwards; the service handle is fixed at construction.
type ClientState struct {
	mu          sync.RWMutex
	scanOnce    bool
	autoConnect bool
	svc         Service
}

// StateOption sets a mode flag at construction.
type StateOption func(*ClientState)

// WithScanOnce stops scanning and listening after the first discovery.
func WithScanOnce(v bool) StateOption {
	return func(s *ClientState) { s.scanOnce = v }
}

// WithAutoConnect connects to the first connectable discovered peripheral.
func WithAutoConnect(v bool) StateOption {
	return func(s *ClientState) { s.autoConnect = v }
}

// NewClientState wraps a connected service endpoint.
func NewClientState(svc Service, opts ...StateOption) *ClientState {
	s := &ClientState{svc: svc}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Configure sets both mode flags. Call it before Listen.
func (s *ClientState) Configure(scanOnce, autoConnect bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanOnce = scanOnce
	s.autoConnect = autoConnect
}

func (s *ClientState) ScanOnce() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOnce
}

func (s *ClientState) AutoConnect() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.autoConnect
}

// Service returns the Central service handle.
func (s *ClientState) Service() Service {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.svc
}

// snapshot reads flags and handle under a single read lock.
func (s *ClientState) snapshot() (scanOnce, autoConnect bool, svc Service) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scanOnce, s.autoConnect, s.svc
}
