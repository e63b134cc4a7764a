// Package device holds the platform-neutral pieces shared by the Central
// backends: connection error types, sentinel errors and UUID normalization.
//
// Backend implementations live in sub-packages (see go-ble) and map their
// library-specific failures onto the errors declared here, so callers can use
// errors.Is regardless of the radio stack underneath.
package device
