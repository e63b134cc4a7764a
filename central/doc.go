// Package central drives a Bluetooth LE Central service from the command line.
//
// A Listener consumes the service's ordered event stream, prints every
// discovered peripheral, and, depending on the ClientState flags, stops the
// scan, connects to the first connectable peripheral and hands the connection
// to the GATT REPL. Conditions that end a session without an error are
// reported as ErrTerminated so the caller decides how to exit.
package central
