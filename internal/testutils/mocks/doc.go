// Package mocks holds testify mocks for the go-ble interfaces and the
// Central service used across package tests.
package mocks
