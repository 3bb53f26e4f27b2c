// ABOUTME: Sentinel errors for the recoverable failure tier
// ABOUTME: Contract violations panic instead and are not represented here
package i2s

import "errors"

var (
	// ErrBadDACCount reports a multi-engine DAC count outside 2..MaxDACs.
	ErrBadDACCount = errors.New("i2s: DAC count out of range")

	// ErrBadChannel reports a connect to a channel index that was not
	// configured.
	ErrBadChannel = errors.New("i2s: no such output channel")

	// ErrNotInitialized reports an operation on an engine that was never
	// set up.
	ErrNotInitialized = errors.New("i2s: engine not initialized")
)
