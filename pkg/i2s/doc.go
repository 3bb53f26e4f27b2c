// ABOUTME: I2S streaming engine core with single and multi-DAC output
// ABOUTME: DMA-driven double buffering, silence substitution and clock-synchronized fan-out
// Package i2s implements driver-level I2S audio streaming over the hw
// platform abstraction: a single-output engine owning one state machine and
// one DMA channel, and a multi-output engine fanning out to several DACs
// that share one clock generator for phase-coherent playback.
//
// After setup, the DMA completion interrupt is the sole steady-state driver:
// it releases the buffer just played, takes the next one from the consumer
// pool without blocking, and re-arms the channel, substituting a repeated
// zero word when the pool is empty so the output stream never stalls.
//
// Single output:
//
//	engine, format := i2s.NewEngine(platform, &fmt, i2s.DefaultConfig())
//	engine.Connect(producerPool)
//	engine.SetEnabled(true)
//
// Synchronized fan-out:
//
//	multi, format, err := i2s.NewMultiEngine(platform, &fmt, multiCfg)
//	multi.Connect(leftPool, 0)
//	multi.Connect(rightPool, 1)
//	multi.SetEnabled(true)
//
// Error handling is two-tier: integration bugs (format contract violations,
// divider overflow, hardware resource clashes) panic, because continuing
// would corrupt the output or another subsystem's hardware; recoverable
// conditions (bad channel index, engine not initialized, out-of-range DAC
// count) return errors and leave all state untouched.
//
// The engines take no locks. The playing-buffer slot of each channel is
// written by the completion handler in steady state and by SetEnabled only
// while handler delivery is gated off: interrupt masking is the lock.
package i2s
