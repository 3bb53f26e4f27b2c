// ABOUTME: Hardware abstraction boundary for the PIO block, DMA engine and clocks
// ABOUTME: Defines the interfaces real ports, mocks and the hosted simulator implement
// Package hw defines the hardware surface the streaming engines drive: a
// programmable I/O block of clocked state machines, a multi-channel DMA
// engine with one shared completion interrupt line, the system clock, and
// the pin mux. The engines treat all of it as a black box offering exactly
// these verbs: claim, load program, start/stop, set clock divider, arm
// transfer, raise completion interrupt.
//
// Two implementations ship with this module: hwtest (a recording mock for
// deterministic unit tests) and hwsim (a hosted software emulation that
// drains DMA transfers into PCM sinks). A port to real silicon implements
// the same interfaces over the device registers.
//
// Concurrency contract: DMA completion handlers are invoked one at a time,
// never concurrently with each other, and only while the IRQ line is enabled.
// Enabling and disabling the line is the engines' only synchronization
// primitive: interrupt masking is the lock. Implementations must establish
// a happens-before edge between SetIRQEnabled(true) and the first handler
// invocation so handlers never observe partially initialized engine state.
package hw
