// ABOUTME: Hosted software emulation of the PIO and DMA hardware surface
// ABOUTME: Drains armed transfers into PCM sinks and delivers completion interrupts
// Package hwsim emulates the hardware platform in software so the streaming
// engines run unmodified on a development host. Armed DMA transfers are
// decoded back into 16-bit PCM frames and pushed to the sink attached to the
// destination state machine; once a transfer has drained, the channel's
// completion flag is raised and the installed handlers run on the
// simulator's dispatch goroutine.
//
// Dispatch is serialized: handlers never run concurrently, and disabling the
// IRQ line blocks until any in-flight handler has returned. Interrupt
// masking is the lock, exactly as on the real interrupt controller.
//
// A transfer is only drained while the destination state machine is enabled,
// mirroring the TX FIFO stall of real silicon: arming before start is safe,
// and stopping a unit freezes its stream without losing the armed transfer.
//
// With Realtime set, draining is paced at the sample rate implied by the
// programmed clock divider, so sinks receive audio at wall-clock speed.
package hwsim
