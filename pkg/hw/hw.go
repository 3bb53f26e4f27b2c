// ABOUTME: Interface definitions for PIO, DMA, system clock and pin mux
// ABOUTME: The exact verb set the streaming engines need and nothing more
package hw

// Pin is a GPIO pin number.
type Pin uint8

// Hardware extents of the target. One PIO block of eight state machines, a
// twelve-channel DMA engine and thirty user pins, matching the class of
// microcontroller this driver targets.
const (
	NumStateMachines = 8
	NumDMAChannels   = 12
	NumPins          = 30
)

// Program identifies one of the fixed wire-protocol programs a state machine
// can run. The bit patterns themselves live with the platform port; the
// engines only select which role a state machine plays.
type Program uint8

const (
	// ProgramI2S drives data plus both clock lines from one state machine.
	ProgramI2S Program = iota
	// ProgramI2SClock drives only the shared bit and word clock lines.
	ProgramI2SClock
	// ProgramI2SData drives one data line against externally generated clocks.
	ProgramI2SData
)

// TransferSize is the width of one DMA transfer unit.
type TransferSize uint8

const (
	// Size16 moves 16-bit units (one mono sample frame).
	Size16 TransferSize = iota
	// Size32 moves 32-bit units (one stereo sample frame).
	Size32
)

// PIO is one programmable I/O block of NumStateMachines state machines.
type PIO interface {
	// ClaimStateMachine marks a state machine as exclusively owned. A second
	// claim of the same machine returns an error; the engines treat that as a
	// fatal resource clash.
	ClaimStateMachine(sm uint8) error

	// AddProgram loads a protocol program into the block's shared instruction
	// memory and returns its offset. Loading the same program twice returns
	// the same offset.
	AddProgram(prog Program) (uint8, error)

	// InitStateMachine points a claimed state machine at a loaded program and
	// assigns its pins. Clock-only programs ignore dataPin; data-only
	// programs ignore clockPinBase.
	InitStateMachine(sm uint8, prog Program, offset uint8, dataPin, clockPinBase Pin)

	// SetEnabled starts or stops one state machine.
	SetEnabled(sm uint8, enabled bool)

	// SetEnabledMask starts or stops every state machine whose bit is set in
	// mask, atomically: all named machines change state on the same clock
	// edge.
	SetEnabledMask(mask uint32, enabled bool)

	// SetClkDivIntFrac sets a state machine's clock divider to div + frac/256.
	SetClkDivIntFrac(sm uint8, div uint16, frac uint8)

	// TxDREQ returns the DMA request signal of a state machine's TX FIFO.
	TxDREQ(sm uint8) uint8
}

// DMAConfig is the static configuration of a DMA channel: which TX FIFO it
// feeds (via the DREQ) and the width of each transfer unit. The destination
// register is implied by the DREQ.
type DMAConfig struct {
	DREQ uint8
	Size TransferSize
}

// DMA is the multi-channel DMA engine with its shared completion IRQ line.
type DMA interface {
	// ClaimChannel marks a channel as exclusively owned. A second claim of
	// the same channel returns an error; the engines treat that as a fatal
	// resource clash.
	ClaimChannel(ch uint8) error

	// Configure applies the static channel configuration.
	Configure(ch uint8, cfg DMAConfig)

	// SetReadIncrement selects whether the read address advances after each
	// transfer unit. With increment off the same word repeats, which is how
	// silence is produced from a single zero word.
	SetReadIncrement(ch uint8, incr bool)

	// TransferFromBufferNow arms and immediately triggers a transfer of
	// count transfer-units read from src. The channel raises its completion
	// flag when the last unit has been pushed.
	TransferFromBufferNow(ch uint8, src []byte, count uint32)

	// AddIRQHandler installs a handler on the shared completion line.
	// Handlers run in installation order on every completion; each must
	// check IRQPending for its own channels.
	AddIRQHandler(handler func())

	// SetChannelIRQEnabled routes a channel's completion flag onto the
	// shared line.
	SetChannelIRQEnabled(ch uint8, enabled bool)

	// SetIRQEnabled gates delivery of the shared line. While disabled,
	// completion flags latch but no handler runs.
	SetIRQEnabled(enabled bool)

	// IRQPending reports whether a channel's completion flag is raised.
	IRQPending(ch uint8) bool

	// IRQAcknowledge clears a channel's completion flag.
	IRQAcknowledge(ch uint8)
}

// Clock reports the system clock the dividers are computed against.
type Clock interface {
	SysHz() uint32
}

// PinMux assigns pin functions.
type PinMux interface {
	// SetFunctionPIO hands a pin to the PIO block.
	SetFunctionPIO(pin Pin)
}

// Platform bundles the hardware units one engine instance drives.
type Platform struct {
	PIO   PIO
	DMA   DMA
	Clock Clock
	Pins  PinMux
}
