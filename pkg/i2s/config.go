// ABOUTME: Engine configuration structures, defaults and validation
// ABOUTME: Pin, DMA and state-machine assignments are checked before any claim
package i2s

import (
	"fmt"

	"github.com/picoforge/i2s-go/pkg/hw"
)

// Defaults matching the reference wiring of a single DAC board.
const (
	DefaultDataPin      hw.Pin = 28
	DefaultClockPinBase hw.Pin = 26

	// MaxDACs is the most synchronized outputs a multi engine supports.
	// Each DAC needs one state machine and one DMA channel, plus the
	// shared clock generator; all state machines must come from one block.
	MaxDACs = 4

	// DefaultSilenceSampleLength is the length in samples of the silence
	// transfer armed on pool underrun.
	DefaultSilenceSampleLength = 256

	// Default consumer pool shape used by the plain connect entry points.
	DefaultBufferCount      = 2
	DefaultSamplesPerBuffer = 256
)

// Config is the hardware assignment for a single-output engine. The zero
// value is not valid; start from DefaultConfig.
type Config struct {
	// DataPin carries serial sample data to the DAC.
	DataPin hw.Pin
	// ClockPinBase is the bit clock; ClockPinBase+1 is the word clock.
	ClockPinBase hw.Pin
	// DMAChannel feeds the state machine's TX FIFO.
	DMAChannel uint8
	// StateMachine runs the combined clock-and-data program.
	StateMachine uint8
	// MonoInput declares that producers feed mono streams.
	MonoInput bool
	// MonoOutput selects a mono physical output (16-bit transfer units).
	MonoOutput bool
	// SilenceSampleLength overrides DefaultSilenceSampleLength when nonzero.
	SilenceSampleLength uint32
}

// DefaultConfig returns the reference single-DAC assignment.
func DefaultConfig() Config {
	return Config{
		DataPin:      DefaultDataPin,
		ClockPinBase: DefaultClockPinBase,
		DMAChannel:   0,
		StateMachine: 0,
	}
}

// MultiConfig is the hardware assignment for a synchronized multi-DAC
// engine. The per-DAC slices must hold at least DACs entries.
type MultiConfig struct {
	// DACs is the number of synchronized outputs, 2..MaxDACs.
	DACs int
	// DataPins carry serial data, one per DAC.
	DataPins []hw.Pin
	// ClockPinBase is the shared bit clock; ClockPinBase+1 the word clock.
	ClockPinBase hw.Pin
	// DMAChannels feed the data state machines, one per DAC.
	DMAChannels []uint8
	// ClockStateMachine runs the shared clock generator program.
	ClockStateMachine uint8
	// DataStateMachines run the data-only program, one per DAC.
	DataStateMachines []uint8
	// MonoInput declares that producers feed mono streams.
	MonoInput bool
	// MonoOutput selects mono physical outputs (16-bit transfer units).
	MonoOutput bool
	// SilenceSampleLength overrides DefaultSilenceSampleLength when nonzero.
	SilenceSampleLength uint32
}

func (c *Config) silenceLength() uint32 {
	if c.SilenceSampleLength != 0 {
		return c.SilenceSampleLength
	}
	return DefaultSilenceSampleLength
}

func (c *MultiConfig) silenceLength() uint32 {
	if c.SilenceSampleLength != 0 {
		return c.SilenceSampleLength
	}
	return DefaultSilenceSampleLength
}

// validate panics on assignments that cannot be claimed safely. These are
// build-time wiring bugs: continuing would program hardware another
// subsystem owns.
func (c *Config) validate() {
	checkPin(c.DataPin)
	checkClockPins(c.ClockPinBase)
	checkStateMachine(c.StateMachine)
	checkDMAChannel(c.DMAChannel)
	if c.DataPin == c.ClockPinBase || c.DataPin == c.ClockPinBase+1 {
		panic(fmt.Sprintf("i2s: data pin %d collides with clock pins", c.DataPin))
	}
}

func (c *MultiConfig) validateCount() error {
	if c.DACs < 2 || c.DACs > MaxDACs {
		return fmt.Errorf("%w: %d (want 2..%d)", ErrBadDACCount, c.DACs, MaxDACs)
	}
	return nil
}

func (c *MultiConfig) validate() {
	if len(c.DataPins) < c.DACs || len(c.DMAChannels) < c.DACs || len(c.DataStateMachines) < c.DACs {
		panic("i2s: multi config slices shorter than DAC count")
	}
	checkClockPins(c.ClockPinBase)
	checkStateMachine(c.ClockStateMachine)

	pins := map[hw.Pin]bool{c.ClockPinBase: true, c.ClockPinBase + 1: true}
	sms := map[uint8]bool{c.ClockStateMachine: true}
	dmas := map[uint8]bool{}

	for i := 0; i < c.DACs; i++ {
		pin := c.DataPins[i]
		checkPin(pin)
		if pins[pin] {
			panic(fmt.Sprintf("i2s: pin %d assigned twice", pin))
		}
		pins[pin] = true

		sm := c.DataStateMachines[i]
		checkStateMachine(sm)
		if sms[sm] {
			panic(fmt.Sprintf("i2s: state machine %d assigned twice", sm))
		}
		sms[sm] = true

		ch := c.DMAChannels[i]
		checkDMAChannel(ch)
		if dmas[ch] {
			panic(fmt.Sprintf("i2s: DMA channel %d assigned twice", ch))
		}
		dmas[ch] = true
	}
}

func checkPin(pin hw.Pin) {
	if pin >= hw.NumPins {
		panic(fmt.Sprintf("i2s: pin %d out of range", pin))
	}
}

func checkClockPins(base hw.Pin) {
	if base+1 >= hw.NumPins {
		panic(fmt.Sprintf("i2s: clock pin base %d out of range", base))
	}
}

func checkStateMachine(sm uint8) {
	if sm >= hw.NumStateMachines {
		panic(fmt.Sprintf("i2s: state machine index %d out of range", sm))
	}
}

func checkDMAChannel(ch uint8) {
	if ch >= hw.NumDMAChannels {
		panic(fmt.Sprintf("i2s: DMA channel %d out of range", ch))
	}
}

// claim wraps a hardware claim, turning a clash into the fatal tier.
func claim(what string, err error) {
	if err != nil {
		panic(fmt.Sprintf("i2s: %s claim failed: %v", what, err))
	}
}
