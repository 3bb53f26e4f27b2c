// ABOUTME: Recording mock platform for deterministic engine unit tests
// ABOUTME: Captures every hardware call and fires completion interrupts on demand
package hwtest

import (
	"fmt"

	"github.com/picoforge/i2s-go/pkg/hw"
)

// Transfer records one armed DMA transfer.
type Transfer struct {
	Channel   uint8
	Src       []byte
	Count     uint32
	Increment bool
}

// MaskOp records one atomic mask enable/disable of state machines.
type MaskOp struct {
	Mask    uint32
	Enabled bool
}

// Platform is a hw.Platform backed by a recording mock. Tests inspect the
// public fields after driving the engine and fire completion interrupts with
// FireCompletion. Everything runs on the test goroutine; nothing here is
// concurrent.
type Platform struct {
	SysClockHz uint32

	ClaimedSMs      map[uint8]bool
	Programs        []hw.Program
	SMEnabled       map[uint8]bool
	SMProgram       map[uint8]hw.Program
	ClkDiv          map[uint8]uint32 // div<<8 | frac
	ClkDivWrites    int
	MaskOps         []MaskOp
	PIOPins         map[hw.Pin]bool
	ClaimedChannels map[uint8]bool
	ChannelConfigs  map[uint8]hw.DMAConfig
	ReadIncrement   map[uint8]bool
	Transfers       []Transfer
	IRQEnabled      bool
	ChannelIRQ      map[uint8]bool
	Pending         map[uint8]bool
	Handlers        []func()

	// Ops is a flat trace of state-changing calls, in order, for asserting
	// sequencing (arm before clock start, clock start before mask start).
	Ops []string
}

// New creates a mock platform with the given system clock.
func New(sysClockHz uint32) *Platform {
	return &Platform{
		SysClockHz:      sysClockHz,
		ClaimedSMs:      map[uint8]bool{},
		SMEnabled:       map[uint8]bool{},
		SMProgram:       map[uint8]hw.Program{},
		ClkDiv:          map[uint8]uint32{},
		PIOPins:         map[hw.Pin]bool{},
		ClaimedChannels: map[uint8]bool{},
		ChannelConfigs:  map[uint8]hw.DMAConfig{},
		ReadIncrement:   map[uint8]bool{},
		ChannelIRQ:      map[uint8]bool{},
		Pending:         map[uint8]bool{},
	}
}

// Hardware returns the hw.Platform view of the mock.
func (p *Platform) Hardware() hw.Platform {
	return hw.Platform{PIO: p, DMA: p, Clock: p, Pins: p}
}

func (p *Platform) op(format string, args ...any) {
	p.Ops = append(p.Ops, fmt.Sprintf(format, args...))
}

// FireCompletion raises a channel's completion flag and, if the IRQ line and
// the channel's routing are enabled, runs the installed handlers.
func (p *Platform) FireCompletion(ch uint8) {
	p.Pending[ch] = true
	if !p.IRQEnabled || !p.ChannelIRQ[ch] {
		return
	}
	for _, h := range p.Handlers {
		h()
	}
}

// LastTransfer returns the most recently armed transfer on a channel, or nil.
func (p *Platform) LastTransfer(ch uint8) *Transfer {
	for i := len(p.Transfers) - 1; i >= 0; i-- {
		if p.Transfers[i].Channel == ch {
			return &p.Transfers[i]
		}
	}
	return nil
}

// PIO implementation.

func (p *Platform) ClaimStateMachine(sm uint8) error {
	if p.ClaimedSMs[sm] {
		return fmt.Errorf("state machine %d already claimed", sm)
	}
	p.ClaimedSMs[sm] = true
	return nil
}

func (p *Platform) AddProgram(prog hw.Program) (uint8, error) {
	for i, loaded := range p.Programs {
		if loaded == prog {
			return uint8(i * 8), nil
		}
	}
	p.Programs = append(p.Programs, prog)
	return uint8((len(p.Programs) - 1) * 8), nil
}

func (p *Platform) InitStateMachine(sm uint8, prog hw.Program, offset uint8, dataPin, clockPinBase hw.Pin) {
	p.SMProgram[sm] = prog
	p.op("sm_init %d prog=%d", sm, prog)
}

func (p *Platform) SetEnabled(sm uint8, enabled bool) {
	p.SMEnabled[sm] = enabled
	p.op("sm_enable %d %v", sm, enabled)
}

func (p *Platform) SetEnabledMask(mask uint32, enabled bool) {
	for sm := uint8(0); sm < hw.NumStateMachines; sm++ {
		if mask&(1<<sm) != 0 {
			p.SMEnabled[sm] = enabled
		}
	}
	p.MaskOps = append(p.MaskOps, MaskOp{Mask: mask, Enabled: enabled})
	p.op("sm_mask_enable %#x %v", mask, enabled)
}

func (p *Platform) SetClkDivIntFrac(sm uint8, div uint16, frac uint8) {
	p.ClkDiv[sm] = uint32(div)<<8 | uint32(frac)
	p.ClkDivWrites++
	p.op("sm_clkdiv %d %d.%d", sm, div, frac)
}

func (p *Platform) TxDREQ(sm uint8) uint8 {
	return sm
}

// DMA implementation.

func (p *Platform) ClaimChannel(ch uint8) error {
	if p.ClaimedChannels[ch] {
		return fmt.Errorf("DMA channel %d already claimed", ch)
	}
	p.ClaimedChannels[ch] = true
	return nil
}

func (p *Platform) Configure(ch uint8, cfg hw.DMAConfig) {
	p.ChannelConfigs[ch] = cfg
}

func (p *Platform) SetReadIncrement(ch uint8, incr bool) {
	p.ReadIncrement[ch] = incr
}

func (p *Platform) TransferFromBufferNow(ch uint8, src []byte, count uint32) {
	p.Transfers = append(p.Transfers, Transfer{
		Channel:   ch,
		Src:       src,
		Count:     count,
		Increment: p.ReadIncrement[ch],
	})
	p.op("dma_trigger %d count=%d incr=%v", ch, count, p.ReadIncrement[ch])
}

func (p *Platform) AddIRQHandler(handler func()) {
	p.Handlers = append(p.Handlers, handler)
}

func (p *Platform) SetChannelIRQEnabled(ch uint8, enabled bool) {
	p.ChannelIRQ[ch] = enabled
}

func (p *Platform) SetIRQEnabled(enabled bool) {
	p.IRQEnabled = enabled
	p.op("irq_enable %v", enabled)
}

func (p *Platform) IRQPending(ch uint8) bool {
	return p.Pending[ch]
}

func (p *Platform) IRQAcknowledge(ch uint8) {
	p.Pending[ch] = false
}

// Clock implementation.

func (p *Platform) SysHz() uint32 {
	return p.SysClockHz
}

// PinMux implementation.

func (p *Platform) SetFunctionPIO(pin hw.Pin) {
	p.PIOPins[pin] = true
}
