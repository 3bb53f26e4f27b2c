// ABOUTME: Frequency controller computing and applying state machine clock dividers
// ABOUTME: Caches the active sample rate to skip redundant divider writes
package i2s

import (
	"fmt"

	"github.com/picoforge/i2s-go/pkg/hw"
)

// The wire protocol spends 64 state-machine cycles per sample frame (32 bits
// per frame, two cycles per bit) and the divider register carries 8
// fractional bits, so the divider in 1/256 units is sys*256/(rate*64), i.e.
// sys*4/rate.
const clkdivScale = 4

// freqController computes the clock divider for a sample rate and applies it
// to every state machine it governs: one for a single-output engine, the
// clock generator plus all data units for a multi engine, which is how every
// channel's divider changes together.
type freqController struct {
	clock hw.Clock
	pio   hw.PIO
	sms   []uint8
	freq  uint32
}

// apply sets the divider for rate on every governed state machine and
// records rate as active. Applying the already-active rate writes nothing.
func (f *freqController) apply(rate uint32) {
	if rate == f.freq {
		return
	}
	sys := f.clock.SysHz()
	if sys >= 1<<30 {
		panic(fmt.Sprintf("i2s: system clock %d Hz overflows divider arithmetic", sys))
	}
	div := sys * clkdivScale / rate
	if div >= 1<<24 {
		panic(fmt.Sprintf("i2s: divider %d for %d Hz exceeds 24 bits", div, rate))
	}
	for _, sm := range f.sms {
		f.pio.SetClkDivIntFrac(sm, uint16(div>>8), uint8(div&0xff))
	}
	f.freq = rate
}

// current returns the active sample rate, zero before the first apply.
func (f *freqController) current() uint32 {
	return f.freq
}
