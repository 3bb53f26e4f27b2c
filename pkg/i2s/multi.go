// ABOUTME: Multi-DAC engine sharing one clock generator across independent data units
// ABOUTME: Mask-based atomic start keeps every output phase-coherent
package i2s

import (
	"fmt"
	"log"

	"github.com/picoforge/i2s-go/pkg/audio"
	"github.com/picoforge/i2s-go/pkg/hw"
)

// outputChannel is the per-DAC state of a multi engine.
type outputChannel struct {
	dmaCh             uint8
	sm                uint8
	consumer          *audio.BufferPool
	consumerFormat    audio.Format
	consumerBufFormat audio.BufferFormat
	playing           *audio.Buffer
}

// MultiEngine streams to several DACs at once. One state machine generates
// the shared bit and word clocks; each DAC gets its own data-only state
// machine and DMA channel. All outputs run at one shared sample rate, and
// enable/disable transitions every data unit in a single atomic mask
// operation so the channels never skew against each other. Channels buffer
// independently: one channel underrunning substitutes silence on that
// channel only.
type MultiEngine struct {
	p   hw.Platform
	cfg MultiConfig

	clockSM  uint8
	channels []outputChannel
	freq     freqController

	initialized bool
	enabled     bool

	silence    [4]byte
	silenceLen uint32
}

// NewMultiEngine claims the shared clock state machine plus one data state
// machine and one DMA channel per DAC, loads the clock-generator and
// data-only programs and installs the completion handler.
//
// A DAC count outside 2..MaxDACs returns ErrBadDACCount with no resources
// touched, so the caller can retry with a corrected config. Overlapping or
// unavailable pins, DMA channels or state machines panic: continuing would
// silently corrupt another subsystem's hardware.
func NewMultiEngine(p hw.Platform, intended *audio.Format, cfg MultiConfig) (*MultiEngine, *audio.Format, error) {
	if err := cfg.validateCount(); err != nil {
		return nil, nil, err
	}
	cfg.validate()

	log.Printf("i2s: setting up %d synchronized DACs", cfg.DACs)

	m := &MultiEngine{
		p:          p,
		cfg:        cfg,
		clockSM:    cfg.ClockStateMachine,
		channels:   make([]outputChannel, cfg.DACs),
		silenceLen: cfg.silenceLength(),
	}

	p.Pins.SetFunctionPIO(cfg.ClockPinBase)
	p.Pins.SetFunctionPIO(cfg.ClockPinBase + 1)
	for i := 0; i < cfg.DACs; i++ {
		p.Pins.SetFunctionPIO(cfg.DataPins[i])
	}

	claim("clock state machine", p.PIO.ClaimStateMachine(m.clockSM))
	clockOffset, err := p.PIO.AddProgram(hw.ProgramI2SClock)
	if err != nil {
		panic(fmt.Sprintf("i2s: loading clock program: %v", err))
	}
	p.PIO.InitStateMachine(m.clockSM, hw.ProgramI2SClock, clockOffset, 0, cfg.ClockPinBase)

	dataOffset, err := p.PIO.AddProgram(hw.ProgramI2SData)
	if err != nil {
		panic(fmt.Sprintf("i2s: loading data program: %v", err))
	}

	_, _, size := outputShape(cfg.MonoOutput)
	sms := []uint8{m.clockSM}
	for i := 0; i < cfg.DACs; i++ {
		ch := &m.channels[i]
		ch.sm = cfg.DataStateMachines[i]
		ch.dmaCh = cfg.DMAChannels[i]

		claim("data state machine", p.PIO.ClaimStateMachine(ch.sm))
		p.PIO.InitStateMachine(ch.sm, hw.ProgramI2SData, dataOffset, cfg.DataPins[i], 0)

		claim("DMA channel", p.DMA.ClaimChannel(ch.dmaCh))
		p.DMA.Configure(ch.dmaCh, hw.DMAConfig{
			DREQ: p.PIO.TxDREQ(ch.sm),
			Size: size,
		})
		sms = append(sms, ch.sm)
	}
	m.freq = freqController{clock: p.Clock, pio: p.PIO, sms: sms}

	// State is fully published before the handler is installed and the
	// channel flags routed; the platform orders delivery after the IRQ gate.
	p.DMA.AddIRQHandler(m.dmaIRQHandler)
	for i := range m.channels {
		p.DMA.SetChannelIRQEnabled(m.channels[i].dmaCh, true)
	}

	m.initialized = true
	return m, intended, nil
}

// Connect wires a 16-bit PCM producer to one DAC. Returns ErrNotInitialized
// before setup and ErrBadChannel for an index that was not configured, in
// both cases mutating nothing. The producer's format must be 16-bit PCM or
// the call panics.
//
// The shared sample rate follows the most recent connect whose producer
// rate differs from the active rate; all DACs are driven by one clock pair
// and cannot run at independent rates.
func (m *MultiEngine) Connect(producer *audio.BufferPool, index int) error {
	if m == nil || !m.initialized {
		return ErrNotInitialized
	}
	if index < 0 || index >= len(m.channels) {
		return fmt.Errorf("%w: index %d of %d", ErrBadChannel, index, len(m.channels))
	}
	requireEncoding(producer, audio.PCMS16)

	log.Printf("i2s: connecting producer to DAC %d", index)

	ch := &m.channels[index]
	channels, stride, _ := outputShape(m.cfg.MonoOutput)
	ch.consumerFormat = audio.Format{
		Encoding:   audio.PCMS16,
		SampleRate: producer.Format.SampleRate,
		Channels:   channels,
	}
	ch.consumerBufFormat = audio.BufferFormat{Format: &ch.consumerFormat, SampleStride: stride}
	ch.consumer = audio.NewConsumerPool(&ch.consumerBufFormat, DefaultBufferCount, DefaultSamplesPerBuffer)

	// One clock pair drives every DAC; the controller skips the write when
	// the rate is already active, so later same-rate connects are free.
	m.freq.apply(producer.Format.SampleRate)

	convert, what := pickConvertS16(producer.Format, m.cfg.MonoInput, m.cfg.MonoOutput)
	log.Printf("i2s: %s at %d Hz for DAC %d", what, producer.Format.SampleRate, index)
	conn := &audio.CopyOnTakeConnection{Convert: convert}

	audio.CompleteConnection(wrapRateShift(conn, producer, &m.freq), producer, ch.consumer)
	return nil
}

// SetEnabled starts or stops every output together. Enabling arms each
// channel's first transfer, starts the shared clock generator, then starts
// all data units in one atomic mask operation so every DAC consumes its
// first sample on the same clock edge. Disabling stops clock and data units
// in one mask operation, then releases each channel's in-flight buffer.
// Idempotent; a no-op before setup.
func (m *MultiEngine) SetEnabled(enabled bool) {
	if !m.initialized || enabled == m.enabled {
		return
	}
	if enabled {
		log.Printf("i2s: enabling %d synchronized DACs", len(m.channels))
	}

	m.p.DMA.SetIRQEnabled(enabled)

	if enabled {
		for i := range m.channels {
			m.startDMATransfer(i)
		}
		m.p.PIO.SetEnabled(m.clockSM, true)
		var mask uint32
		for i := range m.channels {
			mask |= 1 << m.channels[i].sm
		}
		m.p.PIO.SetEnabledMask(mask, true)
	} else {
		mask := uint32(1) << m.clockSM
		for i := range m.channels {
			mask |= 1 << m.channels[i].sm
		}
		m.p.PIO.SetEnabledMask(mask, false)

		for i := range m.channels {
			ch := &m.channels[i]
			if ch.playing != nil {
				ch.consumer.Give(ch.playing)
				ch.playing = nil
			}
		}
	}

	m.enabled = enabled
}

// Enabled reports whether the outputs are running.
func (m *MultiEngine) Enabled() bool {
	return m.enabled
}

// DACs returns the number of configured output channels.
func (m *MultiEngine) DACs() int {
	return len(m.channels)
}

// startDMATransfer arms channel index with its next buffer, or with the
// repeated zero word when its pool is empty or the channel was never
// connected; disconnected DACs play silence.
func (m *MultiEngine) startDMATransfer(index int) {
	ch := &m.channels[index]
	if ch.playing != nil {
		panic("i2s: transfer already in flight")
	}

	var b *audio.Buffer
	if ch.consumer != nil {
		b = ch.consumer.Take(false)
	}
	if b == nil {
		m.p.DMA.SetReadIncrement(ch.dmaCh, false)
		m.p.DMA.TransferFromBufferNow(ch.dmaCh, m.silence[:], m.silenceLen)
		return
	}

	m.checkPlayable(ch, b)
	ch.playing = b
	m.p.DMA.SetReadIncrement(ch.dmaCh, true)
	stride := ch.consumerBufFormat.SampleStride
	m.p.DMA.TransferFromBufferNow(ch.dmaCh, b.Data[:b.SampleCount*stride], uint32(b.SampleCount))
}

func (m *MultiEngine) checkPlayable(ch *outputChannel, b *audio.Buffer) {
	if b.SampleCount == 0 {
		panic("i2s: empty buffer taken for playback")
	}
	if b.Format.Format.Encoding != audio.PCMS16 {
		panic("i2s: playback buffer is not 16-bit PCM")
	}
	channels, stride, _ := outputShape(m.cfg.MonoOutput)
	if b.Format.Format.Channels != channels || b.Format.SampleStride != stride {
		panic(fmt.Sprintf("i2s: playback buffer shape %dch stride %d, output wants %dch stride %d",
			b.Format.Format.Channels, b.Format.SampleStride, channels, stride))
	}
}

// dmaIRQHandler services every channel whose completion flag is raised:
// acknowledge, release, re-arm that channel only. Channels stay independent;
// an underrun on one never stalls or skews another, only the clock is
// shared.
func (m *MultiEngine) dmaIRQHandler() {
	for i := range m.channels {
		ch := &m.channels[i]
		if !m.p.DMA.IRQPending(ch.dmaCh) {
			continue
		}
		m.p.DMA.IRQAcknowledge(ch.dmaCh)

		if ch.playing != nil {
			ch.consumer.Give(ch.playing)
			ch.playing = nil
		}
		m.startDMATransfer(i)
	}
}
