// ABOUTME: Single-output streaming engine owning one state machine and one DMA channel
// ABOUTME: Completion interrupt releases the played buffer and re-arms or substitutes silence
package i2s

import (
	"fmt"
	"log"

	"github.com/picoforge/i2s-go/pkg/audio"
	"github.com/picoforge/i2s-go/pkg/hw"
)

// Engine streams one I2S output. Construct with NewEngine, wire a producer
// with one of the Connect entry points, then SetEnabled(true).
//
// The playing-buffer slot is written by the completion handler in steady
// state and by SetEnabled only while the IRQ line is gated off; no other
// synchronization exists or is needed.
type Engine struct {
	p   hw.Platform
	cfg Config

	sm    uint8
	dmaCh uint8
	freq  freqController

	consumer          *audio.BufferPool
	consumerFormat    audio.Format
	consumerBufFormat audio.BufferFormat

	playing *audio.Buffer
	enabled bool

	// silence is the single zero word a non-incrementing transfer repeats
	// on pool underrun.
	silence    [4]byte
	silenceLen uint32
}

// NewEngine claims the configured state machine and DMA channel, loads the
// I2S program, assigns the pins and installs the completion handler on the
// shared IRQ line. Returns the engine and the format the output will accept,
// which for this hardware is the intended format unchanged.
//
// A pin, DMA or state-machine assignment that is invalid or already claimed
// panics: it is a wiring bug that cannot be continued past.
func NewEngine(p hw.Platform, intended *audio.Format, cfg Config) (*Engine, *audio.Format) {
	cfg.validate()

	e := &Engine{
		p:          p,
		cfg:        cfg,
		sm:         cfg.StateMachine,
		dmaCh:      cfg.DMAChannel,
		silenceLen: cfg.silenceLength(),
	}
	e.freq = freqController{clock: p.Clock, pio: p.PIO, sms: []uint8{e.sm}}

	p.Pins.SetFunctionPIO(cfg.DataPin)
	p.Pins.SetFunctionPIO(cfg.ClockPinBase)
	p.Pins.SetFunctionPIO(cfg.ClockPinBase + 1)

	claim("state machine", p.PIO.ClaimStateMachine(e.sm))
	offset, err := p.PIO.AddProgram(hw.ProgramI2S)
	if err != nil {
		panic(fmt.Sprintf("i2s: loading I2S program: %v", err))
	}
	p.PIO.InitStateMachine(e.sm, hw.ProgramI2S, offset, cfg.DataPin, cfg.ClockPinBase)

	claim("DMA channel", p.DMA.ClaimChannel(e.dmaCh))
	_, _, size := outputShape(cfg.MonoOutput)
	p.DMA.Configure(e.dmaCh, hw.DMAConfig{
		DREQ: p.PIO.TxDREQ(e.sm),
		Size: size,
	})

	// Engine state must be fully published before the handler can observe
	// it; AddIRQHandler and the channel routing below happen strictly after
	// every field write above, and the platform orders handler delivery
	// after SetIRQEnabled.
	p.DMA.AddIRQHandler(e.dmaIRQHandler)
	p.DMA.SetChannelIRQEnabled(e.dmaCh, true)

	return e, intended
}

// Connect wires a 16-bit PCM producer with the default buffered connection:
// two consumer buffers of 256 samples, converting on consumer take.
func (e *Engine) Connect(producer *audio.BufferPool) error {
	return e.ConnectExtra(producer, false, DefaultBufferCount, DefaultSamplesPerBuffer, nil)
}

// ConnectExtra wires a 16-bit PCM producer with explicit buffering policy.
// A nil conn selects the variant by policy: bufferCount zero picks the
// zero-copy pass-through, otherwise bufferOnGive chooses conversion on the
// producer's give (blocking, backpressured) over conversion on the
// consumer's take (interrupt context). A non-nil conn is used as given.
//
// The producer's format must be 16-bit PCM; anything else is a contract
// violation upstream format negotiation must prevent, and panics.
func (e *Engine) ConnectExtra(producer *audio.BufferPool, bufferOnGive bool, bufferCount, samplesPerBuffer int, conn audio.Connection) error {
	requireEncoding(producer, audio.PCMS16)
	if bufferCount < 0 || (bufferCount > 0 && samplesPerBuffer <= 0) {
		return fmt.Errorf("i2s: bad consumer pool shape %d x %d", bufferCount, samplesPerBuffer)
	}

	channels, stride, _ := outputShape(e.cfg.MonoOutput)
	e.consumerFormat = audio.Format{
		Encoding:   audio.PCMS16,
		SampleRate: producer.Format.SampleRate,
		Channels:   channels,
	}
	e.consumerBufFormat = audio.BufferFormat{Format: &e.consumerFormat, SampleStride: stride}
	e.consumer = audio.NewConsumerPool(&e.consumerBufFormat, bufferCount, samplesPerBuffer)

	e.freq.apply(producer.Format.SampleRate)

	if conn == nil {
		if bufferCount == 0 {
			log.Printf("i2s: pass-through at %d Hz", producer.Format.SampleRate)
			conn = &audio.PassthroughConnection{}
		} else {
			convert, what := pickConvertS16(producer.Format, e.cfg.MonoInput, e.cfg.MonoOutput)
			log.Printf("i2s: %s at %d Hz", what, producer.Format.SampleRate)
			if bufferOnGive {
				conn = &audio.CopyOnGiveConnection{Convert: convert}
			} else {
				conn = &audio.CopyOnTakeConnection{Convert: convert}
			}
		}
	}

	audio.CompleteConnection(wrapRateShift(conn, producer, &e.freq), producer, e.consumer)
	return nil
}

// ConnectS8 wires an 8-bit PCM producer. Samples are widened to 16 bits on
// consumer take; the output side is always 16-bit PCM. The producer's format
// must be 8-bit PCM or the call panics.
func (e *Engine) ConnectS8(producer *audio.BufferPool) error {
	requireEncoding(producer, audio.PCMS8)

	channels, stride, _ := outputShape(e.cfg.MonoOutput)
	e.consumerFormat = audio.Format{
		Encoding:   audio.PCMS16,
		SampleRate: producer.Format.SampleRate,
		Channels:   channels,
	}
	e.consumerBufFormat = audio.BufferFormat{Format: &e.consumerFormat, SampleStride: stride}
	e.consumer = audio.NewConsumerPool(&e.consumerBufFormat, DefaultBufferCount, DefaultSamplesPerBuffer)

	e.freq.apply(producer.Format.SampleRate)

	convert, what := pickConvertS8(producer.Format, e.cfg.MonoInput, e.cfg.MonoOutput)
	log.Printf("i2s: %s at %d Hz", what, producer.Format.SampleRate)
	conn := &audio.CopyOnTakeConnection{Convert: convert}

	audio.CompleteConnection(wrapRateShift(conn, producer, &e.freq), producer, e.consumer)
	return nil
}

// SetEnabled starts or stops the output. Enabling gates the IRQ line on,
// arms the first transfer (or silence) and starts the state machine;
// disabling mirrors that and releases any buffer left in flight, since the
// completion handler will no longer run to free it. Idempotent.
func (e *Engine) SetEnabled(enabled bool) {
	if enabled == e.enabled {
		return
	}
	if enabled {
		log.Printf("i2s: enabling output on sm %d", e.sm)
	}

	e.p.DMA.SetIRQEnabled(enabled)

	if enabled {
		e.startDMATransfer()
	} else if e.playing != nil {
		e.consumer.Give(e.playing)
		e.playing = nil
	}

	e.p.PIO.SetEnabled(e.sm, enabled)
	e.enabled = enabled
}

// Enabled reports whether the output is running.
func (e *Engine) Enabled() bool {
	return e.enabled
}

// startDMATransfer takes the next buffer from the consumer pool without
// blocking and arms the channel with it, or arms a fixed-length transfer of
// the repeated zero word when the pool is empty. Runs from SetEnabled and
// from the completion handler; both contexts guarantee the playing slot is
// empty on entry.
func (e *Engine) startDMATransfer() {
	if e.playing != nil {
		panic("i2s: transfer already in flight")
	}
	var b *audio.Buffer
	if e.consumer != nil {
		b = e.consumer.Take(false)
	}
	if b == nil {
		e.p.DMA.SetReadIncrement(e.dmaCh, false)
		e.p.DMA.TransferFromBufferNow(e.dmaCh, e.silence[:], e.silenceLen)
		return
	}

	e.checkPlayable(b)
	e.playing = b
	e.p.DMA.SetReadIncrement(e.dmaCh, true)
	stride := e.consumerBufFormat.SampleStride
	e.p.DMA.TransferFromBufferNow(e.dmaCh, b.Data[:b.SampleCount*stride], uint32(b.SampleCount))
}

// checkPlayable asserts the contract the connect path negotiated: a
// non-empty buffer whose layout matches the output exactly. A mismatch here
// means format negotiation is broken and the stream would be garbage.
func (e *Engine) checkPlayable(b *audio.Buffer) {
	if b.SampleCount == 0 {
		panic("i2s: empty buffer taken for playback")
	}
	if b.Format.Format.Encoding != audio.PCMS16 {
		panic("i2s: playback buffer is not 16-bit PCM")
	}
	channels, stride, _ := outputShape(e.cfg.MonoOutput)
	if b.Format.Format.Channels != channels || b.Format.SampleStride != stride {
		panic(fmt.Sprintf("i2s: playback buffer shape %dch stride %d, output wants %dch stride %d",
			b.Format.Format.Channels, b.Format.SampleStride, channels, stride))
	}
}

// dmaIRQHandler runs on the shared completion line. It is the only place
// steady-state buffer circulation happens: acknowledge, release the buffer
// just played, re-arm.
func (e *Engine) dmaIRQHandler() {
	if !e.p.DMA.IRQPending(e.dmaCh) {
		return
	}
	e.p.DMA.IRQAcknowledge(e.dmaCh)

	if e.playing != nil {
		e.consumer.Give(e.playing)
		e.playing = nil
	}
	e.startDMATransfer()
}
