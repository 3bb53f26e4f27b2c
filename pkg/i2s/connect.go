// ABOUTME: Connection wiring shared by the single and multi engines
// ABOUTME: Rate-shift wrapping and the validated format conversion matrix
package i2s

import (
	"fmt"

	"github.com/picoforge/i2s-go/pkg/audio"
	"github.com/picoforge/i2s-go/pkg/hw"
)

// rateShiftConnection wraps the connection chosen at connect time so that
// the consumer-take and producer-give hooks first compare the producer
// pool's sample rate against the applied frequency, re-applying the divider
// when the source changed rate. This is what lets a producer shift rate
// without re-running setup.
type rateShiftConnection struct {
	audio.Connection
	producer *audio.BufferPool
	freq     *freqController
}

func (c *rateShiftConnection) checkRate() {
	if rate := c.producer.Format.SampleRate; rate != c.freq.current() {
		c.freq.apply(rate)
	}
}

func (c *rateShiftConnection) ConsumerTake(block bool) *audio.Buffer {
	c.checkRate()
	return c.Connection.ConsumerTake(block)
}

func (c *rateShiftConnection) ProducerGive(b *audio.Buffer) {
	c.checkRate()
	c.Connection.ProducerGive(b)
}

func wrapRateShift(inner audio.Connection, producer *audio.BufferPool, freq *freqController) audio.Connection {
	return &rateShiftConnection{Connection: inner, producer: producer, freq: freq}
}

// outputShape returns the channel count, sample stride and DMA transfer size
// of the physical output: 16-bit units for a mono destination, 32-bit units
// carrying a full stereo frame otherwise.
func outputShape(monoOutput bool) (channels, stride int, size hw.TransferSize) {
	if monoOutput {
		return 1, 2, hw.Size16
	}
	return 2, 4, hw.Size32
}

// pickConvertS16 resolves the conversion for a 16-bit producer against the
// validated format matrix. Unsupported combinations are contract violations:
// stereo cannot play through a mono output and channel downmix is not
// implemented, so both halt rather than silently misbehave.
func pickConvertS16(producer *audio.Format, monoInput, monoOutput bool) (audio.ConvertFunc, string) {
	if producer.Channels == 2 {
		if monoInput {
			panic("i2s: stereo producer on a mono-input connection, downmix not supported")
		}
		if monoOutput {
			panic("i2s: playing stereo through a mono output not yet supported")
		}
		return audio.StereoToStereoS16, "copying stereo to stereo"
	}
	if monoOutput {
		return audio.MonoToMonoS16, "copying mono to mono"
	}
	return audio.MonoToStereoS16, "converting mono to stereo"
}

// pickConvertS8 resolves the conversion for an 8-bit producer. All paths
// widen to 16 bits; the channel matrix is the same as pickConvertS16.
func pickConvertS8(producer *audio.Format, monoInput, monoOutput bool) (audio.ConvertFunc, string) {
	if producer.Channels == 2 {
		if monoInput {
			panic("i2s: stereo producer on a mono-input connection, downmix not supported")
		}
		if monoOutput {
			panic("i2s: playing stereo through a mono output not yet supported")
		}
		return audio.StereoS8ToStereoS16, "widening s8 stereo to s16 stereo"
	}
	if monoOutput {
		return audio.MonoS8ToMonoS16, "widening s8 mono to s16 mono"
	}
	return audio.MonoS8ToStereoS16, "widening s8 mono to s16 stereo"
}

// requireEncoding is the producer-format contract check of the connect
// entry points.
func requireEncoding(producer *audio.BufferPool, want audio.SampleFormat) {
	if producer.Format.Encoding != want {
		panic(fmt.Sprintf("i2s: connect requires %s producer, got %s",
			want, producer.Format.Encoding))
	}
}
