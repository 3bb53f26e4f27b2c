// ABOUTME: PCM sink interface consumed by the hosted platform emulation
// ABOUTME: Defines Sink plus the Discard implementation for silent test runs
package sink

// Sink receives the PCM stream a simulated output unit produces. Open is
// called once when the unit starts, with the effective sample rate derived
// from the programmed clock divider. Write delivers interleaved 16-bit
// little-endian frames and may block; the platform uses that blocking for
// flow control.
type Sink interface {
	Open(sampleRate uint32, channels int) error
	Write(samples []int16) error
	Close() error
}

// Discard is a Sink that drops everything, for tests and benchmarks.
type Discard struct{}

func (Discard) Open(sampleRate uint32, channels int) error { return nil }
func (Discard) Write(samples []int16) error                { return nil }
func (Discard) Close() error                               { return nil }
