// ABOUTME: Core audio type definitions for formats and buffers
// ABOUTME: Defines SampleFormat, Format, BufferFormat and Buffer
package audio

import "encoding/binary"

// SampleFormat identifies the PCM sample encoding of a stream.
type SampleFormat uint8

const (
	// PCMS16 is 16-bit signed little-endian PCM.
	PCMS16 SampleFormat = iota
	// PCMS8 is 8-bit signed PCM.
	PCMS8
)

// Bytes returns the size of one sample of this encoding in bytes.
func (f SampleFormat) Bytes() int {
	if f == PCMS8 {
		return 1
	}
	return 2
}

// String returns a short human-readable name for the encoding.
func (f SampleFormat) String() string {
	switch f {
	case PCMS16:
		return "s16"
	case PCMS8:
		return "s8"
	}
	return "unknown"
}

// Format describes an audio stream: encoding, sample rate and channel count.
// A Format is immutable once a connection is established over it; changing
// any field requires re-running the connect path.
type Format struct {
	Encoding   SampleFormat
	SampleRate uint32
	Channels   int
}

// BufferFormat describes the in-memory layout of buffers carrying a Format.
// SampleStride is the byte distance between successive sample frames.
type BufferFormat struct {
	Format       *Format
	SampleStride int
}

// Buffer is a fixed-capacity sample buffer. Data holds SampleCount frames of
// Format layout; capacity never changes after allocation. A buffer is held by
// exactly one owner at a time and is never aliased.
type Buffer struct {
	Format      *BufferFormat
	Data        []byte
	SampleCount int
}

// NewBuffer allocates a buffer with capacity for maxSamples frames.
func NewBuffer(format *BufferFormat, maxSamples int) *Buffer {
	return &Buffer{
		Format: format,
		Data:   make([]byte, maxSamples*format.SampleStride),
	}
}

// MaxSampleCount returns the frame capacity of the buffer.
func (b *Buffer) MaxSampleCount() int {
	return len(b.Data) / b.Format.SampleStride
}

// Sample16 reads the 16-bit sample at byte offset off.
func (b *Buffer) Sample16(off int) int16 {
	return int16(binary.LittleEndian.Uint16(b.Data[off:]))
}

// PutSample16 writes a 16-bit sample at byte offset off.
func (b *Buffer) PutSample16(off int, s int16) {
	binary.LittleEndian.PutUint16(b.Data[off:], uint16(s))
}
