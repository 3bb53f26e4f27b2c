// ABOUTME: Audio buffer pool framework providing formats, pools and connections
// ABOUTME: Defines Buffer ownership transfer between producer and consumer sides
// Package audio provides the buffer-pool framework the streaming engines are
// built on: sample formats, fixed-capacity buffers, producer/consumer pools
// with blocking and non-blocking take/give, and the Connection abstraction
// that moves buffers from a producer pool to a consumer pool, optionally
// converting the sample format on the way.
//
// A Buffer is owned by exactly one place at any time: a pool's free list, a
// pool's ready queue, or the caller that took it. Buffers are allocated once
// at pool construction and cycle between the two sides of a Connection for
// the lifetime of the stream; none are freed in steady state.
//
// Example:
//
//	format := audio.Format{Encoding: audio.PCMS16, SampleRate: 44100, Channels: 1}
//	bufFormat := audio.BufferFormat{Format: &format, SampleStride: 2}
//	producer := audio.NewProducerPool(&bufFormat, 3, 256)
//
//	// ... connect producer to a consumer pool, then:
//	buf := producer.Take(true)
//	fillSamples(buf)
//	producer.Give(buf)
package audio
