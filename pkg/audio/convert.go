// ABOUTME: Sample format conversion functions used by copying connections
// ABOUTME: Implements mono to stereo duplication and signed 8 to 16 bit widening
package audio

// ConvertFunc copies src into dst, converting the sample layout, and sets
// dst.SampleCount. dst must have capacity for src.SampleCount frames; a
// shortfall is an integration bug in the connect path, not a runtime
// condition, and panics.
type ConvertFunc func(dst, src *Buffer)

func checkCapacity(dst, src *Buffer) {
	if dst.MaxSampleCount() < src.SampleCount {
		panic("audio: conversion target buffer too small")
	}
	if src.SampleCount == 0 {
		panic("audio: converting empty buffer")
	}
}

// MonoToStereoS16 duplicates each 16-bit mono sample into both output
// channels.
func MonoToStereoS16(dst, src *Buffer) {
	checkCapacity(dst, src)
	for i := 0; i < src.SampleCount; i++ {
		s := src.Sample16(i * 2)
		dst.PutSample16(i*4, s)
		dst.PutSample16(i*4+2, s)
	}
	dst.SampleCount = src.SampleCount
}

// StereoToStereoS16 copies 16-bit stereo frames unchanged.
func StereoToStereoS16(dst, src *Buffer) {
	checkCapacity(dst, src)
	copy(dst.Data, src.Data[:src.SampleCount*4])
	dst.SampleCount = src.SampleCount
}

// MonoToMonoS16 copies 16-bit mono frames unchanged.
func MonoToMonoS16(dst, src *Buffer) {
	checkCapacity(dst, src)
	copy(dst.Data, src.Data[:src.SampleCount*2])
	dst.SampleCount = src.SampleCount
}

// widen8 converts a signed 8-bit sample to the 16-bit range.
func widen8(s int8) int16 {
	return int16(s) << 8
}

// MonoS8ToStereoS16 widens 8-bit mono samples to 16 bits and duplicates them
// into both output channels.
func MonoS8ToStereoS16(dst, src *Buffer) {
	checkCapacity(dst, src)
	for i := 0; i < src.SampleCount; i++ {
		s := widen8(int8(src.Data[i]))
		dst.PutSample16(i*4, s)
		dst.PutSample16(i*4+2, s)
	}
	dst.SampleCount = src.SampleCount
}

// MonoS8ToMonoS16 widens 8-bit mono samples to 16 bits.
func MonoS8ToMonoS16(dst, src *Buffer) {
	checkCapacity(dst, src)
	for i := 0; i < src.SampleCount; i++ {
		dst.PutSample16(i*2, widen8(int8(src.Data[i])))
	}
	dst.SampleCount = src.SampleCount
}

// StereoS8ToStereoS16 widens 8-bit stereo frames to 16-bit stereo.
func StereoS8ToStereoS16(dst, src *Buffer) {
	checkCapacity(dst, src)
	for i := 0; i < src.SampleCount; i++ {
		dst.PutSample16(i*4, widen8(int8(src.Data[i*2])))
		dst.PutSample16(i*4+2, widen8(int8(src.Data[i*2+1])))
	}
	dst.SampleCount = src.SampleCount
}
