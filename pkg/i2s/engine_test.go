// ABOUTME: Tests for the single-output engine against the recording mock platform
// ABOUTME: Covers setup claims, silence substitution, completion recycling and rate shifts
package i2s

import (
	"testing"

	"github.com/picoforge/i2s-go/pkg/audio"
	"github.com/picoforge/i2s-go/pkg/hw"
	"github.com/picoforge/i2s-go/pkg/hw/hwtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func monoFormat(rate uint32) *audio.BufferFormat {
	return &audio.BufferFormat{
		Format:       &audio.Format{Encoding: audio.PCMS16, SampleRate: rate, Channels: 1},
		SampleStride: 2,
	}
}

func stereoFormat(rate uint32) *audio.BufferFormat {
	return &audio.BufferFormat{
		Format:       &audio.Format{Encoding: audio.PCMS16, SampleRate: rate, Channels: 2},
		SampleStride: 4,
	}
}

func s8Format(rate uint32) *audio.BufferFormat {
	return &audio.BufferFormat{
		Format:       &audio.Format{Encoding: audio.PCMS8, SampleRate: rate, Channels: 1},
		SampleStride: 1,
	}
}

func newTestEngine(t *testing.T, mock *hwtest.Platform, cfg Config) *Engine {
	t.Helper()
	intended := &audio.Format{Encoding: audio.PCMS16, SampleRate: 44100, Channels: 2}
	e, got := NewEngine(mock.Hardware(), intended, cfg)
	require.Same(t, intended, got)
	return e
}

func TestNewEngineClaimsResources(t *testing.T) {
	mock := hwtest.New(125_000_000)
	cfg := DefaultConfig()
	newTestEngine(t, mock, cfg)

	assert.True(t, mock.ClaimedSMs[cfg.StateMachine])
	assert.True(t, mock.ClaimedChannels[cfg.DMAChannel])
	assert.True(t, mock.PIOPins[cfg.DataPin])
	assert.True(t, mock.PIOPins[cfg.ClockPinBase])
	assert.True(t, mock.PIOPins[cfg.ClockPinBase+1])
	assert.Equal(t, hw.ProgramI2S, mock.SMProgram[cfg.StateMachine])
	assert.True(t, mock.ChannelIRQ[cfg.DMAChannel])
	assert.Equal(t, hw.DMAConfig{DREQ: cfg.StateMachine, Size: hw.Size32},
		mock.ChannelConfigs[cfg.DMAChannel])
}

func TestNewEnginePanicsOnClaimedResources(t *testing.T) {
	mock := hwtest.New(125_000_000)
	newTestEngine(t, mock, DefaultConfig())

	cfg := DefaultConfig()
	cfg.DataPin = 2
	require.Panics(t, func() { newTestEngine(t, mock, cfg) })
}

func TestEnableWithoutProducerArmsSilence(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	e.SetEnabled(true)

	assert.True(t, e.Enabled())
	assert.True(t, mock.IRQEnabled)
	assert.True(t, mock.SMEnabled[0])

	tr := mock.LastTransfer(0)
	require.NotNil(t, tr)
	assert.False(t, tr.Increment)
	assert.Equal(t, uint32(DefaultSilenceSampleLength), tr.Count)
	assert.Equal(t, []byte{0, 0, 0, 0}, tr.Src)
}

func TestSetEnabledIsIdempotent(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	e.SetEnabled(true)
	ops := len(mock.Ops)
	e.SetEnabled(true)
	assert.Equal(t, ops, len(mock.Ops))

	e.SetEnabled(false)
	assert.False(t, e.Enabled())
	assert.False(t, mock.SMEnabled[0])
	assert.False(t, mock.IRQEnabled)

	ops = len(mock.Ops)
	e.SetEnabled(false)
	assert.Equal(t, ops, len(mock.Ops))
}

func TestCompletionRecyclesBufferAndRearms(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(monoFormat(44100), 3, 32)
	require.NoError(t, e.Connect(producer))

	b := producer.Take(false)
	require.NotNil(t, b)
	for i := 0; i < 32; i++ {
		b.PutSample16(i*2, int16(i+1))
	}
	b.SampleCount = 32
	producer.Give(b)

	e.SetEnabled(true)

	// First transfer carries the converted stereo frames.
	tr := mock.LastTransfer(0)
	require.NotNil(t, tr)
	assert.True(t, tr.Increment)
	assert.Equal(t, uint32(32), tr.Count)
	assert.Len(t, tr.Src, 32*4)

	// Completion releases the consumer buffer and, with the producer
	// drained, re-arms silence.
	mock.FireCompletion(0)

	tr = mock.LastTransfer(0)
	assert.False(t, tr.Increment)
	assert.Equal(t, uint32(DefaultSilenceSampleLength), tr.Count)
	assert.Equal(t, 3, producer.FreeCount())
}

func TestSteadyStateStreamsConsecutiveBuffers(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(monoFormat(44100), 4, 16)
	require.NoError(t, e.Connect(producer))

	for n := 0; n < 3; n++ {
		b := producer.Take(false)
		b.PutSample16(0, int16(100+n))
		b.SampleCount = 16
		producer.Give(b)
	}

	e.SetEnabled(true)
	first := mock.LastTransfer(0)
	assert.Equal(t, int16(100), int16(uint16(first.Src[0])|uint16(first.Src[1])<<8))

	mock.FireCompletion(0)
	second := mock.LastTransfer(0)
	assert.True(t, second.Increment)
	assert.Equal(t, int16(101), int16(uint16(second.Src[0])|uint16(second.Src[1])<<8))

	mock.FireCompletion(0)
	third := mock.LastTransfer(0)
	assert.Equal(t, int16(102), int16(uint16(third.Src[0])|uint16(third.Src[1])<<8))
}

func TestDisableReleasesInFlightBuffer(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, e.Connect(producer))

	b := producer.Take(false)
	b.SampleCount = 16
	producer.Give(b)

	e.SetEnabled(true)
	e.SetEnabled(false)

	// The consumer buffer that was playing is back on its free list.
	assert.Equal(t, DefaultBufferCount, e.consumer.FreeCount())
}

func TestConnectExtraPassthroughSkipsCopy(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(stereoFormat(44100), 2, 16)
	require.NoError(t, e.ConnectExtra(producer, false, 0, 0, nil))

	b := producer.Take(false)
	b.PutSample16(0, 777)
	b.SampleCount = 16
	producer.Give(b)

	e.SetEnabled(true)

	tr := mock.LastTransfer(0)
	require.NotNil(t, tr)
	assert.True(t, tr.Increment)
	// Zero-copy: the armed transfer reads the producer's own storage.
	b.Data[0] = 0xAB
	assert.Equal(t, byte(0xAB), tr.Src[0])
}

func TestConnectExtraRejectsBadPoolShape(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())
	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)

	assert.Error(t, e.ConnectExtra(producer, false, -1, 16, nil))
	assert.Error(t, e.ConnectExtra(producer, false, 2, 0, nil))
}

func TestConnectAppliesSampleRate(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(monoFormat(48000), 2, 16)
	require.NoError(t, e.Connect(producer))

	assert.Equal(t, uint32(125_000_000*4/48000), mock.ClkDiv[0])
}

func TestProducerRateShiftRewritesDivider(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, e.Connect(producer))
	assert.Equal(t, uint32(125_000_000*4/44100), mock.ClkDiv[0])

	b := producer.Take(false)
	b.SampleCount = 16

	// The source switches rate mid-stream; the next give picks it up.
	producer.Format.SampleRate = 22050
	producer.Give(b)

	assert.Equal(t, uint32(125_000_000*4/22050), mock.ClkDiv[0])
}

func TestConnectRejectsWrongEncodings(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	s8Producer := audio.NewProducerPool(s8Format(44100), 2, 16)
	require.Panics(t, func() { e.Connect(s8Producer) })

	s16Producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.Panics(t, func() { e.ConnectS8(s16Producer) })
}

func TestConnectS8WidensOnTake(t *testing.T) {
	mock := hwtest.New(125_000_000)
	e := newTestEngine(t, mock, DefaultConfig())

	producer := audio.NewProducerPool(s8Format(44100), 2, 16)
	require.NoError(t, e.ConnectS8(producer))

	b := producer.Take(false)
	b.Data[0] = byte(int8(64))
	b.SampleCount = 1
	producer.Give(b)

	e.SetEnabled(true)

	tr := mock.LastTransfer(0)
	require.NotNil(t, tr)
	assert.Equal(t, uint32(1), tr.Count)
	got := int16(uint16(tr.Src[0]) | uint16(tr.Src[1])<<8)
	assert.Equal(t, int16(16384), got)
}

func TestStereoThroughMonoOutputPanics(t *testing.T) {
	mock := hwtest.New(125_000_000)
	cfg := DefaultConfig()
	cfg.MonoOutput = true
	e := newTestEngine(t, mock, cfg)

	producer := audio.NewProducerPool(stereoFormat(44100), 2, 16)
	require.Panics(t, func() { _ = e.Connect(producer) })
}

func TestStereoS8ProducerOnMonoInputPanics(t *testing.T) {
	mock := hwtest.New(125_000_000)
	cfg := DefaultConfig()
	cfg.MonoInput = true
	e := newTestEngine(t, mock, cfg)

	stereoS8 := &audio.BufferFormat{
		Format:       &audio.Format{Encoding: audio.PCMS8, SampleRate: 44100, Channels: 2},
		SampleStride: 2,
	}
	producer := audio.NewProducerPool(stereoS8, 2, 16)
	require.Panics(t, func() { _ = e.ConnectS8(producer) })
}

func TestStereoProducerOnMonoInputPanics(t *testing.T) {
	mock := hwtest.New(125_000_000)
	cfg := DefaultConfig()
	cfg.MonoInput = true
	e := newTestEngine(t, mock, cfg)

	producer := audio.NewProducerPool(stereoFormat(44100), 2, 16)
	require.Panics(t, func() { _ = e.Connect(producer) })
}

func TestMonoOutputUses16BitTransfers(t *testing.T) {
	mock := hwtest.New(125_000_000)
	cfg := DefaultConfig()
	cfg.MonoOutput = true
	e := newTestEngine(t, mock, cfg)

	assert.Equal(t, hw.Size16, mock.ChannelConfigs[cfg.DMAChannel].Size)

	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, e.Connect(producer))

	b := producer.Take(false)
	b.PutSample16(0, 9)
	b.SampleCount = 16
	producer.Give(b)

	e.SetEnabled(true)
	tr := mock.LastTransfer(0)
	require.NotNil(t, tr)
	assert.Equal(t, uint32(16), tr.Count)
	assert.Len(t, tr.Src, 16*2)
}

func TestConfigValidationPanics(t *testing.T) {
	mock := hwtest.New(125_000_000)

	bad := DefaultConfig()
	bad.DataPin = hw.NumPins
	require.Panics(t, func() { newTestEngine(t, mock, bad) })

	bad = DefaultConfig()
	bad.DataPin = bad.ClockPinBase
	require.Panics(t, func() { newTestEngine(t, mock, bad) })

	bad = DefaultConfig()
	bad.StateMachine = hw.NumStateMachines
	require.Panics(t, func() { newTestEngine(t, mock, bad) })

	bad = DefaultConfig()
	bad.DMAChannel = hw.NumDMAChannels
	require.Panics(t, func() { newTestEngine(t, mock, bad) })
}
