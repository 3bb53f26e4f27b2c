// ABOUTME: Tests for the synchronized multi-DAC engine
// ABOUTME: Covers count validation, atomic enable ordering and per-channel independence
package i2s

import (
	"strings"
	"testing"

	"github.com/picoforge/i2s-go/pkg/audio"
	"github.com/picoforge/i2s-go/pkg/hw"
	"github.com/picoforge/i2s-go/pkg/hw/hwtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMultiConfig(dacs int) MultiConfig {
	return MultiConfig{
		DACs:              dacs,
		DataPins:          []hw.Pin{2, 3, 4, 5},
		ClockPinBase:      26,
		DMAChannels:       []uint8{0, 1, 2, 3},
		ClockStateMachine: 0,
		DataStateMachines: []uint8{1, 2, 3, 4},
	}
}

func newTestMulti(t *testing.T, mock *hwtest.Platform, cfg MultiConfig) *MultiEngine {
	t.Helper()
	intended := &audio.Format{Encoding: audio.PCMS16, SampleRate: 44100, Channels: 2}
	m, got, err := NewMultiEngine(mock.Hardware(), intended, cfg)
	require.NoError(t, err)
	require.Same(t, intended, got)
	return m
}

func TestMultiRejectsBadDACCounts(t *testing.T) {
	for _, dacs := range []int{0, 1, MaxDACs + 1} {
		mock := hwtest.New(125_000_000)
		m, format, err := NewMultiEngine(mock.Hardware(), nil, testMultiConfig(dacs))

		require.ErrorIs(t, err, ErrBadDACCount, "dacs=%d", dacs)
		assert.Nil(t, m)
		assert.Nil(t, format)
		// Nothing was claimed: the caller can retry with a fixed config.
		assert.Empty(t, mock.ClaimedSMs)
		assert.Empty(t, mock.ClaimedChannels)
	}
}

func TestMultiClaimsClockAndPerDACResources(t *testing.T) {
	mock := hwtest.New(125_000_000)
	cfg := testMultiConfig(2)
	m := newTestMulti(t, mock, cfg)

	assert.Equal(t, 2, m.DACs())
	assert.True(t, mock.ClaimedSMs[0], "clock state machine")
	assert.True(t, mock.ClaimedSMs[1])
	assert.True(t, mock.ClaimedSMs[2])
	assert.False(t, mock.ClaimedSMs[3])
	assert.True(t, mock.ClaimedChannels[0])
	assert.True(t, mock.ClaimedChannels[1])
	assert.Equal(t, hw.ProgramI2SClock, mock.SMProgram[0])
	assert.Equal(t, hw.ProgramI2SData, mock.SMProgram[1])
	assert.Equal(t, hw.ProgramI2SData, mock.SMProgram[2])
	assert.True(t, mock.ChannelIRQ[0])
	assert.True(t, mock.ChannelIRQ[1])
}

func TestMultiMaxDACsIsSupported(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(MaxDACs))
	assert.Equal(t, MaxDACs, m.DACs())
}

func TestMultiPanicsOnDuplicateAssignments(t *testing.T) {
	mock := hwtest.New(125_000_000)

	cfg := testMultiConfig(2)
	cfg.DataStateMachines = []uint8{1, 1}
	require.Panics(t, func() { newTestMulti(t, mock, cfg) })

	cfg = testMultiConfig(2)
	cfg.DMAChannels = []uint8{0, 0}
	require.Panics(t, func() { newTestMulti(t, mock, cfg) })

	cfg = testMultiConfig(2)
	cfg.DataPins = []hw.Pin{2, 2}
	require.Panics(t, func() { newTestMulti(t, mock, cfg) })

	cfg = testMultiConfig(2)
	cfg.DataStateMachines = []uint8{0, 1} // collides with the clock unit
	require.Panics(t, func() { newTestMulti(t, mock, cfg) })
}

func TestMultiConnectRejectsBadChannel(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))
	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)

	assert.ErrorIs(t, m.Connect(producer, 2), ErrBadChannel)
	assert.ErrorIs(t, m.Connect(producer, -1), ErrBadChannel)
	// The failed connect left the producer unbound.
	assert.Nil(t, producer.Connection())
}

func TestMultiConnectBeforeSetup(t *testing.T) {
	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)

	var nilEngine *MultiEngine
	assert.ErrorIs(t, nilEngine.Connect(producer, 0), ErrNotInitialized)

	zero := &MultiEngine{}
	assert.ErrorIs(t, zero.Connect(producer, 0), ErrNotInitialized)
	zero.SetEnabled(true)
	assert.False(t, zero.Enabled())
}

func TestMultiConnectCompletesEveryChannel(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))

	for i := 0; i < 2; i++ {
		producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
		require.NoError(t, m.Connect(producer, i))
		// Both sides of the connection are usable immediately.
		b := producer.Take(false)
		require.NotNil(t, b)
		b.SampleCount = 16
		producer.Give(b)
		assert.Equal(t, 1, producer.ReadyCount())
	}
}

func TestMultiEnableOrderingIsAtomic(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))

	for i := 0; i < 2; i++ {
		producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
		require.NoError(t, m.Connect(producer, i))
		b := producer.Take(false)
		b.SampleCount = 16
		producer.Give(b)
	}

	mock.Ops = nil
	m.SetEnabled(true)

	var triggers []int
	clockStart, maskStart := -1, -1
	for i, op := range mock.Ops {
		switch {
		case strings.HasPrefix(op, "dma_trigger"):
			triggers = append(triggers, i)
		case strings.HasPrefix(op, "sm_enable 0 true"):
			clockStart = i
		case strings.HasPrefix(op, "sm_mask_enable"):
			maskStart = i
		}
	}

	// Every channel is armed before the clock starts, and the clock starts
	// before the data units are released together.
	require.Len(t, triggers, 2)
	require.NotEqual(t, -1, clockStart)
	require.NotEqual(t, -1, maskStart)
	for _, tr := range triggers {
		assert.Less(t, tr, clockStart)
	}
	assert.Less(t, clockStart, maskStart)

	// The mask covers exactly the data units, not the clock.
	require.Len(t, mock.MaskOps, 1)
	assert.Equal(t, hwtest.MaskOp{Mask: 1<<1 | 1<<2, Enabled: true}, mock.MaskOps[0])
	assert.True(t, mock.SMEnabled[0])
	assert.True(t, mock.SMEnabled[1])
	assert.True(t, mock.SMEnabled[2])
}

func TestMultiDisableStopsEverythingTogether(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))

	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, m.Connect(producer, 0))
	b := producer.Take(false)
	b.SampleCount = 16
	producer.Give(b)

	m.SetEnabled(true)
	require.True(t, m.Enabled())
	m.SetEnabled(false)

	// One mask operation covering clock and data units.
	last := mock.MaskOps[len(mock.MaskOps)-1]
	assert.Equal(t, hwtest.MaskOp{Mask: 1<<0 | 1<<1 | 1<<2, Enabled: false}, last)
	assert.False(t, mock.SMEnabled[0])
	assert.False(t, mock.SMEnabled[1])
	assert.False(t, mock.SMEnabled[2])
	assert.False(t, mock.IRQEnabled)

	// The in-flight buffer on channel 0 went back to its pool.
	assert.Equal(t, DefaultBufferCount, m.channels[0].consumer.FreeCount())
}

func TestMultiDisconnectedChannelPlaysSilence(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))

	producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, m.Connect(producer, 0))
	b := producer.Take(false)
	b.PutSample16(0, 321)
	b.SampleCount = 16
	producer.Give(b)

	m.SetEnabled(true)

	armed := mock.LastTransfer(0)
	require.NotNil(t, armed)
	assert.True(t, armed.Increment)
	assert.Equal(t, uint32(16), armed.Count)

	silent := mock.LastTransfer(1)
	require.NotNil(t, silent)
	assert.False(t, silent.Increment)
	assert.Equal(t, uint32(DefaultSilenceSampleLength), silent.Count)
}

func TestMultiCompletionServicesOnlyPendingChannel(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))

	for i := 0; i < 2; i++ {
		producer := audio.NewProducerPool(monoFormat(44100), 2, 16)
		require.NoError(t, m.Connect(producer, i))
		b := producer.Take(false)
		b.SampleCount = 16
		producer.Give(b)
	}

	m.SetEnabled(true)
	before := len(mock.Transfers)

	// Only channel 1 finishes; channel 0 keeps playing untouched.
	mock.FireCompletion(1)

	assert.Equal(t, before+1, len(mock.Transfers))
	assert.Equal(t, uint8(1), mock.Transfers[len(mock.Transfers)-1].Channel)
	assert.NotNil(t, m.channels[0].playing)
	// Channel 1 drained its pool and fell back to silence.
	tr := mock.LastTransfer(1)
	assert.False(t, tr.Increment)
}

func TestMultiSharesOneSampleRate(t *testing.T) {
	mock := hwtest.New(125_000_000)
	m := newTestMulti(t, mock, testMultiConfig(2))

	first := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, m.Connect(first, 0))

	// Clock unit plus both data units got the divider.
	require.Equal(t, 3, mock.ClkDivWrites)
	want := uint32(125_000_000 * 4 / 44100)
	for _, sm := range []uint8{0, 1, 2} {
		assert.Equal(t, want, mock.ClkDiv[sm])
	}

	// A same-rate connect writes nothing.
	second := audio.NewProducerPool(monoFormat(44100), 2, 16)
	require.NoError(t, m.Connect(second, 1))
	assert.Equal(t, 3, mock.ClkDivWrites)

	// A different rate retunes every unit together.
	third := audio.NewProducerPool(monoFormat(48000), 2, 16)
	require.NoError(t, m.Connect(third, 1))
	assert.Equal(t, 6, mock.ClkDivWrites)
	assert.Equal(t, uint32(125_000_000*4/48000), mock.ClkDiv[0])
}
