// ABOUTME: Oto-based speaker sink for hosted playback
// ABOUTME: Streams 16-bit PCM through a persistent pipe-fed oto player
package sink

import (
	"encoding/binary"
	"fmt"
	"io"
	"log"

	"github.com/ebitengine/oto/v3"
)

// Oto plays the stream through the host's audio device using the oto
// library. A persistent player reads from a pipe so playback is continuous
// across Write calls; Write blocks when the device buffer is full, which
// paces the simulated DMA drain at real time.
type Oto struct {
	otoCtx     *oto.Context
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	ready      bool
}

// NewOto creates a speaker sink.
func NewOto() *Oto {
	return &Oto{}
}

// Open initializes the audio device. oto allows one context per process, so
// a second Open with a different format keeps the first context and logs the
// mismatch instead of failing the stream.
func (o *Oto) Open(sampleRate uint32, channels int) error {
	if o.otoCtx != nil {
		log.Printf("speaker sink already open, keeping existing context")
		return nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   int(sampleRate),
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-readyChan

	o.otoCtx = ctx
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()
	o.ready = true

	log.Printf("speaker sink open: %dHz, %d channels", sampleRate, channels)
	return nil
}

// Write queues interleaved 16-bit frames for playback.
func (o *Oto) Write(samples []int16) error {
	if !o.ready {
		return fmt.Errorf("speaker sink not open")
	}

	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	if _, err := o.pipeWriter.Write(out); err != nil {
		return fmt.Errorf("pipe write failed: %w", err)
	}
	return nil
}

// Close tears down the player. The oto context itself is suspended, not
// destroyed, since the process may open another sink later.
func (o *Oto) Close() error {
	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}
	if o.otoCtx != nil {
		o.otoCtx.Suspend()
		o.ready = false
	}
	return nil
}
