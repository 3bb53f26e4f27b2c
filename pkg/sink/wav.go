// ABOUTME: WAV file capture sink using the go-audio encoder
// ABOUTME: Records the simulated output stream for offline inspection
package sink

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAV captures the stream into a RIFF/WAVE file. Useful for verifying what a
// DAC would have received, sample for sample, without audio hardware.
type WAV struct {
	path     string
	file     *os.File
	enc      *wav.Encoder
	channels int
	rate     uint32
}

// NewWAV creates a capture sink writing to path. The file is created on Open
// and finalized on Close.
func NewWAV(path string) *WAV {
	return &WAV{path: path}
}

// Open creates the output file and WAV encoder.
func (w *WAV) Open(sampleRate uint32, channels int) error {
	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}
	w.file = f
	w.enc = wav.NewEncoder(f, int(sampleRate), 16, channels, 1)
	w.channels = channels
	w.rate = sampleRate
	return nil
}

// Write appends interleaved 16-bit frames to the file.
func (w *WAV) Write(samples []int16) error {
	if w.enc == nil {
		return fmt.Errorf("wav sink not open")
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}
	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{
			NumChannels: w.channels,
			SampleRate:  int(w.rate),
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := w.enc.Write(buf); err != nil {
		return fmt.Errorf("wav write failed: %w", err)
	}
	return nil
}

// Close finalizes the WAV header and closes the file.
func (w *WAV) Close() error {
	if w.enc == nil {
		return nil
	}
	if err := w.enc.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("wav finalize failed: %w", err)
	}
	w.enc = nil
	return w.file.Close()
}
