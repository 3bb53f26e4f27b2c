// ABOUTME: Tone generator streaming a sine wave through the simulated driver
// ABOUTME: Plays to the speaker, a WAV capture or a websocket listener
package main

import (
	"flag"
	"log"
	"math"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/picoforge/i2s-go/pkg/audio"
	"github.com/picoforge/i2s-go/pkg/hw/hwsim"
	"github.com/picoforge/i2s-go/pkg/i2s"
	"github.com/picoforge/i2s-go/pkg/sink"
)

var (
	rate    = flag.Uint("rate", 44100, "Sample rate in Hz")
	tone    = flag.Float64("tone", 440, "Tone frequency in Hz")
	volume  = flag.Float64("volume", 0.4, "Amplitude, 0..1")
	seconds = flag.Uint("seconds", 5, "Seconds to play, 0 for until interrupted")
	out     = flag.String("out", "speaker", "Output: speaker, discard, wav:<path> or ws://<host>/<path>")
)

func pickSink(name string) sink.Sink {
	switch {
	case name == "speaker":
		return sink.NewOto()
	case name == "discard":
		return sink.Discard{}
	case strings.HasPrefix(name, "wav:"):
		return sink.NewWAV(strings.TrimPrefix(name, "wav:"))
	case strings.HasPrefix(name, "ws://"), strings.HasPrefix(name, "wss://"):
		return sink.NewWS(name)
	default:
		log.Fatalf("unknown output %q", name)
		return nil
	}
}

func main() {
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lmicroseconds)

	sim := hwsim.New(hwsim.Config{Realtime: true})
	defer sim.Close()

	cfg := i2s.DefaultConfig()
	sim.AttachSink(cfg.StateMachine, pickSink(*out))

	intended := &audio.Format{
		Encoding:   audio.PCMS16,
		SampleRate: uint32(*rate),
		Channels:   2,
	}
	engine, format := i2s.NewEngine(sim.Hardware(), intended, cfg)
	log.Printf("output format: %d Hz, %d channels", format.SampleRate, format.Channels)

	producerFormat := &audio.BufferFormat{
		Format: &audio.Format{
			Encoding:   audio.PCMS16,
			SampleRate: uint32(*rate),
			Channels:   1,
		},
		SampleStride: 2,
	}
	producer := audio.NewProducerPool(producerFormat, 3, 256)
	if err := engine.Connect(producer); err != nil {
		log.Fatalf("connect failed: %v", err)
	}

	engine.SetEnabled(true)

	stop := make(chan struct{})
	go generate(producer, stop)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	if *seconds > 0 {
		select {
		case <-time.After(time.Duration(*seconds) * time.Second):
		case <-sig:
		}
	} else {
		<-sig
	}

	close(stop)
	engine.SetEnabled(false)
	log.Printf("done")
}

// generate fills producer buffers with a sine wave until stop closes.
func generate(producer *audio.BufferPool, stop <-chan struct{}) {
	step := 2 * math.Pi * *tone / float64(*rate)
	amp := *volume * 32767
	var phase float64

	for {
		select {
		case <-stop:
			return
		default:
		}

		b := producer.Take(false)
		if b == nil {
			time.Sleep(time.Millisecond)
			continue
		}

		n := b.MaxSampleCount()
		for i := 0; i < n; i++ {
			b.PutSample16(i*2, int16(amp*math.Sin(phase)))
			phase += step
			if phase >= 2*math.Pi {
				phase -= 2 * math.Pi
			}
		}
		b.SampleCount = n
		producer.Give(b)
	}
}
