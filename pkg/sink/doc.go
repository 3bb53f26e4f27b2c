// ABOUTME: Sink package providing PCM destinations for hosted playback
// ABOUTME: Ships speaker (oto), WAV capture, websocket streaming and discard sinks
// Package sink provides PCM destinations for the hosted platform emulation.
//
// The hwsim platform decodes armed DMA transfers back into 16-bit PCM frames
// and pushes them into a Sink attached to each simulated output unit:
//
//	speaker := sink.NewOto()       // play through the host's audio device
//	capture := sink.NewWAV("x.wav") // write a WAV file
//	stream := sink.NewWS(url)      // stream frames over a websocket
//	sink.Discard{}                  // drop everything
package sink
