// ABOUTME: WebSocket streaming sink forwarding PCM frames to a remote listener
// ABOUTME: Sends a JSON stream header followed by binary little-endian frames
package sink

import (
	"encoding/binary"
	"fmt"
	"log"

	"github.com/gorilla/websocket"
)

// StreamHeader is the JSON message sent once after the connection opens,
// describing the binary frames that follow.
type StreamHeader struct {
	Type       string `json:"type"`
	SampleRate uint32 `json:"sample_rate"`
	Channels   int    `json:"channels"`
	BitDepth   int    `json:"bit_depth"`
}

// WS streams the output over a websocket: one JSON StreamHeader, then binary
// messages of interleaved 16-bit little-endian PCM. Lets a remote process
// listen to what the simulated DAC receives.
type WS struct {
	url  string
	conn *websocket.Conn
}

// NewWS creates a streaming sink that dials url on Open.
func NewWS(url string) *WS {
	return &WS{url: url}
}

// Open dials the remote endpoint and sends the stream header.
func (w *WS) Open(sampleRate uint32, channels int) error {
	conn, _, err := websocket.DefaultDialer.Dial(w.url, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	w.conn = conn

	header := StreamHeader{
		Type:       "stream/start",
		SampleRate: sampleRate,
		Channels:   channels,
		BitDepth:   16,
	}
	if err := conn.WriteJSON(header); err != nil {
		conn.Close()
		w.conn = nil
		return fmt.Errorf("header send failed: %w", err)
	}

	log.Printf("streaming sink open: %s (%dHz, %d channels)", w.url, sampleRate, channels)
	return nil
}

// Write sends one binary message of interleaved frames.
func (w *WS) Write(samples []int16) error {
	if w.conn == nil {
		return fmt.Errorf("streaming sink not open")
	}
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	if err := w.conn.WriteMessage(websocket.BinaryMessage, out); err != nil {
		return fmt.Errorf("frame send failed: %w", err)
	}
	return nil
}

// Close sends a close frame and drops the connection.
func (w *WS) Close() error {
	if w.conn == nil {
		return nil
	}
	w.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	err := w.conn.Close()
	w.conn = nil
	return err
}
