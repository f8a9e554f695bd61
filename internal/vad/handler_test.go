package vad

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func dialVAD(t *testing.T, cfg Config) *websocket.Conn {
	t.Helper()

	handler := NewHandler(func() Detector { return NewEnergyDetector(cfg) }, nil)
	e := echo.New()
	handler.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/vad"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func encodeSamples(samples []float32) []byte {
	data := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(data[i*4:], math.Float32bits(s))
	}
	return data
}

func loudSamples(n int) []float32 {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(float64(i)/8))
	}
	return samples
}

func readVADEvent(t *testing.T, ws *websocket.Conn) string {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg.Event
}

func TestHandleVAD_SpeechBoundaries(t *testing.T) {
	ws := dialVAD(t, Config{Threshold: 0.01, HangoverChunks: 2})

	// Loud audio split across two frames that do not align with the chunk
	// size: the handler must buffer and re-chunk.
	loud := loudSamples(ChunkSize * 2)
	if err := ws.WriteMessage(websocket.BinaryMessage, encodeSamples(loud[:700])); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ws.WriteMessage(websocket.BinaryMessage, encodeSamples(loud[700:])); err != nil {
		t.Fatalf("write: %v", err)
	}

	if ev := readVADEvent(t, ws); ev != "speech_start" {
		t.Fatalf("event = %q, want speech_start", ev)
	}

	// Silence past the hangover closes the utterance.
	silence := make([]float32, ChunkSize*3)
	if err := ws.WriteMessage(websocket.BinaryMessage, encodeSamples(silence)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readVADEvent(t, ws); ev != "speech_end" {
		t.Fatalf("event = %q, want speech_end", ev)
	}
}

func TestHandleVAD_IgnoresBadFrames(t *testing.T) {
	ws := dialVAD(t, Config{Threshold: 0.01, HangoverChunks: 2})

	// A frame that is not a whole number of float32s is dropped without
	// killing the connection, as is a text message.
	if err := ws.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := ws.WriteMessage(websocket.TextMessage, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := ws.WriteMessage(websocket.BinaryMessage, encodeSamples(loudSamples(ChunkSize))); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ev := readVADEvent(t, ws); ev != "speech_start" {
		t.Fatalf("event = %q, want speech_start", ev)
	}
}
