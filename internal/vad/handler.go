package vad

import (
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Handler relays browser audio through a voice activity detector. The client
// sends binary frames of float32 little-endian PCM at 16 kHz; the server
// re-chunks into fixed 512-sample windows and answers with
// {"event":"speech_start"} / {"event":"speech_end"} messages.
type Handler struct {
	newDetector func() Detector
	logger      *slog.Logger
}

func NewHandler(newDetector func() Detector, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		newDetector: newDetector,
		logger:      logger.With("handler", "vad"),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/vad", h.HandleVAD)
}

type eventMessage struct {
	Event string `json:"event"`
}

func (h *Handler) HandleVAD(c echo.Context) error {
	ws, err := wsUpgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return err
	}
	defer ws.Close()

	h.logger.Info("vad client connected", "remote", ws.RemoteAddr().String())

	detector := h.newDetector()
	defer detector.Reset()

	// Carries samples left over between frames so chunks stay aligned.
	pending := make([]float32, 0, ChunkSize*4)

	for {
		msgType, data, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("vad connection error", "error", err)
			} else {
				h.logger.Info("vad client disconnected")
			}
			return nil
		}
		if msgType != websocket.BinaryMessage {
			continue
		}

		samples, err := decodeSamples(data)
		if err != nil {
			h.logger.Warn("dropping undecodable audio frame", "error", err)
			continue
		}
		pending = append(pending, samples...)

		offset := 0
		for len(pending)-offset >= ChunkSize {
			chunk := pending[offset : offset+ChunkSize]
			offset += ChunkSize

			event := detector.Process(chunk)
			if event == nil {
				continue
			}
			h.logger.Debug("vad event", "event", string(event.Type), "time", event.Time)
			if err := ws.WriteJSON(eventMessage{Event: string(event.Type)}); err != nil {
				h.logger.Warn("failed to send vad event", "error", err)
				return nil
			}
		}
		pending = append(pending[:0], pending[offset:]...)
	}
}

// decodeSamples interprets a binary frame as float32 little-endian PCM.
func decodeSamples(data []byte) ([]float32, error) {
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("frame length %d is not a multiple of 4", len(data))
	}
	samples := make([]float32, len(data)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return samples, nil
}
