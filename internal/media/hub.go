package media

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Media frames are small
	// (20 ms of μ-law is 160 bytes before base64), so this is generous.
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// The media stream peer is the telephony provider, authenticated
		// by bearer token before the upgrade; origin is not meaningful.
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Frame is the JSON envelope exchanged on a media stream. Inbound audio
// arrives as base64-encoded μ-law in Payload; outbound playback audio uses
// the same shape.
type Frame struct {
	Event   string `json:"event"`
	CallID  string `json:"call_id"`
	Payload string `json:"payload,omitempty"`
}

// FrameHandler consumes media-stream events. Implemented by the call
// orchestrator.
type FrameHandler interface {
	HandleMediaFrame(callID, payload string)
	HandleHangup(callID string)
}

// Hub maintains the set of active media streams, one per call.
type Hub struct {
	mu      sync.RWMutex
	streams map[string]*Stream

	handler FrameHandler
	logger  *zap.Logger
}

// NewHub creates a media hub dispatching to the given handler.
func NewHub(handler FrameHandler, logger *zap.Logger) *Hub {
	return &Hub{
		streams: make(map[string]*Stream),
		handler: handler,
		logger:  logger,
	}
}

// SetHandler installs the frame handler. The hub and its handler reference
// each other (frames flow in, playback flows out), so one side is bound late
// during startup, before any stream is accepted.
func (h *Hub) SetHandler(handler FrameHandler) {
	h.handler = handler
}

// Stream is a middleman between one call's websocket connection and the hub.
type Stream struct {
	hub    *Hub
	conn   *websocket.Conn
	callID string
	logger *zap.Logger

	// mu guards send against teardown. Every send and the close go through
	// it, so a replaced or disconnected stream can never be sent to after
	// its channel is closed.
	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// trySend queues an outbound message without blocking. It fails once the
// stream is shut down or when the peer cannot drain fast enough.
func (s *Stream) trySend(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("media stream for call %s is closed", s.callID)
	}
	select {
	case s.send <- data:
		return nil
	default:
		return fmt.Errorf("media stream for call %s is backed up", s.callID)
	}
}

// shutdown closes the send channel, which makes writePump send a websocket
// close frame and exit. Safe to call more than once.
func (s *Stream) shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.send)
}

// HandleWebSocket upgrades an authenticated request into a media stream for
// the call id and starts the read/write pumps.
func HandleWebSocket(hub *Hub, c echo.Context, callID string, logger *zap.Logger) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		logger.Error("websocket upgrade failed", zap.Error(err))
		return err
	}

	stream := &Stream{
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, 256),
		callID: callID,
		logger: logger.With(zap.String("call_id", callID)),
	}
	hub.register(stream)

	go stream.writePump()
	go stream.readPump()

	return nil
}

// SendAudio delivers outbound playback audio to a call's media stream. It
// satisfies the orchestrator's MediaSink dependency.
func (h *Hub) SendAudio(callID string, payload string) error {
	h.mu.RLock()
	stream := h.streams[callID]
	h.mu.RUnlock()
	if stream == nil {
		return fmt.Errorf("no media stream for call %s", callID)
	}

	data, err := json.Marshal(Frame{Event: "media", CallID: callID, Payload: payload})
	if err != nil {
		return err
	}

	return stream.trySend(data)
}

// StreamCount returns the number of connected media streams.
func (h *Hub) StreamCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams)
}

// register installs a stream as the call's current one. A reconnect for the
// same call id shuts the previous stream down and takes over.
func (h *Hub) register(s *Stream) {
	h.mu.Lock()
	old := h.streams[s.callID]
	h.streams[s.callID] = s
	h.mu.Unlock()
	if old != nil {
		old.shutdown()
	}
	h.logger.Info("media stream connected", zap.String("call_id", s.callID))
}

func (h *Hub) unregister(s *Stream) {
	h.mu.Lock()
	if current, ok := h.streams[s.callID]; ok && current == s {
		delete(h.streams, s.callID)
	}
	h.mu.Unlock()
	s.shutdown()
	h.logger.Info("media stream disconnected", zap.String("call_id", s.callID))
}

// readPump pumps frames from the websocket connection to the handler.
// Running on a single goroutine per stream keeps a call's frames in arrival
// order, which the VAD state machine requires.
func (s *Stream) readPump() {
	defer func() {
		s.hub.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.logger.Error("media stream error", zap.Error(err))
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			s.logger.Warn("dropping unparseable media frame", zap.Error(err))
			continue
		}
		if frame.CallID == "" {
			frame.CallID = s.callID
		}

		switch frame.Event {
		case "media":
			s.hub.handler.HandleMediaFrame(frame.CallID, frame.Payload)
		case "stop":
			s.hub.handler.HandleHangup(frame.CallID)
		case "connected", "mark":
			// Provider bookkeeping events carry no audio.
		default:
			s.logger.Warn("unknown media frame event", zap.String("event", frame.Event))
		}
	}
}

// writePump pumps outbound frames from the hub to the websocket connection.
func (s *Stream) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case message, ok := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				s.logger.Error("failed to write media frame", zap.Error(err))
				return
			}

		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
