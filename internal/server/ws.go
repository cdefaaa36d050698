// Package server exposes the streaming and offline segmentation
// endpoints over HTTP and WebSocket.
package server

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/streamvox/asr-gateway/internal/audio"
	"github.com/streamvox/asr-gateway/internal/stream"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Origin validation is deployment-specific and handled upstream.
		return true
	},
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// StreamConfig carries per-connection overrides sent with the start
// event. Absent fields fall back to the server defaults.
type StreamConfig struct {
	SampleRate          int     `json:"sample_rate,omitempty"`
	ChunkSize           int     `json:"chunk_size,omitempty"`
	MinSilenceDuration  float64 `json:"min_silence_duration,omitempty"`
	StabilizationFrames int     `json:"stabilization_frames,omitempty"`
	EnergyThreshold     float64 `json:"energy_threshold,omitempty"`
	UseVAD              *bool   `json:"use_vad,omitempty"`
	VADThreshold        float64 `json:"vad_threshold,omitempty"`
	ForceSpeech         bool    `json:"force_speech,omitempty"`
}

// clientMessage is a control frame from the client. Audio arrives as
// separate binary frames of 16-bit little-endian PCM.
type clientMessage struct {
	Event  string        `json:"event"`
	Config *StreamConfig `json:"config,omitempty"`
}

// serverMessage is a frame pushed to the client.
type serverMessage struct {
	Event     string          `json:"event"`
	SessionID string          `json:"session_id,omitempty"`
	Result    *stream.Result  `json:"result,omitempty"`
	Results   []stream.Result `json:"results,omitempty"`
	Message   string          `json:"message,omitempty"`
}

// StreamHandler upgrades connections to WebSocket and runs one streaming
// session per connection.
type StreamHandler struct {
	defaults stream.Options
	log      zerolog.Logger
}

// NewStreamHandler creates the WebSocket endpoint. The defaults supply
// the recognizer, oracle and tuning parameters shared by all sessions.
func NewStreamHandler(defaults stream.Options, log zerolog.Logger) *StreamHandler {
	return &StreamHandler{defaults: defaults, log: log}
}

func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to upgrade connection to WebSocket")
		return
	}
	defer ws.Close()

	c := &streamConn{
		ws:       ws,
		defaults: h.defaults,
		log:      h.log.With().Str("remote", r.RemoteAddr).Logger(),
	}
	c.run()
}

// streamConn is the per-connection state. The write mutex serializes
// result pushes from the session worker with control replies from the
// read loop.
type streamConn struct {
	ws       *websocket.Conn
	defaults stream.Options

	writeMu sync.Mutex
	session *stream.Session
	log     zerolog.Logger
}

func (c *streamConn) run() {
	defer func() {
		if c.session != nil {
			c.session.Stop()
		}
	}()

	for {
		msgType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.Warn().Err(err).Msg("WebSocket read error")
			}
			return
		}

		switch msgType {
		case websocket.BinaryMessage:
			c.handleAudio(data)
		case websocket.TextMessage:
			if done := c.handleControl(data); done {
				return
			}
		}
	}
}

func (c *streamConn) handleAudio(data []byte) {
	if c.session == nil {
		c.log.Warn().Msg("Audio frame before start event, dropping")
		return
	}
	samples, err := audio.PCM16BytesToFloat32(data)
	if err != nil {
		c.sendError("invalid audio frame: " + err.Error())
		return
	}
	c.session.Append(samples)
}

func (c *streamConn) handleControl(data []byte) bool {
	var msg clientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.sendError("invalid control message")
		return false
	}

	switch msg.Event {
	case "start":
		c.handleStart(msg.Config)
	case "reset":
		if c.session != nil {
			c.session.Reset()
		}
	case "stop":
		c.handleStop()
		return true
	default:
		c.log.Warn().Str("event", msg.Event).Msg("Unknown control event")
	}
	return false
}

func (c *streamConn) handleStart(cfg *StreamConfig) {
	if c.session != nil {
		c.sendError("session already started")
		return
	}

	opts := c.defaults
	if cfg != nil {
		applyOverrides(&opts, cfg)
	}
	opts.Callback = func(r stream.Result) {
		c.send(serverMessage{Event: "result", Result: &r})
	}

	session, err := stream.New(opts)
	if err != nil {
		c.sendError("failed to start session: " + err.Error())
		return
	}
	c.session = session
	c.log = c.log.With().Str("session_id", session.ID()).Logger()
	c.send(serverMessage{Event: "ready", SessionID: session.ID()})
}

func (c *streamConn) handleStop() {
	if c.session == nil {
		c.sendError("no session to stop")
		return
	}
	c.session.Stop()
	c.send(serverMessage{Event: "stopped", Results: c.session.FinalResults()})
}

func applyOverrides(opts *stream.Options, cfg *StreamConfig) {
	if cfg.SampleRate > 0 {
		opts.SampleRate = cfg.SampleRate
	}
	if cfg.ChunkSize > 0 {
		opts.ChunkSize = cfg.ChunkSize
	}
	if cfg.MinSilenceDuration > 0 {
		opts.MinSilenceDuration = cfg.MinSilenceDuration
	}
	if cfg.StabilizationFrames > 0 {
		opts.StabilizationFrames = cfg.StabilizationFrames
	}
	if cfg.EnergyThreshold > 0 {
		opts.EnergyThreshold = cfg.EnergyThreshold
	}
	if cfg.UseVAD != nil {
		opts.UseVAD = *cfg.UseVAD
	}
	if cfg.VADThreshold > 0 {
		opts.VADThreshold = cfg.VADThreshold
	}
	if cfg.ForceSpeech {
		opts.ForceSpeech = true
	}
}

func (c *streamConn) send(msg serverMessage) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.ws.WriteJSON(msg); err != nil {
		c.log.Warn().Err(err).Msg("Failed to write WebSocket message")
	}
}

func (c *streamConn) sendError(message string) {
	c.send(serverMessage{Event: "error", Message: message})
}
