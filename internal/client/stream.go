package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ppiankov/athena/internal/model"
)

const streamBuffer = 32

type streamMessage struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp string          `json:"timestamp"`
}

// ProgressStream delivers backend progress messages for display
type ProgressStream struct {
	conn   *websocket.Conn
	events chan model.ProgressEvent
	logger *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

// StreamOption configures DialProgress
type StreamOption func(*streamConfig)

type streamConfig struct {
	dialer *websocket.Dialer
	header http.Header
	logger *zap.Logger
}

// WithDialer overrides the websocket dialer
func WithDialer(d *websocket.Dialer) StreamOption {
	return func(c *streamConfig) { c.dialer = d }
}

// WithStreamLogger sets the stream logger
func WithStreamLogger(l *zap.Logger) StreamOption {
	return func(c *streamConfig) { c.logger = l }
}

// WithHeader adds handshake headers
func WithHeader(h http.Header) StreamOption {
	return func(c *streamConfig) { c.header = h }
}

// StreamURL maps an http(s) API base to its ws(s) progress endpoint
func StreamURL(baseURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws"
	u.RawQuery = ""
	return u.String(), nil
}

// DialProgress subscribes to the backend's progress socket.
// The events channel closes when ctx ends or the socket closes.
func DialProgress(ctx context.Context, baseURL string, opts ...StreamOption) (*ProgressStream, error) {
	cfg := streamConfig{
		dialer: websocket.DefaultDialer,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	endpoint, err := StreamURL(baseURL)
	if err != nil {
		return nil, err
	}

	conn, resp, err := cfg.dialer.DialContext(ctx, endpoint, cfg.header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	s := &ProgressStream{
		conn:   conn,
		events: make(chan model.ProgressEvent, streamBuffer),
		logger: cfg.logger,
		done:   make(chan struct{}),
	}

	go s.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()

	return s, nil
}

// Events returns the event channel
func (s *ProgressStream) Events() <-chan model.ProgressEvent {
	return s.events
}

// Close terminates the subscription. Safe to call more than once.
func (s *ProgressStream) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		_ = s.conn.Close()
	})
}

func (s *ProgressStream) readLoop() {
	defer close(s.events)
	defer s.Close()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			select {
			case <-s.done:
			default:
				s.logger.Debug("progress stream closed", zap.Error(err))
			}
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug("skipping malformed progress message", zap.Error(err))
			continue
		}

		switch msg.Type {
		case "ping":
			s.pong()
			continue
		case "pong", "connected":
			continue
		}

		event := toProgressEvent(msg)
		select {
		case s.events <- event:
		case <-s.done:
			return
		}
	}
}

func (s *ProgressStream) pong() {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	payload := map[string]string{"type": "pong", "timestamp": time.Now().UTC().Format(time.RFC3339)}
	if err := s.conn.WriteJSON(payload); err != nil {
		s.logger.Debug("pong failed", zap.Error(err))
	}
}

func toProgressEvent(msg streamMessage) model.ProgressEvent {
	event := model.ProgressEvent{
		Type:       msg.Type,
		ReceivedAt: time.Now(),
	}

	var data map[string]any
	if len(msg.Data) > 0 && json.Unmarshal(msg.Data, &data) == nil {
		event.Data = data
	}

	event.Stage = stringField(data, "stage")
	switch msg.Type {
	case "progress":
		event.Message = stringField(data, "description")
		if pct, ok := data["progress_percentage"].(float64); ok {
			event.Percentage = pct
		}
	case "error":
		event.Message = stringField(data, "message")
	case "result":
		event.Message = stringField(data, "verdict")
	default:
		event.Message = stringField(data, "message")
	}

	return event
}

func stringField(data map[string]any, key string) string {
	if data == nil {
		return ""
	}
	s, _ := data[key].(string)
	return s
}
