package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"
	"vidyabot_backend/internal/model"
	"vidyabot_backend/pkg/logger"
	"vidyabot_backend/pkg/monitoring"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Frames without audio stay far below this.
	minMessageSize = 64 << 10
)

// Realtime event names.
const (
	EventStartLearning     = "start_learning"
	EventAskDoubt          = "ask_doubt"
	EventSimplifyRequested = "simplify_requested"
	EventLessonStarted     = "lesson_started"
	EventDoubtAnswered     = "doubt_answered"
	EventError             = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WSMessage is one frame in either direction.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

type ErrorPayload struct {
	Event   string `json:"event"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type LessonPayload struct {
	StudentID string `json:"studentId" validate:"required,uuid"`
	Subject   string `json:"subject" validate:"required"`
	Chapter   string `json:"chapter" validate:"required"`
}

type DoubtPayload struct {
	StudentID   string `json:"studentId" validate:"required,uuid"`
	Subject     string `json:"subject" validate:"required"`
	Chapter     string `json:"chapter" validate:"required"`
	InputType   string `json:"inputType" validate:"required,oneof=voice text"`
	Text        string `json:"text"`
	AudioBase64 string `json:"audioBase64"`
}

// TutorGateway serves the realtime tutoring events over websocket
// connections. Each inbound event is handled on its own goroutine and
// answered on the same connection.
type TutorGateway struct {
	Teaching *TeachingService
	Doubts   *DoubtService

	validate        *validator.Validate
	maxMessageBytes int64

	mu      sync.Mutex
	clients map[*gatewayClient]struct{}
	stopped bool
	wg      sync.WaitGroup
}

func NewTutorGateway(teaching *TeachingService, doubts *DoubtService, maxAudioBytes int64) *TutorGateway {
	// base64 grows the audio by a third.
	limit := maxAudioBytes*4/3 + minMessageSize
	if limit < minMessageSize {
		limit = minMessageSize
	}
	return &TutorGateway{
		Teaching:        teaching,
		Doubts:          doubts,
		validate:        validator.New(),
		maxMessageBytes: limit,
		clients:         make(map[*gatewayClient]struct{}),
	}
}

type gatewayClient struct {
	gw      *TutorGateway
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	ctx     context.Context
	cancel  context.CancelFunc
	pending sync.WaitGroup
	once    sync.Once
}

// ServeWs upgrades the request and runs the connection until it closes.
func (g *TutorGateway) ServeWs(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &gatewayClient{
		gw:      g,
		conn:    conn,
		send:    make(chan []byte, 64),
		limiter: rate.NewLimiter(rate.Limit(5), 10),
		ctx:     ctx,
		cancel:  cancel,
	}

	g.mu.Lock()
	if g.stopped {
		g.mu.Unlock()
		cancel()
		conn.Close()
		return
	}
	g.clients[c] = struct{}{}
	g.wg.Add(1)
	g.mu.Unlock()
	monitoring.GatewayConnections.Inc()

	go c.writePump()
	go c.readPump()
}

// Stop closes every connection and waits for in-flight events to finish.
func (g *TutorGateway) Stop() {
	g.mu.Lock()
	g.stopped = true
	clients := make([]*gatewayClient, 0, len(g.clients))
	for c := range g.clients {
		clients = append(clients, c)
	}
	g.mu.Unlock()

	for _, c := range clients {
		c.conn.Close()
	}
	g.wg.Wait()
	logger.Log.Info("tutor gateway stopped", zap.Int("closedConnections", len(clients)))
}

func (g *TutorGateway) unregister(c *gatewayClient) {
	g.mu.Lock()
	delete(g.clients, c)
	g.mu.Unlock()
	monitoring.GatewayConnections.Dec()
	g.wg.Done()
}

func (c *gatewayClient) readPump() {
	defer func() {
		c.cancel()
		c.conn.Close()
		c.pending.Wait()
		close(c.send)
		c.gw.unregister(c)
	}()
	c.conn.SetReadLimit(c.gw.maxMessageBytes)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Log.Warn("WebSocket unexpected close", zap.Error(err))
			}
			return
		}

		var msg WSMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.emitError("", "malformed message", err)
			continue
		}
		monitoring.GatewayEvents.WithLabelValues(msg.Event, "in").Inc()

		if !c.limiter.Allow() {
			c.emitError(msg.Event, "too many requests", nil)
			continue
		}

		c.pending.Add(1)
		go func() {
			defer c.pending.Done()
			c.handle(msg)
		}()
	}
}

func (c *gatewayClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *gatewayClient) handle(msg WSMessage) {
	switch msg.Event {
	case EventStartLearning:
		var p LessonPayload
		if !c.decode(msg, &p) {
			return
		}
		session, err := c.gw.Teaching.StartSession(c.ctx, p.StudentID, p.Subject, p.Chapter, false)
		if err != nil {
			c.emitError(msg.Event, "failed to start learning session", err)
			return
		}
		c.emit(EventLessonStarted, session)

	case EventSimplifyRequested:
		var p LessonPayload
		if !c.decode(msg, &p) {
			return
		}
		result, err := c.gw.Teaching.Simplify(c.ctx, p.StudentID, p.Subject, p.Chapter)
		if err != nil {
			c.emitError(msg.Event, "failed to simplify lesson", err)
			return
		}
		c.emit(EventLessonStarted, result)

	case EventAskDoubt:
		var p DoubtPayload
		if !c.decode(msg, &p) {
			return
		}
		in := DoubtInput{
			StudentID: p.StudentID,
			Subject:   p.Subject,
			Chapter:   p.Chapter,
			InputType: model.InputType(p.InputType),
			Text:      p.Text,
		}
		if p.AudioBase64 != "" {
			audio, err := base64.StdEncoding.DecodeString(p.AudioBase64)
			if err != nil {
				c.emitError(msg.Event, "audioBase64 is not valid base64", err)
				return
			}
			in.Audio = audio
		}
		result, err := c.gw.Doubts.HandleDoubt(c.ctx, in)
		if err != nil {
			c.emitError(msg.Event, "failed to answer doubt", err)
			return
		}
		c.emit(EventDoubtAnswered, result)

	default:
		c.emitError(msg.Event, "unknown event", nil)
	}
}

func (c *gatewayClient) decode(msg WSMessage, out interface{}) bool {
	if len(msg.Data) == 0 {
		c.emitError(msg.Event, "missing data", nil)
		return false
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		c.emitError(msg.Event, "malformed data", err)
		return false
	}
	if err := c.gw.validate.Struct(out); err != nil {
		c.emitError(msg.Event, "invalid data", err)
		return false
	}
	return true
}

func (c *gatewayClient) emit(event string, data interface{}) {
	payload, err := json.Marshal(outMessage{Event: event, Data: data})
	if err != nil {
		logger.Log.Error("gateway encode failed", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case c.send <- payload:
		monitoring.GatewayEvents.WithLabelValues(event, "out").Inc()
	default:
		logger.Log.Warn("gateway send buffer full, dropping event", zap.String("event", event))
	}
}

func (c *gatewayClient) emitError(event, message string, err error) {
	p := ErrorPayload{Event: event, Message: message}
	if err != nil {
		p.Details = err.Error()
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			logger.Log.Error("gateway event failed", zap.String("event", event), zap.Error(err))
		} else {
			logger.Log.Warn("gateway event failed", zap.String("event", event), zap.Error(err))
		}
	}
	c.emit(EventError, p)
}
