package adaptor

import (
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/ponyo877/lounge/server/domain"
	"go.uber.org/zap"
)

const closeGracePeriod = time.Second

func deadline(d time.Duration) time.Time {
	return time.Now().Add(d)
}

type Options struct {
	SendQueue      int
	WriteWait      time.Duration
	PongWait       time.Duration
	PingPeriod     time.Duration
	MaxMessageSize int64
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.SendQueue <= 0 {
		o.SendQueue = 256
	}
	if o.WriteWait <= 0 {
		o.WriteWait = 10 * time.Second
	}
	if o.PongWait <= 0 {
		o.PongWait = 60 * time.Second
	}
	if o.PingPeriod <= 0 || o.PingPeriod >= o.PongWait {
		o.PingPeriod = o.PongWait * 9 / 10
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = 64 * 1024
	}
	return o
}

// Adaptor bridges WebSocket connections to the session handler: one read
// loop and one writer per connection.
type Adaptor struct {
	hub      *Hub
	handler  SessionHandler
	upgrader websocket.Upgrader
	opts     Options
	logger   *zap.Logger
}

func NewAdaptor(hub *Hub, handler SessionHandler, opts Options, logger *zap.Logger) *Adaptor {
	opts = opts.withDefaults()
	return &Adaptor{
		hub:     hub,
		handler: handler,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     originChecker(opts.AllowedOrigins),
		},
		opts:   opts,
		logger: logger,
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return func(*http.Request) bool { return true }
	}
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[o] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[origin]
		return ok
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
// Query parameters userId and name carry an optional handshake identity.
func (a *Adaptor) ServeWS(c *gin.Context) {
	ws, err := a.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		a.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{
		id:   domain.ConnectionID(uuid.NewString()),
		conn: ws,
		send: make(chan []byte, a.opts.SendQueue),
	}
	a.hub.register(cl)
	go a.writeLoop(cl)

	a.logger.Info("connection opened", zap.String("conn", string(cl.id)), zap.String("remote", c.Request.RemoteAddr))
	handshake := domain.NewUserSummary(c.Query("userId"), c.Query("name"))
	a.handler.Connect(cl.id, handshake)

	a.readLoop(cl)

	a.hub.unregister(cl.id)
	a.handler.Disconnect(cl.id)
}

func (a *Adaptor) readLoop(cl *client) {
	ws := cl.conn
	ws.SetReadLimit(a.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(deadline(a.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(deadline(a.opts.PongWait))
	})

	for {
		mt, data, err := ws.ReadMessage()
		if err != nil {
			a.logReadError(cl.id, err)
			return
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}

		frame, err := DecodeFrame(data)
		if err != nil {
			sample := data
			if len(sample) > 256 {
				sample = sample[:256]
			}
			a.logger.Warn("dropping frame", zap.String("conn", string(cl.id)), zap.ByteString("sample", sample), zap.Error(err))
			continue
		}
		a.handler.Handle(cl.id, domain.CommandName(frame.Event), frame.Data)
	}
}

func (a *Adaptor) logReadError(id domain.ConnectionID, err error) {
	var ne net.Error
	switch {
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived):
		a.logger.Debug("peer closed", zap.String("conn", string(id)))
	case errors.As(err, &ne) && ne.Timeout():
		a.logger.Info("read timeout", zap.String("conn", string(id)))
	default:
		a.logger.Info("read error", zap.String("conn", string(id)), zap.Error(err))
	}
}

// writeLoop is the only writer of data frames on the connection. It exits
// when the hub closes the send queue or a write fails.
func (a *Adaptor) writeLoop(cl *client) {
	ticker := time.NewTicker(a.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = cl.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-cl.send:
			_ = cl.conn.SetWriteDeadline(deadline(a.opts.WriteWait))
			if !ok {
				_ = cl.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := cl.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				a.logger.Debug("write failed", zap.String("conn", string(cl.id)), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = cl.conn.SetWriteDeadline(deadline(a.opts.WriteWait))
			if err := cl.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
