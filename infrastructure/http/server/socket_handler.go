package server

import (
	"context"
	"encoding/json"
	"time"

	"syncx/auth"
	"syncx/domain/chat"
	"syncx/domain/event"
	"syncx/errors"
	"syncx/sink"

	"github.com/gin-gonic/gin"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// socket upgrades an authenticated request and serves the connection until
// either side closes it. A rejected handshake never reaches the registry.
func (s *Server) socket(c *gin.Context) {
	user, err := s.deps.Auth.AuthenticateHandshake(auth.TokenFromRequest(c.Request, auth.CookieName, true))
	if err != nil {
		s.deps.Metrics.IncrHandshakeRejected()
		s.log.Debug("Socket handshake rejected", "remote", c.ClientIP(), "error", err)
		fail(c, err)
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     s.opts.AllowedOrigins,
		InsecureSkipVerify: s.opts.InsecureSkipVerify,
	})
	if err != nil {
		// Accept already wrote the response
		s.log.Warn("Socket upgrade failed", "user_id", user.ID, "error", err)
		return
	}

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	out := sink.NewWebSocketSink(s.opts.ConnectionBuffer)
	s.deps.Socket.Connect(ctx, user, out)
	defer func() {
		out.Close()
		s.deps.Socket.Disconnect(context.WithoutCancel(ctx), out)
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	go s.writeLoop(ctx, cancel, conn, out)
	go s.keepAlive(ctx, conn)
	s.readLoop(ctx, user, conn, out)
}

// readLoop handles inbound frames in order. A frame that cannot be decoded
// or is rejected is answered with an ERROR frame, the connection stays up.
func (s *Server) readLoop(ctx context.Context, user chat.User, conn *websocket.Conn, out *sink.WebSocketSink) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			s.logClose(user.ID, out.ID(), err)
			return
		}
		var in event.Inbound
		if err = json.Unmarshal(data, &in); err != nil {
			err = errors.ErrValidation.WithMessage("malformed frame")
		} else {
			err = s.deps.Socket.Handle(ctx, user, out, in)
		}
		if err != nil {
			s.log.Debug("Socket frame rejected", "user_id", user.ID, "event", in.Kind, "error", err)
			kind, _, text := errors.Public(err)
			_ = out.Consume(ctx, event.Event{
				Kind: event.Error,
				Data: event.ErrorPayload{Event: in.Kind, Kind: string(kind), Message: text},
			})
		}
	}
}

// writeLoop is the only writer of conn. A failed write tears the connection
// down through cancel.
func (s *Server) writeLoop(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, out *sink.WebSocketSink) {
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return
		case <-out.Done():
			return
		case e := <-out.Events():
			writeCtx, done := context.WithTimeout(ctx, s.opts.WriteTimeout)
			err := wsjson.Write(writeCtx, conn, e)
			done()
			if err != nil {
				s.log.Debug("Socket write failed", "connection", out.ID(), "event", e.Kind, "error", err)
				return
			}
		}
	}
}

func (s *Server) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, s.opts.WriteTimeout)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}

func (s *Server) logClose(userID, connID string, err error) {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		s.log.Debug("Socket closed by client", "user_id", userID, "connection", connID)
	default:
		s.log.Debug("Socket read ended", "user_id", userID, "connection", connID, "error", err)
	}
}
