package stream

import (
	"context"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/signalsfoundry/airspace-playback/core"
	"github.com/signalsfoundry/airspace-playback/internal/logging"
	"github.com/signalsfoundry/airspace-playback/internal/session"
)

// helloMessage is the first frame sent to a websocket client.
type helloMessage struct {
	Type      string        `json:"type"`
	SessionID string        `json:"session_id"`
	View      *session.View `json:"view,omitempty"`
}

// handleEvents upgrades to a websocket and relays bus events to the client
// until either side goes away. A client that falls sendBuffer events behind
// is disconnected.
func (s *Server) handleEvents(c *gin.Context) {
	ctx := c.Request.Context()
	log := logging.LoggerFromContext(ctx)
	if log == nil {
		log = s.log
	}

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn(ctx, "websocket upgrade failed", logging.Err(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	msgs := make(chan session.EventMessage, s.sendBuffer)
	overflow := make(chan struct{})
	var once sync.Once
	unsubscribe := s.sess.Bus().Subscribe(func(e core.Event) {
		select {
		case msgs <- session.NewEventMessage(e):
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer unsubscribe()

	hello := helloMessage{Type: "hello", SessionID: s.sess.ID()}
	if v, err := s.sess.View(); err == nil {
		hello.View = &v
	}
	if err := s.write(conn, hello); err != nil {
		return
	}

	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	log.Debug(ctx, "event stream opened")
	for {
		select {
		case <-ctx.Done():
			log.Debug(ctx, "event stream closed")
			return
		case <-overflow:
			log.Warn(ctx, "event stream client too slow, disconnecting")
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too slow"),
				time.Now().Add(s.writeWait))
			return
		case msg := <-msgs:
			if err := s.write(conn, msg); err != nil {
				log.Debug(ctx, "event stream write failed", logging.Err(err))
				return
			}
		}
	}
}

func (s *Server) write(conn *websocket.Conn, v any) error {
	if err := conn.SetWriteDeadline(time.Now().Add(s.writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(v)
}
