package realtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/joshu-sajeev/orchestrator/common"
	"github.com/joshu-sajeev/orchestrator/internal/auth"
	"github.com/joshu-sajeev/orchestrator/middleware"
	"github.com/rs/zerolog/log"
)

const writeTimeout = 10 * time.Second

// Server upgrades /ws/:namespace requests to WebSocket connections, joins
// them to their user and tenant rooms and keeps them alive with pings.
type Server struct {
	hub      *Hub
	verifier auth.Verifier
	appName  string

	pingInterval time.Duration
	pongTimeout  time.Duration
	authTimeout  time.Duration
	sendBuffer   int
}

func NewServer(hub *Hub, verifier auth.Verifier, cfg *Config, appName string) *Server {
	return &Server{
		hub:          hub,
		verifier:     verifier,
		appName:      appName,
		pingInterval: cfg.PingInterval,
		pongTimeout:  cfg.PongTimeout,
		authTimeout:  cfg.AuthTimeout,
		sendBuffer:   cfg.SendBuffer,
	}
}

// RegisterRoutes mounts the socket endpoint. Errors raised before the upgrade
// are rendered like any other API error.
func (s *Server) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/:namespace", middleware.ErrorHandler(), s.Handle)
}

func (s *Server) Handle(c *gin.Context) {
	namespace := c.Param("namespace")
	if !ValidNamespace(namespace) {
		c.Error(common.NotFoundError("unknown namespace"))
		c.Abort()
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(c.Request, c.Writer)
	if err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("websocket upgrade failed")
		return
	}

	s.serve(namespace, conn, c.Query("token"))
}

// connWriter serializes writes from the reader (control replies) and the
// writer goroutine.
type connWriter struct {
	mu   sync.Mutex
	conn net.Conn
}

func (w *connWriter) text(frame []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return wsutil.WriteServerText(w.conn, frame)
}

func (w *connWriter) raw(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := w.conn.Write(b)
	return err
}

func (w *connWriter) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return ws.WriteFrame(w.conn, ws.NewPingFrame(nil))
}

func (s *Server) serve(namespace string, conn net.Conn, token string) {
	defer conn.Close()
	w := &connWriter{conn: conn}

	if token == "" {
		var err error
		if token, err = s.readAuthFrame(conn); err != nil {
			log.Warn().Err(err).Str("namespace", namespace).Msg("websocket auth frame")
			s.reject(w, "Authentication required")
			return
		}
	}

	id, err := s.verifier.Verify(token)
	if err != nil {
		log.Warn().Err(err).Str("namespace", namespace).Msg("websocket invalid token")
		s.reject(w, "Invalid token")
		return
	}

	client := NewClient(namespace, id.UserID, id.TenantID, s.sendBuffer)
	s.hub.Join(client, UserRoom(id.UserID), TenantRoom(id.TenantID))
	defer s.hub.Leave(client)

	logger := log.With().
		Str("client_id", client.ID).
		Str("namespace", namespace).
		Str("user_id", id.UserID).
		Str("tenant_id", id.TenantID).
		Logger()
	logger.Info().Msg("client connected")

	s.reply(client, EventConnected, connectedPayload{
		Message:  "Successfully connected to " + s.appName,
		UserID:   id.UserID,
		TenantID: id.TenantID,
	})

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.writeLoop(w, client, done)
	}()

	err = s.readLoop(conn, w, client)
	close(done)
	wg.Wait()

	logger.Info().AnErr("reason", err).Msg("client disconnected")
}

func (s *Server) readAuthFrame(conn net.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(s.authTimeout))
	defer conn.SetReadDeadline(time.Time{})

	data, err := wsutil.ReadClientText(conn)
	if err != nil {
		return "", err
	}

	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", err
	}
	if f.Event != EventAuth {
		return "", errors.New("first frame must be auth")
	}

	var p authPayload
	if err := json.Unmarshal(f.Data, &p); err != nil {
		return "", err
	}
	if p.Token == "" {
		return "", errors.New("auth frame without token")
	}
	return p.Token, nil
}

func (s *Server) reject(w *connWriter, message string) {
	frame, err := encodeFrame(EventError, errorPayload{Message: message})
	if err != nil {
		return
	}
	if err := w.text(frame); err != nil {
		return
	}
	_ = w.raw(ws.CompiledCloseNormalClosure)
}

// readLoop reads client frames until the connection fails, the client
// closes it, or nothing arrives within the pong timeout.
func (s *Server) readLoop(conn net.Conn, w *connWriter, client *Client) error {
	var ctrl bytes.Buffer
	handleControl := func(h ws.Header, r io.Reader) error {
		err := wsutil.ControlFrameHandler(&ctrl, ws.StateServerSide)(h, r)
		if ctrl.Len() > 0 {
			if werr := w.raw(ctrl.Bytes()); werr != nil && err == nil {
				err = werr
			}
			ctrl.Reset()
		}
		return err
	}

	rd := &wsutil.Reader{
		Source:         conn,
		State:          ws.StateServerSide,
		CheckUTF8:      true,
		OnIntermediate: handleControl,
	}

	for {
		conn.SetReadDeadline(time.Now().Add(s.pongTimeout))

		hdr, err := rd.NextFrame()
		if err != nil {
			return err
		}
		if hdr.OpCode.IsControl() {
			if err := handleControl(hdr, rd); err != nil {
				return err
			}
			continue
		}
		if hdr.OpCode&ws.OpText == 0 {
			if err := rd.Discard(); err != nil {
				return err
			}
			continue
		}

		data, err := io.ReadAll(rd)
		if err != nil {
			return err
		}
		s.dispatch(client, data)
	}
}

func (s *Server) writeLoop(w *connWriter, client *Client, done <-chan struct{}) {
	ticker := time.NewTicker(s.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case frame := <-client.Outbox():
			if err := w.text(frame); err != nil {
				w.conn.Close()
				return
			}
		case <-ticker.C:
			if err := w.ping(); err != nil {
				w.conn.Close()
				return
			}
		}
	}
}

func (s *Server) dispatch(client *Client, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		s.reply(client, EventError, errorPayload{Message: "invalid frame"})
		return
	}

	switch f.Event {
	case EventPing:
		s.reply(client, EventPong, nil)
	case EventAuth:
		// already authenticated
	case EventNotificationRead:
		if client.Namespace != NamespaceNotifications {
			s.reply(client, EventError, errorPayload{Message: "unknown event: " + f.Event})
			return
		}
		var p notificationReadPayload
		if len(f.Data) > 0 {
			_ = json.Unmarshal(f.Data, &p)
		}
		if p.NotificationID == "" {
			s.reply(client, EventError, errorPayload{Message: "notification_id required"})
			return
		}
		log.Info().Str("client_id", client.ID).Str("notification_id", p.NotificationID).Msg("notification marked read")
		s.reply(client, EventNotificationReadConfirmed, notificationReadPayload{NotificationID: p.NotificationID})
	default:
		s.reply(client, EventError, errorPayload{Message: "unknown event: " + f.Event})
	}
}

func (s *Server) reply(client *Client, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("encode frame")
		return
	}
	client.Send(frame)
}
