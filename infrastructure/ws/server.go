package ws

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"sanctuary/domain"
	"sanctuary/errors"
	"sanctuary/gateway"
	"sanctuary/services"
	"sanctuary/sink"

	"github.com/gorilla/websocket"
)

// Server upgrades connections and pumps the event contract. One read loop
// and one write loop per connection; the write loop drains the connection
// sink fed by the router.
type Server struct {
	service        services.ISanctuaryService
	log            *slog.Logger
	bufferSize     int
	allowedOrigins map[string]bool

	mu    sync.RWMutex
	conns map[string]*client // sessionID|participantID -> client
}

type client struct {
	conn          *websocket.Conn
	sink          *sink.ConnSink
	sessionID     domain.SessionID
	participantID string
	closeOnce     sync.Once
	writeMu       sync.Mutex
}

// write serializes all frames to the socket; gorilla connections do not
// support concurrent writers.
func (c *client) write(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

func NewServer(service services.ISanctuaryService, allowedOrigins []string,
	bufferSize int, log *slog.Logger) *Server {
	s := &Server{
		service:        service,
		log:            log,
		bufferSize:     bufferSize,
		allowedOrigins: make(map[string]bool),
		conns:          make(map[string]*client),
	}
	for _, origin := range allowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			s.allowedOrigins[trimmed] = true
		}
	}
	return s
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.allowedOrigins) == 0 {
		return true
	}
	return s.allowedOrigins[r.Header.Get("Origin")]
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("ws upgrade error", "error", err)
		return
	}

	c := &client{conn: conn, sink: sink.NewConnSink(s.log, s.bufferSize)}
	s.log.Debug("client connected", "remote", r.RemoteAddr)

	ctx, cancel := context.WithCancel(r.Context())
	go s.writePump(ctx, c)

	defer func() {
		cancel()
		s.drop(c)
		_ = conn.Close()
	}()

	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return
		}
		s.dispatch(ctx, c, env)
	}
}

// writePump drains the connection sink. Events buffered by the router come
// out here in enqueue order, which preserves per-sender FIFO.
func (s *Server) writePump(ctx context.Context, c *client) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt := <-c.sink.Events:
			if err := c.write(ServerEvent{Event: evt.Name(), Payload: evt}); err != nil {
				s.log.Debug("write failed, closing", "connection_id", c.sink.ConnectionID())
				c.closeOnce.Do(func() { _ = c.conn.Close() })
				return
			}
		}
	}
}

func connKey(sessionID domain.SessionID, participantID string) string {
	return fmt.Sprintf("%s|%s", sessionID, participantID)
}

// Disconnect implements the forced-disconnect hook used after a kick.
func (s *Server) Disconnect(sessionID domain.SessionID, participantID string) {
	s.mu.Lock()
	c, ok := s.conns[connKey(sessionID, participantID)]
	if ok {
		delete(s.conns, connKey(sessionID, participantID))
	}
	s.mu.Unlock()
	if ok {
		c.closeOnce.Do(func() { _ = c.conn.Close() })
	}
}

// drop handles the implicit disconnect: the registry flips the participant
// to disconnected and the absence timer takes it from there.
func (s *Server) drop(c *client) {
	if c.participantID == "" {
		return
	}
	s.mu.Lock()
	delete(s.conns, connKey(c.sessionID, c.participantID))
	s.mu.Unlock()

	s.service.Leave(context.Background(), c.sessionID, c.participantID, c.sink.ConnectionID())
	s.log.Debug("client disconnected", "participant_id", c.participantID)
}

func (s *Server) fail(c *client, err error) {
	reply := ErrorReply{Success: false, Code: errors.WireCode(err), Message: err.Error()}
	if writeErr := c.write(ServerEvent{Event: "error", Payload: reply}); writeErr != nil {
		s.log.Debug("error reply not delivered", "connection_id", c.sink.ConnectionID())
	}
}

func (s *Server) dispatch(ctx context.Context, c *client, env Envelope) {
	switch env.Event {
	case "join_room":
		s.handleJoin(ctx, c, env)
	case "send_message":
		s.handleSend(ctx, c, env)
	case "mute_participant":
		s.handleMute(ctx, c, env)
	case "unmute_participant":
		s.handleUnmute(ctx, c, env)
	case "unmute_all":
		s.handleUnmuteAll(ctx, c, env)
	case "promote_participant":
		s.handlePromote(ctx, c, env)
	case "kick_participant":
		s.handleKick(ctx, c, env)
	case "raise_hand":
		s.handleRaiseHand(ctx, c, env)
	case "emergency_alert":
		s.handleEmergency(ctx, c, env)
	case "get_history":
		s.handleHistory(c, env)
	default:
		s.fail(c, fmt.Errorf("unknown event %q", env.Event))
	}
}

func (s *Server) handleJoin(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[JoinRoomPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}

	creds := gateway.Credentials{
		BearerToken: payload.BearerToken,
		HostToken:   payload.HostToken,
		HostKey:     payload.HostKey,
		Alias:       payload.Alias,
		AvatarIndex: payload.AvatarIndex,
	}
	sessionID := domain.SessionID(payload.SessionID)

	result, err := s.service.JoinSession(ctx, sessionID, creds, c.sink)
	if err != nil {
		s.fail(c, err)
		return
	}

	c.sessionID = sessionID
	c.participantID = result.Identity.ParticipantID
	s.mu.Lock()
	s.conns[connKey(sessionID, c.participantID)] = c
	s.mu.Unlock()
}

func (s *Server) handleSend(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[SendMessagePayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}

	msgType := domain.MessageType(payload.Type)
	if msgType == "" {
		msgType = domain.MessageText
	}
	if err := s.service.SendMessage(ctx, domain.SessionID(payload.SessionID),
		c.participantID, payload.Content, msgType, payload.ReplyTo); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) handleMute(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[TargetPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.service.Mute(ctx, domain.SessionID(payload.SessionID),
		c.participantID, payload.ParticipantID); err != nil {
		s.fail(c, err)
	}
}

// handleUnmute covers both host unmutes and self-unmute attempts: a caller
// without authority unmuting itself goes down the self path, where a host
// mute still wins.
func (s *Server) handleUnmute(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[TargetPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	sessionID := domain.SessionID(payload.SessionID)

	err = s.service.Unmute(ctx, sessionID, c.participantID, payload.ParticipantID)
	if errors.Is(err, errors.ErrAuthorityRevoked) && payload.ParticipantID == c.participantID {
		err = s.service.SelfUnmute(ctx, sessionID, c.participantID)
	}
	if err != nil {
		s.fail(c, err)
	}
}

func (s *Server) handleUnmuteAll(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[SessionPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.service.UnmuteAll(ctx, domain.SessionID(payload.SessionID), c.participantID); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) handlePromote(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[TargetPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.service.Promote(ctx, domain.SessionID(payload.SessionID),
		c.participantID, payload.ParticipantID); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) handleKick(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[TargetPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.service.Kick(ctx, domain.SessionID(payload.SessionID),
		c.participantID, payload.ParticipantID, payload.Reason); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) handleRaiseHand(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[RaiseHandPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.service.RaiseHand(ctx, domain.SessionID(payload.SessionID),
		c.participantID, payload.IsRaised); err != nil {
		s.fail(c, err)
	}
}

func (s *Server) handleEmergency(ctx context.Context, c *client, env Envelope) {
	payload, err := decode[EmergencyPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	s.service.Emergency(ctx, domain.SessionID(payload.SessionID),
		c.participantID, payload.AlertType, payload.Message)
}

func (s *Server) handleHistory(c *client, env Envelope) {
	payload, err := decode[HistoryPayload](env.Payload)
	if err != nil {
		s.fail(c, err)
		return
	}
	messages, cursor, err := s.service.History(domain.SessionID(payload.SessionID), payload.Cursor)
	if err != nil {
		s.fail(c, err)
		return
	}
	reply := struct {
		Messages []domain.Message `json:"messages"`
		Cursor   *string          `json:"cursor"`
	}{Messages: messages, Cursor: cursor}
	if err := c.write(ServerEvent{Event: "history", Payload: reply}); err != nil {
		s.log.Debug("history reply not delivered", "connection_id", c.sink.ConnectionID())
	}
}
