// internal/app/features/collab/session.go
package collab

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/blockhub/internal/app/realtime/hub"
	"github.com/dalemusser/blockhub/internal/app/realtime/presence"
	"github.com/dalemusser/blockhub/internal/app/system/timeouts"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const writeWait = 10 * time.Second

// wsConn is the slice of *websocket.Conn the session needs. Tests
// substitute an in-memory implementation.
type wsConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// userDirectory resolves presence entries to public profiles for the
// user_list event.
type userDirectory interface {
	GetByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.User, error)
}

// session is one admitted connection's coordinator. It owns two
// background watchdogs (liveness on every session, autosave only while
// leading), a hub subscription pump, and the websocket read loop.
type session struct {
	h         *Handler
	conn      wsConn
	group     string
	user      models.User
	userHex   string
	connID    string
	directory userDirectory

	sub *hub.Subscription

	writeMu sync.Mutex

	liveness *livenessWatchdog
	autosave *autosaveWatchdog

	closeOnce sync.Once
}

func newSession(h *Handler, conn wsConn, group string, user models.User, connID string) *session {
	s := &session{
		h:         h,
		conn:      conn,
		group:     group,
		user:      user,
		userHex:   user.ID.Hex(),
		connID:    connID,
		directory: h.Users,
	}
	s.liveness = newLivenessWatchdog(h.PingInterval, h.PingTimeout, s.expire)
	s.autosave = newAutosaveWatchdog(h.AutosaveInterval, s.autosaveTick)
	return s
}

// run drives the session to completion: presence join, leader election,
// connect events, then the read loop until the transport dies.
func (s *session) run() {
	s.h.Presence.Join(s.group, presence.Entry{
		ConnID:   s.connID,
		UserID:   s.user.ID,
		Username: s.user.Username,
	})
	s.sub = s.h.Hub.Subscribe(s.group)

	if lead, ok := s.h.Presence.Leader(s.group); ok && lead.ConnID == s.connID {
		s.autosave.Start()
	}

	s.broadcast(evUserConnect, outboundEvent{Type: evUserConnect, Data: s.user.Public()})
	s.sendUserList()
	s.liveness.Start()
	s.h.Log.Info("collab session joined",
		zap.String("group", s.group),
		zap.String("username", s.user.Username),
		zap.Int("connections", s.h.Presence.Count(s.group)))

	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		s.pump()
	}()

	s.readLoop()
	s.close()
	<-pumpDone
}

// readLoop handles inbound frames until the connection errors, which is
// also how forced closes (liveness expiry) terminate the session.
func (s *session) readLoop() {
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}
		f, ok := parseInbound(raw)
		if !ok {
			s.writeEvent(errorEvent("Invalid message format"))
			continue
		}
		s.liveness.Touch()

		switch {
		case f.Type == evPing:
			s.writeEvent(pongEvent())
		case strings.HasPrefix(f.Type, blockEventPrefix):
			// Relay the frame verbatim, tagged with the sender.
			s.broadcast(evBlockEvent, outboundEvent{
				Type:   evBlockEvent,
				Data:   json.RawMessage(raw),
				UserID: s.userHex,
			})
		default:
			// Accepted for liveness; reserved for higher-level handlers.
		}
	}
}

// pump forwards group broadcasts to the client, applying self-echo
// suppression, and runs the lazy leadership check whenever a departure
// is observed.
func (s *session) pump() {
	for payload := range s.sub.C() {
		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			s.h.Log.Warn("bad hub envelope", zap.String("group", s.group), zap.Error(err))
			continue
		}
		if env.selfSuppressed(s.userHex) {
			continue
		}
		s.writeRaw(env.Event)

		if env.Type == evUserDisconnect {
			s.maybeTakeLeadership()
		}
	}
}

// maybeTakeLeadership starts this session's autosave timer if it now
// heads the presence list. Election is reactive: it only runs when a
// departure broadcast arrives.
func (s *session) maybeTakeLeadership() {
	if lead, ok := s.h.Presence.Leader(s.group); ok && lead.ConnID == s.connID {
		s.autosave.Start()
	}
}

func (s *session) autosaveTick() {
	s.broadcastAll(evAutosave, outboundEvent{
		Type: evAutosave,
		Data: map[string]string{"user_id": s.userHex},
	})
}

// expire runs on the liveness watchdog's goroutine when the client has
// been silent past the timeout: warn the client, then kill the
// transport so the read loop unwinds through the normal close path.
func (s *session) expire() {
	s.writeEvent(errorEvent("Ping timeout, closing connection"))
	_ = s.conn.Close()
}

// close tears the session down exactly once. Watchdogs are stopped and
// awaited before presence and subscription cleanup so no timer can fire
// into a dismantled session.
func (s *session) close() {
	s.closeOnce.Do(func() {
		s.liveness.Stop()
		s.autosave.Stop()

		s.h.Presence.Leave(s.group, s.connID)
		s.sub.Close()

		s.broadcast(evUserDisconnect, outboundEvent{
			Type: evUserDisconnect,
			Data: map[string]string{"user_id": s.userHex},
		})
		_ = s.conn.Close()
		s.h.Log.Info("collab session left",
			zap.String("group", s.group),
			zap.String("username", s.user.Username),
			zap.Int("connections", s.h.Presence.Count(s.group)))
	})
}

// sendUserList sends this connection the full current presence list in
// join order, duplicates included.
func (s *session) sendUserList() {
	entries := s.h.Presence.List(s.group)

	seen := make(map[primitive.ObjectID]struct{}, len(entries))
	ids := make([]primitive.ObjectID, 0, len(entries))
	for _, e := range entries {
		if _, ok := seen[e.UserID]; !ok {
			seen[e.UserID] = struct{}{}
			ids = append(ids, e.UserID)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeouts.Short())
	defer cancel()
	users, err := s.directory.GetByIDs(ctx, ids)
	if err != nil {
		s.h.Log.Warn("load presence profiles", zap.String("group", s.group), zap.Error(err))
		return
	}
	byID := make(map[primitive.ObjectID]models.User, len(users))
	for _, u := range users {
		byID[u.ID] = u
	}

	list := make([]models.PublicUser, 0, len(entries))
	for _, e := range entries {
		if u, ok := byID[e.UserID]; ok {
			list = append(list, u.Public())
		}
	}
	s.writeEvent(outboundEvent{Type: evUserList, Data: list})
}

// broadcast skips the sending connection at the hub; envelope
// suppression still covers the same user's other connections.
func (s *session) broadcast(typ string, ev outboundEvent) {
	payload, err := sealEnvelope(typ, s.userHex, ev)
	if err != nil {
		s.h.Log.Warn("seal broadcast", zap.String("group", s.group), zap.Error(err))
		return
	}
	s.h.Hub.PublishExcept(s.group, s.sub, payload)
}

// broadcastAll reaches every connection, the sender's included. The
// autosave announcement uses it so the leader's own client observes
// the save.
func (s *session) broadcastAll(typ string, ev outboundEvent) {
	payload, err := sealEnvelope(typ, s.userHex, ev)
	if err != nil {
		s.h.Log.Warn("seal broadcast", zap.String("group", s.group), zap.Error(err))
		return
	}
	s.h.Hub.Publish(s.group, payload)
}

func (s *session) writeEvent(ev outboundEvent) {
	raw, err := json.Marshal(ev)
	if err != nil {
		s.h.Log.Warn("marshal event", zap.Error(err))
		return
	}
	s.writeRaw(raw)
}

func (s *session) writeRaw(raw []byte) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteMessage(websocket.TextMessage, raw); err != nil {
		s.h.Log.Debug("write to client failed", zap.String("group", s.group), zap.Error(err))
	}
}
