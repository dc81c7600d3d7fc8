package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"campusconnect/internal/domain"
	"campusconnect/internal/livesync"
)

const (
	writeWait       = 10 * time.Second
	pongWait        = 60 * time.Second
	pingPeriod      = (pongWait * 9) / 10
	maxCommandBytes = 64 << 10
	sendBuffer      = 64
)

// command is a client request on a live session. Fields beyond Type and Ref
// are read by the commands that need them.
type command struct {
	Type       string   `json:"type"`
	Ref        string   `json:"ref,omitempty"`
	ID         string   `json:"id,omitempty"`
	Text       string   `json:"text,omitempty"`
	MediaURLs  []string `json:"media_urls,omitempty"`
	Visibility string   `json:"visibility,omitempty"`
	ParentID   string   `json:"parent_id,omitempty"`
	UserID     string   `json:"user_id,omitempty"`
}

type snapshotFrame struct {
	Type    string `json:"type"`
	Loading bool   `json:"loading"`
	Items   any    `json:"items"`
	Unread  *int   `json:"unread,omitempty"`
	// View carries the display rows derived from Items.
	View any `json:"view,omitempty"`
}

type noticeFrame struct {
	Type string `json:"type"`
	livesync.Notice
}

type replyFrame struct {
	Type  string    `json:"type"`
	Ref   string    `json:"ref,omitempty"`
	Data  any       `json:"data,omitempty"`
	Error *apiError `json:"error,omitempty"`
}

var errUnknownCommand = domain.NewValidationError(map[string]string{"type": "unknown command"})

type liveHook interface {
	Open(ctx context.Context) error
	Refresh(ctx context.Context) error
	Close() error
}

// liveBinding ties a hook to the frames a session exchanges for it.
type liveBinding struct {
	hook     liveHook
	watch    func() (<-chan struct{}, func())
	snapshot func() snapshotFrame
	handle   func(ctx context.Context, cmd command) (any, error)
}

// session is one websocket client. Notices raised by the hook and snapshots of
// its collection are queued on send; a single writer drains the queue.
type session struct {
	id     string
	logger *slog.Logger
	send   chan any
	done   chan struct{}
}

func newSession(logger *slog.Logger, kind string) *session {
	id := uuid.NewString()
	return &session{
		id:     id,
		logger: logger.With("session_id", id, "live", kind),
		send:   make(chan any, sendBuffer),
		done:   make(chan struct{}),
	}
}

func (s *session) Notify(n livesync.Notice) {
	s.enqueue(noticeFrame{Type: "notice", Notice: n})
}

func (s *session) enqueue(v any) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.send <- v:
	case <-s.done:
	default:
		s.logger.Warn("live: client lagging, frame dropped")
	}
}

// serveLive upgrades the request and runs the session until the client goes
// away. The hook is closed on return.
func (a *api) serveLive(w http.ResponseWriter, r *http.Request, s *session, b liveBinding) {
	defer func() {
		if err := b.hook.Close(); err != nil {
			s.logger.Warn("live: close hook", "err", err)
		}
	}()

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("live: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	changed, stop := b.watch()
	defer stop()

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop(conn)
	}()
	go func() {
		for {
			select {
			case <-s.done:
				return
			case <-changed:
				s.enqueue(b.snapshot())
			}
		}
	}()

	s.logger.Info("live: session opened")
	if err := b.hook.Open(ctx); err != nil {
		s.logger.Warn("live: open failed", "err", err)
	}
	s.enqueue(b.snapshot())

	s.readLoop(ctx, conn, b)
	s.logger.Info("live: session closed")

	cancel()
	close(s.done)
	<-writerDone
}

func (s *session) readLoop(ctx context.Context, conn *websocket.Conn, b liveBinding) {
	conn.SetReadLimit(maxCommandBytes)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("live: read failed", "err", err)
			}
			return
		}

		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			s.reply(command{}, nil, domain.NewValidationError(map[string]string{"command": "invalid json"}))
			continue
		}

		var out any
		if cmd.Type == "refresh" {
			err = b.hook.Refresh(ctx)
		} else {
			out, err = b.handle(ctx, cmd)
		}
		s.reply(cmd, out, err)
	}
}

func (s *session) reply(cmd command, out any, err error) {
	if err != nil {
		_, body := classify(err)
		if !errors.Is(err, domain.ErrValidation) {
			s.logger.Warn("live: command failed", "command", cmd.Type, "err", err)
		}
		s.enqueue(replyFrame{Type: "error", Ref: cmd.Ref, Error: &body})
		return
	}
	s.enqueue(replyFrame{Type: "ack", Ref: cmd.Ref, Data: out})
}

func (s *session) writeLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case v := <-s.send:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(v); err != nil {
				s.logger.Warn("live: write failed", "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-s.done:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
