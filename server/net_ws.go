package server

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait      = 5 * time.Second
	readWait       = 60 * time.Second
	maxFrameSize   = 1 << 20
	sendBufferSize = 64
)

// ClientConn is the send half of one websocket connection. Frames are queued
// into a buffered channel drained by writePump; when the buffer is full the
// frame is dropped, never letting a slow consumer stall a room.
type ClientConn struct {
	ws      *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	dropped int64
}

func NewClientConn(ws *websocket.Conn) *ClientConn {
	return &ClientConn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
}

// Enqueue queues a frame for delivery. Non-blocking; safe from any goroutine,
// including after Close.
func (c *ClientConn) Enqueue(b []byte) {
	select {
	case c.send <- b:
	default:
		atomic.AddInt64(&c.dropped, 1)
	}
}

// Close stops the write pump, which flushes queued frames and closes the
// socket. Idempotent.
func (c *ClientConn) Close() {
	c.once.Do(func() {
		close(c.done)
	})
}

// Dropped reports how many frames were discarded on a full send buffer.
func (c *ClientConn) Dropped() int64 { return atomic.LoadInt64(&c.dropped) }

// writePump drains the send queue onto the wire until the connection closes.
func (c *ClientConn) writePump() {
	defer c.ws.Close()
	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-c.done:
			// Flush anything queued before the close, e.g. the error frame
			// of a rejected join.
			for {
				select {
				case msg := <-c.send:
					_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
					if err := c.ws.WriteMessage(websocket.TextMessage, msg); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// Server wires the registry, graph, and identity gate behind the HTTP
// handlers.
type Server struct {
	Registry  *Registry
	Graph     *MemoryGraph
	Log       *zap.SugaredLogger
	GraphPath string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// The credential in the join frame is the admission check, not the
		// origin; the editor and the game client run on separate origins.
		return true
	},
}

// HandleWS upgrades the connection and runs its read loop. The client must
// open with a join frame; everything afterwards is room traffic.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Log.Warnf("upgrade error: %v", err)
		return
	}
	client := NewClientConn(ws)
	go client.writePump()

	sess := &session{
		server:    s,
		client:    client,
		sessionID: uuid.NewString(),
	}
	go sess.readPump(ws)
}

// session is the server side of one connection's bridge: the connection-scoped
// id, the credential attached at first join, and the room currently occupied.
type session struct {
	server     *Server
	client     *ClientConn
	sessionID  string
	credential string
	room       *Room
}

func (sess *session) readPump(ws *websocket.Conn) {
	defer sess.client.Close()
	defer sess.leave()
	ws.SetReadLimit(maxFrameSize)
	_ = ws.SetReadDeadline(time.Now().Add(readWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readWait))
	})

	for {
		_, payload, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(readWait))
		cmd, err := DecodeCommand(payload)
		if err != nil {
			sess.server.Log.Debugw("dropping bad frame", "session", sess.sessionID, "error", err)
			continue
		}
		switch c := cmd.(type) {
		case JoinCommand:
			if err := sess.handleJoin(c); err != nil {
				// Admission errors reject the connection outright.
				return
			}
		case MoveCommand:
			if sess.room == nil {
				continue
			}
			if err := sess.room.Move(sess.sessionID, c.TargetPointID); err != nil {
				sess.client.Enqueue(encodeError(err))
			}
		case TransitionCommand:
			if sess.room == nil {
				continue
			}
			if err := sess.room.RequestTransition(sess.sessionID, c.ToPointID); err != nil {
				sess.client.Enqueue(encodeError(err))
			}
		}
	}
}

// handleJoin admits the session into the room for the requested point. Also
// the rejoin path after a joinNewRoom instruction, where the client may omit
// the credential it already presented.
func (sess *session) handleJoin(c JoinCommand) error {
	credential := c.Credential
	if credential == "" {
		credential = sess.credential
	}
	if sess.room != nil && sess.room.PointID() != c.RequestedPointID {
		// Rejoining elsewhere; a transition already removed the player, so
		// this is a no-op unless routing was stale.
		sess.room.Leave(sess.sessionID)
		sess.room = nil
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		room := sess.server.Registry.GetOrCreate(c.RequestedPointID)
		err := room.Admit(context.Background(), sess.client, sess.sessionID, credential, c.RequestedPointID)
		if err == nil {
			sess.room = room
			sess.credential = credential
			return nil
		}
		lastErr = err
		if KindOf(err) != KindStaleRoom {
			break
		}
		// Lost a race with the room's teardown; the registry mints a fresh one.
	}
	sess.client.Enqueue(encodeError(lastErr))
	sess.server.Log.Infow("join rejected",
		"session", sess.sessionID, "point", c.RequestedPointID, "kind", KindOf(lastErr))
	return lastErr
}

// leave applies the implicit disconnect. Idempotent against an explicit leave
// or an already-terminated room.
func (sess *session) leave() {
	if sess.room != nil {
		sess.room.Leave(sess.sessionID)
	}
}
