package transport

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mgomes/mdedit/internal/protocol"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10

	// Path is where the server accepts the webview connection.
	Path = "/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type wsChannel struct {
	id        string
	conn      *websocket.Conn
	in        chan protocol.Message
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newWSChannel(conn *websocket.Conn) *wsChannel {
	c := &wsChannel{
		id:   uuid.NewString(),
		conn: conn,
		in:   make(chan protocol.Message, inboxSize),
		out:  make(chan []byte, 32),
		done: make(chan struct{}),
	}
	go c.writeLoop()
	go c.readLoop()
	return c
}

// ID identifies the connection in logs.
func (c *wsChannel) ID() string {
	return c.id
}

func (c *wsChannel) readLoop() {
	defer close(c.in)
	defer c.Close()

	if err := c.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		log.Printf("ws %s: set read deadline failed: %v", c.id, err)
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws %s: read failed: %v", c.id, err)
			}
			return
		}
		msg, err := protocol.Decode(data)
		if err != nil {
			log.Printf("ws %s: dropping message: %v", c.id, err)
			continue
		}
		select {
		case c.in <- msg:
		case <-c.done:
			return
		}
	}
}

func (c *wsChannel) writeLoop() {
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case data := <-c.out:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Printf("ws %s: write failed: %v", c.id, err)
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *wsChannel) Send(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	select {
	case <-c.done:
		return ErrClosed
	default:
	}
	select {
	case c.out <- data:
		return nil
	case <-c.done:
		return ErrClosed
	}
}

func (c *wsChannel) Receive() <-chan protocol.Message {
	return c.in
}

func (c *wsChannel) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
	return nil
}

// Server accepts webview connections. Only one is active at a time; a new
// connection replaces the previous one.
type Server struct {
	mu     sync.Mutex
	active *wsChannel
	conns  chan Channel
}

func NewServer() *Server {
	return &Server{conns: make(chan Channel, 1)}
}

// Handler routes Path to the websocket endpoint.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(Path, s)
	return mux
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ch := newWSChannel(conn)
	log.Printf("ws %s: webview connected from %s", ch.id, r.RemoteAddr)

	s.mu.Lock()
	prev := s.active
	s.active = ch
	s.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	select {
	case s.conns <- ch:
	default:
		select {
		case stale := <-s.conns:
			stale.Close()
		default:
		}
		s.conns <- ch
	}
}

// Accept waits for the next webview connection.
func (s *Server) Accept(ctx context.Context) (Channel, error) {
	select {
	case ch := <-s.conns:
		return ch, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close drops the active connection.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		s.active.Close()
		s.active = nil
	}
	return nil
}

// Dial connects a webview to a host server.
func Dial(ctx context.Context, url string) (Channel, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return newWSChannel(conn), nil
}
