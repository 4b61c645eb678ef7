// Package transport carries protocol messages between the host and the
// webview. Every message is serialized on send, so the two sides never
// share memory.
package transport

import (
	"errors"
	"log"
	"sync"

	"github.com/mgomes/mdedit/internal/protocol"
)

const inboxSize = 256

var ErrClosed = errors.New("channel closed")

// Channel is one endpoint of a message link. Delivery is at most once and
// in order; there are no acknowledgements.
type Channel interface {
	Send(m protocol.Message) error
	Receive() <-chan protocol.Message
	Close() error
}

type pipe struct {
	mu     sync.Mutex
	closed bool
}

type pipeEnd struct {
	p    *pipe
	in   chan protocol.Message
	peer *pipeEnd
}

// Pipe returns two connected in-process endpoints.
func Pipe() (Channel, Channel) {
	p := &pipe{}
	a := &pipeEnd{p: p, in: make(chan protocol.Message, inboxSize)}
	b := &pipeEnd{p: p, in: make(chan protocol.Message, inboxSize)}
	a.peer, b.peer = b, a
	return a, b
}

func (e *pipeEnd) Send(m protocol.Message) error {
	data, err := protocol.Encode(m)
	if err != nil {
		return err
	}
	copied, err := protocol.Decode(data)
	if err != nil {
		return err
	}

	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.closed {
		return ErrClosed
	}
	select {
	case e.peer.in <- copied:
	default:
		log.Printf("transport: inbox full, dropping %s", m.Command)
	}
	return nil
}

func (e *pipeEnd) Receive() <-chan protocol.Message {
	return e.in
}

// Close shuts both ends.
func (e *pipeEnd) Close() error {
	e.p.mu.Lock()
	defer e.p.mu.Unlock()
	if e.p.closed {
		return nil
	}
	e.p.closed = true
	close(e.in)
	close(e.peer.in)
	return nil
}
