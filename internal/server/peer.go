package server

import (
	"bytes"
	"errors"
	"io"
	"net"
	"sync"
	"time"
)

// Status is the liveness of a connection as seen by the poll loop.
type Status int

const (
	StatusActive Status = iota
	StatusDisconnected
	StatusErrored
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusDisconnected:
		return "disconnected"
	case StatusErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// Stream is a duplex byte channel to one client that can report how many
// bytes are ready without blocking.
type Stream interface {
	io.ReadWriter
	Status() Status
	Available() int
	Disconnect() error
}

// peer adapts a net.Conn to Stream. A pump goroutine copies inbound bytes
// into a buffer so Available never blocks; Read blocks until buffered bytes
// exist, the connection ends, or the read timeout elapses.
type peer struct {
	conn        net.Conn
	readTimeout time.Duration

	mu  sync.Mutex
	buf bytes.Buffer
	err error

	wake chan struct{}
}

func newPeer(conn net.Conn, readTimeout time.Duration) *peer {
	p := &peer{
		conn:        conn,
		readTimeout: readTimeout,
		wake:        make(chan struct{}, 1),
	}
	go p.pump()
	return p
}

func (p *peer) pump() {
	chunk := make([]byte, 32*1024)
	for {
		n, err := p.conn.Read(chunk)
		p.mu.Lock()
		if n > 0 && p.err == nil {
			p.buf.Write(chunk[:n])
		}
		if err != nil && p.err == nil {
			p.err = err
		}
		p.mu.Unlock()

		select {
		case p.wake <- struct{}{}:
		default:
		}
		if err != nil {
			return
		}
	}
}

// Status stays active while buffered bytes remain so a frame sent right
// before the remote close is still delivered.
func (p *peer) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.err == nil || p.buf.Len() > 0 {
		return StatusActive
	}
	if errors.Is(p.err, io.EOF) || errors.Is(p.err, net.ErrClosed) {
		return StatusDisconnected
	}
	return StatusErrored
}

func (p *peer) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.Len()
}

func (p *peer) Read(b []byte) (int, error) {
	if len(b) == 0 {
		return 0, nil
	}

	var deadline <-chan time.Time
	if p.readTimeout > 0 {
		timer := time.NewTimer(p.readTimeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		p.mu.Lock()
		if p.buf.Len() > 0 {
			n, _ := p.buf.Read(b)
			p.mu.Unlock()
			return n, nil
		}
		if p.err != nil {
			err := p.err
			p.mu.Unlock()
			if errors.Is(err, net.ErrClosed) {
				return 0, io.EOF
			}
			return 0, err
		}
		p.mu.Unlock()

		select {
		case <-p.wake:
		case <-deadline:
			return 0, ErrReadTimeout
		}
	}
}

func (p *peer) Write(b []byte) (int, error) {
	return p.conn.Write(b)
}

func (p *peer) Disconnect() error {
	p.mu.Lock()
	if p.err == nil {
		p.err = net.ErrClosed
	}
	p.buf.Reset()
	p.mu.Unlock()
	return p.conn.Close()
}
