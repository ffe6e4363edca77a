package connect

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/netip"
	"sync"
	"sync/atomic"
)

const (
	// MaxMessageSize bounds a single framed message.
	MaxMessageSize = 64 << 10

	inboxSize = 16
)

// ErrMessageTooLarge is returned for messages above MaxMessageSize.
var ErrMessageTooLarge = errors.New("connect: message too large")

// Conn is a reliable, length-framed session connection. A background
// reader queues complete messages, so TryRecv never blocks.
type Conn struct {
	nc     net.Conn
	remote netip.AddrPort

	inbox chan []byte
	done  chan struct{}
	err   error // set by the reader before inbox is closed

	writeMu sync.Mutex
	closed  atomic.Bool
	wg      sync.WaitGroup
}

func newConn(nc net.Conn) *Conn {
	c := &Conn{
		nc:    nc,
		inbox: make(chan []byte, inboxSize),
		done:  make(chan struct{}),
	}
	if ta, ok := nc.RemoteAddr().(*net.TCPAddr); ok {
		ap := ta.AddrPort()
		c.remote = netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.readLoop()
	}()
	return c
}

// RemoteAddr returns the normalized peer address.
func (c *Conn) RemoteAddr() netip.AddrPort {
	return c.remote
}

// LocalAddr returns the normalized local address of the connection, which
// is the address the peer reached us at.
func (c *Conn) LocalAddr() netip.AddrPort {
	ta, ok := c.nc.LocalAddr().(*net.TCPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	ap := ta.AddrPort()
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}

// Send writes one message.
func (c *Conn) Send(msg []byte) error {
	if len(msg) > MaxMessageSize {
		return fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg))
	}
	if c.closed.Load() {
		return net.ErrClosed
	}
	frame := make([]byte, 4, 4+len(msg))
	binary.BigEndian.PutUint32(frame, uint32(len(msg)))
	frame = append(frame, msg...)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err := c.nc.Write(frame)
	return err
}

// TryRecv returns the next queued message without blocking.
func (c *Conn) TryRecv() ([]byte, bool) {
	select {
	case msg, ok := <-c.inbox:
		return msg, ok
	default:
		return nil, false
	}
}

// Recv blocks until a message arrives, the connection ends or ctx is done.
func (c *Conn) Recv(ctx context.Context) ([]byte, error) {
	select {
	case msg, ok := <-c.inbox:
		if !ok {
			return nil, c.err
		}
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// RecvMetadata receives and decodes one metadata message.
func (c *Conn) RecvMetadata(ctx context.Context) (Metadata, error) {
	b, err := c.Recv(ctx)
	if err != nil {
		return Metadata{}, err
	}
	var m Metadata
	if err := m.UnmarshalText(b); err != nil {
		return Metadata{}, err
	}
	return m, nil
}

// Close closes the connection and waits for the reader to stop.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(c.done)
	err := c.nc.Close()
	c.wg.Wait()
	return err
}

func (c *Conn) readLoop() {
	defer close(c.inbox)
	br := bufio.NewReader(c.nc)
	var hdr [4]byte
	for {
		if _, err := io.ReadFull(br, hdr[:]); err != nil {
			c.err = readError(err)
			return
		}
		n := binary.BigEndian.Uint32(hdr[:])
		if n > MaxMessageSize {
			c.err = fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, n)
			c.nc.Close()
			return
		}
		msg := make([]byte, n)
		if _, err := io.ReadFull(br, msg); err != nil {
			c.err = readError(err)
			return
		}
		select {
		case c.inbox <- msg:
		case <-c.done:
			c.err = net.ErrClosed
			return
		}
	}
}

func readError(err error) error {
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return io.EOF
	}
	return err
}
