package transport

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-errors/errors"

	fscbor "github.com/privacybydesign/fiatshamir/cbor"
)

var (
	// ErrClosed is returned by operations on a Conn whose peer or local side has closed.
	ErrClosed = errors.New("connection closed")
	// ErrUnexpected is returned when a peer sends a message of the wrong kind.
	ErrUnexpected = errors.New("unexpected message")
)

// Conn is a reliable, ordered, bidirectional message channel. Send and Receive may be called
// concurrently with each other, but not with themselves.
type Conn interface {
	Send(ctx context.Context, m *Message) error
	Receive(ctx context.Context) (*Message, error)
	Close() error
}

// Expect receives the next message and checks that it has one of the given kinds.
func Expect(ctx context.Context, c Conn, kinds ...Kind) (*Message, error) {
	m, err := c.Receive(ctx)
	if err != nil {
		return nil, err
	}
	for _, k := range kinds {
		if m.Kind == k {
			return m, nil
		}
	}
	return nil, errors.WrapPrefix(ErrUnexpected, "received "+m.Kind.String(), 0)
}

type pipeConn struct {
	in     <-chan *Message
	out    chan<- *Message
	closed chan struct{}
	once   *sync.Once
}

const pipeBuffer = 4

// Pipe returns the two ends of an in-process Conn. Closing either end closes both.
func Pipe() (Conn, Conn) {
	ab := make(chan *Message, pipeBuffer)
	ba := make(chan *Message, pipeBuffer)
	closed := make(chan struct{})
	once := &sync.Once{}
	return &pipeConn{in: ba, out: ab, closed: closed, once: once},
		&pipeConn{in: ab, out: ba, closed: closed, once: once}
}

func (p *pipeConn) Send(ctx context.Context, m *Message) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}
	select {
	case p.out <- m.clone():
		Logger.WithFields(m.fields()).Trace("pipe: sent")
		return nil
	case <-p.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *pipeConn) Receive(ctx context.Context) (*Message, error) {
	select {
	case m := <-p.in:
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-p.closed:
		// deliver what the peer sent before closing
		select {
		case m := <-p.in:
			return m, nil
		default:
			return nil, ErrClosed
		}
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

type deadliner interface {
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
}

type streamConn struct {
	rwc io.ReadWriteCloser
	enc *cbor.Encoder
	dec *cbor.Decoder
	dl  deadliner
}

// NewStreamConn returns a Conn that exchanges CBOR-encoded messages over rwc. If rwc is a
// net.Conn (or has read and write deadlines), context deadlines and cancellation interrupt
// blocked operations.
func NewStreamConn(rwc io.ReadWriteCloser) Conn {
	c := &streamConn{
		rwc: rwc,
		enc: fscbor.NewEncoder(rwc),
		dec: fscbor.NewDecoder(rwc),
	}
	c.dl, _ = rwc.(deadliner)
	return c
}

// longAgo is a deadline in the past, used to unblock an operation when its context is cancelled.
var longAgo = time.Unix(1, 0)

// bind applies ctx's deadline through set and arranges for cancellation to interrupt the
// operation. The returned function must be called when the operation finishes.
func bind(ctx context.Context, set func(time.Time) error) func() {
	if set == nil {
		return func() {}
	}
	if d, ok := ctx.Deadline(); ok {
		_ = set(d)
	}
	if ctx.Done() == nil {
		return func() { _ = set(time.Time{}) }
	}
	done := make(chan struct{})
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			_ = set(longAgo)
		case <-done:
		}
	}()
	return func() {
		close(done)
		<-exited
		_ = set(time.Time{})
	}
}

func (c *streamConn) Send(ctx context.Context, m *Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var set func(time.Time) error
	if c.dl != nil {
		set = c.dl.SetWriteDeadline
	}
	release := bind(ctx, set)
	err := c.enc.Encode(m)
	release()
	if err != nil {
		return c.fail(ctx, err)
	}
	Logger.WithFields(m.fields()).Trace("stream: sent")
	return nil
}

func (c *streamConn) Receive(ctx context.Context) (*Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var set func(time.Time) error
	if c.dl != nil {
		set = c.dl.SetReadDeadline
	}
	release := bind(ctx, set)
	m := &Message{}
	err := c.dec.Decode(m)
	release()
	if err != nil {
		return nil, c.fail(ctx, err)
	}
	Logger.WithFields(m.fields()).Trace("stream: received")
	return m, nil
}

func (c *streamConn) fail(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF || err == io.ErrClosedPipe {
		return ErrClosed
	}
	return errors.WrapPrefix(err, "transport", 0)
}

func (c *streamConn) Close() error {
	return c.rwc.Close()
}
