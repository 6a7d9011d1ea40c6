package transport

import (
	"bufio"
	"context"
	"net"
	"sync"
	"time"

	"github.com/na4wx/nexdigi/internal/kiss"
)

// TCP is a persistent KISS-over-TCP client transport. On connection loss
// it reconnects with bounded exponential backoff (spec.md section 4.3).
type TCP struct {
	Addr    string
	Port    uint8
	DialTimeout time.Duration
	Backoff *Backoff

	dial func(ctx context.Context, addr string) (net.Conn, error)

	mu      sync.Mutex
	conn    net.Conn
	events  chan Event
}

// NewTCP constructs a KISS-over-TCP driver dialing addr ("host:port").
func NewTCP(addr string, port uint8) *TCP {
	return &TCP{
		Addr:        addr,
		Port:        port,
		DialTimeout: 10 * time.Second,
		events:      make(chan Event, 16),
		dial: func(ctx context.Context, addr string) (net.Conn, error) {
			d := net.Dialer{}
			return d.DialContext(ctx, "tcp", addr)
		},
	}
}

func (t *TCP) Events() <-chan Event { return t.events }

func (t *TCP) Run(ctx context.Context) error {
	defer close(t.events)
	backoff := t.Backoff
	if backoff == nil {
		backoff = DefaultBackoff()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		t.events <- Event{State: Connecting}

		dialCtx, cancel := context.WithTimeout(ctx, t.DialTimeout)
		conn, err := t.dial(dialCtx, t.Addr)
		cancel()
		if err != nil {
			t.events <- Event{State: Disconnected, Reason: err.Error()}
			if !sleepOrDone(ctx, backoff.Next()) {
				return nil
			}
			continue
		}

		backoff.Reset()
		t.setConn(conn)
		t.events <- Event{State: Connected}

		reason := t.readLoop(ctx, conn)
		t.setConn(nil)
		_ = conn.Close()

		if ctx.Err() != nil {
			return nil
		}
		t.events <- Event{State: Disconnected, Reason: reason}
		if !sleepOrDone(ctx, backoff.Next()) {
			return nil
		}
	}
}

func (t *TCP) readLoop(ctx context.Context, conn net.Conn) string {
	r := bufio.NewReader(conn)
	var dec kiss.Decoder
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return "shutdown"
		}
		n, err := r.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				if f.Command != kiss.CmdData {
					continue
				}
				t.events <- Event{State: Connected, Frame: f.Payload}
			}
		}
		if err != nil {
			return err.Error()
		}
	}
}

func (t *TCP) setConn(c net.Conn) {
	t.mu.Lock()
	t.conn = c
	t.mu.Unlock()
}

func (t *TCP) Send(payload []byte) error {
	t.mu.Lock()
	conn := t.conn
	t.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	wire := kiss.Encode(0, kiss.CmdData, payload)
	_, err := conn.Write(wire)
	return err
}

func (t *TCP) Reconnect() {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
