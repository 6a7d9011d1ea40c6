package transport

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/term"

	"github.com/na4wx/nexdigi/internal/kiss"
)

// serialPort is the subset of *term.Term this driver needs; tests
// substitute a PTY file descriptor satisfying the same interface.
type serialPort interface {
	io.ReadWriteCloser
}

// Serial is a KISS-over-serial-port transport driver (spec.md section
// 4.3): open the port at the configured baud, apply KISS framing on both
// directions. Grounded on the teacher's kissserial.go/serial_port.go,
// which used github.com/pkg/term for the same raw-termios access this
// driver uses.
type Serial struct {
	Device  string
	Baud    int
	Backoff *Backoff

	open func(device string, baud int) (serialPort, error)

	mu     sync.Mutex
	port   serialPort
	events chan Event
}

// NewSerial constructs a serial KISS driver for the given device path and
// baud rate (e.g. "/dev/ttyUSB0", 9600).
func NewSerial(device string, baud int) *Serial {
	return &Serial{
		Device: device,
		Baud:   baud,
		events: make(chan Event, 16),
		open: func(device string, baud int) (serialPort, error) {
			t, err := term.Open(device, term.Speed(baud), term.RawMode)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
}

func (s *Serial) Events() <-chan Event { return s.events }

func (s *Serial) Run(ctx context.Context) error {
	defer close(s.events)
	backoff := s.Backoff
	if backoff == nil {
		backoff = DefaultBackoff()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}
		s.events <- Event{State: Connecting}

		port, err := s.open(s.Device, s.Baud)
		if err != nil {
			s.events <- Event{State: Disconnected, Reason: err.Error()}
			if !sleepOrDone(ctx, backoff.Next()) {
				return nil
			}
			continue
		}

		backoff.Reset()
		s.setPort(port)
		s.events <- Event{State: Connected}

		reason := s.readLoop(ctx, port)
		s.setPort(nil)
		_ = port.Close()

		if ctx.Err() != nil {
			return nil
		}
		s.events <- Event{State: Disconnected, Reason: reason}
		if !sleepOrDone(ctx, backoff.Next()) {
			return nil
		}
	}
}

func (s *Serial) readLoop(ctx context.Context, port serialPort) string {
	var dec kiss.Decoder
	buf := make([]byte, 4096)
	for {
		if ctx.Err() != nil {
			return "shutdown"
		}
		n, err := port.Read(buf)
		if n > 0 {
			for _, f := range dec.Feed(buf[:n]) {
				if f.Command != kiss.CmdData {
					continue
				}
				s.events <- Event{State: Connected, Frame: f.Payload}
			}
		}
		if err != nil {
			return err.Error()
		}
	}
}

func (s *Serial) setPort(p serialPort) {
	s.mu.Lock()
	s.port = p
	s.mu.Unlock()
}

func (s *Serial) Send(payload []byte) error {
	s.mu.Lock()
	port := s.port
	s.mu.Unlock()
	if port == nil {
		return ErrNotConnected
	}
	wire := kiss.Encode(0, kiss.CmdData, payload)
	_, err := port.Write(wire)
	return err
}

func (s *Serial) Reconnect() {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()
	if port != nil {
		_ = port.Close()
	}
}
