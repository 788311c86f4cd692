package daq

import (
	"context"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/tphakala/go-scope/internal/config"
)

// Session is a connection to one capture device. It is not safe for concurrent use.
//
// A Session starts disconnected; burst and stream capture require Connect.
type Session struct {
	cfg    config.Serial
	open   Opener
	port   Port
	stream *Stream
}

// NewSession prepares a session. A nil opener selects SerialOpener.
func NewSession(cfg config.Serial, open Opener) *Session {
	if open == nil {
		open = SerialOpener
	}
	return &Session{cfg: cfg, open: open}
}

// Connected reports whether the port is open.
func (s *Session) Connected() bool { return s.port != nil }

// Connect opens the port, waits for the board to settle after the USB reset and
// discards whatever it sent meanwhile. Connecting an open session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	if s.port != nil {
		return nil
	}

	port, err := s.open(s.cfg)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrConnect, s.cfg.Port, err)
	}

	if s.cfg.SettleDelay > 0 {
		timer := time.NewTimer(s.cfg.SettleDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			_ = port.Close()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if err := port.ResetInputBuffer(); err != nil {
		_ = port.Close()
		return fmt.Errorf("%w: reset input on %s: %w", ErrConnect, s.cfg.Port, err)
	}

	s.port = port
	glog.Infof("daq: connected to %s at %d baud", s.cfg.Port, s.cfg.BaudRate)
	return nil
}

// Disconnect closes the port and any open stream. It is safe to call repeatedly.
func (s *Session) Disconnect() error {
	if s.port == nil {
		return nil
	}
	if s.stream != nil {
		s.stream.closed = true
		s.stream = nil
	}

	port := s.port
	s.port = nil
	if err := port.Close(); err != nil {
		return fmt.Errorf("%w: close %s: %w", ErrTransport, s.cfg.Port, err)
	}
	glog.V(1).Infof("daq: disconnected from %s", s.cfg.Port)
	return nil
}

// CaptureBurst requests one burst of n samples.
//
// A reply shorter than 2n bytes fails with a *ReadError wrapping ErrIncompleteRead and
// is not retried.
func (s *Session) CaptureBurst(n int) ([]uint16, error) {
	if s.port == nil {
		return nil, ErrNotConnected
	}
	if s.stream != nil {
		return nil, ErrStreamActive
	}
	if n <= 0 {
		return nil, fmt.Errorf("burst of %d samples", n)
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("%w: reset input: %w", ErrTransport, err)
	}
	if _, err := s.port.Write([]byte{CmdBurst}); err != nil {
		return nil, fmt.Errorf("%w: write %q: %w", ErrTransport, CmdBurst, err)
	}

	buf := make([]byte, n*bytesPerSample)
	got, err := readFull(s.port, buf)
	if got != len(buf) {
		return nil, &ReadError{Command: CmdBurst, Got: got, Want: len(buf), Err: err}
	}

	glog.V(1).Infof("daq: burst of %d samples", n)
	return decode(buf), nil
}

// Stream opens a chunked stream of chunk samples per Next call.
func (s *Session) Stream(chunk int) (*Stream, error) {
	if s.port == nil {
		return nil, ErrNotConnected
	}
	if s.stream != nil {
		return nil, ErrStreamActive
	}
	if chunk <= 0 {
		return nil, fmt.Errorf("stream chunk of %d samples", chunk)
	}

	if err := s.port.ResetInputBuffer(); err != nil {
		return nil, fmt.Errorf("%w: reset input: %w", ErrTransport, err)
	}

	st := &Stream{
		session: s,
		buf:     make([]byte, chunk*bytesPerSample),
	}
	s.stream = st
	return st, nil
}

// WithSession connects, runs fn and always disconnects, including when fn panics.
func WithSession(ctx context.Context, cfg config.Serial, open Opener, fn func(*Session) error) (err error) {
	s := NewSession(cfg, open)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if cerr := s.Disconnect(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return fn(s)
}
