package daq

import (
	"context"
	"fmt"

	"github.com/golang/glog"
)

// Stats counts stream activity.
type Stats struct {
	Chunks  int // full chunks returned
	Retries int // short replies discarded
}

// Stream is a pull iterator over fixed-size chunks. It never ends on its own;
// stop it with Close or by cancelling the context passed to Next.
type Stream struct {
	session *Session
	buf     []byte
	closed  bool
	stats   Stats
}

// Next requests and returns one full chunk.
//
// A short reply is a torn frame: it is dropped and the request repeated, so a chunk is
// never partial. Cancellation is checked between requests; a request already in flight
// finishes or times out first.
func (st *Stream) Next(ctx context.Context) ([]uint16, error) {
	for {
		if st.closed {
			return nil, ErrStreamClosed
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		port := st.session.port
		if _, err := port.Write([]byte{CmdStream}); err != nil {
			return nil, fmt.Errorf("%w: write %q: %w", ErrTransport, CmdStream, err)
		}

		got, err := readFull(port, st.buf)
		if err != nil {
			return nil, &ReadError{Command: CmdStream, Got: got, Want: len(st.buf), Err: err}
		}
		if got != len(st.buf) {
			st.stats.Retries++
			glog.V(2).Infof("daq: short chunk %d/%d bytes, retrying", got, len(st.buf))
			continue
		}

		st.stats.Chunks++
		return decode(st.buf), nil
	}
}

// Close ends the stream and frees the session for another capture.
func (st *Stream) Close() error {
	if st.closed {
		return nil
	}
	st.closed = true
	if st.session.stream == st {
		st.session.stream = nil
	}
	glog.V(1).Infof("daq: stream closed after %d chunks, %d retries", st.stats.Chunks, st.stats.Retries)
	return nil
}

// Stats returns the counters so far.
func (st *Stream) Stats() Stats { return st.stats }
