// Package daqtest provides an in-memory stand-in for the capture firmware.
package daqtest

import (
	"encoding/binary"
	"errors"
	"sync"

	"github.com/tphakala/go-scope/internal/config"
	"github.com/tphakala/go-scope/internal/daq"
)

// ErrClosed is returned by I/O on a closed device.
var ErrClosed = errors.New("daqtest: device closed")

// Device answers 's' and 'v' like the firmware, from a sample generator.
// Reads with nothing pending return 0 bytes, as a serial port does on timeout.
type Device struct {
	mu sync.Mutex

	burst, live int
	sample      func(i int) uint16
	next        int // index of the next generated sample

	pending []byte
	maxRead int

	burstShortBy int
	shortChunks  int
	chunkShortBy int
	writeErr     error

	commands []byte
	resets   int
	closes   int
	closed   bool
}

// Option configures a Device.
type Option func(*Device)

// WithSamples sets the generator for sample i of the device's running output.
func WithSamples(fn func(i int) uint16) Option {
	return func(d *Device) { d.sample = fn }
}

// WithBurstShortBy drops n bytes from every burst reply.
func WithBurstShortBy(n int) Option {
	return func(d *Device) { d.burstShortBy = n }
}

// WithShortChunks truncates the next count stream replies by shortBy bytes each.
func WithShortChunks(count, shortBy int) Option {
	return func(d *Device) { d.shortChunks, d.chunkShortBy = count, shortBy }
}

// WithMaxRead caps the bytes returned per Read to exercise partial reads.
func WithMaxRead(n int) Option {
	return func(d *Device) { d.maxRead = n }
}

// WithWriteError makes every Write fail.
func WithWriteError(err error) Option {
	return func(d *Device) { d.writeErr = err }
}

// NewDevice returns a device replying with burst samples to 's' and live samples to 'v'.
// The default generator is a ramp.
func NewDevice(burst, live int, opts ...Option) *Device {
	d := &Device{
		burst:  burst,
		live:   live,
		sample: func(i int) uint16 { return uint16(i) },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Opener returns a daq.Opener that hands out this device.
func (d *Device) Opener() daq.Opener {
	return func(config.Serial) (daq.Port, error) {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.closed = false
		return d, nil
	}
}

func (d *Device) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	n := len(p)
	if d.maxRead > 0 {
		n = min(n, d.maxRead)
	}
	n = copy(p[:n], d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

func (d *Device) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return 0, ErrClosed
	}
	if d.writeErr != nil {
		return 0, d.writeErr
	}
	for _, c := range p {
		d.commands = append(d.commands, c)
		switch c {
		case daq.CmdBurst:
			d.reply(d.burst, d.burstShortBy)
		case daq.CmdStream:
			short := 0
			if d.shortChunks > 0 {
				d.shortChunks--
				short = d.chunkShortBy
			}
			d.reply(d.live, short)
		}
	}
	return len(p), nil
}

func (d *Device) reply(samples, shortBy int) {
	buf := make([]byte, 2*samples)
	for i := range samples {
		binary.LittleEndian.PutUint16(buf[2*i:], d.sample(d.next))
		d.next++
	}
	d.pending = append(d.pending, buf[:max(0, len(buf)-shortBy)]...)
}

// ResetInputBuffer discards pending reply bytes.
func (d *Device) ResetInputBuffer() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	d.pending = nil
	d.resets++
	return nil
}

// Close marks the device closed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	d.closed = true
	return nil
}

// Commands returns the command bytes received so far.
func (d *Device) Commands() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.commands...)
}

// Resets is the number of input buffer resets.
func (d *Device) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Closes is the number of Close calls.
func (d *Device) Closes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

// Expected returns samples [from, from+n) of the generator.
func (d *Device) Expected(from, n int) []uint16 {
	out := make([]uint16, n)
	for i := range out {
		out[i] = d.sample(from + i)
	}
	return out
}
