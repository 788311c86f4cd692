// Package daq talks to the RP2040 capture firmware over USB serial.
//
// The device answers single-byte commands with raw little-endian uint16 samples:
// 's' returns one burst of BurstSamples, 'v' returns one chunk of LiveSamples.
// There is no header or checksum; the byte count is the only framing.
package daq

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"go.bug.st/serial"

	"github.com/tphakala/go-scope/internal/config"
)

// Wire commands.
const (
	CmdBurst  byte = 's'
	CmdStream byte = 'v'

	bytesPerSample = 2
)

// Port is the byte channel to the device. serial.Port satisfies it.
type Port interface {
	io.ReadWriteCloser
	ResetInputBuffer() error
}

// Opener opens a Port for the given serial settings.
type Opener func(cfg config.Serial) (Port, error)

// SerialOpener opens a real serial device at 8N1 with the configured read timeout.
func SerialOpener(cfg config.Serial) (Port, error) {
	mode := &serial.Mode{
		BaudRate: cfg.BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", cfg.Port, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set read timeout on %s: %w", cfg.Port, err)
	}
	return port, nil
}

// readFull reads until buf is full, the port times out (a zero-byte read) or an error
// other than io.EOF occurs. It returns the number of bytes read.
func readFull(r io.Reader, buf []byte) (int, error) {
	got := 0
	for got < len(buf) {
		n, err := r.Read(buf[got:])
		got += n
		if errors.Is(err, io.EOF) {
			return got, nil
		}
		if err != nil {
			return got, err
		}
		if n == 0 {
			return got, nil
		}
	}
	return got, nil
}

// decode converts little-endian sample bytes.
func decode(buf []byte) []uint16 {
	out := make([]uint16, len(buf)/bytesPerSample)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(buf[i*bytesPerSample:])
	}
	return out
}
