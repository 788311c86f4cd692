package stimulus

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth    = 16
	wavChannels    = 1
	wavFormatPCM   = 1
	wavPCM16MaxVal = 32767.0
)

// WriteWAV writes mono samples in [-1, 1] as 16-bit PCM. Values outside the range are clipped.
func WriteWAV(path string, samples []float64, rate int) error {
	if rate <= 0 {
		return fmt.Errorf("%w: rate %d Hz", ErrInvalidParameter, rate)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	enc := wav.NewEncoder(f, rate, wavBitDepth, wavChannels, wavFormatPCM)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: wavChannels, SampleRate: rate},
		Data:           make([]int, len(samples)),
		SourceBitDepth: wavBitDepth,
	}
	for i, v := range samples {
		buf.Data[i] = int(math.Round(max(-1, min(1, v)) * wavPCM16MaxVal))
	}

	if err := enc.Write(buf); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	if err := enc.Close(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to finalize WAV file: %w", err)
	}
	return f.Close()
}

// ReadWAV reads a PCM WAV file and returns the first channel scaled to [-1, 1] with its rate.
func ReadWAV(path string) ([]float64, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open input file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid WAV file: %s", path)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV data: %w", err)
	}

	channels := max(1, buf.Format.NumChannels)
	scale := 1 / (math.Pow(2, float64(dec.BitDepth)-1) - 1)
	out := make([]float64, len(buf.Data)/channels)
	for i := range out {
		out[i] = float64(buf.Data[i*channels]) * scale
	}
	return out, buf.Format.SampleRate, nil
}
