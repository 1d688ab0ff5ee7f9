// Package audio turns audio sources into mono PCM waveforms.
package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
)

// Waveform is mono PCM audio normalised to [-1, 1].
type Waveform struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (w Waveform) Duration() float64 {
	if w.SampleRate == 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

var errEmpty = errors.New("audio contains no samples")

// Decode picks a decoder from the file extension, falling back to the
// RIFF magic bytes, and treats everything else as MP3.
func Decode(name string, data []byte) (Waveform, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".wav", ".wave":
		return DecodeWAV(bytes.NewReader(data))
	case ".mp3":
		return DecodeMP3(bytes.NewReader(data))
	}
	if len(data) >= 4 && string(data[:4]) == "RIFF" {
		return DecodeWAV(bytes.NewReader(data))
	}
	return DecodeMP3(bytes.NewReader(data))
}

// DecodeMP3 decodes an MP3 stream. go-mp3 always emits 16-bit little-endian
// stereo, which is averaged down to mono.
func DecodeMP3(r io.Reader) (Waveform, error) {
	decoder, err := mp3.NewDecoder(r)
	if err != nil {
		return Waveform{}, fmt.Errorf("mp3 decode failed: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return Waveform{}, fmt.Errorf("mp3 read failed: %w", err)
	}

	const bytesPerFrame = 4
	frames := len(pcm) / bytesPerFrame
	if frames == 0 || decoder.SampleRate() <= 0 {
		return Waveform{}, errEmpty
	}

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		off := i * bytesPerFrame
		left := int16(pcm[off]) | int16(pcm[off+1])<<8
		right := int16(pcm[off+2]) | int16(pcm[off+3])<<8
		samples[i] = (float64(left) + float64(right)) / 2 / 32768.0
	}

	return Waveform{Samples: samples, SampleRate: decoder.SampleRate()}, nil
}

// DecodeWAV decodes integer PCM WAV data of 8, 16, 24 or 32 bits.
func DecodeWAV(r io.ReadSeeker) (Waveform, error) {
	decoder := wav.NewDecoder(r)
	if !decoder.IsValidFile() {
		return Waveform{}, errors.New("not a valid wav file")
	}
	if decoder.WavAudioFormat != 1 {
		return Waveform{}, fmt.Errorf("unsupported wav format %d (integer PCM only)", decoder.WavAudioFormat)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return Waveform{}, fmt.Errorf("wav read failed: %w", err)
	}
	if buf == nil || buf.Format == nil {
		return Waveform{}, errEmpty
	}

	channels := buf.Format.NumChannels
	if channels < 1 {
		channels = 1
	}
	frames := len(buf.Data) / channels
	if frames == 0 || buf.Format.SampleRate <= 0 {
		return Waveform{}, errEmpty
	}

	depth := int(decoder.BitDepth)
	if depth <= 0 || depth > 32 {
		return Waveform{}, fmt.Errorf("unsupported wav bit depth %d", depth)
	}
	scale := float64(int64(1) << (depth - 1))
	offset := 0.0
	if depth == 8 {
		// 8-bit WAV is unsigned.
		offset = 128
	}

	samples := make([]float64, frames)
	for i := 0; i < frames; i++ {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += (float64(buf.Data[i*channels+c]) - offset) / scale
		}
		samples[i] = sum / float64(channels)
	}

	return Waveform{Samples: samples, SampleRate: buf.Format.SampleRate}, nil
}
