package audio

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Output format of the speech synthesis service.
const (
	// SampleRate is the fixed rate of synthesized speech in Hz.
	SampleRate = 24000
	// Channels is the channel count of synthesized speech (mono).
	Channels = 1
	// BitDepth is the sample width of the raw payload.
	BitDepth = 16

	wavHeaderSize = 44
)

var (
	// ErrMalformedPayload is returned when a stored audio payload is not valid base64.
	ErrMalformedPayload = errors.New("malformed audio payload")

	// ErrPartialSample is returned when a PCM byte stream ends mid-sample.
	ErrPartialSample = errors.New("pcm data is not aligned to whole samples")

	// ErrEmptyAudio is returned when there is nothing to decode.
	ErrEmptyAudio = errors.New("empty audio data")
)

// Buffer is a decoded, multi-channel waveform ready for output.
type Buffer struct {
	sampleRate int
	channels   [][]float32
}

// Allocator creates waveform buffers. Output contexts implement it so that a
// device can refuse buffers it cannot hold.
type Allocator interface {
	CreateBuffer(channels, frames, sampleRate int) (*Buffer, error)
}

// NewBuffer allocates a silent buffer.
func NewBuffer(channels, frames, sampleRate int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if sampleRate < 1 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if frames < 1 {
		return nil, ErrEmptyAudio
	}
	b := &Buffer{sampleRate: sampleRate, channels: make([][]float32, channels)}
	for c := range b.channels {
		b.channels[c] = make([]float32, frames)
	}
	return b, nil
}

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// NumberOfChannels returns the channel count.
func (b *Buffer) NumberOfChannels() int { return len(b.channels) }

// Length returns the number of frames per channel.
func (b *Buffer) Length() int {
	if len(b.channels) == 0 {
		return 0
	}
	return len(b.channels[0])
}

// Duration returns the buffer length in seconds.
func (b *Buffer) Duration() float64 {
	if b.sampleRate == 0 {
		return 0
	}
	return float64(b.Length()) / float64(b.sampleRate)
}

// Channel returns the samples of channel c.
func (b *Buffer) Channel(c int) []float32 { return b.channels[c] }

// frameAt converts a position in seconds to a frame index within the buffer.
func (b *Buffer) frameAt(seconds float64) int {
	frame := int(math.Round(seconds * float64(b.sampleRate)))
	if frame < 0 {
		return 0
	}
	if n := b.Length(); frame > n {
		return n
	}
	return frame
}

// float32LE interleaves the buffer from frame onwards as little-endian
// float32 samples.
func (b *Buffer) float32LE(frame int) []byte {
	n := b.Length() - frame
	if n <= 0 {
		return nil
	}
	ch := len(b.channels)
	out := make([]byte, n*ch*4)
	pos := 0
	for i := frame; i < frame+n; i++ {
		for c := 0; c < ch; c++ {
			binary.LittleEndian.PutUint32(out[pos:], math.Float32bits(b.channels[c][i]))
			pos += 4
		}
	}
	return out
}

// Decode decodes a base64 audio payload into raw bytes.
func Decode(payload string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return data, nil
}

// DecodeAudioData interprets data as interleaved 16-bit little-endian signed
// PCM and converts it to a normalized float waveform.
func DecodeAudioData(data []byte, alloc Allocator, sampleRate, channels int) (*Buffer, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	if len(data) == 0 {
		return nil, ErrEmptyAudio
	}
	frameSize := 2 * channels
	if len(data)%frameSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes for %d-byte frames", ErrPartialSample, len(data), frameSize)
	}

	frames := len(data) / frameSize
	buf, err := alloc.CreateBuffer(channels, frames, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate audio buffer: %w", err)
	}

	for c := 0; c < channels; c++ {
		samples := buf.Channel(c)
		for i := 0; i < frames; i++ {
			off := (i*channels + c) * 2
			v := int16(binary.LittleEndian.Uint16(data[off:]))
			samples[i] = float32(v) / 32768.0
		}
	}
	return buf, nil
}

// CreateWAV wraps mono 16-bit PCM in a canonical 44-byte RIFF/WAVE header.
func CreateWAV(pcm []byte, sampleRate int) []byte {
	const (
		numChannels   = 1
		bitsPerSample = 16
	)
	blockAlign := numChannels * bitsPerSample / 8
	byteRate := sampleRate * blockAlign

	out := make([]byte, wavHeaderSize+len(pcm))
	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(pcm))) //nolint:gosec
	copy(out[8:12], "WAVE")
	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], numChannels)
	binary.LittleEndian.PutUint32(out[24:28], uint32(sampleRate)) //nolint:gosec
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))   //nolint:gosec
	binary.LittleEndian.PutUint16(out[32:34], uint16(blockAlign)) //nolint:gosec
	binary.LittleEndian.PutUint16(out[34:36], bitsPerSample)
	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(pcm))) //nolint:gosec
	copy(out[wavHeaderSize:], pcm)
	return out
}

// PayloadWAV decodes a stored base64 payload and wraps it as a WAV file.
func PayloadWAV(payload string) ([]byte, error) {
	pcm, err := Decode(payload)
	if err != nil {
		return nil, err
	}
	if len(pcm)%2 != 0 {
		return nil, ErrPartialSample
	}
	return CreateWAV(pcm, SampleRate), nil
}

// PayloadDuration returns the length in seconds of a stored payload without
// decoding its samples.
func PayloadDuration(payload string) float64 {
	n := base64.StdEncoding.DecodedLen(len(payload))
	// DecodedLen over-counts padding.
	for i := len(payload) - 1; i >= 0 && payload[i] == '='; i-- {
		n--
	}
	return float64(n/(2*Channels)) / float64(SampleRate)
}
