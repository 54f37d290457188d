package audio

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"testing/quick"
)

// dataChunk walks the RIFF chunks of a WAV file and returns the data chunk.
func dataChunk(t *testing.T, wav []byte) []byte {
	t.Helper()
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("not a RIFF/WAVE file")
	}
	pos := 12
	for pos+8 <= len(wav) {
		id := string(wav[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(wav[pos+4 : pos+8]))
		pos += 8
		if id == "data" {
			return wav[pos : pos+size]
		}
		pos += size
	}
	t.Fatalf("no data chunk")
	return nil
}

func TestCreateWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	wav := CreateWAV(pcm, SampleRate)

	if len(wav) != 44+len(pcm) {
		t.Fatalf("WAV length should be %d, got %d", 44+len(pcm), len(wav))
	}

	tests := []struct {
		name string
		off  int
		want uint32
		size int
	}{
		{"riff size", 4, 36 + 4, 4},
		{"fmt size", 16, 16, 4},
		{"format", 20, 1, 2},
		{"channels", 22, 1, 2},
		{"sample rate", 24, SampleRate, 4},
		{"byte rate", 28, SampleRate * 2, 4},
		{"block align", 32, 2, 2},
		{"bits", 34, 16, 2},
		{"data size", 40, 4, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got uint32
			if tt.size == 2 {
				got = uint32(binary.LittleEndian.Uint16(wav[tt.off:]))
			} else {
				got = binary.LittleEndian.Uint32(wav[tt.off:])
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}

	for off, tag := range map[int]string{0: "RIFF", 8: "WAVE", 12: "fmt ", 36: "data"} {
		if string(wav[off:off+4]) != tag {
			t.Errorf("tag at %d should be %q, got %q", off, tag, wav[off:off+4])
		}
	}
}

func TestCreateWAVDeterministic(t *testing.T) {
	pcm := []byte{0xff, 0x7f, 0x00, 0x80}
	if !bytes.Equal(CreateWAV(pcm, SampleRate), CreateWAV(pcm, SampleRate)) {
		t.Error("CreateWAV should be deterministic")
	}
}

func TestCodecRoundTrip(t *testing.T) {
	alloc := NewMockContext(SampleRate)

	roundTrip := func(raw []byte) bool {
		if len(raw)%2 == 1 {
			raw = raw[:len(raw)-1]
		}
		if len(raw) == 0 {
			return true
		}

		data, err := Decode(base64.StdEncoding.EncodeToString(raw))
		if err != nil {
			return false
		}
		buf, err := DecodeAudioData(data, alloc, SampleRate, Channels)
		if err != nil {
			return false
		}

		// Re-quantize the float waveform.
		pcm := make([]byte, buf.Length()*2)
		for i, s := range buf.Channel(0) {
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(math.Round(float64(s)*32768))))
		}

		wav := CreateWAV(pcm, SampleRate)
		return bytes.Equal(dataChunk(t, wav), raw)
	}

	if err := quick.Check(roundTrip, &quick.Config{MaxCount: 500}); err != nil {
		t.Error(err)
	}
}

func TestDecodeAudioDataRange(t *testing.T) {
	data := make([]byte, 6)
	binary.LittleEndian.PutUint16(data[0:], uint16(0x8000)) // -32768
	binary.LittleEndian.PutUint16(data[2:], 0x7fff)
	binary.LittleEndian.PutUint16(data[4:], 0)

	buf, err := DecodeAudioData(data, NewMockContext(SampleRate), SampleRate, 1)
	if err != nil {
		t.Fatalf("DecodeAudioData failed: %v", err)
	}

	samples := buf.Channel(0)
	if samples[0] != -1 {
		t.Errorf("min sample should be -1, got %v", samples[0])
	}
	if samples[1] >= 1 || samples[1] < 0.999 {
		t.Errorf("max sample should be just below 1, got %v", samples[1])
	}
	if samples[2] != 0 {
		t.Errorf("zero sample should be 0, got %v", samples[2])
	}
	if buf.SampleRate() != SampleRate || buf.NumberOfChannels() != 1 {
		t.Errorf("unexpected buffer format: %d Hz, %d channels", buf.SampleRate(), buf.NumberOfChannels())
	}
}

func TestDecodeAudioDataStereo(t *testing.T) {
	data := make([]byte, 8)
	binary.LittleEndian.PutUint16(data[0:], 0x4000) // L0
	binary.LittleEndian.PutUint16(data[2:], 0xc000) // R0
	binary.LittleEndian.PutUint16(data[4:], 0)      // L1
	binary.LittleEndian.PutUint16(data[6:], 0x2000) // R1

	buf, err := DecodeAudioData(data, NewMockContext(SampleRate), SampleRate, 2)
	if err != nil {
		t.Fatalf("DecodeAudioData failed: %v", err)
	}
	if buf.Length() != 2 {
		t.Fatalf("expected 2 frames, got %d", buf.Length())
	}
	if buf.Channel(0)[0] != 0.5 || buf.Channel(1)[0] != -0.5 {
		t.Errorf("first frame mis-deinterleaved: %v %v", buf.Channel(0)[0], buf.Channel(1)[0])
	}
	if buf.Channel(1)[1] != 0.25 {
		t.Errorf("second right sample should be 0.25, got %v", buf.Channel(1)[1])
	}
}

func TestDecodeErrors(t *testing.T) {
	alloc := NewMockContext(SampleRate)

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name: "malformed base64",
			run: func() error {
				_, err := Decode("not base64!!")
				return err
			},
			wantErr: ErrMalformedPayload,
		},
		{
			name: "odd byte count",
			run: func() error {
				_, err := DecodeAudioData([]byte{1, 2, 3}, alloc, SampleRate, 1)
				return err
			},
			wantErr: ErrPartialSample,
		},
		{
			name: "partial stereo frame",
			run: func() error {
				_, err := DecodeAudioData([]byte{1, 2}, alloc, SampleRate, 2)
				return err
			},
			wantErr: ErrPartialSample,
		},
		{
			name: "empty",
			run: func() error {
				_, err := DecodeAudioData(nil, alloc, SampleRate, 1)
				return err
			},
			wantErr: ErrEmptyAudio,
		},
		{
			name: "odd payload for WAV",
			run: func() error {
				_, err := PayloadWAV(base64.StdEncoding.EncodeToString([]byte{1, 2, 3}))
				return err
			},
			wantErr: ErrPartialSample,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestDecodeAudioDataAllocationFailure(t *testing.T) {
	ctx := NewMockContext(SampleRate)
	ctx.MaxFrames = 10

	if _, err := DecodeAudioData(make([]byte, 40), ctx, SampleRate, 1); err == nil {
		t.Error("expected allocation failure for 20 frames")
	}
	if _, err := DecodeAudioData(make([]byte, 20), ctx, SampleRate, 1); err != nil {
		t.Errorf("10 frames should fit: %v", err)
	}
}

func TestPayloadDuration(t *testing.T) {
	tests := []struct {
		bytes int
		want  float64
	}{
		{SampleRate * 2, 1},
		{SampleRate * 2 * 10, 10},
		{SampleRate, 0.5},
		{2, 1.0 / SampleRate},
	}
	for _, tt := range tests {
		payload := base64.StdEncoding.EncodeToString(make([]byte, tt.bytes))
		if got := PayloadDuration(payload); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("PayloadDuration(%d bytes) = %v, want %v", tt.bytes, got, tt.want)
		}
	}
}
