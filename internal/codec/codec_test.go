package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/pcm"
)

func TestEncodeWAVMonoLayout(t *testing.T) {
	for _, n := range []int{0, 1, 100, 5000} {
		buf := pcm.New(22050, 1, n)
		data, err := EncodeWAVBytes(buf)
		if err != nil {
			t.Fatal(err)
		}
		if len(data) != 44+2*n {
			t.Fatalf("n=%d: %d bytes, want %d", n, len(data), 44+2*n)
		}
		if string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" || string(data[36:40]) != "data" {
			t.Fatalf("bad chunk ids: %q", data[:40])
		}
		if got := binary.LittleEndian.Uint32(data[4:8]); got != uint32(36+2*n) {
			t.Fatalf("riff size = %d", got)
		}
		if got := binary.LittleEndian.Uint32(data[24:28]); got != 22050 {
			t.Fatalf("sample rate = %d", got)
		}
		if got := binary.LittleEndian.Uint16(data[34:36]); got != 16 {
			t.Fatalf("bits = %d", got)
		}
	}
}

func TestQuantize16(t *testing.T) {
	tests := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 31129},
		{-1, -31129},
		{2, 32767},
		{-3, -32767},
		{0.5, 15564},
		{float32(math.NaN()), 0},
	}
	for _, tt := range tests {
		if got := Quantize16(tt.in); got != tt.want {
			t.Errorf("Quantize16(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestEncodeWAVStereoInterleaves(t *testing.T) {
	buf := pcm.New(8000, 2, 2)
	buf.Data[0][0], buf.Data[1][0] = 1, -1
	data, err := EncodeWAVBytes(buf)
	if err != nil {
		t.Fatal(err)
	}
	if got := binary.LittleEndian.Uint16(data[32:34]); got != 4 {
		t.Fatalf("block align = %d", got)
	}
	l := int16(binary.LittleEndian.Uint16(data[44:]))
	r := int16(binary.LittleEndian.Uint16(data[46:]))
	if l != 31129 || r != -31129 {
		t.Fatalf("first frame = %d,%d", l, r)
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	buf := pcm.New(16000, 2, 64)
	for i := range 64 {
		buf.Data[0][i] = 0.5
		buf.Data[1][i] = -0.25
	}
	data, err := EncodeWAVBytes(buf)
	if err != nil {
		t.Fatal(err)
	}
	got, err := Default().Decode(bytes.NewReader(data), "")
	if err != nil {
		t.Fatal(err)
	}
	if got.SampleRate != 16000 || got.Channels() != 2 || got.Frames() != 64 {
		t.Fatalf("decoded %d Hz %d ch %d frames", got.SampleRate, got.Channels(), got.Frames())
	}
	if d := math.Abs(float64(got.Data[0][10]) - 0.5*Headroom); d > 1e-3 {
		t.Fatalf("left = %v", got.Data[0][10])
	}
	if d := math.Abs(float64(got.Data[1][10]) + 0.25*Headroom); d > 1e-3 {
		t.Fatalf("right = %v", got.Data[1][10])
	}
}

func TestWriteWAVFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.wav")
	buf := pcm.New(44100, 1, 441)
	for i := range 441 {
		buf.Data[0][i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 44100))
	}
	if err := WriteWAVFile(path, buf, 16); err != nil {
		t.Fatal(err)
	}
	got, err := Default().DecodeFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.Frames() != 441 || got.SampleRate != 44100 {
		t.Fatalf("decoded %d frames at %d Hz", got.Frames(), got.SampleRate)
	}
	if d := math.Abs(float64(got.Data[0][50]) - float64(buf.Data[0][50])*Headroom); d > 1e-3 {
		t.Fatalf("sample 50 off by %v", d)
	}
	if err := WriteWAVFile(path, buf, 12); !errors.Is(err, apperrors.ErrInvalidParameter) {
		t.Fatalf("12-bit export err = %v", err)
	}
}

func TestWriteWAVFileFailuresLeaveNoFile(t *testing.T) {
	dir := t.TempDir()
	ragged := &pcm.Buffer{SampleRate: 8000, Data: [][]float32{make([]float32, 10), make([]float32, 9)}}
	tests := []struct {
		name  string
		path  string
		buf   *pcm.Buffer
		depth int
		is    error
	}{
		{"bad depth", filepath.Join(dir, "a.wav"), pcm.New(8000, 1, 10), 8, apperrors.ErrInvalidParameter},
		{"ragged buffer", filepath.Join(dir, "b.wav"), ragged, 16, apperrors.ErrInvalidRequest},
		{"missing directory", filepath.Join(dir, "nope", "c.wav"), pcm.New(8000, 1, 10), 16, fs.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := WriteWAVFile(tt.path, tt.buf, tt.depth)
			if !errors.Is(err, tt.is) {
				t.Fatalf("err = %v, want %v", err, tt.is)
			}
			if !strings.HasPrefix(err.Error(), "write "+tt.path) {
				t.Fatalf("err %q does not name the path", err)
			}
			if _, serr := os.Stat(tt.path); !errors.Is(serr, fs.ErrNotExist) {
				t.Fatalf("file left behind: %v", serr)
			}
		})
	}
}

func TestDecodeFailures(t *testing.T) {
	r := Default()
	if _, err := r.Decode(bytes.NewReader([]byte("hello")), "xyz"); !errors.Is(err, apperrors.ErrNoAudioLoaded) {
		t.Fatalf("unknown ext err = %v", err)
	}
	if _, err := r.Decode(bytes.NewReader([]byte("RIFF....WAVEjunk")), "wav"); !errors.Is(err, apperrors.ErrNoAudioLoaded) {
		t.Fatalf("corrupt wav err = %v", err)
	}
	if _, err := r.DecodeFile(filepath.Join(t.TempDir(), "missing.wav")); !errors.Is(err, apperrors.ErrNoAudioLoaded) {
		t.Fatalf("missing file err = %v", err)
	}
}

func TestSniff(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte("RIFF\x00\x00\x00\x00WAVEfmt "), "wav"},
		{[]byte("FORM\x00\x00\x00\x00AIFFCOMM"), "aiff"},
		{[]byte("OggS\x00\x02"), "ogg"},
		{[]byte("ID3\x04\x00"), "mp3"},
		{[]byte{0xFF, 0xFB, 0x90, 0x00}, "mp3"},
		{[]byte("text"), ""},
	}
	for _, tt := range tests {
		if got := Sniff(tt.data); got != tt.want {
			t.Errorf("Sniff(%q) = %q, want %q", tt.data, got, tt.want)
		}
	}
}

func TestRegistryNormalisesExtensions(t *testing.T) {
	r := NewRegistry()
	r.Register(".RAW", DecoderFunc(func(rd io.Reader) (*pcm.Buffer, error) {
		return pcm.New(8000, 1, 1), nil
	}))
	if _, ok := r.Lookup("raw"); !ok {
		t.Fatal("lookup by bare extension failed")
	}
	if _, ok := r.Lookup(".Raw"); !ok {
		t.Fatal("lookup with dot and mixed case failed")
	}
}
