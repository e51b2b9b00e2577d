package codec

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/pcm"
)

// Headroom scales every sample before quantisation.
const Headroom = 0.95

const wavHeaderSize = 44

// Quantize16 applies headroom, clamps to [-1, 1] and rounds to 16 bits.
func Quantize16(x float32) int16 {
	v := float64(x) * Headroom
	if math.IsNaN(v) {
		return 0
	}
	v = math.Max(-1, math.Min(1, v))
	return int16(math.Round(v * 32767))
}

// EncodeWAV writes buf as a canonical 44-byte-header, 16-bit PCM WAV with
// channels interleaved.
func EncodeWAV(w io.Writer, buf *pcm.Buffer) error {
	channels := buf.Channels()
	if channels == 0 {
		return fmt.Errorf("encode wav: no channels")
	}
	frames := buf.Frames()
	dataSize := uint32(frames * channels * 2)
	blockAlign := uint16(channels * 2)

	header := make([]byte, wavHeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], 36+dataSize)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:28], uint32(buf.SampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(buf.SampleRate)*uint32(blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], blockAlign)
	binary.LittleEndian.PutUint16(header[34:36], 16)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], dataSize)
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("encode wav: %w", err)
	}

	const chunkFrames = 4096
	out := make([]byte, 0, min(frames, chunkFrames)*int(blockAlign))
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			out = binary.LittleEndian.AppendUint16(out, uint16(Quantize16(buf.Data[c][i])))
		}
		if (i+1)%chunkFrames == 0 || i == frames-1 {
			if _, err := w.Write(out); err != nil {
				return fmt.Errorf("encode wav: %w", err)
			}
			out = out[:0]
		}
	}
	return nil
}

// EncodeWAVBytes returns the WAV container for buf.
func EncodeWAVBytes(buf *pcm.Buffer) ([]byte, error) {
	var b bytes.Buffer
	b.Grow(wavHeaderSize + buf.Frames()*buf.Channels()*2)
	if err := EncodeWAV(&b, buf); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// WriteWAVFile exports buf to path at the given bit depth (16 or 24) through
// the go-audio encoder. Headroom is applied as in EncodeWAV. A failed export
// removes the partial file.
func WriteWAVFile(path string, buf *pcm.Buffer, bitDepth int) (err error) {
	if bitDepth != 16 && bitDepth != 24 {
		return fmt.Errorf("write %s: unsupported bit depth %d: %w", path, bitDepth, apperrors.ErrInvalidParameter)
	}
	if verr := buf.Validate(); verr != nil {
		return fmt.Errorf("write %s: %w: %v", path, apperrors.ErrInvalidRequest, verr)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(path)
		}
	}()

	enc := wav.NewEncoder(f, buf.SampleRate, bitDepth, buf.Channels(), 1)
	scale := float64(goaudio.IntMaxSignedValue(bitDepth))
	data := make([]int, 0, buf.Frames()*buf.Channels())
	for i := 0; i < buf.Frames(); i++ {
		for c := 0; c < buf.Channels(); c++ {
			v := math.Max(-1, math.Min(1, float64(buf.Data[c][i])*Headroom))
			data = append(data, int(math.Round(v*scale)))
		}
	}
	ib := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: buf.Channels(), SampleRate: buf.SampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err = enc.Write(ib); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = enc.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// DecodeWAV decodes integer PCM WAV of any bit depth go-audio supports.
func DecodeWAV(r io.Reader) (*pcm.Buffer, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}
	dec := wav.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	if dec.WavAudioFormat != 1 {
		return nil, fmt.Errorf("%w: format tag %d", ErrUnsupportedEncoding, dec.WavAudioFormat)
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return fromIntBuffer(ib, int(dec.BitDepth))
}

// fromIntBuffer converts go-audio's interleaved ints to a planar buffer.
func fromIntBuffer(ib *goaudio.IntBuffer, bitDepth int) (*pcm.Buffer, error) {
	if ib == nil || ib.Format == nil || ib.Format.NumChannels < 1 {
		return nil, ErrUnsupportedEncoding
	}
	var scale, bias float32
	switch bitDepth {
	case 8:
		// 8-bit PCM is unsigned
		scale, bias = 128, 128
	case 16, 24, 32:
		scale = float32(uint64(1) << (bitDepth - 1))
	default:
		return nil, fmt.Errorf("%w: %d-bit", ErrUnsupportedEncoding, bitDepth)
	}
	samples := make([]float32, len(ib.Data))
	for i, v := range ib.Data {
		samples[i] = (float32(v) - bias) / scale
	}
	return pcm.FromInterleaved(samples, ib.Format.SampleRate, ib.Format.NumChannels), nil
}

func readSeeker(r io.Reader) (io.ReadSeeker, error) {
	if rs, ok := r.(io.ReadSeeker); ok {
		return rs, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}
