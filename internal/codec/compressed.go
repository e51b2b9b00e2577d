package codec

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/go-audio/aiff"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"

	"github.com/cbegin/mixsynth-go/internal/pcm"
)

// DecodeAIFF decodes big-endian integer AIFF.
func DecodeAIFF(r io.Reader) (*pcm.Buffer, error) {
	rs, err := readSeeker(r)
	if err != nil {
		return nil, err
	}
	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, ErrNotAIFF
	}
	ib, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	return fromIntBuffer(ib, int(dec.BitDepth))
}

// DecodeMP3 decodes MPEG-1/2 layer III. go-mp3 always yields 16-bit stereo.
func DecodeMP3(r io.Reader) (*pcm.Buffer, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	samples := make([]float32, len(raw)/2)
	for i := range samples {
		samples[i] = float32(int16(binary.LittleEndian.Uint16(raw[2*i:]))) / 32768
	}
	return pcm.FromInterleaved(samples, dec.SampleRate(), 2), nil
}

// DecodeVorbis decodes an Ogg Vorbis stream.
func DecodeVorbis(r io.Reader) (*pcm.Buffer, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, err
	}
	ch := dec.Channels()
	chunk := make([]float32, 4096*ch)
	var samples []float32
	for {
		// Read returns interleaved values, always a multiple of the channel count
		n, err := dec.Read(chunk)
		samples = append(samples, chunk[:n]...)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return pcm.FromInterleaved(samples, dec.SampleRate(), ch), nil
}
