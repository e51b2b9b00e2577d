// Package codec decodes clip sources into pcm buffers and encodes mixdowns
// as canonical 16-bit WAV.
package codec

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/pcm"
)

// Decoder turns an encoded stream into a planar buffer.
type Decoder interface {
	Decode(r io.Reader) (*pcm.Buffer, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(r io.Reader) (*pcm.Buffer, error)

func (f DecoderFunc) Decode(r io.Reader) (*pcm.Buffer, error) { return f(r) }

// Registry maps file extensions to decoders. It is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	decoders map[string]Decoder
}

func NewRegistry() *Registry {
	return &Registry{decoders: map[string]Decoder{}}
}

// Register binds ext (with or without the dot, any case) to d.
func (r *Registry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[normExt(ext)] = d
}

func (r *Registry) Lookup(ext string) (Decoder, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.decoders[normExt(ext)]
	return d, ok
}

// Extensions lists the registered extensions.
func (r *Registry) Extensions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.decoders))
	for ext := range r.decoders {
		out = append(out, ext)
	}
	return out
}

// Decode reads all of rd and decodes it. An empty ext sniffs the format from
// the leading bytes.
func (r *Registry) Decode(rd io.Reader, ext string) (*pcm.Buffer, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	if ext == "" {
		ext = Sniff(data)
	}
	d, ok := r.Lookup(ext)
	if !ok {
		return nil, fmt.Errorf("decode %q: unsupported format: %w", ext, apperrors.ErrNoAudioLoaded)
	}
	buf, err := d.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", normExt(ext), apperrors.ErrNoAudioLoaded, err)
	}
	if buf.Frames() == 0 {
		return nil, fmt.Errorf("decode %s: no samples: %w", normExt(ext), apperrors.ErrNoAudioLoaded)
	}
	return buf, nil
}

// DecodeFile decodes path by its extension, sniffing when it has none.
func (r *Registry) DecodeFile(path string) (*pcm.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w: %v", path, apperrors.ErrNoAudioLoaded, err)
	}
	defer f.Close()
	return r.Decode(f, filepath.Ext(path))
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the shared registry with every built-in format.
func Default() *Registry {
	defaultOnce.Do(func() {
		r := NewRegistry()
		r.Register("wav", DecoderFunc(DecodeWAV))
		r.Register("wave", DecoderFunc(DecodeWAV))
		r.Register("aiff", DecoderFunc(DecodeAIFF))
		r.Register("aif", DecoderFunc(DecodeAIFF))
		r.Register("mp3", DecoderFunc(DecodeMP3))
		r.Register("ogg", DecoderFunc(DecodeVorbis))
		r.Register("oga", DecoderFunc(DecodeVorbis))
		defaultRegistry = r
	})
	return defaultRegistry
}

// Sniff guesses an extension from magic bytes; "" when unknown.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return "wav"
	case len(data) >= 12 && string(data[:4]) == "FORM" && (string(data[8:12]) == "AIFF" || string(data[8:12]) == "AIFC"):
		return "aiff"
	case len(data) >= 4 && string(data[:4]) == "OggS":
		return "ogg"
	case len(data) >= 3 && string(data[:3]) == "ID3":
		return "mp3"
	case len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "mp3"
	}
	return ""
}

func normExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}
