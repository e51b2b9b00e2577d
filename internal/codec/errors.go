package codec

import "errors"

var (
	ErrNotWAV              = errors.New("not a WAV file")
	ErrNotAIFF             = errors.New("not an AIFF file")
	ErrUnsupportedEncoding = errors.New("unsupported sample encoding")
)
