package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cbegin/mixsynth-go/internal/codec"
	apperrors "github.com/cbegin/mixsynth-go/internal/errors"
	"github.com/cbegin/mixsynth-go/internal/mixdown"
	"github.com/cbegin/mixsynth-go/internal/pcm"
	"github.com/cbegin/mixsynth-go/internal/project"
	"github.com/cbegin/mixsynth-go/internal/regionfx"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleEffects lists implemented and recognised-but-stubbed kinds.
func (s *Server) handleEffects(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{
		"kinds": regionfx.Kinds(),
		"stubs": regionfx.Stubs(),
	})
}

// handleMixdown renders a project snapshot to WAV. The optional total query
// parameter overrides the project's duration in seconds.
func (s *Server) handleMixdown(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBody)
	p, err := project.Load(body)
	if err != nil {
		s.fail(w, err)
		return
	}
	req := mixdown.Request{Tracks: p.Tracks, TotalDurationSec: p.EndSec()}
	if v := r.URL.Query().Get("total"); v != "" {
		total, err := strconv.ParseFloat(v, 64)
		if err != nil {
			s.fail(w, fmt.Errorf("total %q: %w", v, apperrors.ErrInvalidParameter))
			return
		}
		req.TotalDurationSec = total
	}
	opts := []mixdown.Option{mixdown.WithLogger(s.logger)}
	if s.config.SampleRate > 0 {
		opts = append(opts, mixdown.WithInstrumentRate(s.config.SampleRate))
	}
	buf, err := mixdown.Render(r.Context(), req, s.loader, opts...)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeWAV(w, buf)
}

// handleEffect applies {kind} to the audio in the request body. Query
// parameters: start and end in seconds, params as a JSON object.
func (s *Server) handleEffect(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := regionfx.Request{Kind: chi.URLParam(r, "kind")}
	if !regionfx.Known(req.Kind) {
		s.fail(w, apperrors.NewOpError("process_region", req.Kind, apperrors.ErrUnknownEffectKind))
		return
	}
	for name, dst := range map[string]*float64{"start": &req.RegionStartSec, "end": &req.RegionEndSec} {
		if v := q.Get(name); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				s.fail(w, fmt.Errorf("%s %q: %w", name, v, apperrors.ErrInvalidParameter))
				return
			}
			*dst = f
		}
	}
	if v := q.Get("params"); v != "" {
		if err := json.Unmarshal([]byte(v), &req.Params); err != nil {
			s.fail(w, fmt.Errorf("params: %w: %v", apperrors.ErrInvalidParameter, err))
			return
		}
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.config.MaxBody))
	if err != nil {
		s.fail(w, fmt.Errorf("read body: %w", err))
		return
	}
	buf, err := codec.Default().Decode(bytes.NewReader(data), "")
	if err != nil {
		s.fail(w, err)
		return
	}
	res, err := regionfx.Process(r.Context(), buf, req)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("X-Effect-Applied", strconv.FormatBool(res.Applied))
	if res.Status != nil {
		w.Header().Set("X-Effect-Status", res.Status.Error())
	}
	s.writeWAV(w, res.Buffer)
}

func (s *Server) writeWAV(w http.ResponseWriter, buf *pcm.Buffer) {
	data, err := codec.EncodeWAVBytes(buf)
	if err != nil {
		s.fail(w, err)
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Warn("write response", "err", err)
	}
}
