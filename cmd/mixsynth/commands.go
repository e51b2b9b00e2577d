package main

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cbegin/mixsynth-go"
	"github.com/cbegin/mixsynth-go/internal/analysis"
	"github.com/cbegin/mixsynth-go/internal/codec"
	"github.com/cbegin/mixsynth-go/internal/regionfx"
	"github.com/cbegin/mixsynth-go/internal/server"
)

var (
	renderRoot     string
	renderOut      string
	renderDuration float64
	renderBits     int
	instrumentRate int

	fxIn, fxOut    string
	fxStart, fxEnd float64
	fxParams       []string
	fxList         bool

	playRoot   string
	playFrom   float64
	playVolume float64
	playRate   int

	serveAddr string
	serveRoot string
	serveRate int
)

var renderCmd = &cobra.Command{
	Use:   "render <project.json>",
	Short: "Mix a project down to WAV",
	Long: `Render every audible track of a project snapshot to a stereo WAV file.

Examples:
  mixsynth render song.json -o song.wav
  mixsynth render song.json -o take.wav --duration 30 --bits 24`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

var fxCmd = &cobra.Command{
	Use:   "fx <kind>",
	Short: "Apply an effect to a region of an audio file",
	Long: `Apply an effect to a region of an audio file and write the result as WAV.
Ring-out past the region (reverb and delay tails) is kept.

Examples:
  mixsynth fx reverb -i vox.wav -o vox-verb.wav --start 1.5 --end 4
  mixsynth fx eq -i mix.wav -o out.wav -p gains=3,0,-2
  mixsynth fx --list`,
	Args: func(cmd *cobra.Command, args []string) error {
		if fxList {
			return nil
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: runFX,
}

var playCmd = &cobra.Command{
	Use:   "play <project.json>",
	Short: "Play a project on the audio device",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlay,
}

var inspectCmd = &cobra.Command{
	Use:   "inspect <audio>",
	Short: "Print level and pitch statistics of an audio file",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve mixdown and effects over HTTP",
	Long: `Start the HTTP export service.

Endpoints:
  POST /v1/mixdown          project JSON in, WAV out
  POST /v1/effects/{kind}   audio in, WAV out (?start=&end=&params={...})
  GET  /v1/effects          effect kinds
  GET  /healthz

Example:
  mixsynth serve --addr :8080 --root ./media`,
	RunE: runServe,
}

// loadProject reads a snapshot whose clip sources resolve against root, or
// the snapshot's directory when root is empty.
func loadProject(path, root string) (*mixsynth.Project, mixsynth.Loader, error) {
	p, err := mixsynth.LoadProjectFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load project: %w", err)
	}
	if root == "" {
		root = filepath.Dir(path)
	}
	return p, mixsynth.NewFileLoader(root), nil
}

func runRender(cmd *cobra.Command, args []string) error {
	p, loader, err := loadProject(args[0], renderRoot)
	if err != nil {
		return err
	}
	req := mixsynth.MixdownRequest{Tracks: p.Tracks, TotalDurationSec: p.EndSec()}
	if renderDuration > 0 {
		req.TotalDurationSec = renderDuration
	}
	start := time.Now()
	buf, err := mixsynth.Mixdown(cmd.Context(), req, loader,
		mixsynth.WithMixdownLogger(logger),
		mixsynth.WithInstrumentRate(instrumentRate))
	if err != nil {
		return err
	}
	if err := writeWAV(renderOut, buf, renderBits); err != nil {
		return err
	}
	logger.Info("rendered", "output", renderOut, "seconds", buf.Duration(),
		"rate", buf.SampleRate, "elapsed", time.Since(start))
	return nil
}

func writeWAV(path string, buf *mixsynth.Buffer, bits int) error {
	switch bits {
	case 16:
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := mixsynth.EncodeWAV(f, buf); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	case 24:
		return codec.WriteWAVFile(path, buf, 24)
	default:
		return fmt.Errorf("--bits %d: expected 16 or 24", bits)
	}
}

func runFX(cmd *cobra.Command, args []string) error {
	if fxList {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "kinds:", strings.Join(regionfx.Kinds(), " "))
		fmt.Fprintln(out, "not implemented:", strings.Join(regionfx.Stubs(), " "))
		return nil
	}
	if fxIn == "" || fxOut == "" {
		return fmt.Errorf("--input and --output are required")
	}
	params, err := parseParams(fxParams)
	if err != nil {
		return err
	}
	buf, err := codec.Default().DecodeFile(fxIn)
	if err != nil {
		return err
	}
	res, err := mixsynth.ProcessRegion(cmd.Context(), buf, mixsynth.EffectRequest{
		Kind:           args[0],
		Params:         params,
		RegionStartSec: fxStart,
		RegionEndSec:   fxEnd,
	})
	if err != nil {
		return err
	}
	if !res.Applied {
		logger.Warn("effect not applied, writing input unchanged", "kind", args[0], "status", res.Status)
	}
	return writeWAV(fxOut, res.Buffer, 16)
}

// parseParams reads name=value pairs. A value with commas is a list.
func parseParams(pairs []string) (mixsynth.EffectParams, error) {
	out := mixsynth.EffectParams{}
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("param %q: expected name=value", pair)
		}
		fields := strings.Split(value, ",")
		nums := make([]any, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
			if err != nil {
				return nil, fmt.Errorf("param %q: %w", pair, err)
			}
			nums[i] = v
		}
		if len(nums) == 1 {
			out[strings.TrimSpace(name)] = nums[0]
		} else {
			out[strings.TrimSpace(name)] = nums
		}
	}
	return out, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	p, loader, err := loadProject(args[0], playRoot)
	if err != nil {
		return err
	}
	pl, err := mixsynth.NewPlayer(playRate, mixsynth.WithLoader(loader), mixsynth.WithLogger(logger))
	if err != nil {
		return err
	}
	defer pl.Close()
	if err := pl.Load(cmd.Context(), p); err != nil {
		return err
	}
	pl.SetMasterVolume(playVolume)
	lastSecond := -1
	unsub := pl.OnTime(func(sec float64) {
		if s := int(sec); s != lastSecond {
			lastSecond = s
			fmt.Fprintf(cmd.OutOrStdout(), "\r%5.1fs / %.1fs", sec, p.EndSec())
		}
	})
	defer unsub()
	if err := pl.PlayFrom(playFrom); err != nil {
		return err
	}
	ticker := time.NewTicker(time.Second / 60)
	defer ticker.Stop()
	for pl.IsPlaying() {
		select {
		case <-cmd.Context().Done():
			pl.Stop()
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		case <-ticker.C:
			pl.Tick()
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nplayback completed")
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	buf, err := codec.Default().DecodeFile(args[0])
	if err != nil {
		return err
	}
	s, err := analysis.Summarize(buf)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "file:       %s\n", args[0])
	fmt.Fprintf(out, "format:     %d Hz, %d channel(s), %d frames (%.3fs)\n", s.SampleRate, s.Channels, s.Frames, s.DurationSec)
	fmt.Fprintf(out, "peak:       %.4f (%s)\n", s.Peak, dbString(s.PeakDB))
	fmt.Fprintf(out, "rms:        %.4f (%s)\n", s.RMS, dbString(s.RMSDB))
	fmt.Fprintf(out, "dominant:   %.1f Hz\n", s.DominantHz)
	return nil
}

func dbString(db float64) string {
	if math.IsInf(db, -1) {
		return "-inf dBFS"
	}
	return fmt.Sprintf("%.1f dBFS", db)
}

func runServe(cmd *cobra.Command, args []string) error {
	s := server.New(server.Config{
		Addr:       serveAddr,
		SourceRoot: serveRoot,
		SampleRate: serveRate,
	}, server.WithLogger(logger))
	fmt.Fprintf(cmd.OutOrStdout(), "\n  mixsynth listening on %s\n\n", serveAddr)
	return s.Run(cmd.Context())
}
